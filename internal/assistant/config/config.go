package config

import "time"

type Duration struct {
	Duration time.Duration
}

type HTTPConfig struct {
	Addr              string   `json:"addr" yaml:"addr"`
	ReadHeaderTimeout Duration `json:"read_header_timeout" yaml:"read_header_timeout"`
	IdleTimeout       Duration `json:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout   Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
	MaxRequestBytes   int64    `json:"max_request_bytes" yaml:"max_request_bytes"`

	// AllowedOrigins feeds CORS. Empty means any origin without credentials.
	AllowedOrigins []string `json:"allowed_origins,omitempty" yaml:"allowed_origins,omitempty"`
}

type JSONSchemaConfig struct {
	// Mode: "guided_json", "prompt" or "auto" (guided first, then prompt).
	Mode string `json:"mode,omitempty" yaml:"mode,omitempty"`

	// MaxRetries is the number of extra attempts when output is not valid JSON.
	MaxRetries int `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
}

// ProviderConfig selects and configures one text backend.
//
// Type is one of:
//   - "httpjson": the assistant JSON contract (analyze + chat endpoints)
//   - "oai_http": any OpenAI-compatible chat-completions server
//   - "mock": deterministic offline provider
//   - "none": not configured; the local fallbacks answer every call
type ProviderConfig struct {
	Type string `json:"type" yaml:"type"`

	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	APIKey  string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// httpjson paths.
	AnalyzePath string `json:"analyze_path,omitempty" yaml:"analyze_path,omitempty"`
	ChatPath    string `json:"chat_path,omitempty" yaml:"chat_path,omitempty"`

	// oai_http settings.
	ChatCompletionsPath string           `json:"chat_completions_path,omitempty" yaml:"chat_completions_path,omitempty"`
	Model               string           `json:"model,omitempty" yaml:"model,omitempty"`
	Temperature         float64          `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	JSONSchema          JSONSchemaConfig `json:"json_schema,omitempty" yaml:"json_schema,omitempty"`

	// Timeout bounds each call. Timeouts take the fallback path.
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

type VisionConfig struct {
	Enabled    bool     `json:"enabled" yaml:"enabled"`
	MaxResults int      `json:"max_results,omitempty" yaml:"max_results,omitempty"`
	Timeout    Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

type SpeechConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

type RedisConfig struct {
	Addr     string `json:"addr,omitempty" yaml:"addr,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	DB       int    `json:"db,omitempty" yaml:"db,omitempty"`
}

// StoreConfig chooses where contexts and history live.
type StoreConfig struct {
	// Backend is "memory" or "redis".
	Backend          string   `json:"backend" yaml:"backend"`
	MaxConversations int      `json:"max_conversations,omitempty" yaml:"max_conversations,omitempty"`
	IdleTTL          Duration `json:"idle_ttl,omitempty" yaml:"idle_ttl,omitempty"`
	HistoryLimit     int      `json:"history_limit,omitempty" yaml:"history_limit,omitempty"`
	KeyPrefix        string   `json:"key_prefix,omitempty" yaml:"key_prefix,omitempty"`
}

// ArchiveConfig enables the SQL transcript archive. Driver is "postgres",
// "sqlite" or empty (disabled).
type ArchiveConfig struct {
	Driver string `json:"driver,omitempty" yaml:"driver,omitempty"`
	DSN    string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
}

type EscalationConfig struct {
	// Notifier is "log" or "redis".
	Notifier string   `json:"notifier" yaml:"notifier"`
	Channel  string   `json:"channel,omitempty" yaml:"channel,omitempty"`
	Timeout  Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	Email EmailConfig `json:"email,omitempty" yaml:"email,omitempty"`
}

// EmailConfig mails escalations through SendGrid on top of the notifier
// above. An empty To list disables it.
type EmailConfig struct {
	APIKey     string   `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL    string   `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	FromEmail  string   `json:"from_email,omitempty" yaml:"from_email,omitempty"`
	FromName   string   `json:"from_name,omitempty" yaml:"from_name,omitempty"`
	To         []string `json:"to,omitempty" yaml:"to,omitempty"`
	MaxRetries int      `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
}

func (e EmailConfig) Enabled() bool { return len(e.To) > 0 }

type MediaConfig struct {
	Bucket string `json:"bucket,omitempty" yaml:"bucket,omitempty"`
	// Mode is "gcs" or "gcs_emulator".
	Mode         string `json:"mode,omitempty" yaml:"mode,omitempty"`
	EmulatorHost string `json:"emulator_host,omitempty" yaml:"emulator_host,omitempty"`
	MaxBytes     int64  `json:"max_bytes,omitempty" yaml:"max_bytes,omitempty"`
}

func (m MediaConfig) Enabled() bool { return m.Bucket != "" }

type Config struct {
	Env           string           `json:"env" yaml:"env"`
	HTTP          HTTPConfig       `json:"http" yaml:"http"`
	Understanding ProviderConfig   `json:"understanding" yaml:"understanding"`
	Generation    ProviderConfig   `json:"generation" yaml:"generation"`
	Vision        VisionConfig     `json:"vision" yaml:"vision"`
	Speech        SpeechConfig     `json:"speech" yaml:"speech"`
	Redis         RedisConfig      `json:"redis" yaml:"redis"`
	Store         StoreConfig      `json:"store" yaml:"store"`
	Archive       ArchiveConfig    `json:"archive" yaml:"archive"`
	Escalation    EscalationConfig `json:"escalation" yaml:"escalation"`
	Media         MediaConfig      `json:"media" yaml:"media"`
}
