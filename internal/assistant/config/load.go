package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/yungbote/restoration-assistant/internal/platform/envutil"
)

func (d *Duration) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		d.Duration = 0
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		u, err := strconv.Unquote(s)
		if err != nil {
			return err
		}
		return d.parse(u)
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("duration must be a JSON string like \"5s\" or an int nanoseconds: %w", err)
	}
	d.Duration = time.Duration(n)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Duration.String())
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be a scalar at line %d", node.Line)
	}
	if node.Tag == "!!int" {
		n, err := strconv.ParseInt(node.Value, 10, 64)
		if err != nil {
			return err
		}
		d.Duration = time.Duration(n)
		return nil
	}
	return d.parse(node.Value)
}

func (d *Duration) parse(s string) error {
	if strings.TrimSpace(s) == "" {
		d.Duration = 0
		return nil
	}
	dd, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return err
	}
	d.Duration = dd
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Env: "development",
		HTTP: HTTPConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: Duration{Duration: 5 * time.Second},
			IdleTimeout:       Duration{Duration: 2 * time.Minute},
			ShutdownTimeout:   Duration{Duration: 15 * time.Second},
			MaxRequestBytes:   10 << 20,
		},
		Understanding: ProviderConfig{Type: "none"},
		Generation:    ProviderConfig{Type: "none"},
		Store: StoreConfig{
			Backend:          "memory",
			MaxConversations: 10000,
			HistoryLimit:     200,
			KeyPrefix:        "assistant",
		},
		Escalation: EscalationConfig{Notifier: "log"},
	}
}

// Load reads .env (if present), then the config file, then env overrides,
// and finally validates and fills defaults.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := defaultConfig()

	cfgPath := strings.TrimSpace(os.Getenv("ASSISTANT_CONFIG_PATH"))
	if cfgPath == "" {
		if wd, err := os.Getwd(); err == nil {
			for _, name := range []string{"config.yaml", "config.yml", "config.json"} {
				p := filepath.Join(wd, "config", name)
				if _, err := os.Stat(p); err == nil {
					cfgPath = p
					break
				}
			}
		}
	}

	if cfgPath != "" {
		if err := readFile(cfgPath, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if err := normalize(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// readFile decodes onto the defaults so a partial file keeps the rest.
func readFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, cfg); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Env = envutil.String("LOG_MODE", cfg.Env)
	cfg.HTTP.Addr = envutil.String("ASSISTANT_HTTP_ADDR", cfg.HTTP.Addr)
	cfg.HTTP.AllowedOrigins = envutil.List("ASSISTANT_ALLOWED_ORIGINS", cfg.HTTP.AllowedOrigins)

	cfg.Understanding.Type = envutil.String("ASSISTANT_UNDERSTANDING_TYPE", cfg.Understanding.Type)
	cfg.Understanding.BaseURL = envutil.String("ASSISTANT_UNDERSTANDING_BASE_URL", cfg.Understanding.BaseURL)
	cfg.Understanding.APIKey = envutil.String("ASSISTANT_UNDERSTANDING_API_KEY", cfg.Understanding.APIKey)
	cfg.Generation.Type = envutil.String("ASSISTANT_GENERATION_TYPE", cfg.Generation.Type)
	cfg.Generation.BaseURL = envutil.String("ASSISTANT_GENERATION_BASE_URL", cfg.Generation.BaseURL)
	cfg.Generation.APIKey = envutil.String("ASSISTANT_GENERATION_API_KEY", cfg.Generation.APIKey)

	cfg.Vision.Enabled = envutil.Bool("ASSISTANT_VISION_ENABLED", cfg.Vision.Enabled)
	cfg.Speech.Enabled = envutil.Bool("ASSISTANT_SPEECH_ENABLED", cfg.Speech.Enabled)

	cfg.Redis.Addr = envutil.String("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = envutil.String("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = envutil.Int("REDIS_DB", cfg.Redis.DB)
	cfg.Store.Backend = envutil.String("ASSISTANT_STORE_BACKEND", cfg.Store.Backend)

	cfg.Archive.Driver = envutil.String("ASSISTANT_ARCHIVE_DRIVER", cfg.Archive.Driver)
	cfg.Archive.DSN = envutil.String("ASSISTANT_ARCHIVE_DSN", cfg.Archive.DSN)

	cfg.Escalation.Notifier = envutil.String("ASSISTANT_ESCALATION_NOTIFIER", cfg.Escalation.Notifier)
	cfg.Escalation.Email.To = envutil.List("ASSISTANT_ESCALATION_EMAIL_TO", cfg.Escalation.Email.To)
	cfg.Escalation.Email.APIKey = envutil.String("SENDGRID_API_KEY", cfg.Escalation.Email.APIKey)
	cfg.Escalation.Email.BaseURL = envutil.String("SENDGRID_BASE_URL", cfg.Escalation.Email.BaseURL)
	cfg.Escalation.Email.FromEmail = envutil.String("SENDGRID_FROM_EMAIL", cfg.Escalation.Email.FromEmail)
	cfg.Escalation.Email.FromName = envutil.String("SENDGRID_FROM_NAME", cfg.Escalation.Email.FromName)

	cfg.Media.Bucket = envutil.String("ASSISTANT_MEDIA_BUCKET", cfg.Media.Bucket)
	cfg.Media.Mode = envutil.String("OBJECT_STORAGE_MODE", cfg.Media.Mode)
	cfg.Media.EmulatorHost = envutil.String("STORAGE_EMULATOR_HOST", cfg.Media.EmulatorHost)
}

func normalize(cfg *Config) error {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "development"
	}
	if strings.TrimSpace(cfg.HTTP.Addr) == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.HTTP.MaxRequestBytes <= 0 {
		cfg.HTTP.MaxRequestBytes = 10 << 20
	}
	if cfg.HTTP.ShutdownTimeout.Duration <= 0 {
		cfg.HTTP.ShutdownTimeout = Duration{Duration: 15 * time.Second}
	}

	if err := normalizeProvider("understanding", &cfg.Understanding); err != nil {
		return err
	}
	if err := normalizeProvider("generation", &cfg.Generation); err != nil {
		return err
	}

	if cfg.Vision.MaxResults <= 0 {
		cfg.Vision.MaxResults = 15
	}
	if cfg.Vision.Timeout.Duration <= 0 {
		cfg.Vision.Timeout = Duration{Duration: 10 * time.Second}
	}
	if cfg.Speech.Timeout.Duration <= 0 {
		cfg.Speech.Timeout = Duration{Duration: 20 * time.Second}
	}

	cfg.Store.Backend = strings.ToLower(strings.TrimSpace(cfg.Store.Backend))
	switch cfg.Store.Backend {
	case "", "memory":
		cfg.Store.Backend = "memory"
	case "redis":
		if strings.TrimSpace(cfg.Redis.Addr) == "" {
			return fmt.Errorf("store.backend=redis requires redis.addr (REDIS_ADDR)")
		}
	default:
		return fmt.Errorf("invalid store.backend=%q", cfg.Store.Backend)
	}
	if cfg.Store.MaxConversations < 0 {
		return fmt.Errorf("invalid store.max_conversations=%d", cfg.Store.MaxConversations)
	}
	if cfg.Store.MaxConversations == 0 {
		cfg.Store.MaxConversations = 10000
	}
	if cfg.Store.IdleTTL.Duration < 0 {
		return fmt.Errorf("invalid store.idle_ttl")
	}
	if cfg.Store.HistoryLimit <= 0 {
		cfg.Store.HistoryLimit = 200
	}
	if strings.TrimSpace(cfg.Store.KeyPrefix) == "" {
		cfg.Store.KeyPrefix = "assistant"
	}

	cfg.Archive.Driver = strings.ToLower(strings.TrimSpace(cfg.Archive.Driver))
	switch cfg.Archive.Driver {
	case "":
	case "postgres", "sqlite":
		if strings.TrimSpace(cfg.Archive.DSN) == "" {
			return fmt.Errorf("archive.driver=%s requires archive.dsn", cfg.Archive.Driver)
		}
	default:
		return fmt.Errorf("invalid archive.driver=%q", cfg.Archive.Driver)
	}

	cfg.Escalation.Notifier = strings.ToLower(strings.TrimSpace(cfg.Escalation.Notifier))
	switch cfg.Escalation.Notifier {
	case "", "log":
		cfg.Escalation.Notifier = "log"
	case "redis":
		if strings.TrimSpace(cfg.Redis.Addr) == "" {
			return fmt.Errorf("escalation.notifier=redis requires redis.addr (REDIS_ADDR)")
		}
	default:
		return fmt.Errorf("invalid escalation.notifier=%q", cfg.Escalation.Notifier)
	}
	if strings.TrimSpace(cfg.Escalation.Channel) == "" {
		cfg.Escalation.Channel = "assistant:escalations"
	}
	if cfg.Escalation.Timeout.Duration <= 0 {
		cfg.Escalation.Timeout = Duration{Duration: 2 * time.Second}
	}
	if email := &cfg.Escalation.Email; email.Enabled() {
		if strings.TrimSpace(email.APIKey) == "" {
			return fmt.Errorf("escalation.email requires api_key (SENDGRID_API_KEY)")
		}
		if strings.TrimSpace(email.FromEmail) == "" {
			return fmt.Errorf("escalation.email requires from_email (SENDGRID_FROM_EMAIL)")
		}
		if email.MaxRetries < 0 {
			return fmt.Errorf("invalid escalation.email.max_retries=%d", email.MaxRetries)
		}
		if email.MaxRetries == 0 {
			email.MaxRetries = 2
		}
	}

	cfg.Media.Mode = strings.ToLower(strings.TrimSpace(cfg.Media.Mode))
	switch cfg.Media.Mode {
	case "":
		cfg.Media.Mode = "gcs"
		if cfg.Media.EmulatorHost != "" {
			cfg.Media.Mode = "gcs_emulator"
		}
	case "gcs":
	case "gcs_emulator":
		if strings.TrimSpace(cfg.Media.EmulatorHost) == "" {
			return fmt.Errorf("media.mode=gcs_emulator requires media.emulator_host (STORAGE_EMULATOR_HOST)")
		}
	default:
		return fmt.Errorf("invalid media.mode=%q", cfg.Media.Mode)
	}
	if cfg.Media.MaxBytes <= 0 {
		cfg.Media.MaxBytes = 20 << 20
	}
	return nil
}

func normalizeProvider(name string, p *ProviderConfig) error {
	p.Type = strings.ToLower(strings.TrimSpace(p.Type))
	p.BaseURL = strings.TrimRight(strings.TrimSpace(p.BaseURL), "/")
	if p.Timeout.Duration < 0 {
		return fmt.Errorf("%s: invalid timeout", name)
	}
	if p.Timeout.Duration == 0 {
		p.Timeout = Duration{Duration: 8 * time.Second}
	}

	switch p.Type {
	case "", "none":
		p.Type = "none"
	case "mock":
	case "httpjson", "http_json":
		p.Type = "httpjson"
		if p.BaseURL == "" {
			return fmt.Errorf("%s (httpjson) missing base_url", name)
		}
		if strings.TrimSpace(p.AnalyzePath) == "" {
			p.AnalyzePath = "/api/ai/analyze"
		}
		if strings.TrimSpace(p.ChatPath) == "" {
			p.ChatPath = "/api/ai/chat"
		}
	case "oai_http", "openai_http":
		p.Type = "oai_http"
		if p.BaseURL == "" {
			return fmt.Errorf("%s (oai_http) missing base_url", name)
		}
		if strings.TrimSpace(p.Model) == "" {
			return fmt.Errorf("%s (oai_http) missing model", name)
		}
		if strings.TrimSpace(p.ChatCompletionsPath) == "" {
			p.ChatCompletionsPath = "/v1/chat/completions"
		}
		p.JSONSchema.Mode = strings.ToLower(strings.TrimSpace(p.JSONSchema.Mode))
		switch p.JSONSchema.Mode {
		case "", "auto":
			p.JSONSchema.Mode = "auto"
		case "guided_json", "prompt":
		default:
			return fmt.Errorf("%s invalid json_schema.mode=%q", name, p.JSONSchema.Mode)
		}
		if p.JSONSchema.MaxRetries < 0 {
			return fmt.Errorf("%s invalid json_schema.max_retries", name)
		}
		if p.JSONSchema.MaxRetries == 0 {
			p.JSONSchema.MaxRetries = 1
		}
	default:
		return fmt.Errorf("%s: unknown provider type %q", name, p.Type)
	}
	return nil
}
