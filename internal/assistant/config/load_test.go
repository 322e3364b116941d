package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestDurationJSON(t *testing.T) {
	var v struct {
		A Duration `json:"a"`
		B Duration `json:"b"`
		C Duration `json:"c"`
	}
	if err := json.Unmarshal([]byte(`{"a":"750ms","b":1000,"c":null}`), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v.A.Duration != 750*time.Millisecond || v.B.Duration != 1000 || v.C.Duration != 0 {
		t.Fatalf("got %+v", v)
	}
	if err := json.Unmarshal([]byte(`{"a":true}`), &v); err == nil {
		t.Fatalf("expected error for bool duration")
	}
}

func TestDurationYAML(t *testing.T) {
	var v struct {
		A Duration `yaml:"a"`
		B Duration `yaml:"b"`
	}
	if err := yaml.Unmarshal([]byte("a: 2s\nb: 5000\n"), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v.A.Duration != 2*time.Second || v.B.Duration != 5000 {
		t.Fatalf("got %+v", v)
	}
}

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ASSISTANT_CONFIG_PATH", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Addr != ":8080" || cfg.Store.Backend != "memory" || cfg.Store.MaxConversations != 10000 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Understanding.Type != "none" || cfg.Generation.Type != "none" {
		t.Fatalf("providers should default to none")
	}
	if cfg.Media.Enabled() {
		t.Fatalf("media should be disabled without a bucket")
	}
}

func TestLoadYAMLWithEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	p := writeConfig(t, "assistant.yaml", `
env: production
understanding:
  type: httpjson
  base_url: http://ai.internal/
  timeout: 3s
generation:
  type: oai_http
  base_url: http://llm.internal
  model: restoration-chat
store:
  max_conversations: 50
  idle_ttl: 1h
`)
	t.Setenv("ASSISTANT_CONFIG_PATH", p)
	t.Setenv("ASSISTANT_HTTP_ADDR", ":9999")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Addr != ":9999" {
		t.Fatalf("env override ignored: %q", cfg.HTTP.Addr)
	}
	u := cfg.Understanding
	if u.BaseURL != "http://ai.internal" || u.AnalyzePath != "/api/ai/analyze" || u.ChatPath != "/api/ai/chat" {
		t.Fatalf("httpjson defaults not applied: %+v", u)
	}
	if u.Timeout.Duration != 3*time.Second {
		t.Fatalf("timeout=%s", u.Timeout.Duration)
	}
	g := cfg.Generation
	if g.ChatCompletionsPath != "/v1/chat/completions" || g.JSONSchema.Mode != "auto" || g.JSONSchema.MaxRetries != 1 {
		t.Fatalf("oai_http defaults not applied: %+v", g)
	}
	if cfg.Store.MaxConversations != 50 || cfg.Store.IdleTTL.Duration != time.Hour {
		t.Fatalf("store=%+v", cfg.Store)
	}
}

func TestLoadJSONRejectsUnknownProvider(t *testing.T) {
	t.Chdir(t.TempDir())
	p := writeConfig(t, "assistant.json", `{"understanding":{"type":"carrier_pigeon"}}`)
	t.Setenv("ASSISTANT_CONFIG_PATH", p)

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "carrier_pigeon") {
		t.Fatalf("expected unknown provider error, got %v", err)
	}
}

func TestLoadRedisBackendRequiresAddr(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ASSISTANT_CONFIG_PATH", "")
	t.Setenv("ASSISTANT_STORE_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for redis backend without addr")
	}
}

func TestLoadEscalationEmailFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ASSISTANT_CONFIG_PATH", "")
	t.Setenv("ASSISTANT_ESCALATION_EMAIL_TO", "oncall@example.com, ops@example.com")
	t.Setenv("SENDGRID_API_KEY", "sg-test")
	t.Setenv("SENDGRID_FROM_EMAIL", "assistant@example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	email := cfg.Escalation.Email
	if !email.Enabled() || len(email.To) != 2 || email.MaxRetries != 2 {
		t.Fatalf("email=%+v", email)
	}

	t.Setenv("SENDGRID_FROM_EMAIL", "")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "from_email") {
		t.Fatalf("expected from_email error, got %v", err)
	}
}
