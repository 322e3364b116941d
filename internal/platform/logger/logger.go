package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/yungbote/restoration-assistant/internal/platform/envutil"
)

// Logger wraps a zap SugaredLogger and scrubs customer data from key/value
// pairs before they reach the encoder.
type Logger struct {
	SugaredLogger *zap.SugaredLogger
	scrub         *scrubber
}

// New builds a zap-backed logger. mode "prod"/"production" emits JSON at info
// level; anything else is the development console encoder at debug level.
// Scrubbing is on unless LOG_REDACTION_ENABLED is false.
func New(mode string) (*Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(mode) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	default:
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	zapLogger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{SugaredLogger: zapLogger.Sugar(), scrub: scrubberFromEnv()}, nil
}

// NewNop returns a logger that discards everything. Used by tests and by
// callers that pass a nil logger.
func NewNop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

func newWithCore(core zapcore.Core, s *scrubber) *Logger {
	return &Logger{SugaredLogger: zap.New(core).Sugar(), scrub: s}
}

func (l *Logger) Sync() {
	_ = l.SugaredLogger.Sync()
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Debugw(msg, l.scrub.kvs(keysAndValues)...)
}
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Infow(msg, l.scrub.kvs(keysAndValues)...)
}
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Warnw(msg, l.scrub.kvs(keysAndValues)...)
}
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Errorw(msg, l.scrub.kvs(keysAndValues)...)
}
func (l *Logger) Fatal(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Fatalw(msg, l.scrub.kvs(keysAndValues)...)
}
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(l.scrub.kvs(keysAndValues)...), scrub: l.scrub}
}

// Keys are matched as lowercase substrings.
var (
	secretKeys = []string{"token", "authorization", "password", "secret", "api_key", "apikey"}
	// Contact details a customer gives us while asking for help.
	contactKeys = []string{"email", "phone", "address", "postcode", "customer_name", "customer_info"}
	// Free text typed or spoken by the customer; only the length is logged.
	textKeys = []string{"content", "transcript", "user_message"}
	// Identifiers kept joinable across log lines but not readable.
	hashKeys = []string{"conversation_id", "customer_id"}
)

type scrubber struct {
	salt string
}

func scrubberFromEnv() *scrubber {
	if !envutil.Bool("LOG_REDACTION_ENABLED", true) {
		return nil
	}
	return &scrubber{salt: envutil.String("LOG_HASH_SALT", "")}
}

// kvs is a no-op on a nil scrubber.
func (s *scrubber) kvs(kv []interface{}) []interface{} {
	if s == nil || len(kv) == 0 {
		return kv
	}
	out := make([]interface{}, 0, len(kv))
	for i := 0; i < len(kv); i += 2 {
		if i == len(kv)-1 {
			out = append(out, kv[i])
			break
		}
		name := toString(kv[i])
		out = append(out, name, s.value(strings.ToLower(strings.TrimSpace(name)), kv[i+1]))
	}
	return out
}

func (s *scrubber) value(key string, val interface{}) interface{} {
	switch {
	case key == "":
	case matches(key, secretKeys), matches(key, contactKeys):
		return "[REDACTED]"
	case matches(key, textKeys):
		return fmt.Sprintf("[%d chars]", utf8.RuneCountInString(toString(val)))
	case matches(key, hashKeys):
		return s.hash(val)
	}
	switch v := val.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, inner := range v {
			out[k] = s.value(strings.ToLower(strings.TrimSpace(k)), inner)
		}
		return out
	case string:
		if strings.HasPrefix(strings.ToLower(v), "bearer ") {
			return "[REDACTED]"
		}
	}
	return val
}

func (s *scrubber) hash(val interface{}) string {
	raw := toString(val)
	if raw == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(s.salt + raw))
	return "hash:" + hex.EncodeToString(sum[:6])
}

func matches(key string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(key, n) {
			return true
		}
	}
	return false
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
