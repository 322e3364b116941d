// Package respond produces the assistant's reply text.
package respond

import (
	"context"
	"strings"
	"time"

	"github.com/yungbote/restoration-assistant/internal/assistant/intent"
	"github.com/yungbote/restoration-assistant/internal/assistant/provider"
	"github.com/yungbote/restoration-assistant/internal/domain/chat"
	"github.com/yungbote/restoration-assistant/internal/platform/ctxutil"
	"github.com/yungbote/restoration-assistant/internal/platform/logger"
)

type Input struct {
	Message       string
	Context       *chat.ConversationContext
	Intent        string
	Entities      []chat.Entity
	Sentiment     chat.Sentiment
	ImageAnalysis *chat.ImageAnalysis
}

type Synthesizer struct {
	log      *logger.Logger
	provider provider.Generation
	name     string
	timeout  time.Duration
}

// New accepts a nil provider; Generate then always returns canned copy.
func New(log *logger.Logger, p provider.Generation, name string, timeout time.Duration) *Synthesizer {
	if log == nil {
		log = logger.NewNop()
	}
	if name == "" {
		name = "generation"
	}
	return &Synthesizer{
		log:      log.With("service", "ResponseSynthesizer"),
		provider: p,
		name:     name,
		timeout:  timeout,
	}
}

// Generate returns the provider's reply, or the canned copy for in.Intent
// when the provider fails or answers with blank text. It never returns "".
func (s *Synthesizer) Generate(ctx context.Context, in Input) string {
	res := s.generate(ctx, in)
	if res.OK() {
		if text := strings.TrimSpace(res.Value); text != "" {
			return text
		}
		res.Err = &provider.Error{Provider: s.name, Op: "generate", Kind: provider.KindMalformed, Err: provider.Malformed("empty response")}
	}
	s.logFallback(ctx, res.Err, in.Intent)
	return intent.Canned(in.Intent)
}

func (s *Synthesizer) generate(ctx context.Context, in Input) provider.Result[string] {
	if s.provider == nil {
		return provider.Unavailable[string](s.name, "generate")
	}
	entities := in.Entities
	if entities == nil {
		entities = []chat.Entity{}
	}
	req := provider.GenerationRequest{
		Message:       in.Message,
		SystemPrompt:  BuildSystemPrompt(in.Context, in.Sentiment.Emotion),
		Intent:        in.Intent,
		Entities:      entities,
		Sentiment:     in.Sentiment,
		ImageAnalysis: in.ImageAnalysis,
	}
	return provider.Call(ctx, s.name, "generate", s.timeout, func(ctx context.Context) (string, error) {
		resp, err := s.provider.Generate(ctx, req)
		if err != nil {
			return "", err
		}
		return resp.Response, nil
	})
}

func (s *Synthesizer) logFallback(ctx context.Context, err *provider.Error, label string) {
	if err == nil {
		return
	}
	kv := append([]interface{}{
		"provider", err.Provider,
		"op", err.Op,
		"kind", string(err.Kind),
		"intent", label,
		"error", err.Error(),
	}, ctxutil.LogFields(ctx)...)
	if err.Kind == provider.KindUnavailable {
		s.log.Debug("generation provider unavailable; using canned response", kv...)
		return
	}
	s.log.Warn("generation provider failed; using canned response", kv...)
}
