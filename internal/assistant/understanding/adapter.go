// Package understanding wraps a text understanding provider with the local
// fallbacks, so sentiment and intent always produce a usable value.
package understanding

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/yungbote/restoration-assistant/internal/assistant/classify"
	"github.com/yungbote/restoration-assistant/internal/assistant/intent"
	"github.com/yungbote/restoration-assistant/internal/assistant/provider"
	"github.com/yungbote/restoration-assistant/internal/domain/chat"
	"github.com/yungbote/restoration-assistant/internal/platform/ctxutil"
	"github.com/yungbote/restoration-assistant/internal/platform/logger"
)

type Adapter struct {
	log      *logger.Logger
	provider provider.Understanding
	name     string
	timeout  time.Duration
}

// New accepts a nil provider; every call then uses the fallbacks.
func New(log *logger.Logger, p provider.Understanding, name string, timeout time.Duration) *Adapter {
	if log == nil {
		log = logger.NewNop()
	}
	if name == "" {
		name = "understanding"
	}
	return &Adapter{
		log:      log.With("service", "UnderstandingAdapter"),
		provider: p,
		name:     name,
		timeout:  timeout,
	}
}

// AnalyzeSentiment never fails. Provider errors of any kind yield the local
// keyword-based sentiment.
func (a *Adapter) AnalyzeSentiment(ctx context.Context, text string) chat.Sentiment {
	res := a.sentiment(ctx, text)
	if !res.OK() {
		a.logFallback(ctx, res.Err)
		return FallbackSentiment(text)
	}
	return res.Value
}

// ExtractIntentAndEntities never fails. The returned intent may be a label
// outside the registry when the provider says so.
func (a *Adapter) ExtractIntentAndEntities(ctx context.Context, text string, cc *chat.ConversationContext) (string, []chat.Entity) {
	res := a.intent(ctx, text, cc)
	if !res.OK() {
		a.logFallback(ctx, res.Err)
		return intent.Heuristic(text), []chat.Entity{}
	}
	return res.Value.Intent, res.Value.Entities
}

// FallbackSentiment is the deterministic sentiment used when no provider
// answer is available. Only the English keyword list is consulted.
func FallbackSentiment(text string) chat.Sentiment {
	if classify.DetectEmergency(text, chat.LanguageEnglish) {
		return chat.Sentiment{Score: -0.5, Magnitude: 8, Emotion: chat.EmotionDistressed}
	}
	return chat.Sentiment{Score: 0, Magnitude: 1, Emotion: chat.EmotionNeutral}
}

type intentResult struct {
	Intent   string
	Entities []chat.Entity
}

func (a *Adapter) sentiment(ctx context.Context, text string) provider.Result[chat.Sentiment] {
	if a.provider == nil {
		return provider.Unavailable[chat.Sentiment](a.name, "sentiment")
	}
	return provider.Call(ctx, a.name, "sentiment", a.timeout, func(ctx context.Context) (chat.Sentiment, error) {
		resp, err := a.provider.Sentiment(ctx, provider.SentimentRequest{Message: text})
		if err != nil {
			return chat.Sentiment{}, err
		}
		return normalizeSentiment(resp), nil
	})
}

func (a *Adapter) intent(ctx context.Context, text string, cc *chat.ConversationContext) provider.Result[intentResult] {
	if a.provider == nil {
		return provider.Unavailable[intentResult](a.name, "intent")
	}
	snapshot := cc.Clone()
	return provider.Call(ctx, a.name, "intent", a.timeout, func(ctx context.Context) (intentResult, error) {
		resp, err := a.provider.Intent(ctx, provider.IntentRequest{Message: text, Context: snapshot})
		if err != nil {
			return intentResult{}, err
		}
		return normalizeIntent(resp), nil
	})
}

func normalizeSentiment(resp provider.SentimentResponse) chat.Sentiment {
	out := chat.Sentiment{Score: 0, Magnitude: 1, Emotion: chat.EmotionNeutral}
	if resp.Score != nil && !math.IsNaN(*resp.Score) {
		out.Score = clamp(*resp.Score, -1, 1)
	}
	if resp.Magnitude != nil && !math.IsNaN(*resp.Magnitude) {
		out.Magnitude = math.Max(0, *resp.Magnitude)
	}
	if resp.Emotion != nil {
		out.Emotion = chat.ParseEmotionalState(*resp.Emotion)
	}
	return out
}

func normalizeIntent(resp provider.IntentResponse) intentResult {
	out := intentResult{Intent: intent.GeneralInquiry, Entities: []chat.Entity{}}
	if resp.Intent != nil {
		if s := strings.TrimSpace(*resp.Intent); s != "" {
			out.Intent = s
		}
	}
	for _, e := range resp.Entities {
		if strings.TrimSpace(e.Type) == "" && strings.TrimSpace(e.Value) == "" {
			continue
		}
		if math.IsNaN(e.Confidence) {
			e.Confidence = 0
		}
		e.Confidence = clamp(e.Confidence, 0, 1)
		out.Entities = append(out.Entities, e)
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

func (a *Adapter) logFallback(ctx context.Context, err *provider.Error) {
	if err == nil {
		return
	}
	kv := append([]interface{}{
		"provider", err.Provider,
		"op", err.Op,
		"kind", string(err.Kind),
		"error", err.Error(),
	}, ctxutil.LogFields(ctx)...)
	if err.Kind == provider.KindUnavailable {
		a.log.Debug("understanding provider unavailable; using fallback", kv...)
		return
	}
	a.log.Warn("understanding provider failed; using fallback", kv...)
}
