// Package engine runs one customer message through the assistant pipeline:
// local classification, understanding, image analysis, context merge, reply
// generation, escalation and action suggestions.
package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/restoration-assistant/internal/assistant/actions"
	"github.com/yungbote/restoration-assistant/internal/assistant/classify"
	"github.com/yungbote/restoration-assistant/internal/assistant/contextstore"
	"github.com/yungbote/restoration-assistant/internal/assistant/escalation"
	"github.com/yungbote/restoration-assistant/internal/assistant/history"
	"github.com/yungbote/restoration-assistant/internal/assistant/intent"
	"github.com/yungbote/restoration-assistant/internal/assistant/policy"
	"github.com/yungbote/restoration-assistant/internal/assistant/provider"
	"github.com/yungbote/restoration-assistant/internal/assistant/respond"
	"github.com/yungbote/restoration-assistant/internal/assistant/understanding"
	"github.com/yungbote/restoration-assistant/internal/domain/chat"
	"github.com/yungbote/restoration-assistant/internal/platform/ctxutil"
	"github.com/yungbote/restoration-assistant/internal/platform/logger"
)

// ErrInvalidRequest is returned for caller mistakes only. Provider and store
// failures never surface as errors.
var ErrInvalidRequest = errors.New("invalid request")

type Request struct {
	Message        string
	ConversationID string
	Language       chat.Language
	Attachments    []chat.Attachment
	// Customer, when set, is merged into the conversation before analysis.
	Customer *chat.CustomerInfo
}

type Result struct {
	Response           string               `json:"response"`
	Metadata           chat.MessageMetadata `json:"metadata"`
	SuggestedActions   []chat.Action        `json:"suggested_actions"`
	RequiresEscalation bool                 `json:"requires_escalation"`
	ServiceType        chat.ServiceType     `json:"service_type"`
	IsEmergency        bool                 `json:"is_emergency"`
	ImageAnalysis      *chat.ImageAnalysis  `json:"image_analysis,omitempty"`
	ConversationID     string               `json:"conversation_id"`
	MessageID          string               `json:"message_id"`
}

type Deps struct {
	Log *logger.Logger

	Contexts contextstore.Store
	History  history.Store

	Understanding *understanding.Adapter
	Responder     *respond.Synthesizer

	// Optional collaborators. Nil disables the step.
	Images      provider.ImageAnalyzer
	Transcriber provider.Transcriber
	Notifier    escalation.Notifier

	ImageTimeout      time.Duration
	SpeechTimeout     time.Duration
	EscalationTimeout time.Duration

	Now func() time.Time
}

type Engine struct {
	log   *logger.Logger
	deps  Deps
	locks *keyedMutex
}

func New(deps Deps) (*Engine, error) {
	if deps.Contexts == nil {
		return nil, errors.New("engine: context store required")
	}
	if deps.History == nil {
		return nil, errors.New("engine: history store required")
	}
	if deps.Log == nil {
		deps.Log = logger.NewNop()
	}
	if deps.Understanding == nil {
		deps.Understanding = understanding.New(deps.Log, nil, "", 0)
	}
	if deps.Responder == nil {
		deps.Responder = respond.New(deps.Log, nil, "", 0)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.EscalationTimeout <= 0 {
		deps.EscalationTimeout = 2 * time.Second
	}
	return &Engine{
		log:   deps.Log.With("service", "ChatbotEngine"),
		deps:  deps,
		locks: newKeyedMutex(),
	}, nil
}

// ProcessMessage always produces a usable reply. Messages for the same
// conversation are processed one at a time.
func (e *Engine) ProcessMessage(ctx context.Context, req Request) (Result, error) {
	convID := strings.TrimSpace(req.ConversationID)
	if convID == "" {
		return Result{}, ErrInvalidRequest
	}
	lang := chat.NormalizeLanguage(req.Language)
	start := e.deps.Now()

	ctx, span := otel.Tracer("restoration-assistant/engine").Start(ctx, "engine.ProcessMessage")
	defer span.End()
	ctx = ctxutil.WithTraceData(ctx, withConversation(ctxutil.GetTraceData(ctx), convID))

	unlock := e.locks.Lock(convID)
	defer unlock()

	cc := e.loadContext(ctx, convID, req.Customer)

	text := e.withTranscripts(ctx, req.Message, req.Attachments, lang)
	isEmergency := classify.DetectEmergency(text, lang)
	serviceType := classify.DetectServiceType(text)

	var (
		sentiment chat.Sentiment
		label     string
		entities  []chat.Entity
		g         errgroup.Group
	)
	g.Go(func() error {
		sentiment = e.deps.Understanding.AnalyzeSentiment(ctx, text)
		return nil
	})
	g.Go(func() error {
		label, entities = e.deps.Understanding.ExtractIntentAndEntities(ctx, text, cc)
		return nil
	})
	_ = g.Wait()
	if entities == nil {
		entities = []chat.Entity{}
	}

	e.appendHistory(ctx, chat.ChatMessage{
		ConversationID: convID,
		Role:           chat.RoleUser,
		Type:           userMessageType(req.Attachments, isEmergency),
		Content:        text,
		Timestamp:      start,
		Language:       lang,
		EmotionalState: sentiment.Emotion,
		Attachments:    req.Attachments,
	})

	analysis := e.analyzeImages(ctx, req.Attachments)
	urgency := policy.CalculateUrgency(text, sentiment, isEmergency)

	patch := contextstore.Patch{
		Urgency:          &urgency,
		EmotionalJourney: []chat.EmotionalState{sentiment.Emotion},
		Interactions:     1,
		DamageAssessment: analysis,
	}
	if serviceType != chat.ServiceGeneral || cc.ServiceType == "" {
		patch.ServiceType = &serviceType
	}
	applyEntities(&patch, cc, entities)
	if intent.Canonical(label) == intent.GetQuote {
		quote := chat.QuoteInfo{ServiceType: effectiveService(cc, patch), Status: "requested"}
		if analysis != nil {
			quote.EstimatedCost = analysis.EstimatedCost
		}
		patch.QuoteInfo = &quote
	}
	cc = e.updateContext(ctx, convID, cc, patch)

	response := e.deps.Responder.Generate(ctx, respond.Input{
		Message:       text,
		Context:       cc,
		Intent:        label,
		Entities:      entities,
		Sentiment:     sentiment,
		ImageAnalysis: analysis,
	})

	escalate := policy.ShouldEscalate(urgency, sentiment, cc, isEmergency)
	svc := cc.ServiceType
	if svc == "" {
		svc = serviceType
	}
	suggested := actions.Generate(label, urgency, svc)

	metadata := chat.MessageMetadata{
		Intent:           label,
		Entities:         entities,
		Sentiment:        &sentiment,
		Urgency:          &urgency,
		SuggestedActions: suggested,
		Location:         cc.Location,
	}
	stored := e.appendHistory(ctx, chat.ChatMessage{
		ConversationID: convID,
		Role:           chat.RoleAssistant,
		Type:           chat.MessageText,
		Content:        response,
		Metadata:       &metadata,
		Timestamp:      e.deps.Now(),
		Language:       lang,
	})

	res := Result{
		Response:           response,
		Metadata:           metadata,
		SuggestedActions:   suggested,
		RequiresEscalation: escalate,
		ServiceType:        svc,
		IsEmergency:        isEmergency,
		ImageAnalysis:      analysis,
		ConversationID:     convID,
		MessageID:          stored.ID,
	}
	if escalate {
		e.notify(ctx, res, text, cc)
	}

	span.SetAttributes(
		attribute.String("assistant.intent", label),
		attribute.String("assistant.service_type", string(svc)),
		attribute.String("assistant.urgency", string(urgency.Level)),
		attribute.Bool("assistant.emergency", isEmergency),
		attribute.Bool("assistant.escalated", escalate),
	)
	e.log.Info("message processed", append([]interface{}{
		"intent", label,
		"service_type", string(svc),
		"urgency", string(urgency.Level),
		"emotion", string(sentiment.Emotion),
		"emergency", isEmergency,
		"escalated", escalate,
		"duration_ms", e.deps.Now().Sub(start).Milliseconds(),
	}, ctxutil.LogFields(ctx)...)...)
	return res, nil
}

// Context returns a snapshot of the conversation context.
func (e *Engine) Context(ctx context.Context, conversationID string) (*chat.ConversationContext, error) {
	return e.deps.Contexts.Get(ctx, conversationID)
}

// History returns up to limit most recent messages, oldest first.
func (e *Engine) History(ctx context.Context, conversationID string, limit int) ([]chat.ChatMessage, error) {
	return e.deps.History.List(ctx, conversationID, limit)
}

// Forget evicts the conversation's context and live transcript.
func (e *Engine) Forget(ctx context.Context, conversationID string) error {
	unlock := e.locks.Lock(conversationID)
	defer unlock()
	return errors.Join(
		e.deps.Contexts.Delete(ctx, conversationID),
		e.deps.History.Delete(ctx, conversationID),
	)
}

func withConversation(td *ctxutil.TraceData, convID string) *ctxutil.TraceData {
	out := &ctxutil.TraceData{ConversationID: convID}
	if td != nil {
		out.TraceID = td.TraceID
		out.RequestID = td.RequestID
	}
	return out
}

func userMessageType(atts []chat.Attachment, isEmergency bool) chat.MessageType {
	if isEmergency {
		return chat.MessageEmergency
	}
	for _, a := range atts {
		if a.IsAudio() {
			return chat.MessageVoice
		}
	}
	for _, a := range atts {
		if a.IsImage() {
			return chat.MessageImage
		}
	}
	if len(atts) > 0 {
		return chat.MessageFile
	}
	return chat.MessageText
}

func effectiveService(cc *chat.ConversationContext, p contextstore.Patch) chat.ServiceType {
	if p.ServiceType != nil {
		return *p.ServiceType
	}
	return cc.ServiceType
}
