package engine

import (
	"context"
	"strings"

	"github.com/yungbote/restoration-assistant/internal/assistant/contextstore"
	"github.com/yungbote/restoration-assistant/internal/assistant/escalation"
	"github.com/yungbote/restoration-assistant/internal/assistant/history"
	"github.com/yungbote/restoration-assistant/internal/assistant/provider"
	"github.com/yungbote/restoration-assistant/internal/domain/chat"
	"github.com/yungbote/restoration-assistant/internal/platform/ctxutil"
)

// loadContext returns the stored context (with customer info merged), or a
// fresh local one when the store is unreachable.
func (e *Engine) loadContext(ctx context.Context, convID string, customer *chat.CustomerInfo) *chat.ConversationContext {
	if customer != nil {
		cc, err := e.deps.Contexts.Update(ctx, convID, contextstore.Patch{CustomerInfo: customer})
		if err == nil {
			return cc
		}
		e.warn(ctx, "merge customer info failed", err)
	}
	cc, err := e.deps.Contexts.GetOrCreate(ctx, convID)
	if err != nil {
		e.warn(ctx, "load context failed; continuing with empty context", err)
		cc = &chat.ConversationContext{EmotionalJourney: []chat.EmotionalState{}}
		if customer != nil {
			c := *customer
			cc.CustomerInfo = &c
		}
	}
	return cc
}

// updateContext merges p and returns the merged context. On store failure
// the merge is applied to a local copy so the reply still sees it.
func (e *Engine) updateContext(ctx context.Context, convID string, cc *chat.ConversationContext, p contextstore.Patch) *chat.ConversationContext {
	updated, err := e.deps.Contexts.Update(ctx, convID, p)
	if err == nil {
		return updated
	}
	e.warn(ctx, "context update failed; using local merge", err)
	local := cc.Clone()
	p.Apply(local)
	return local
}

func (e *Engine) appendHistory(ctx context.Context, msg chat.ChatMessage) chat.ChatMessage {
	stored, err := e.deps.History.Append(ctx, msg)
	if err != nil {
		e.warn(ctx, "history append failed", err)
		if msg.ID == "" {
			msg.ID = history.NewID(msg.Timestamp)
		}
		return msg
	}
	return stored
}

// withTranscripts appends voice-note transcripts to text. Failed or empty
// transcriptions are skipped.
func (e *Engine) withTranscripts(ctx context.Context, text string, atts []chat.Attachment, lang chat.Language) string {
	if e.deps.Transcriber == nil {
		return text
	}
	parts := []string{}
	if strings.TrimSpace(text) != "" {
		parts = append(parts, text)
	}
	for _, att := range atts {
		if !att.IsAudio() {
			continue
		}
		att := att
		res := provider.Call(ctx, "speech", "transcribe", e.deps.SpeechTimeout, func(ctx context.Context) (string, error) {
			return e.deps.Transcriber.Transcribe(ctx, att, lang)
		})
		if !res.OK() {
			e.providerWarn(ctx, res.Err)
			continue
		}
		if t := strings.TrimSpace(res.Value); t != "" {
			parts = append(parts, t)
		}
	}
	if len(parts) == 0 {
		return text
	}
	return strings.Join(parts, "\n")
}

func (e *Engine) analyzeImages(ctx context.Context, atts []chat.Attachment) *chat.ImageAnalysis {
	if e.deps.Images == nil {
		return nil
	}
	images := make([]chat.Attachment, 0, len(atts))
	for _, a := range atts {
		if a.IsImage() {
			images = append(images, a)
		}
	}
	if len(images) == 0 {
		return nil
	}
	res := provider.Call(ctx, "vision", "analyze_images", e.deps.ImageTimeout, func(ctx context.Context) (*chat.ImageAnalysis, error) {
		return e.deps.Images.AnalyzeImages(ctx, images)
	})
	if !res.OK() {
		e.providerWarn(ctx, res.Err)
		return nil
	}
	return res.Value
}

// applyEntities folds contact and address entities into the patch without
// dropping what the context already holds.
func applyEntities(p *contextstore.Patch, cc *chat.ConversationContext, entities []chat.Entity) {
	var loc chat.Location
	if cc.Location != nil {
		loc = *cc.Location
	}
	var cust chat.CustomerInfo
	if p.CustomerInfo != nil {
		cust = *p.CustomerInfo
	} else if cc.CustomerInfo != nil {
		cust = *cc.CustomerInfo
	}
	locChanged, custChanged := false, false

	for _, ent := range entities {
		v := strings.TrimSpace(ent.Value)
		if v == "" {
			continue
		}
		switch strings.ToLower(ent.Type) {
		case "postcode":
			loc.Postcode, locChanged = v, true
		case "suburb":
			loc.Suburb, locChanged = v, true
		case "address", "location":
			loc.Address, locChanged = v, true
		case "phone":
			cust.Phone, custChanged = v, true
		case "email":
			cust.Email, custChanged = v, true
		case "name", "person":
			cust.Name, custChanged = v, true
		case "property_type":
			pt := v
			p.PropertyType = &pt
		}
	}
	if locChanged {
		p.Location = &loc
	}
	if custChanged {
		p.CustomerInfo = &cust
	}
}

func (e *Engine) notify(ctx context.Context, res Result, text string, cc *chat.ConversationContext) {
	if e.deps.Notifier == nil {
		return
	}
	ticket := escalation.Ticket{
		ConversationID: res.ConversationID,
		MessageID:      res.MessageID,
		Message:        text,
		Intent:         res.Metadata.Intent,
		ServiceType:    res.ServiceType,
		IsEmergency:    res.IsEmergency,
		Urgency:        *res.Metadata.Urgency,
		Sentiment:      *res.Metadata.Sentiment,
		Customer:       cc.CustomerInfo,
		Location:       cc.Location,
		CreatedAt:      e.deps.Now().UTC(),
	}
	nctx, cancel := context.WithTimeout(ctx, e.deps.EscalationTimeout)
	defer cancel()
	if err := e.deps.Notifier.Notify(nctx, ticket); err != nil {
		e.warn(ctx, "escalation notify failed", err)
	}
}

func (e *Engine) warn(ctx context.Context, msg string, err error) {
	e.log.Warn(msg, append([]interface{}{"error", err}, ctxutil.LogFields(ctx)...)...)
}

func (e *Engine) providerWarn(ctx context.Context, perr *provider.Error) {
	if perr == nil {
		return
	}
	e.log.Warn("optional provider step skipped", append([]interface{}{
		"provider", perr.Provider,
		"op", perr.Op,
		"kind", string(perr.Kind),
		"error", perr.Error(),
	}, ctxutil.LogFields(ctx)...)...)
}
