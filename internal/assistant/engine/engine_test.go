package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yungbote/restoration-assistant/internal/assistant/contextstore"
	"github.com/yungbote/restoration-assistant/internal/assistant/escalation"
	"github.com/yungbote/restoration-assistant/internal/assistant/history"
	"github.com/yungbote/restoration-assistant/internal/assistant/intent"
	"github.com/yungbote/restoration-assistant/internal/assistant/provider"
	"github.com/yungbote/restoration-assistant/internal/assistant/respond"
	"github.com/yungbote/restoration-assistant/internal/assistant/understanding"
	"github.com/yungbote/restoration-assistant/internal/domain/chat"
	"github.com/yungbote/restoration-assistant/internal/platform/logger"
)

type recordingNotifier struct {
	mu      sync.Mutex
	tickets []escalation.Ticket
}

func (n *recordingNotifier) Notify(ctx context.Context, t escalation.Ticket) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tickets = append(n.tickets, t)
	return nil
}

type failingUnderstanding struct{}

func (failingUnderstanding) Sentiment(context.Context, provider.SentimentRequest) (provider.SentimentResponse, error) {
	return provider.SentimentResponse{}, &provider.HTTPError{StatusCode: 502, Body: "bad gateway"}
}

func (failingUnderstanding) Intent(context.Context, provider.IntentRequest) (provider.IntentResponse, error) {
	return provider.IntentResponse{}, provider.Malformed("not json")
}

type imageFunc func(ctx context.Context, atts []chat.Attachment) (*chat.ImageAnalysis, error)

func (f imageFunc) AnalyzeImages(ctx context.Context, atts []chat.Attachment) (*chat.ImageAnalysis, error) {
	return f(ctx, atts)
}

type transcribeFunc func(ctx context.Context, att chat.Attachment, lang chat.Language) (string, error)

func (f transcribeFunc) Transcribe(ctx context.Context, att chat.Attachment, lang chat.Language) (string, error) {
	return f(ctx, att, lang)
}

func newTestEngine(t *testing.T, mod func(*Deps)) (*Engine, *recordingNotifier) {
	t.Helper()
	n := &recordingNotifier{}
	deps := Deps{
		Log:      logger.NewNop(),
		Contexts: contextstore.NewMemoryStore(contextstore.MemoryOptions{}),
		History:  history.NewMemoryStore(history.MemoryOptions{}),
		Notifier: n,
	}
	if mod != nil {
		mod(&deps)
	}
	e, err := New(deps)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e, n
}

func hasAction(as []chat.Action, typ chat.ActionType) (chat.Action, bool) {
	for _, a := range as {
		if a.Type == typ {
			return a, true
		}
	}
	return chat.Action{}, false
}

func TestScenarioCalmLeak(t *testing.T) {
	e, n := newTestEngine(t, nil)
	res, err := e.ProcessMessage(context.Background(), Request{
		Message:        "My kitchen has a small water leak, when can someone come look?",
		ConversationID: "calm",
		Language:       chat.LanguageEnglish,
	})
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if res.ServiceType != chat.ServiceWaterDamage {
		t.Fatalf("service=%s", res.ServiceType)
	}
	if res.IsEmergency || res.RequiresEscalation {
		t.Fatalf("calm leak flagged: emergency=%v escalate=%v", res.IsEmergency, res.RequiresEscalation)
	}
	if lvl := res.Metadata.Urgency.Level; lvl != chat.UrgencyLow && lvl != chat.UrgencyMedium {
		t.Fatalf("urgency=%s", lvl)
	}
	if strings.TrimSpace(res.Response) == "" || strings.Contains(strings.ToLower(res.Response), "emergency") {
		t.Fatalf("response=%q", res.Response)
	}
	if _, ok := hasAction(res.SuggestedActions, chat.ActionCall); ok {
		t.Fatalf("unexpected call action")
	}
	if _, ok := hasAction(res.SuggestedActions, chat.ActionUpload); !ok {
		t.Fatalf("expected upload action: %+v", res.SuggestedActions)
	}
	if len(n.tickets) != 0 {
		t.Fatalf("unexpected escalation ticket")
	}
	if res.MessageID == "" || res.ConversationID != "calm" {
		t.Fatalf("ids missing: %+v", res)
	}
}

func TestScenarioActiveFlood(t *testing.T) {
	e, n := newTestEngine(t, nil)
	res, err := e.ProcessMessage(context.Background(), Request{
		Message:        "HELP our house is flooding right now this is an emergency!!",
		ConversationID: "flood",
	})
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if !res.IsEmergency || !res.RequiresEscalation {
		t.Fatalf("flood not escalated: %+v", res)
	}
	if res.Metadata.Urgency.Level != chat.UrgencyCritical || res.Metadata.Urgency.SuggestedResponseTime != 0 {
		t.Fatalf("urgency=%+v", res.Metadata.Urgency)
	}
	call, ok := hasAction(res.SuggestedActions, chat.ActionCall)
	if !ok || call.Data["phone"] != "1300309361" {
		t.Fatalf("call action=%+v", res.SuggestedActions)
	}
	if res.Metadata.Sentiment.Emotion != chat.EmotionDistressed || res.Metadata.Sentiment.Magnitude != 8 {
		t.Fatalf("fallback sentiment=%+v", res.Metadata.Sentiment)
	}
	if len(n.tickets) != 1 || n.tickets[0].ConversationID != "flood" || !n.tickets[0].IsEmergency {
		t.Fatalf("tickets=%+v", n.tickets)
	}
	if n.tickets[0].MessageID != res.MessageID {
		t.Fatalf("ticket message id %q != %q", n.tickets[0].MessageID, res.MessageID)
	}
}

func TestScenarioFireQuote(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	res, err := e.ProcessMessage(context.Background(), Request{
		Message:        "How much would fire damage repair cost for a 3 bedroom house?",
		ConversationID: "quote",
	})
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if res.ServiceType != chat.ServiceFireDamage {
		t.Fatalf("service=%s", res.ServiceType)
	}
	if res.Metadata.Intent != intent.GetQuote {
		t.Fatalf("intent=%s", res.Metadata.Intent)
	}
	q, ok := hasAction(res.SuggestedActions, chat.ActionQuote)
	if !ok || q.Data["serviceType"] != "fire-damage" {
		t.Fatalf("quote action=%+v", res.SuggestedActions)
	}
	cc, err := e.Context(context.Background(), "quote")
	if err != nil {
		t.Fatalf("Context: %v", err)
	}
	if cc.QuoteInfo == nil || cc.QuoteInfo.ServiceType != chat.ServiceFireDamage {
		t.Fatalf("quote info=%+v", cc.QuoteInfo)
	}
}

func TestScenarioUnsupportedLanguageFailsClosed(t *testing.T) {
	e, n := newTestEngine(t, nil)
	res, err := e.ProcessMessage(context.Background(), Request{
		Message:        "Au secours, il y a une inondation chez moi",
		ConversationID: "fr",
		Language:       "fr",
	})
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if res.IsEmergency || res.Metadata.Urgency.Level == chat.UrgencyCritical {
		t.Fatalf("unsupported language should not be detected as emergency: %+v", res)
	}
	if len(n.tickets) != 0 {
		t.Fatalf("unexpected ticket")
	}
}

func TestEmotionalJourneyGrowsOncePerMessage(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()
	const n = 5
	for i := 0; i < n; i++ {
		if _, err := e.ProcessMessage(ctx, Request{Message: fmt.Sprintf("message %d", i), ConversationID: "journey"}); err != nil {
			t.Fatalf("ProcessMessage: %v", err)
		}
	}
	cc, err := e.Context(ctx, "journey")
	if err != nil {
		t.Fatalf("Context: %v", err)
	}
	if len(cc.EmotionalJourney) != n || cc.PreviousInteractions != n {
		t.Fatalf("journey=%d interactions=%d want %d", len(cc.EmotionalJourney), cc.PreviousInteractions, n)
	}
	msgs, err := e.History(ctx, "journey", 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(msgs) != 2*n {
		t.Fatalf("history=%d want %d", len(msgs), 2*n)
	}
	if msgs[0].Role != chat.RoleUser || msgs[1].Role != chat.RoleAssistant {
		t.Fatalf("roles=%s,%s", msgs[0].Role, msgs[1].Role)
	}
}

func TestConcurrentMessagesForOneConversationDoNotLoseUpdates(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()
	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = e.ProcessMessage(ctx, Request{Message: fmt.Sprintf("hello %d", i), ConversationID: "busy"})
		}(i)
	}
	wg.Wait()
	cc, _ := e.Context(ctx, "busy")
	if len(cc.EmotionalJourney) != n {
		t.Fatalf("journey=%d want %d", len(cc.EmotionalJourney), n)
	}
	if e.locks.size() != 0 {
		t.Fatalf("lock map not drained: %d", e.locks.size())
	}
}

func TestProviderFailureDegrades(t *testing.T) {
	e, _ := newTestEngine(t, func(d *Deps) {
		d.Understanding = understanding.New(d.Log, failingUnderstanding{}, "broken", time.Second)
	})
	res, err := e.ProcessMessage(context.Background(), Request{Message: "There is smoke damage in the lounge", ConversationID: "down"})
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if res.Metadata.Sentiment.Emotion != chat.EmotionDistressed || res.Metadata.Sentiment.Magnitude != 8 {
		t.Fatalf("sentiment=%+v", res.Metadata.Sentiment)
	}
	if res.Metadata.Intent != intent.ReportDamage {
		t.Fatalf("intent=%s", res.Metadata.Intent)
	}
	if res.Response != intent.Canned(intent.ReportDamage) {
		t.Fatalf("response=%q", res.Response)
	}
}

func TestProcessMessageRequiresConversationID(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	if _, err := e.ProcessMessage(context.Background(), Request{Message: "hi", ConversationID: "  "}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("err=%v", err)
	}
}

func TestEmptyMessageIsProcessed(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	res, err := e.ProcessMessage(context.Background(), Request{ConversationID: "empty"})
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if res.ServiceType != chat.ServiceGeneral || res.Metadata.Intent != intent.GeneralInquiry || res.Response == "" {
		t.Fatalf("res=%+v", res)
	}
}

func TestVIPCustomerEscalates(t *testing.T) {
	e, n := newTestEngine(t, nil)
	res, err := e.ProcessMessage(context.Background(), Request{
		Message:        "Just checking on my booking",
		ConversationID: "vip",
		Customer:       &chat.CustomerInfo{Name: "Pat", CustomerType: chat.CustomerVIP},
	})
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if !res.RequiresEscalation || len(n.tickets) != 1 {
		t.Fatalf("vip not escalated: %+v", res)
	}
	if n.tickets[0].Customer == nil || n.tickets[0].Customer.Name != "Pat" {
		t.Fatalf("ticket customer=%+v", n.tickets[0].Customer)
	}
}

func TestServiceTypeSticksAcrossGeneralMessages(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()
	_, _ = e.ProcessMessage(ctx, Request{Message: "black mould in the bathroom", ConversationID: "sticky"})
	res, _ := e.ProcessMessage(ctx, Request{Message: "thanks, what happens next?", ConversationID: "sticky"})
	if res.ServiceType != chat.ServiceMould {
		t.Fatalf("service=%s want mould", res.ServiceType)
	}
}

func TestImageAnalysisMergedIntoContext(t *testing.T) {
	var seen []chat.Attachment
	e, _ := newTestEngine(t, func(d *Deps) {
		d.Images = imageFunc(func(ctx context.Context, atts []chat.Attachment) (*chat.ImageAnalysis, error) {
			seen = atts
			return &chat.ImageAnalysis{DamageType: []string{"water"}, Severity: chat.SeveritySevere, EstimatedCost: 8000}, nil
		})
	})
	res, err := e.ProcessMessage(context.Background(), Request{
		Message:        "photos of the ceiling",
		ConversationID: "img",
		Attachments: []chat.Attachment{
			{Kind: chat.AttachmentImage, URI: "gs://b/1.jpg"},
			{Kind: chat.AttachmentFile, URI: "gs://b/claim.pdf"},
		},
	})
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if len(seen) != 1 || seen[0].URI != "gs://b/1.jpg" {
		t.Fatalf("analyzer saw %+v", seen)
	}
	if res.ImageAnalysis == nil || res.ImageAnalysis.Severity != chat.SeveritySevere {
		t.Fatalf("analysis=%+v", res.ImageAnalysis)
	}
	cc, _ := e.Context(context.Background(), "img")
	if cc.DamageAssessment == nil || cc.DamageAssessment.EstimatedCost != 8000 {
		t.Fatalf("damage assessment=%+v", cc.DamageAssessment)
	}
}

func TestImageAnalysisFailureIsIgnored(t *testing.T) {
	e, _ := newTestEngine(t, func(d *Deps) {
		d.Images = imageFunc(func(context.Context, []chat.Attachment) (*chat.ImageAnalysis, error) {
			return nil, errors.New("vision down")
		})
	})
	res, err := e.ProcessMessage(context.Background(), Request{
		Message:        "see photo",
		ConversationID: "img-fail",
		Attachments:    []chat.Attachment{{Kind: chat.AttachmentImage, URI: "gs://b/1.jpg"}},
	})
	if err != nil || res.ImageAnalysis != nil || res.Response == "" {
		t.Fatalf("res=%+v err=%v", res, err)
	}
}

func TestVoiceNoteTranscriptDrivesClassification(t *testing.T) {
	e, _ := newTestEngine(t, func(d *Deps) {
		d.Transcriber = transcribeFunc(func(ctx context.Context, att chat.Attachment, lang chat.Language) (string, error) {
			return "there is sewage coming up through the floor", nil
		})
	})
	res, err := e.ProcessMessage(context.Background(), Request{
		ConversationID: "voice",
		Attachments:    []chat.Attachment{{Kind: chat.AttachmentAudio, URI: "gs://b/note.ogg"}},
	})
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if !res.IsEmergency || res.ServiceType != chat.ServiceBiohazard {
		t.Fatalf("transcript not classified: %+v", res)
	}
	msgs, _ := e.History(context.Background(), "voice", 1)
	all, _ := e.History(context.Background(), "voice", 0)
	if len(msgs) != 1 || len(all) != 2 {
		t.Fatalf("history sizes %d/%d", len(msgs), len(all))
	}
	if all[0].Type != chat.MessageEmergency || !strings.Contains(all[0].Content, "sewage") {
		t.Fatalf("user message=%+v", all[0])
	}
}

func TestEntitiesFoldIntoContext(t *testing.T) {
	e, _ := newTestEngine(t, func(d *Deps) {
		d.Understanding = understanding.New(d.Log, entityUnderstanding{}, "fake", time.Second)
	})
	_, err := e.ProcessMessage(context.Background(), Request{Message: "call me", ConversationID: "ents"})
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	cc, _ := e.Context(context.Background(), "ents")
	if cc.Location == nil || cc.Location.Postcode != "2000" {
		t.Fatalf("location=%+v", cc.Location)
	}
	if cc.CustomerInfo == nil || cc.CustomerInfo.Phone != "0400 000 000" {
		t.Fatalf("customer=%+v", cc.CustomerInfo)
	}
}

type entityUnderstanding struct{}

func (entityUnderstanding) Sentiment(context.Context, provider.SentimentRequest) (provider.SentimentResponse, error) {
	return provider.SentimentResponse{}, nil
}

func (entityUnderstanding) Intent(context.Context, provider.IntentRequest) (provider.IntentResponse, error) {
	label := intent.RequestService
	return provider.IntentResponse{
		Intent: &label,
		Entities: []chat.Entity{
			{Type: "postcode", Value: "2000", Confidence: 0.9},
			{Type: "phone", Value: "0400 000 000", Confidence: 0.9},
		},
	}, nil
}

type brokenContexts struct{ contextstore.Store }

func (brokenContexts) GetOrCreate(context.Context, string) (*chat.ConversationContext, error) {
	return nil, errors.New("redis down")
}

func (brokenContexts) Update(context.Context, string, contextstore.Patch) (*chat.ConversationContext, error) {
	return nil, errors.New("redis down")
}

func TestStoreFailureStillReplies(t *testing.T) {
	e, n := newTestEngine(t, func(d *Deps) {
		d.Contexts = brokenContexts{}
		d.Responder = respond.New(d.Log, nil, "", 0)
	})
	res, err := e.ProcessMessage(context.Background(), Request{Message: "fire in the garage", ConversationID: "nostore"})
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if !res.RequiresEscalation || res.Response != intent.Canned(intent.GeneralInquiry) {
		t.Fatalf("res=%+v", res)
	}
	if len(n.tickets) != 1 {
		t.Fatalf("ticket not sent")
	}
}

func TestForgetClearsConversation(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()
	_, _ = e.ProcessMessage(ctx, Request{Message: "hi", ConversationID: "gone"})
	if err := e.Forget(ctx, "gone"); err != nil {
		t.Fatalf("Forget: %v", err)
	}
	if _, err := e.Context(ctx, "gone"); !errors.Is(err, contextstore.ErrNotFound) {
		t.Fatalf("context still present: %v", err)
	}
	if msgs, _ := e.History(ctx, "gone", 0); len(msgs) != 0 {
		t.Fatalf("history still present")
	}
}
