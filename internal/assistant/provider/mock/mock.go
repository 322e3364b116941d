// Package mock is a deterministic offline provider for development and tests.
package mock

import (
	"context"
	"regexp"
	"strings"

	"github.com/yungbote/restoration-assistant/internal/assistant/intent"
	"github.com/yungbote/restoration-assistant/internal/assistant/provider"
	"github.com/yungbote/restoration-assistant/internal/domain/chat"
)

type Provider struct{}

var (
	_ provider.Understanding = (*Provider)(nil)
	_ provider.Generation    = (*Provider)(nil)
)

func New() *Provider {
	return &Provider{}
}

var emotionCues = []struct {
	emotion   chat.EmotionalState
	score     float64
	magnitude float64
	cues      []string
}{
	{chat.EmotionDistressed, -0.7, 8.5, []string{"help", "emergency", "scared", "terrified", "flooding", "fire"}},
	{chat.EmotionFrustrated, -0.5, 6, []string{"still waiting", "frustrat", "ridiculous", "again", "annoyed"}},
	{chat.EmotionAnxious, -0.3, 4, []string{"worried", "anxious", "concerned", "not sure"}},
	{chat.EmotionGrateful, 0.8, 3, []string{"thank", "appreciate", "cheers"}},
	{chat.EmotionSatisfied, 0.6, 2, []string{"great", "perfect", "sounds good"}},
}

func (p *Provider) Sentiment(ctx context.Context, req provider.SentimentRequest) (provider.SentimentResponse, error) {
	_ = ctx
	lower := strings.ToLower(req.Message)
	for _, ec := range emotionCues {
		for _, cue := range ec.cues {
			if strings.Contains(lower, cue) {
				return sentiment(ec.score, ec.magnitude, ec.emotion), nil
			}
		}
	}
	return sentiment(0, 1, chat.EmotionNeutral), nil
}

func sentiment(score, magnitude float64, emotion chat.EmotionalState) provider.SentimentResponse {
	e := string(emotion)
	return provider.SentimentResponse{Score: &score, Magnitude: &magnitude, Emotion: &e}
}

var (
	postcodeRe = regexp.MustCompile(`\b(\d{4})\b`)
	roomsRe    = regexp.MustCompile(`(?i)\b(\d+)\s*(bed(room)?s?|rooms?)\b`)
	phoneRe    = regexp.MustCompile(`\b(0[2-478]\d{8}|04\d{2}\s?\d{3}\s?\d{3})\b`)
)

func (p *Provider) Intent(ctx context.Context, req provider.IntentRequest) (provider.IntentResponse, error) {
	_ = ctx
	label := intent.Heuristic(req.Message)
	entities := []chat.Entity{}
	if m := roomsRe.FindStringSubmatch(req.Message); m != nil {
		entities = append(entities, chat.Entity{Type: "rooms", Value: m[1], Confidence: 0.8})
	}
	if m := phoneRe.FindStringSubmatch(req.Message); m != nil {
		entities = append(entities, chat.Entity{Type: "phone", Value: strings.ReplaceAll(m[1], " ", ""), Confidence: 0.9})
	} else if m := postcodeRe.FindStringSubmatch(req.Message); m != nil {
		entities = append(entities, chat.Entity{Type: "postcode", Value: m[1], Confidence: 0.6})
	}
	return provider.IntentResponse{Intent: &label, Entities: entities}, nil
}

func (p *Provider) Generate(ctx context.Context, req provider.GenerationRequest) (provider.GenerationResponse, error) {
	_ = ctx
	return provider.GenerationResponse{Response: "[mock] " + intent.Canned(req.Intent)}, nil
}
