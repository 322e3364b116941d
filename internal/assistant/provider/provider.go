// Package provider defines the pluggable backends the assistant talks to and
// the typed result every call is funnelled through.
package provider

import (
	"context"

	"github.com/yungbote/restoration-assistant/internal/domain/chat"
)

// SentimentRequest is sent as {"type":"sentiment","message":...}.
type SentimentRequest struct {
	Message string `json:"message"`
}

// SentimentResponse fields are pointers so a missing field can be told apart
// from a zero value.
type SentimentResponse struct {
	Score     *float64 `json:"score,omitempty"`
	Magnitude *float64 `json:"magnitude,omitempty"`
	Emotion   *string  `json:"emotion,omitempty"`
}

// IntentRequest is sent as {"type":"intent","message":...,"context":...}.
type IntentRequest struct {
	Message string                    `json:"message"`
	Context *chat.ConversationContext `json:"context,omitempty"`
}

// IntentResponse.Entities is nil when the field was absent.
type IntentResponse struct {
	Intent   *string       `json:"intent,omitempty"`
	Entities []chat.Entity `json:"entities,omitempty"`
}

type Understanding interface {
	Sentiment(ctx context.Context, req SentimentRequest) (SentimentResponse, error)
	Intent(ctx context.Context, req IntentRequest) (IntentResponse, error)
}

type GenerationRequest struct {
	Message       string              `json:"message"`
	SystemPrompt  string              `json:"systemPrompt"`
	Intent        string              `json:"intent"`
	Entities      []chat.Entity       `json:"entities"`
	Sentiment     chat.Sentiment      `json:"sentiment"`
	ImageAnalysis *chat.ImageAnalysis `json:"imageAnalysis,omitempty"`
}

type GenerationResponse struct {
	Response string `json:"response"`
}

type Generation interface {
	Generate(ctx context.Context, req GenerationRequest) (GenerationResponse, error)
}

// ImageAnalyzer assesses damage from image attachments. A nil analysis with a
// nil error means there was nothing to assess.
type ImageAnalyzer interface {
	AnalyzeImages(ctx context.Context, attachments []chat.Attachment) (*chat.ImageAnalysis, error)
}

// Transcriber turns a voice attachment into text.
type Transcriber interface {
	Transcribe(ctx context.Context, attachment chat.Attachment, lang chat.Language) (string, error)
}
