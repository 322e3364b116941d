// Package contextstore keeps one ConversationContext per conversation id.
package contextstore

import (
	"context"
	"errors"

	"github.com/yungbote/restoration-assistant/internal/domain/chat"
)

var ErrNotFound = errors.New("conversation context not found")

// Store owns conversation contexts. Contexts are created lazily and only
// changed through Update.
type Store interface {
	// GetOrCreate returns the context for id, creating an empty one on first use.
	GetOrCreate(ctx context.Context, id string) (*chat.ConversationContext, error)
	// Get returns a snapshot of an existing context or ErrNotFound.
	Get(ctx context.Context, id string) (*chat.ConversationContext, error)
	// Update merges p into the context for id, creating it if needed.
	Update(ctx context.Context, id string, p Patch) (*chat.ConversationContext, error)
	Delete(ctx context.Context, id string) error
}

// Patch is a shallow merge: every non-nil field replaces the stored value,
// EmotionalJourney entries are appended and Interactions is added.
type Patch struct {
	ServiceType      *chat.ServiceType
	PropertyType     *string
	Urgency          *chat.Urgency
	Location         *chat.Location
	CustomerInfo     *chat.CustomerInfo
	DamageAssessment *chat.ImageAnalysis
	InsuranceInfo    *chat.InsuranceInfo
	BookingInfo      *chat.BookingInfo
	QuoteInfo        *chat.QuoteInfo
	WeatherContext   *chat.WeatherAlert

	EmotionalJourney []chat.EmotionalState
	Interactions     int
}

func (p Patch) Apply(c *chat.ConversationContext) {
	if c == nil {
		return
	}
	if p.ServiceType != nil {
		c.ServiceType = *p.ServiceType
	}
	if p.PropertyType != nil {
		c.PropertyType = *p.PropertyType
	}
	if p.Urgency != nil {
		u := *p.Urgency
		c.Urgency = &u
	}
	if p.Location != nil {
		l := *p.Location
		c.Location = &l
	}
	if p.CustomerInfo != nil {
		ci := *p.CustomerInfo
		c.CustomerInfo = &ci
	}
	if p.DamageAssessment != nil {
		da := *p.DamageAssessment
		c.DamageAssessment = &da
	}
	if p.InsuranceInfo != nil {
		ii := *p.InsuranceInfo
		c.InsuranceInfo = &ii
	}
	if p.BookingInfo != nil {
		bi := *p.BookingInfo
		c.BookingInfo = &bi
	}
	if p.QuoteInfo != nil {
		qi := *p.QuoteInfo
		c.QuoteInfo = &qi
	}
	if p.WeatherContext != nil {
		wc := *p.WeatherContext
		c.WeatherContext = &wc
	}
	c.EmotionalJourney = append(c.EmotionalJourney, p.EmotionalJourney...)
	c.PreviousInteractions += p.Interactions
}

func newContext() *chat.ConversationContext {
	return &chat.ConversationContext{EmotionalJourney: []chat.EmotionalState{}}
}
