package chat

type CustomerType string

const (
	CustomerResidential CustomerType = "residential"
	CustomerCommercial  CustomerType = "commercial"
	CustomerVIP         CustomerType = "vip"
)

type CustomerInfo struct {
	Name         string       `json:"name,omitempty"`
	Phone        string       `json:"phone,omitempty"`
	Email        string       `json:"email,omitempty"`
	CustomerType CustomerType `json:"customer_type,omitempty"`
}

type InsuranceInfo struct {
	Provider     string `json:"provider,omitempty"`
	PolicyNumber string `json:"policy_number,omitempty"`
	ClaimNumber  string `json:"claim_number,omitempty"`
}

type BookingInfo struct {
	PreferredDate string `json:"preferred_date,omitempty"`
	PreferredTime string `json:"preferred_time,omitempty"`
	Confirmed     bool   `json:"confirmed"`
}

type QuoteInfo struct {
	ServiceType   ServiceType `json:"service_type,omitempty"`
	EstimatedCost float64     `json:"estimated_cost,omitempty"`
	Status        string      `json:"status,omitempty"`
}

// ConversationContext accumulates per-conversation state across turns. It is
// owned by a context store and only changed through its merge operation.
type ConversationContext struct {
	ServiceType          ServiceType      `json:"service_type,omitempty"`
	PropertyType         string           `json:"property_type,omitempty"`
	Urgency              *Urgency         `json:"urgency,omitempty"`
	Location             *Location        `json:"location,omitempty"`
	CustomerInfo         *CustomerInfo    `json:"customer_info,omitempty"`
	DamageAssessment     *ImageAnalysis   `json:"damage_assessment,omitempty"`
	InsuranceInfo        *InsuranceInfo   `json:"insurance_info,omitempty"`
	BookingInfo          *BookingInfo     `json:"booking_info,omitempty"`
	QuoteInfo            *QuoteInfo       `json:"quote_info,omitempty"`
	EmotionalJourney     []EmotionalState `json:"emotional_journey"`
	PreviousInteractions int              `json:"previous_interactions"`
	WeatherContext       *WeatherAlert    `json:"weather_context,omitempty"`
}

// IsVIP reports whether the customer on this conversation is flagged vip.
func (c *ConversationContext) IsVIP() bool {
	return c != nil && c.CustomerInfo != nil && c.CustomerInfo.CustomerType == CustomerVIP
}

// Clone returns a copy that shares no slices with c. Pointer fields are copied
// one level deep, which is enough because merges replace them wholesale.
func (c *ConversationContext) Clone() *ConversationContext {
	if c == nil {
		return nil
	}
	out := *c
	out.EmotionalJourney = append([]EmotionalState(nil), c.EmotionalJourney...)
	if c.Urgency != nil {
		u := *c.Urgency
		out.Urgency = &u
	}
	if c.Location != nil {
		l := *c.Location
		out.Location = &l
	}
	if c.CustomerInfo != nil {
		ci := *c.CustomerInfo
		out.CustomerInfo = &ci
	}
	if c.DamageAssessment != nil {
		da := *c.DamageAssessment
		da.DamageType = append([]string(nil), c.DamageAssessment.DamageType...)
		da.Recommendations = append([]string(nil), c.DamageAssessment.Recommendations...)
		out.DamageAssessment = &da
	}
	if c.InsuranceInfo != nil {
		ii := *c.InsuranceInfo
		out.InsuranceInfo = &ii
	}
	if c.BookingInfo != nil {
		bi := *c.BookingInfo
		out.BookingInfo = &bi
	}
	if c.QuoteInfo != nil {
		qi := *c.QuoteInfo
		out.QuoteInfo = &qi
	}
	if c.WeatherContext != nil {
		wc := *c.WeatherContext
		out.WeatherContext = &wc
	}
	return &out
}
