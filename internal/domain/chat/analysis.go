package chat

import "strings"

type EmotionalState string

const (
	EmotionNeutral    EmotionalState = "neutral"
	EmotionAnxious    EmotionalState = "anxious"
	EmotionDistressed EmotionalState = "distressed"
	EmotionFrustrated EmotionalState = "frustrated"
	EmotionSatisfied  EmotionalState = "satisfied"
	EmotionGrateful   EmotionalState = "grateful"
)

func (e EmotionalState) Valid() bool {
	switch e {
	case EmotionNeutral, EmotionAnxious, EmotionDistressed, EmotionFrustrated, EmotionSatisfied, EmotionGrateful:
		return true
	default:
		return false
	}
}

// ParseEmotionalState maps free text onto the closed emotion set. Anything
// unrecognised is neutral.
func ParseEmotionalState(s string) EmotionalState {
	e := EmotionalState(strings.ToLower(strings.TrimSpace(s)))
	if e.Valid() {
		return e
	}
	return EmotionNeutral
}

// Sentiment: Score in [-1,1], Magnitude >= 0.
type Sentiment struct {
	Score     float64        `json:"score"`
	Magnitude float64        `json:"magnitude"`
	Emotion   EmotionalState `json:"emotion"`
}

type UrgencyTier string

const (
	UrgencyLow      UrgencyTier = "low"
	UrgencyMedium   UrgencyTier = "medium"
	UrgencyHigh     UrgencyTier = "high"
	UrgencyCritical UrgencyTier = "critical"
)

// Urgency.SuggestedResponseTime is in seconds; critical is always 0.
type Urgency struct {
	Level                 UrgencyTier `json:"level"`
	Reason                string      `json:"reason"`
	SuggestedResponseTime int         `json:"suggested_response_time"`
}

type Entity struct {
	Type       string  `json:"type"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

type Severity string

const (
	SeverityMinor        Severity = "minor"
	SeverityModerate     Severity = "moderate"
	SeveritySevere       Severity = "severe"
	SeverityCatastrophic Severity = "catastrophic"
)

// ImageAnalysis is the damage assessment produced from customer photos.
// AffectedArea is in square metres, EstimatedCost in AUD.
type ImageAnalysis struct {
	DamageType        []string `json:"damage_type"`
	Severity          Severity `json:"severity"`
	AffectedArea      float64  `json:"affected_area"`
	EstimatedCost     float64  `json:"estimated_cost"`
	Recommendations   []string `json:"recommendations"`
	InsuranceRelevant bool     `json:"insurance_relevant"`
}
