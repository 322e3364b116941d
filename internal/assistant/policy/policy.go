// Package policy decides how urgent a message is and whether a human needs to
// take over. Everything here is pure.
package policy

import (
	"strings"

	"github.com/yungbote/restoration-assistant/internal/domain/chat"
)

// Suggested response times in seconds.
const (
	responseCritical   = 0
	responseDistressed = 60
	responseImmediate  = 300
	responseFrustrated = 600
	responseStandard   = 1800
)

// CalculateUrgency applies the first matching rule:
// emergency, strong distress, same-day wording, frustration, default.
func CalculateUrgency(text string, s chat.Sentiment, isEmergency bool) chat.Urgency {
	switch {
	case isEmergency:
		return chat.Urgency{Level: chat.UrgencyCritical, Reason: "Emergency keywords detected", SuggestedResponseTime: responseCritical}
	case s.Emotion == chat.EmotionDistressed && s.Magnitude > 7:
		return chat.Urgency{Level: chat.UrgencyHigh, Reason: "Customer is highly distressed", SuggestedResponseTime: responseDistressed}
	case mentionsImmediacy(text):
		return chat.Urgency{Level: chat.UrgencyHigh, Reason: "Immediate service requested", SuggestedResponseTime: responseImmediate}
	case s.Emotion == chat.EmotionFrustrated:
		return chat.Urgency{Level: chat.UrgencyMedium, Reason: "Customer frustration detected", SuggestedResponseTime: responseFrustrated}
	default:
		return chat.Urgency{Level: chat.UrgencyLow, Reason: "Standard inquiry", SuggestedResponseTime: responseStandard}
	}
}

// mentionsImmediacy is a plain substring check, so "know" and "snow" count.
func mentionsImmediacy(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "today") || strings.Contains(lower, "now")
}

// ShouldEscalate reports whether the conversation should go to a person.
// Distress needs magnitude > 8 while frustration needs > 7.
func ShouldEscalate(u chat.Urgency, s chat.Sentiment, cc *chat.ConversationContext, isEmergency bool) bool {
	switch {
	case isEmergency:
		return true
	case u.Level == chat.UrgencyCritical:
		return true
	case s.Emotion == chat.EmotionDistressed && s.Magnitude > 8:
		return true
	case cc.IsVIP():
		return true
	case s.Emotion == chat.EmotionFrustrated && s.Magnitude > 7:
		return true
	default:
		return false
	}
}
