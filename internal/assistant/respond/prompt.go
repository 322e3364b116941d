package respond

import (
	"encoding/json"
	"strings"

	"github.com/yungbote/restoration-assistant/internal/assistant/intent"
	"github.com/yungbote/restoration-assistant/internal/domain/chat"
)

var toneByEmotion = map[chat.EmotionalState]string{
	chat.EmotionDistressed: "show immediate empathy, prioritize emotional support",
	chat.EmotionAnxious:    "be calm and reassuring, explain next steps clearly",
	chat.EmotionFrustrated: "be patient and solution-focused, apologize if appropriate",
	chat.EmotionSatisfied:  "be warm and efficient, confirm what happens next",
	chat.EmotionGrateful:   "be warm and appreciative",
	chat.EmotionNeutral:    "be professional, friendly and concise",
}

// Tone returns the tone instruction for an emotion. Unknown emotions get the
// neutral tone.
func Tone(e chat.EmotionalState) string {
	if t, ok := toneByEmotion[e]; ok {
		return t
	}
	return toneByEmotion[chat.EmotionNeutral]
}

// BuildSystemPrompt renders the system prompt for one reply: role, the
// serialized conversation context, the customer's emotion and the matching
// tone instruction.
func BuildSystemPrompt(cc *chat.ConversationContext, emotion chat.EmotionalState) string {
	if !emotion.Valid() {
		emotion = chat.EmotionNeutral
	}
	ctxJSON := "{}"
	if cc != nil {
		if b, err := json.Marshal(cc); err == nil {
			ctxJSON = string(b)
		}
	}

	var b strings.Builder
	b.WriteString("You are the customer assistant for Disaster Recovery, a property restoration company ")
	b.WriteString("handling water damage, fire damage, mould remediation, biohazard cleaning and storm recovery.")
	b.WriteString("\nAnswer in the customer's language. Keep replies short and practical.")
	b.WriteString("\nNever promise prices or arrival times; offer a quote or an inspection instead.")
	b.WriteString("\nFor emergencies, direct the customer to call " + intent.EmergencyPhoneDisplay + " (24/7).")
	b.WriteString("\n---")
	b.WriteString("\nConversation context: ")
	b.WriteString(ctxJSON)
	b.WriteString("\nCustomer emotion: ")
	b.WriteString(string(emotion))
	b.WriteString("\nTone: ")
	b.WriteString(Tone(emotion))
	return b.String()
}
