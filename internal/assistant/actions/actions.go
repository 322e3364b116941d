// Package actions suggests UI actions for a reply.
package actions

import (
	"github.com/yungbote/restoration-assistant/internal/assistant/intent"
	"github.com/yungbote/restoration-assistant/internal/domain/chat"
)

// Generate returns suggestions in rule order: call, quote, book, upload.
// The result is never nil.
func Generate(label string, urgency chat.Urgency, serviceType chat.ServiceType) []chat.Action {
	out := []chat.Action{}

	if label == intent.RequestService || urgency.Level == chat.UrgencyCritical {
		out = append(out, chat.Action{
			Type:  chat.ActionCall,
			Label: "Call Now: " + intent.EmergencyPhoneDisplay,
			Data:  map[string]any{"phone": intent.EmergencyPhone},
		})
	}
	if label == intent.GetQuote {
		out = append(out, chat.Action{
			Type:  chat.ActionQuote,
			Label: "Get Instant Quote",
			Data:  map[string]any{"serviceType": string(serviceType)},
		})
	}
	if label == intent.BookAppointment {
		out = append(out, chat.Action{
			Type:  chat.ActionBook,
			Label: "Book Inspection",
			Data: map[string]any{
				"serviceType": string(serviceType),
				"urgency":     string(urgency.Level),
			},
		})
	}
	if serviceType != "" && serviceType != chat.ServiceGeneral {
		out = append(out, chat.Action{
			Type:  chat.ActionUpload,
			Label: "Upload Damage Photos",
		})
	}
	return out
}
