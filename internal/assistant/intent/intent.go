// Package intent is the single registry of intent labels, the local intent
// heuristic and the canned copy used whenever a provider cannot answer.
package intent

import "strings"

const (
	EmergencyHelp   = "emergency_help"
	RequestService  = "request_service"
	GetQuote        = "get_quote"
	BookAppointment = "book_appointment"
	ReportDamage    = "report_damage"
	GeneralInquiry  = "general_inquiry"
)

// EmergencyPhone is the 24/7 line in dialable form; EmergencyPhoneDisplay is
// how it is written in customer-facing copy.
const (
	EmergencyPhone        = "1300309361"
	EmergencyPhoneDisplay = "1300 309 361"
)

var canned = map[string]string{
	EmergencyHelp: "I understand this is an emergency. Please call our 24/7 emergency line on " + EmergencyPhoneDisplay +
		" right now so a technician can be dispatched immediately. If anyone is in danger, leave the property and call 000 first.",
	RequestService: "We can get a restoration technician out to you. Call " + EmergencyPhoneDisplay +
		" for immediate dispatch, or share your address and the type of damage and we'll arrange the next available visit.",
	GetQuote: "I'd be happy to help with a quote. Every job is assessed on site, so tell me what type of damage you have and roughly how large the affected area is, " +
		"or upload a few photos and we'll give you an estimate. You can also call " + EmergencyPhoneDisplay + ".",
	BookAppointment: "Let's get an inspection booked. What day and time suit you, and what's the property address? " +
		"If the damage is getting worse, call " + EmergencyPhoneDisplay + " and we'll prioritise your job.",
	ReportDamage: "Thanks for letting us know about the damage. Can you describe what happened and which rooms are affected? " +
		"Photos help us assess it quickly. For anything urgent, call " + EmergencyPhoneDisplay + ".",
	GeneralInquiry: "Thanks for reaching out to Disaster Recovery. We handle water, fire, mould, biohazard and storm restoration. " +
		"Tell me a little about what happened and I'll point you in the right direction, or call us on " + EmergencyPhoneDisplay + ".",
}

// Known reports whether label is one of the registry intents.
func Known(label string) bool {
	_, ok := canned[label]
	return ok
}

// Canonical maps unknown labels to GeneralInquiry. Callers keep the raw label
// for logging and metadata; this is only for choosing copy and actions.
func Canonical(label string) string {
	if Known(label) {
		return label
	}
	return GeneralInquiry
}

// Canned returns the fallback reply for an intent. It is never empty.
func Canned(label string) string {
	return canned[Canonical(label)]
}

type rule struct {
	intent   string
	keywords []string
}

// Checked in order; the first rule with any keyword present wins.
var rules = []rule{
	{intent: EmergencyHelp, keywords: []string{"emergency", "urgent"}},
	{intent: GetQuote, keywords: []string{"quote", "cost"}},
	{intent: BookAppointment, keywords: []string{"book", "schedule"}},
	{intent: ReportDamage, keywords: []string{"damage"}},
}

// Heuristic classifies text by case-insensitive substring rules.
func Heuristic(text string) string {
	lower := strings.ToLower(text)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return r.intent
			}
		}
	}
	return GeneralInquiry
}
