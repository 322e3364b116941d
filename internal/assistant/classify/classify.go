// Package classify holds the cheap local detectors that run before any
// provider call: emergency language and restoration service category.
package classify

import (
	"regexp"
	"strings"

	"github.com/yungbote/restoration-assistant/internal/domain/chat"
)

var emergencyKeywords = map[chat.Language][]string{
	chat.LanguageEnglish:    {"emergency", "urgent", "flooding", "fire", "smoke", "sewage", "danger", "asap", "critical"},
	chat.LanguageSpanish:    {"emergencia", "urgente", "inundación", "inundacion", "incendio", "fuego", "humo", "aguas residuales", "peligro", "crítico", "critico"},
	chat.LanguageChinese:    {"紧急", "急", "洪水", "淹水", "火灾", "着火", "烟", "污水", "危险"},
	chat.LanguageVietnamese: {"khẩn cấp", "gấp", "ngập", "lũ", "cháy", "khói", "nước thải", "nguy hiểm"},
	chat.LanguageArabic:     {"طوارئ", "عاجل", "فيضان", "حريق", "دخان", "مياه الصرف", "خطر"},
}

// EmergencyKeywords returns the keyword list for lang and whether one exists.
func EmergencyKeywords(lang chat.Language) ([]string, bool) {
	kws, ok := emergencyKeywords[chat.NormalizeLanguage(lang)]
	if !ok {
		return nil, false
	}
	return append([]string(nil), kws...), true
}

// DetectEmergency reports whether text contains any emergency keyword for
// lang. Languages without a list never match.
func DetectEmergency(text string, lang chat.Language) bool {
	kws, ok := emergencyKeywords[chat.NormalizeLanguage(lang)]
	if !ok {
		return false
	}
	lower := strings.ToLower(text)
	for _, kw := range kws {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

type servicePattern struct {
	service  chat.ServiceType
	patterns []*regexp.Regexp
}

// Declaration order is the tie-break: the first matching service wins.
var servicePatterns = []servicePattern{
	{
		service: chat.ServiceWaterDamage,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(water|flood(s|ed|ing)?|leak(s|ed|ing|y)?|burst\s+pipes?|pipes?\s+burst|overflow(s|ed|ing)?)\b`),
			regexp.MustCompile(`(?i)\b(wet|damp|moisture|soaked|flooded\s+carpet)\b`),
		},
	},
	{
		service: chat.ServiceFireDamage,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(fire|smoke|soot|burn(t|ed|ing)?|scorch(ed)?|ash)\b`),
		},
	},
	{
		service: chat.ServiceMould,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(mou?ld(y)?|mildew|fung(us|al|i)|spores?)\b`),
		},
	},
	{
		service: chat.ServiceBiohazard,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(biohazard|sewage|trauma|blood|crime\s+scene|hoard(ing|er)?|needles?|syringes?|decompos\w*|unattended\s+death)\b`),
		},
	},
	{
		service: chat.ServiceStorm,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(storm|hail(storm)?|cyclone|lightning|wind\s+damage|fallen\s+tree|tree\s+fell|roof\s+(damage|blown))\b`),
		},
	},
}

// DetectServiceType returns the first service whose pattern matches text, or
// chat.ServiceGeneral. It always returns exactly one value.
func DetectServiceType(text string) chat.ServiceType {
	for _, sp := range servicePatterns {
		for _, re := range sp.patterns {
			if re.MatchString(text) {
				return sp.service
			}
		}
	}
	return chat.ServiceGeneral
}
