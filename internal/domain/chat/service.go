package chat

import "strings"

type ServiceType string

const (
	ServiceWaterDamage ServiceType = "water-damage"
	ServiceFireDamage  ServiceType = "fire-damage"
	ServiceMould       ServiceType = "mould-remediation"
	ServiceBiohazard   ServiceType = "biohazard"
	ServiceStorm       ServiceType = "storm-recovery"
	ServiceGeneral     ServiceType = "general"
)

type Language string

const (
	LanguageEnglish    Language = "en"
	LanguageSpanish    Language = "es"
	LanguageChinese    Language = "zh"
	LanguageVietnamese Language = "vi"
	LanguageArabic     Language = "ar"
)

// NormalizeLanguage lowercases and trims a language tag, keeping only the
// primary subtag ("en-AU" -> "en"). Empty input means English.
func NormalizeLanguage(l Language) Language {
	s := strings.ToLower(strings.TrimSpace(string(l)))
	if i := strings.IndexAny(s, "-_"); i > 0 {
		s = s[:i]
	}
	if s == "" {
		return LanguageEnglish
	}
	return Language(s)
}
