package core

// CountrySettings holds the default language and timezone applied when a
// proxy resolves to a country and the profile does not pin its own values.
type CountrySettings struct {
	Lang     string
	Timezone string
}

// COUNTRY_SETTINGS is the last-resort override table; a timezone resolved
// from coordinates always wins over these defaults.
var COUNTRY_SETTINGS = map[string]CountrySettings{
	"US": {"en-US", "America/New_York"},
	"GB": {"en-GB", "Europe/London"},
	"FR": {"fr-FR", "Europe/Paris"},
	"DE": {"de-DE", "Europe/Berlin"},
	"RU": {"ru-RU", "Europe/Moscow"},
	"ES": {"es-ES", "Europe/Madrid"},
	"IT": {"it-IT", "Europe/Rome"},
	"PL": {"pl-PL", "Europe/Warsaw"},
	"PT": {"pt-PT", "Europe/Lisbon"},
	"NL": {"nl-NL", "Europe/Amsterdam"},
	"CN": {"zh-CN", "Asia/Shanghai"},
	"JP": {"ja-JP", "Asia/Tokyo"},
	"KR": {"ko-KR", "Asia/Seoul"},
	"BR": {"pt-BR", "America/Sao_Paulo"},
	"CA": {"en-US", "America/Toronto"},
	"AU": {"en-AU", "Australia/Sydney"},
	"IN": {"en-IN", "Asia/Kolkata"},
	"TR": {"tr-TR", "Europe/Istanbul"},
	"MX": {"es-MX", "America/Mexico_City"},
	"AR": {"es-AR", "America/Argentina/Buenos_Aires"},
	"UA": {"uk-UA", "Europe/Kiev"},
	"SE": {"sv-SE", "Europe/Stockholm"},
	"NO": {"no-NO", "Europe/Oslo"},
	"DK": {"da-DK", "Europe/Copenhagen"},
	"FI": {"fi-FI", "Europe/Helsinki"},
}
