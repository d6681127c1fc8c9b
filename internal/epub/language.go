package epub

// langConfig carries per-language reading direction and typography.
type langConfig struct {
	code       string
	dir        string
	fontFamily string
}

var langConfigs = map[string]langConfig{
	"fa": {code: "fa", dir: "rtl", fontFamily: "Tahoma, 'Noto Naskh Arabic', serif"},
	"ar": {code: "ar", dir: "rtl", fontFamily: "Tahoma, 'Noto Naskh Arabic', serif"},
	"en": {code: "en", dir: "ltr", fontFamily: "Georgia, serif"},
}

// languageConfig resolves a language tag, falling back to fa defaults for
// unknown tags.
func languageConfig(lang string) langConfig {
	if cfg, ok := langConfigs[lang]; ok {
		return cfg
	}
	return langConfigs["fa"]
}
