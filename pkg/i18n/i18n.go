package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"strings"
	"sync"
)

//go:embed messages/*.json
var messagesFS embed.FS

// Supported locales
const (
	LocaleEnglish = "en"
	LocaleSpanish = "es"
	DefaultLocale = LocaleEnglish
)

var supportedLocales = []string{LocaleEnglish, LocaleSpanish}

type localeKey struct{}

var (
	catalogs     map[string]map[string]any
	catalogsOnce sync.Once
)

func loadCatalogs() {
	catalogsOnce.Do(func() {
		catalogs = make(map[string]map[string]any, len(supportedLocales))

		for _, locale := range supportedLocales {
			data, err := messagesFS.ReadFile("messages/" + locale + ".json")
			if err != nil {
				continue
			}

			var catalog map[string]any
			if err := json.Unmarshal(data, &catalog); err != nil {
				continue
			}
			catalogs[locale] = catalog
		}
	})
}

// Localizer resolves message keys for one locale, falling back to English.
type Localizer struct {
	locale string
}

// NewLocalizer creates a localizer; unknown locales fall back to English.
func NewLocalizer(locale string) *Localizer {
	loadCatalogs()
	if !isSupported(locale) {
		locale = DefaultLocale
	}
	return &Localizer{locale: locale}
}

// LocalizerFromContext creates a localizer from the request locale.
func LocalizerFromContext(ctx context.Context) *Localizer {
	return NewLocalizer(GetLocaleFromContext(ctx))
}

// T translates a dot-separated key, substituting {param} placeholders.
// The key itself is returned when no catalog has it.
func (l *Localizer) T(key string, params ...map[string]string) string {
	msg := lookup(key, l.locale)
	if msg == "" && l.locale != DefaultLocale {
		msg = lookup(key, DefaultLocale)
	}
	if msg == "" {
		return key
	}

	if len(params) > 0 {
		for k, v := range params[0] {
			msg = strings.ReplaceAll(msg, "{"+k+"}", v)
		}
	}
	return msg
}

// Locale returns the localizer's locale.
func (l *Localizer) Locale() string {
	return l.locale
}

func lookup(key, locale string) string {
	current, ok := catalogs[locale]
	if !ok {
		return ""
	}

	parts := strings.Split(key, ".")
	for i, part := range parts {
		if i == len(parts)-1 {
			s, _ := current[part].(string)
			return s
		}
		nested, ok := current[part].(map[string]any)
		if !ok {
			return ""
		}
		current = nested
	}
	return ""
}

func isSupported(locale string) bool {
	for _, l := range supportedLocales {
		if l == locale {
			return true
		}
	}
	return false
}

// WithLocale adds locale to context
func WithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, localeKey{}, locale)
}

// GetLocaleFromContext retrieves locale from context
func GetLocaleFromContext(ctx context.Context) string {
	if locale, ok := ctx.Value(localeKey{}).(string); ok && locale != "" {
		return locale
	}
	return DefaultLocale
}

// ParseAcceptLanguage picks the first supported locale listed in an
// Accept-Language header, honouring the order the client sent.
func ParseAcceptLanguage(header string) string {
	if header == "" {
		return DefaultLocale
	}

	for _, part := range strings.Split(header, ",") {
		tag := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		primary := strings.ToLower(strings.SplitN(tag, "-", 2)[0])
		if isSupported(primary) {
			return primary
		}
	}
	return DefaultLocale
}

// T translates using the default locale
func T(key string, params ...map[string]string) string {
	return NewLocalizer(DefaultLocale).T(key, params...)
}

// TFromContext translates using locale from context
func TFromContext(ctx context.Context, key string, params ...map[string]string) string {
	return LocalizerFromContext(ctx).T(key, params...)
}
