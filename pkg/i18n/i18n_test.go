package i18n

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAcceptLanguage(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", LocaleEnglish},
		{"es", LocaleSpanish},
		{"es-AR,es;q=0.9,en;q=0.8", LocaleSpanish},
		{"en-US,es;q=0.5", LocaleEnglish},
		{"fr-FR, de;q=0.7", LocaleEnglish},
		{"fr, es;q=0.2", LocaleSpanish},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseAcceptLanguage(tt.header))
		})
	}
}

func TestLocalizer_T(t *testing.T) {
	en := NewLocalizer(LocaleEnglish)
	es := NewLocalizer(LocaleSpanish)

	assert.Equal(t, "medicine not found", en.T("errors.not_found", map[string]string{"resource": "medicine"}))
	assert.Equal(t, "botiquín no encontrado", es.T("errors.not_found", map[string]string{"resource": "botiquín"}))
	assert.Equal(t, "missing.key", en.T("missing.key"))
	assert.Equal(t, "errors", en.T("errors"))
}

func TestNewLocalizer_UnknownLocale(t *testing.T) {
	assert.Equal(t, LocaleEnglish, NewLocalizer("de").Locale())
}

func TestTFromContext(t *testing.T) {
	ctx := WithLocale(context.Background(), LocaleSpanish)
	assert.Equal(t, "token inválido", TFromContext(ctx, "errors.token_invalid"))
	assert.Equal(t, "invalid token", TFromContext(context.Background(), "errors.token_invalid"))
}
