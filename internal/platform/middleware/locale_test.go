package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"enrolld/pkg/requestcontext"
)

func TestLocalePicksFirstLanguageTag(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"simple tag", "de", "de"},
		{"region and weights", "cs-CZ,cs;q=0.9,en;q=0.8", "cs"},
		{"wildcard falls back", "*", "en"},
		{"missing header falls back", "", "en"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got string
			h := Locale(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				got = requestcontext.Locale(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Accept-Language", tc.header)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, tc.want, got)
		})
	}
}
