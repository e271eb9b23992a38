package middleware

import (
	"net/http"
	"strings"

	"enrolld/pkg/requestcontext"
)

// Locale picks the request locale from the Accept-Language header and
// stores it on the context for downstream services. Only the primary
// language tag of the first entry is kept, quality weights are ignored.
func Locale(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		locale := parseAcceptLanguage(r.Header.Get("Accept-Language"))
		if locale != "" {
			r = r.WithContext(requestcontext.WithLocale(r.Context(), locale))
		}
		next.ServeHTTP(w, r)
	})
}

func parseAcceptLanguage(header string) string {
	first, _, _ := strings.Cut(header, ",")
	first, _, _ = strings.Cut(first, ";")
	first, _, _ = strings.Cut(first, "-")
	first = strings.ToLower(strings.TrimSpace(first))
	if first == "" || first == "*" {
		return ""
	}
	return first
}
