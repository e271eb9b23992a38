// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// The values are typically set by middleware and consumed by services. The
// package stays free of net/http so services can read request-scoped state
// without importing HTTP code.
//
// Usage in services (read values):
//
//	locale := requestcontext.Locale(ctx)
//
// Usage in middleware and tests (set values):
//
//	ctx = requestcontext.WithLocale(ctx, "de")
package requestcontext

import "context"

// DefaultLocale is used when no locale was negotiated for the request.
const DefaultLocale = "en"

type localeKey struct{}

// ContextKeyLocale is exported for tests that need context.WithValue.
var ContextKeyLocale = localeKey{}

// Locale retrieves the negotiated message locale from the context.
// Returns DefaultLocale if not set.
func Locale(ctx context.Context) string {
	if locale, ok := ctx.Value(ContextKeyLocale).(string); ok && locale != "" {
		return locale
	}
	return DefaultLocale
}

// WithLocale injects a message locale into the context.
func WithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, ContextKeyLocale, locale)
}
