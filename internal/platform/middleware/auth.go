package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"enrolld/pkg/owner"
)

// OwnerClaims are the claims expected in a client token: the activation the
// call acts on plus the standard subject holding the user.
type OwnerClaims struct {
	ActivationID string `json:"activation_id"`
	jwt.RegisteredClaims
}

// TokenValidator verifies HMAC-signed owner tokens.
type TokenValidator struct {
	key []byte
}

// NewTokenValidator creates a validator over the shared signing key.
func NewTokenValidator(signingKey string) *TokenValidator {
	return &TokenValidator{key: []byte(signingKey)}
}

// Validate parses the token and returns the owner identity it asserts.
func (v *TokenValidator) Validate(tokenString string) (owner.ID, error) {
	claims := &OwnerClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.key, nil
	})
	if err != nil {
		return owner.ID{}, err
	}
	if !token.Valid {
		return owner.ID{}, fmt.Errorf("invalid token")
	}
	if claims.ActivationID == "" {
		return owner.ID{}, fmt.Errorf("token missing activation_id claim")
	}
	return owner.New(claims.ActivationID, claims.Subject), nil
}

// Sign issues a token for the owner, used by tests and tooling.
func (v *TokenValidator) Sign(ownerID owner.ID, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, OwnerClaims{
		ActivationID: ownerID.ActivationID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ownerID.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString(v.key)
}

type contextKeyOwner struct{}

// ContextKeyOwner is exported for use in handlers.
var ContextKeyOwner = contextKeyOwner{}

// GetOwner retrieves the authenticated owner identity from the context.
func GetOwner(ctx context.Context) (owner.ID, bool) {
	id, ok := ctx.Value(ContextKeyOwner).(owner.ID)
	return id, ok
}

// RequireOwner rejects requests without a valid bearer token and stores the
// asserted owner identity in the request context.
func RequireOwner(validator *TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			token, ok := strings.CutPrefix(authHeader, bearerPrefix)
			if !ok {
				ctx := r.Context()
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", GetRequestID(ctx),
				)
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}

			ownerID, err := validator.Validate(token)
			if err != nil {
				ctx := r.Context()
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", GetRequestID(ctx),
				)
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyOwner, ownerID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = fmt.Fprintf(w, `{"error":"unauthorized","error_description":%q}`, description)
}
