package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

type contextKey string

const accountIDKey contextKey = "account_id"

var errMissingSubject = errors.New("token has no subject")

// OptionalAuth reads a customer bearer token when one is present and stores
// its subject as the account ID. Requests without a token continue as guests.
// An empty secret disables token parsing entirely.
func OptionalAuth(secret string, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if secret == "" || header == "" {
				next.ServeHTTP(w, r)
				return
			}

			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(raw) == "" {
				writeUnauthorised(w, "malformed authorization header")
				return
			}

			accountID, err := parseAccountID(strings.TrimSpace(raw), secret)
			if err != nil {
				logger.Warn().Err(err).Str("path", r.URL.Path).Msg("invalid bearer token")
				writeUnauthorised(w, "invalid bearer token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAccountID(r.Context(), accountID)))
		})
	}
}

// WithAccountID returns a copy of ctx carrying accountID.
func WithAccountID(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, accountIDKey, accountID)
}

// AccountIDFromContext returns the authenticated account ID, or nil for guests.
func AccountIDFromContext(ctx context.Context) *string {
	if id, ok := ctx.Value(accountIDKey).(string); ok && id != "" {
		return &id
	}
	return nil
}

func parseAccountID(tokenString, secret string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", fmt.Errorf("token is not valid")
	}

	sub, err := token.Claims.GetSubject()
	if err != nil {
		return "", err
	}
	if sub == "" {
		return "", errMissingSubject
	}
	return sub, nil
}
