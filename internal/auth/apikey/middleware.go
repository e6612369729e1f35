package apikey

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

type contextKey struct{}

// KeyValidator is implemented by *Validator.
type KeyValidator interface {
	Validate(ctx context.Context, rawKey string) (*KeyInfo, error)
}

// Middleware returns middleware that requires a valid API key on requests
// for which protect returns true. Other requests pass through untouched.
// Keys are read from Authorization: Bearer <key> or X-API-Key.
func Middleware(validator KeyValidator, protect func(*http.Request) bool) func(http.Handler) http.Handler {
	logger := slog.Default().With("component", "apikey-auth")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !protect(r) {
				next.ServeHTTP(w, r)
				return
			}

			key := extractAPIKey(r)
			if key == "" {
				writeError(w, http.StatusUnauthorized, "missing api key")
				return
			}

			info, err := validator.Validate(r.Context(), key)
			switch {
			case errors.Is(err, ErrInvalidKey):
				writeError(w, http.StatusUnauthorized, "invalid api key")
				return
			case errors.Is(err, ErrExpiredKey):
				writeError(w, http.StatusUnauthorized, "expired api key")
				return
			case err != nil:
				logger.Error("api key validation failed", "error", err)
				writeError(w, http.StatusServiceUnavailable, "authentication unavailable")
				return
			}

			ctx := context.WithValue(r.Context(), contextKey{}, info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetKeyInfo returns the validated key of an authenticated request.
func GetKeyInfo(ctx context.Context) *KeyInfo {
	info, _ := ctx.Value(contextKey{}).(*KeyInfo)
	return info
}

func extractAPIKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return r.Header.Get("X-API-Key")
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
