package api

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
)

// AuthMiddleware handles API key authentication
type AuthMiddleware struct {
	keys [][]byte
}

// NewAuthMiddleware creates new auth middleware. With no keys every request
// is let through.
func NewAuthMiddleware(keys []string) *AuthMiddleware {
	m := &AuthMiddleware{}
	for _, k := range keys {
		if k != "" {
			m.keys = append(m.keys, []byte(k))
		}
	}
	return m
}

// Enabled reports whether keys are enforced
func (m *AuthMiddleware) Enabled() bool {
	return len(m.keys) > 0
}

// Authenticate verifies the API key of a request.
// Supports "Bearer <key>" or a raw key in the Authorization header,
// the X-API-Key header, and an api_key query parameter for browser websockets.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.Enabled() || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		apiKey := extractAPIKey(r)
		if apiKey == "" {
			respondError(w, http.StatusUnauthorized, "missing_api_key", "provide Authorization header with Bearer token or X-API-Key header")
			return
		}

		if !m.valid(apiKey) {
			slog.Warn("invalid api key attempt", "key_prefix", maskKey(apiKey), "remote_addr", r.RemoteAddr)
			respondError(w, http.StatusUnauthorized, "invalid_api_key", "the provided api key is not valid")
			return
		}

		slog.Debug("authenticated request", "key_prefix", maskKey(apiKey))
		next.ServeHTTP(w, r)
	})
}

func (m *AuthMiddleware) valid(apiKey string) bool {
	candidate := []byte(apiKey)
	ok := false
	for _, k := range m.keys {
		if subtle.ConstantTimeCompare(candidate, k) == 1 {
			ok = true
		}
	}
	return ok
}

// extractAPIKey extracts API key from request headers or query
func extractAPIKey(r *http.Request) string {
	// Try Authorization header first
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		// Handle "Bearer xxx" format
		if strings.HasPrefix(authHeader, "Bearer ") {
			return strings.TrimPrefix(authHeader, "Bearer ")
		}
		// Handle raw key in Authorization header
		return authHeader
	}

	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}

	return r.URL.Query().Get("api_key")
}

// maskKey returns first 8 chars of key for safe logging
func maskKey(key string) string {
	if len(key) < 8 {
		return "***"
	}
	return key[:8] + "..."
}
