package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/felixgeelhaar/fortify/ratelimit"
)

// newChatLimiter returns nil when perSecond is zero
func newChatLimiter(perSecond int) ratelimit.RateLimiter {
	if perSecond <= 0 {
		return nil
	}
	return ratelimit.New(&ratelimit.Config{
		Rate:     perSecond,
		Burst:    perSecond * 3,
		Interval: time.Second,
	})
}

// allowChat reports whether the client may send another chat message
func (s *Server) allowChat(ctx context.Context, client string) bool {
	if s.chatLimiter == nil {
		return true
	}
	return s.chatLimiter.Allow(ctx, client)
}

// rateLimitChat rejects clients that exceed the chat rate
func (s *Server) rateLimitChat(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := clientKey(r)
		if !s.allowChat(r.Context(), client) {
			slog.Warn("chat rate limit exceeded", "client", client)
			w.Header().Set("Retry-After", "1")
			respondError(w, http.StatusTooManyRequests, "rate_limited", "too many chat requests, slow down")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey identifies a caller by IP. Forwarding headers only reach
// RemoteAddr when the server is configured to trust its proxy.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
