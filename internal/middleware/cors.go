package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/cors"
)

// OriginPolicy decides which browser origins may call the API with the
// session cookie. Same-host requests are always allowed.
type OriginPolicy struct {
	origins map[string]struct{}
}

// NewOriginPolicy builds a policy from exact origins such as
// "https://curator.example.com".
func NewOriginPolicy(origins []string) OriginPolicy {
	set := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		if normalized := normalizeOrigin(origin); normalized != "" {
			set[normalized] = struct{}{}
		}
	}
	return OriginPolicy{origins: set}
}

// Allowed reports whether origin may make credentialed requests.
func (p OriginPolicy) Allowed(r *http.Request, origin string) bool {
	normalized := normalizeOrigin(origin)
	if normalized == "" {
		return false
	}
	if _, ok := p.origins[normalized]; ok {
		return true
	}

	u, err := url.Parse(normalized)
	return err == nil && strings.EqualFold(u.Host, r.Host)
}

// CheckOrigin is the websocket upgrader hook. Non-browser clients send no
// Origin header and are let through.
func (p OriginPolicy) CheckOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return p.Allowed(r, origin)
}

// CORS answers preflights and sets CORS headers for allowed origins only.
func (p OriginPolicy) CORS() func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowOriginFunc:  p.Allowed,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}

func normalizeOrigin(origin string) string {
	return strings.TrimRight(strings.ToLower(strings.TrimSpace(origin)), "/")
}
