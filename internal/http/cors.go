package http

import (
	"net/http"
	"net/url"
	"strings"
)

const (
	corsAllowMethods = "GET, POST, PUT, DELETE, OPTIONS"
	corsAllowHeaders = "Content-Type, Authorization, X-Request-ID"
	corsMaxAge       = "600"
)

type originPattern struct {
	scheme string
	suffix string // ".vercel.app"
}

// corsPolicy allows exact origins and single-label wildcard subdomains.
type corsPolicy struct {
	exact    map[string]struct{}
	patterns []originPattern
}

func newCORSPolicy(origins, patterns []string) *corsPolicy {
	p := &corsPolicy{exact: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		p.exact[strings.TrimRight(strings.ToLower(o), "/")] = struct{}{}
	}
	for _, raw := range patterns {
		u, err := url.Parse(strings.ToLower(raw))
		if err != nil || !strings.HasPrefix(u.Host, "*.") {
			continue
		}
		p.patterns = append(p.patterns, originPattern{scheme: u.Scheme, suffix: u.Host[1:]})
	}
	return p
}

func (p *corsPolicy) allowed(origin string) bool {
	origin = strings.ToLower(origin)
	if _, ok := p.exact[origin]; ok {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" || u.Path != "" {
		return false
	}
	for _, pat := range p.patterns {
		if u.Scheme != pat.scheme || !strings.HasSuffix(u.Host, pat.suffix) {
			continue
		}
		label := strings.TrimSuffix(u.Host, pat.suffix)
		if label != "" && !strings.ContainsAny(label, ".:") {
			return true
		}
	}
	return false
}

// handler rejects any request whose Origin is not allowed. Requests without
// an Origin header (server to server, CLI tools) pass through untouched.
func (p *corsPolicy) handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Add("Vary", "Origin")
		if !p.allowed(origin) {
			respondError(w, http.StatusForbidden, "cors_rejected", "origin not allowed")
			return
		}

		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.Header().Set("Access-Control-Allow-Methods", corsAllowMethods)
			w.Header().Set("Access-Control-Allow-Headers", corsAllowHeaders)
			w.Header().Set("Access-Control-Max-Age", corsMaxAge)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
