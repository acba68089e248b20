package ingress

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cyroid/cyroid/pkg/log"
	"golang.org/x/time/rate"
)

// HeaderManipulation describes header add/set/remove rules applied to a
// proxied request.
type HeaderManipulation struct {
	Add    map[string]string
	Set    map[string]string
	Remove []string
}

// RateLimit caps the request rate a single client IP may sustain against a
// session endpoint.
type RateLimit struct {
	RequestsPerSecond float64
	Burst             int
}

// AccessControl is an IP allow/deny list applied before a session request
// reaches its backend.
type AccessControl struct {
	AllowedIPs []string
	DeniedIPs  []string
}

// Middleware applies rate limiting and access control to session requests
// (VNC/console WebSocket upgrades in pkg/session) ahead of the handshake.
type Middleware struct {
	rateLimiters map[string]*rate.Limiter
	mu           sync.RWMutex
}

// NewMiddleware creates a new middleware handler
func NewMiddleware() *Middleware {
	return &Middleware{
		rateLimiters: make(map[string]*rate.Limiter),
	}
}

// ApplyHeaderManipulation applies header manipulation rules to the request
func (m *Middleware) ApplyHeaderManipulation(r *http.Request, config *HeaderManipulation) {
	if config == nil {
		return
	}

	// Add headers (only if not already present)
	for key, value := range config.Add {
		if r.Header.Get(key) == "" {
			r.Header.Set(key, value)
		}
	}

	// Set headers (overwrite if present)
	for key, value := range config.Set {
		r.Header.Set(key, value)
	}

	// Remove headers
	for _, key := range config.Remove {
		r.Header.Del(key)
	}
}

// AddProxyHeaders adds standard proxy headers (X-Forwarded-For, X-Real-IP, etc.)
func (m *Middleware) AddProxyHeaders(r *http.Request) {
	clientIP := getClientIP(r)

	if r.Header.Get("X-Real-IP") == "" {
		r.Header.Set("X-Real-IP", clientIP)
	}

	if prior := r.Header.Get("X-Forwarded-For"); prior != "" {
		r.Header.Set("X-Forwarded-For", prior+", "+clientIP)
	} else {
		r.Header.Set("X-Forwarded-For", clientIP)
	}

	if r.Header.Get("X-Forwarded-Proto") == "" {
		proto := "http"
		if r.TLS != nil {
			proto = "https"
		}
		r.Header.Set("X-Forwarded-Proto", proto)
	}

	if r.Header.Get("X-Forwarded-Host") == "" {
		r.Header.Set("X-Forwarded-Host", r.Host)
	}
}

// CheckRateLimit checks if the request should be rate limited
func (m *Middleware) CheckRateLimit(r *http.Request, config *RateLimit) bool {
	if config == nil {
		return true // No rate limit configured, allow request
	}

	clientIP := getClientIP(r)

	m.mu.Lock()
	limiter, exists := m.rateLimiters[clientIP]
	if !exists {
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst)
		m.rateLimiters[clientIP] = limiter
	}
	m.mu.Unlock()

	allowed := limiter.Allow()
	if !allowed {
		log.Warn(fmt.Sprintf("Rate limit exceeded for %s", clientIP))
	}

	return allowed
}

// CheckAccessControl checks if the request is allowed based on IP access control
func (m *Middleware) CheckAccessControl(r *http.Request, config *AccessControl) (bool, string) {
	if config == nil {
		return true, "" // No access control configured, allow request
	}

	clientIP := getClientIP(r)
	ip := net.ParseIP(clientIP)
	if ip == nil {
		log.Warn(fmt.Sprintf("Invalid client IP: %s", clientIP))
		return false, "Invalid client IP"
	}

	// Check deny list first (deny takes precedence)
	for _, cidr := range config.DeniedIPs {
		if matchCIDR(ip, cidr) {
			log.Warn(fmt.Sprintf("Access denied for %s (matched deny rule: %s)", clientIP, cidr))
			return false, "Access denied by IP filter"
		}
	}

	// If allow list is specified, client must match at least one entry
	if len(config.AllowedIPs) > 0 {
		for _, cidr := range config.AllowedIPs {
			if matchCIDR(ip, cidr) {
				return true, ""
			}
		}
		log.Warn(fmt.Sprintf("Access denied for %s (not in allow list)", clientIP))
		return false, "Access denied by IP filter"
	}

	// No deny match and no allow list = allow
	return true, ""
}

// CleanupRateLimiters removes old rate limiters (call periodically)
func (m *Middleware) CleanupRateLimiters() {
	m.mu.Lock()
	defer m.mu.Unlock()

	// No last-access tracking yet; just drop everything once the map gets large.
	if len(m.rateLimiters) > 10000 {
		m.rateLimiters = make(map[string]*rate.Limiter)
	}
}

// StartCleanupJob starts a background job to clean up old rate limiters
func (m *Middleware) StartCleanupJob() {
	ticker := time.NewTicker(1 * time.Hour)
	go func() {
		for range ticker.C {
			m.CleanupRateLimiters()
		}
	}()
}

// Wrap returns next guarded by access control, then rate limiting, then
// proxy header manipulation, in that order — deny/throttle before the
// request ever reaches a session handshake. Either config may be nil to
// skip that check.
func (m *Middleware) Wrap(next http.Handler, rl *RateLimit, ac *AccessControl) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if allowed, reason := m.CheckAccessControl(r, ac); !allowed {
			http.Error(w, reason, http.StatusForbidden)
			return
		}
		if !m.CheckRateLimit(r, rl) {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		m.AddProxyHeaders(r)
		next.ServeHTTP(w, r)
	})
}

// Helper functions

// getClientIP extracts the client IP from the request
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// matchCIDR checks if an IP matches a CIDR range
func matchCIDR(ip net.IP, cidr string) bool {
	if !strings.Contains(cidr, "/") {
		parsedIP := net.ParseIP(cidr)
		if parsedIP == nil {
			return false
		}
		return ip.Equal(parsedIP)
	}

	_, ipNet, err := net.ParseCIDR(cidr)
	if err != nil {
		log.Warn(fmt.Sprintf("Invalid CIDR: %s", cidr))
		return false
	}

	return ipNet.Contains(ip)
}
