// Package metadata captures the request-origin signals the region router
// uses when a subject has no recorded region: the client address and
// Accept-Language. User-Agent is kept for audit only.
package metadata

import (
	"net/http"
	"net/netip"
	"strings"

	"golang.org/x/text/language"

	"privata/pkg/requestcontext"
)

// MaxXFFHeaderLength bounds X-Forwarded-For and X-Real-IP values.
const MaxXFFHeaderLength = 500

// MaxAcceptLanguageLength bounds the Accept-Language value handed to region
// inference.
const MaxAcceptLanguageLength = 256

const unknownClient = "unknown"

// Config lists the proxies allowed to speak for the client.
type Config struct {
	// TrustedProxies may set X-Forwarded-For and X-Real-IP. Empty means the
	// socket peer is always the client.
	TrustedProxies []netip.Prefix
}

// DefaultConfig trusts no proxy.
func DefaultConfig() *Config {
	return &Config{}
}

// Middleware resolves the client address and locale of each request.
type Middleware struct {
	trusted []netip.Prefix
}

func NewMiddleware(cfg *Config) *Middleware {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Middleware{trusted: cfg.TrustedProxies}
}

// Handler stores the client IP, Accept-Language and User-Agent in the request
// context.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithClientMetadata(r.Context(),
			m.clientIP(r),
			acceptLanguage(r.Header.Get("Accept-Language")),
			r.Header.Get("User-Agent"),
		)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// clientIP walks X-Forwarded-For from the right, skipping trusted proxies;
// the first untrusted hop is the client. Forwarding headers are ignored
// unless the socket peer is itself trusted. Any malformed hop falls back to
// the peer so a spoofed chain cannot pick a residency.
func (m *Middleware) clientIP(r *http.Request) string {
	peer, ok := parseRemoteAddr(r.RemoteAddr)
	if !ok {
		return unknownClient
	}
	if !m.isTrusted(peer) {
		return peer.String()
	}

	xff := strings.Join(r.Header.Values("X-Forwarded-For"), ",")
	if xff == "" {
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" && len(xri) <= MaxXFFHeaderLength {
			if addr, err := netip.ParseAddr(xri); err == nil {
				return addr.Unmap().String()
			}
		}
		return peer.String()
	}
	if len(xff) > MaxXFFHeaderLength {
		return peer.String()
	}

	hops := strings.Split(xff, ",")
	for i := len(hops) - 1; i >= 0; i-- {
		addr, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
		if err != nil {
			return peer.String()
		}
		addr = addr.Unmap()
		if !m.isTrusted(addr) {
			return addr.String()
		}
	}
	// Every hop is a proxy; the leftmost is as close to the client as we get.
	addr, _ := netip.ParseAddr(strings.TrimSpace(hops[0]))
	return addr.Unmap().String()
}

func (m *Middleware) isTrusted(addr netip.Addr) bool {
	for _, p := range m.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func parseRemoteAddr(remoteAddr string) (netip.Addr, bool) {
	if ap, err := netip.ParseAddrPort(remoteAddr); err == nil {
		return ap.Addr().Unmap(), true
	}
	if addr, err := netip.ParseAddr(remoteAddr); err == nil {
		return addr.Unmap(), true
	}
	return netip.Addr{}, false
}

// acceptLanguage keeps the header only if it is short and parses as a
// language priority list.
func acceptLanguage(h string) string {
	h = strings.TrimSpace(h)
	if h == "" || len(h) > MaxAcceptLanguageLength {
		return ""
	}
	if _, _, err := language.ParseAcceptLanguage(h); err != nil {
		return ""
	}
	return h
}
