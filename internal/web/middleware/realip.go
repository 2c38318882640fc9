package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// TrustedRealIP takes the client IP from X-Real-IP or X-Forwarded-For, but
// only for requests arriving from a trusted proxy. Entries may be CIDRs or
// single addresses. Everyone else keeps their connection address, so a
// client cannot dodge rate limits or forge audit IPs with a header.
func TrustedRealIP(trusted []string) func(http.Handler) http.Handler {
	prefixes := parseTrusted(trusted)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if remote, ok := parseAddr(r.RemoteAddr); ok && isTrusted(remote, prefixes) {
				if ip, ok := forwardedIP(r); ok {
					r.RemoteAddr = ip.String()
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func parseTrusted(trusted []string) []netip.Prefix {
	var prefixes []netip.Prefix
	for _, entry := range trusted {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if p, err := netip.ParsePrefix(entry); err == nil {
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			slog.Warn("realip: invalid trusted proxy, skipping",
				"entry", entry,
				"error", err,
			)
			continue
		}
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes
}

// forwardedIP prefers X-Real-IP and falls back to the first hop of
// X-Forwarded-For. Malformed values are ignored.
func forwardedIP(r *http.Request) (netip.Addr, bool) {
	if rip := r.Header.Get("X-Real-IP"); rip != "" {
		addr, err := netip.ParseAddr(strings.TrimSpace(rip))
		return addr, err == nil
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		addr, err := netip.ParseAddr(strings.TrimSpace(first))
		return addr, err == nil
	}
	return netip.Addr{}, false
}

// parseAddr parses a host:port or a bare address.
func parseAddr(addr string) (netip.Addr, bool) {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	ip, err := netip.ParseAddr(addr)
	if err != nil {
		return netip.Addr{}, false
	}
	return ip.Unmap(), true
}

func isTrusted(ip netip.Addr, prefixes []netip.Prefix) bool {
	for _, p := range prefixes {
		if p.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIP returns the address of the client without a port.
func ClientIP(r *http.Request) string {
	if ip, ok := parseAddr(r.RemoteAddr); ok {
		return ip.String()
	}
	return r.RemoteAddr
}
