package http

import (
	"net"
	"net/http"
	"strings"
)

// IPConfig holds configuration for client-IP extraction.
type IPConfig struct {
	TrustedProxies []string // CIDR ranges of trusted proxies
}

// ExtractClientIP extracts the real client IP address from the request.
// Forwarding headers are honored only when the request arrives from a trusted
// proxy, so an attacker cannot spoof their source IP (and thereby reset their
// rate-limit and attempt-tracking buckets) with a forged X-Forwarded-For.
func ExtractClientIP(r *http.Request, config *IPConfig) string {
	remoteIP := remoteAddr(r)

	if config != nil && isTrustedProxy(remoteIP, config.TrustedProxies) {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			for _, candidate := range strings.Split(xff, ",") {
				candidate = strings.TrimSpace(candidate)
				if net.ParseIP(candidate) != nil {
					return candidate
				}
			}
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			if net.ParseIP(xri) != nil {
				return xri
			}
		}
	}

	return remoteIP
}

// remoteAddr extracts the IP from RemoteAddr, dropping the port if present.
func remoteAddr(r *http.Request) string {
	if r.RemoteAddr == "" {
		return "unknown"
	}
	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return ip
	}
	return r.RemoteAddr
}

// isTrustedProxy checks whether an IP falls inside any trusted CIDR range.
func isTrustedProxy(ip string, trustedProxies []string) bool {
	clientIP := net.ParseIP(ip)
	if clientIP == nil {
		return false
	}

	for _, cidr := range trustedProxies {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			continue
		}
		if ipNet.Contains(clientIP) {
			return true
		}
	}
	return false
}
