package utils

import (
	"net"
	"net/http"
	"strings"
)

// UnknownClientValue is recorded when a request carries no client hint.
const UnknownClientValue = "unknown"

// Proxy header trust modes
const (
	TrustProxyAuto   = "auto"  // trust only requests from TrustedProxyIPs
	TrustProxyAlways = "true"  // trust every request's headers
	TrustProxyNever  = "false" // always use the connection address
)

// GetClientIP returns the client address recorded for audit purposes:
// X-Forwarded-For as sent, then X-Real-IP, then "unknown". The values are
// not validated; they are attribution hints, not authentication.
func GetClientIP(r *http.Request) string {
	if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
		return xff
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return UnknownClientValue
}

// GetUserAgent returns the User-Agent header or "unknown".
func GetUserAgent(r *http.Request) string {
	if ua := r.UserAgent(); ua != "" {
		return ua
	}
	return UnknownClientValue
}

// GetRemoteIP returns the first forwarded address, or the connection's
// remote address when no proxy header is present. Used for logs.
func GetRemoteIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if first != "" {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return ExtractIP(r.RemoteAddr)
}

// ExtractIP extracts the IP address from a "host:port" string.
// If no port is present, returns the input as-is.
func ExtractIP(addr string) string {
	// Handle IPv6 addresses with port: [::1]:8080
	if strings.HasPrefix(addr, "[") {
		if idx := strings.LastIndex(addr, "]:"); idx != -1 {
			return addr[1:idx]
		}
		return strings.Trim(addr, "[]")
	}

	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		// Multiple colons = IPv6 without port
		if strings.Count(addr, ":") > 1 {
			return addr
		}
		return addr[:idx]
	}

	return addr
}

// IsTrustedProxyIP reports whether ipStr is listed in trustedProxies, a
// comma-separated list of IPs and CIDR ranges such as "127.0.0.1,10.0.0.0/8".
func IsTrustedProxyIP(ipStr string, trustedProxies string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}

	for _, proxy := range strings.Split(trustedProxies, ",") {
		proxy = strings.TrimSpace(proxy)
		if proxy == "" {
			continue
		}

		if strings.Contains(proxy, "/") {
			if _, ipNet, err := net.ParseCIDR(proxy); err == nil && ipNet.Contains(ip) {
				return true
			}
			continue
		}
		if proxyIP := net.ParseIP(proxy); proxyIP != nil && ip.Equal(proxyIP) {
			return true
		}
	}

	return false
}

// GetClientIPWithTrust returns the client address to key security decisions
// on. Forwarding headers are believed only when trustProxyHeaders allows it
// for the connecting peer; otherwise the connection address is used.
// Unknown modes behave like "auto".
func GetClientIPWithTrust(r *http.Request, trustProxyHeaders string, trustedProxyIPs string) string {
	remoteIP := ExtractIP(r.RemoteAddr)

	var shouldTrust bool
	switch trustProxyHeaders {
	case TrustProxyAlways:
		shouldTrust = true
	case TrustProxyNever:
		shouldTrust = false
	default:
		shouldTrust = IsTrustedProxyIP(remoteIP, trustedProxyIPs)
	}

	if !shouldTrust {
		return remoteIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	return remoteIP
}
