package websocket

import (
	"net"
	"net/url"
	"strings"
)

// SameHostValidator accepts origins served by the preview server itself and
// any loopback origin.
type SameHostValidator struct {
	// Extra holds additional allowed origins, compared as scheme://host[:port].
	Extra []string
}

// IsAllowedOrigin implements OriginValidator.
func (v SameHostValidator) IsAllowedOrigin(origin, host string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	if strings.EqualFold(u.Host, host) {
		return true
	}

	for _, allowed := range v.Extra {
		if strings.EqualFold(strings.TrimSuffix(allowed, "/"), u.Scheme+"://"+u.Host) {
			return true
		}
	}

	hostname := u.Hostname()
	if strings.EqualFold(hostname, "localhost") {
		return true
	}
	ip := net.ParseIP(hostname)
	return ip != nil && ip.IsLoopback()
}
