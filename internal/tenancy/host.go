// Package tenancy maps request hosts to companies and guards the global uniqueness of company domains.
package tenancy

import (
	"errors"
	"net"
	"net/url"
	"strings"
)

var ErrInvalidHost = errors.New("invalid host")

// CanonicalHost reduces a Host header, origin or user-entered domain to the single stored form:
// lowercase hostname without scheme, path or trailing dot, followed by ":port" when one is given.
func CanonicalHost(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrInvalidHost
	}
	if !strings.Contains(s, "://") {
		s = "http://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" || u.User != nil {
		return "", ErrInvalidHost
	}

	hostname := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if hostname == "" {
		return "", ErrInvalidHost
	}
	if ip := net.ParseIP(hostname); ip == nil && !validHostname(hostname) {
		return "", ErrInvalidHost
	}

	port := u.Port()
	if port == "" {
		if strings.HasSuffix(u.Host, ":") {
			return "", ErrInvalidHost
		}
		if strings.Contains(hostname, ":") {
			return "[" + hostname + "]", nil
		}
		return hostname, nil
	}
	for _, r := range port {
		if r < '0' || r > '9' {
			return "", ErrInvalidHost
		}
	}
	return net.JoinHostPort(hostname, port), nil
}

func validHostname(h string) bool {
	if len(h) > 253 {
		return false
	}
	for _, label := range strings.Split(h, ".") {
		if label == "" || len(label) > 63 || label[0] == '-' || label[len(label)-1] == '-' {
			return false
		}
		for _, r := range label {
			if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-' || r == '_') {
				return false
			}
		}
	}
	return true
}

// CanonicalDomains canonicalizes every entry and reports the ones that appear more than once.
func CanonicalDomains(domains []string) (canonical []string, invalid []string, duplicates []string) {
	seen := map[string]bool{}
	for _, d := range domains {
		c, err := CanonicalHost(d)
		if err != nil {
			invalid = append(invalid, d)
			continue
		}
		if seen[c] {
			duplicates = append(duplicates, c)
			continue
		}
		seen[c] = true
		canonical = append(canonical, c)
	}
	return canonical, invalid, duplicates
}
