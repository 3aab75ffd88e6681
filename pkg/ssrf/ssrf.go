// Package ssrf implements the outbound URL validation policy applied to
// every workflow-originated HTTP request. Validation happens after
// variable placeholders are resolved, so a template cannot smuggle a
// blocked host past the check.
package ssrf

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ErrBlocked is the sentinel wrapped by every policy rejection.
var ErrBlocked = errors.New("url blocked by outbound request policy")

// Policy controls which resolved URLs an outbound request may target.
// The zero value is the strict production policy.
type Policy struct {
	// AllowLoopback permits localhost/127.0.0.0/8 targets. Only ever
	// set in tests; no workflow configuration can reach this field.
	AllowLoopback bool
}

// blockedHostnames are names that resolve to internal infrastructure
// regardless of DNS.
var blockedHostnames = map[string]bool{
	"localhost":                true,
	"metadata.google.internal": true,
}

// Validate checks a resolved URL against the policy. Relative URLs
// (same-origin paths) are allowed through; everything else must be an
// absolute http(s) URL targeting a public host.
func Validate(p Policy, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("%w: empty url", ErrBlocked)
	}

	// Same-origin relative paths carry no host to attack.
	if strings.HasPrefix(raw, "/") && !strings.HasPrefix(raw, "//") {
		return nil
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: unparseable url: %v", ErrBlocked, err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("%w: scheme %q not allowed", ErrBlocked, parsed.Scheme)
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return fmt.Errorf("%w: missing host", ErrBlocked)
	}

	if blockedHostnames[host] || strings.HasSuffix(host, ".internal") {
		if host == "localhost" && p.AllowLoopback {
			return nil
		}

		return fmt.Errorf("%w: host %q is internal", ErrBlocked, host)
	}

	if ip := net.ParseIP(strings.Trim(host, "[]")); ip != nil {
		if err := validateIP(p, ip); err != nil {
			return err
		}
	}

	return nil
}

func validateIP(p Policy, ip net.IP) error {
	if ip.IsLoopback() {
		if p.AllowLoopback {
			return nil
		}

		return fmt.Errorf("%w: loopback address %s", ErrBlocked, ip)
	}

	switch {
	case ip.IsPrivate():
		return fmt.Errorf("%w: private address %s", ErrBlocked, ip)
	case ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast():
		// Covers 169.254.0.0/16, including the cloud metadata endpoint.
		return fmt.Errorf("%w: link-local address %s", ErrBlocked, ip)
	case ip.IsUnspecified():
		return fmt.Errorf("%w: unspecified address %s", ErrBlocked, ip)
	default:
		return nil
	}
}
