package anonymizer

import (
	"regexp"
	"strings"
)

// Anonymization narrows identifying fields in place of deleting whole
// records. Both transforms are total and idempotent: calling them on
// already-anonymized input returns the input unchanged.

const (
	versionPlaceholder = "x.x"
	maxUserAgentLen    = 50
	truncationMarker   = "..."
)

var versionToken = regexp.MustCompile(`\d+\.\d+[\d.]*`)

// AnonymizeIP masks the host portion of an address. IPv4 addresses lose
// the last octet, IPv6 addresses keep only the first four groups (the
// /64 network prefix). Empty input stays empty.
func AnonymizeIP(addr string) string {
	if addr == "" {
		return ""
	}
	if strings.Contains(addr, ".") && !strings.Contains(addr, ":") {
		return anonymizeIPv4(addr)
	}
	if strings.Contains(addr, ":") {
		return anonymizeIPv6(addr)
	}
	return addr
}

func anonymizeIPv4(addr string) string {
	parts := strings.Split(addr, ".")
	if len(parts) != 4 {
		return addr
	}
	parts[3] = "0"
	return strings.Join(parts, ".")
}

func anonymizeIPv6(addr string) string {
	groups := strings.Split(addr, ":")
	if len(groups) <= 4 {
		return addr
	}
	return strings.Join(groups[:4], ":") + "::"
}

// AnonymizeUserAgent strips version numbers from a user agent string and
// truncates the result. Empty input yields empty output.
func AnonymizeUserAgent(ua string) string {
	if ua == "" {
		return ""
	}
	out := versionToken.ReplaceAllString(ua, versionPlaceholder)
	if len(out) > maxUserAgentLen {
		out = out[:maxUserAgentLen] + truncationMarker
	}
	return out
}
