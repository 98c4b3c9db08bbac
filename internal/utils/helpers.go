// Package utils provides utility functions used throughout the application.
package utils

import (
	"net"
	"net/http"
	"strings"
	"unicode/utf8"
)

// Ellipsis is appended to truncated strings.
const Ellipsis = "..."

// TruncateString keeps the first maxLen characters of s and appends an
// ellipsis when anything was cut. Lengths are counted in runes.
func TruncateString(s string, maxLen int) string {
	if maxLen < 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}

	runes := []rune(s)
	return string(runes[:maxLen]) + Ellipsis
}

// GetRequestIP gets the client IP address from the request
func GetRequestIP(r *http.Request) string {
	// Check X-Forwarded-For header first (for proxies)
	ip := r.Header.Get("X-Forwarded-For")
	if ip == "" {
		ip = r.RemoteAddr
	}

	// If there are multiple IPs in X-Forwarded-For, get the first one
	if strings.Contains(ip, ",") {
		ip = strings.TrimSpace(strings.Split(ip, ",")[0])
	}

	// Remove port number if present. IPv6 hosts come bracketed.
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}

	return strings.Trim(ip, "[]")
}
