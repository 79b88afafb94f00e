package util

import (
	"regexp"
	"strings"
)

var controlChars = regexp.MustCompile(`[\x00-\x1F\x7F]+`)

// maxLogValueLen bounds how much of an attacker supplied value reaches the log.
const maxLogValueLen = 512

// SanitizeForLog removes control characters and newlines from request content
// before logging and caps its length.
func SanitizeForLog(s string) string {
	if s == "" {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = controlChars.ReplaceAllString(s, " ")
	if len(s) > maxLogValueLen {
		s = s[:maxLogValueLen] + "..."
	}
	return s
}

// SanitizeLinks defangs every "://" so chat clients do not unfurl the URL.
func SanitizeLinks(s string) string {
	return strings.ReplaceAll(s, "://", "[:]//")
}
