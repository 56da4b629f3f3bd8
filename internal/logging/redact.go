package logging

import (
	"net/url"
	"regexp"
	"strings"
)

// Sensitive field and query parameter names.
var sensitiveFields = []string{
	"password",
	"secret",
	"token",
	"authorization",
	"auth",
	"credential",
	"api_key",
	"apikey",
	"access_key",
}

// Query parameters that are opaque cursors, not credentials.
var cursorFields = map[string]bool{
	"next_token":       true,
	"pagination_token": true,
}

var secretPatterns = []*regexp.Regexp{
	// Bearer tokens
	regexp.MustCompile(`(?i)bearer\s+([a-zA-Z0-9%._~+/=-]{20,})`),

	// Twitter app-only tokens
	regexp.MustCompile(`AAAAAAAAAAAAAAAAAAAAA[a-zA-Z0-9%]{20,}`),

	// access_token=... embedded in URLs or error text
	regexp.MustCompile(`(?i)\b(access_token|token|secret|password)=([^&\s"']+)`),
}

// RedactedValue is the replacement for sensitive values.
const RedactedValue = "[REDACTED]"

// Redact replaces sensitive information in a string.
func Redact(s string) string {
	result := s
	for _, pattern := range secretPatterns {
		result = pattern.ReplaceAllStringFunc(result, func(match string) string {
			if key, _, ok := strings.Cut(match, "="); ok && !strings.HasPrefix(strings.ToLower(match), "bearer") {
				if cursorFields[strings.ToLower(key)] {
					return match
				}
				return key + "=" + RedactedValue
			}
			return RedactedValue
		})
	}
	return result
}

// RedactURL returns raw with sensitive query parameters replaced.
func RedactURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return Redact(raw)
	}
	if parsed.User != nil {
		parsed.User = url.User(parsed.User.Username())
	}
	query := parsed.Query()
	changed := false
	for key := range query {
		if cursorFields[strings.ToLower(key)] {
			continue
		}
		if IsSensitiveField(key) {
			query.Set(key, RedactedValue)
			changed = true
		}
	}
	if changed {
		parsed.RawQuery = query.Encode()
	}
	return parsed.String()
}

// IsSensitiveField checks if a field name is considered sensitive.
func IsSensitiveField(name string) bool {
	lowerName := strings.ToLower(name)
	if cursorFields[lowerName] {
		return false
	}
	for _, field := range sensitiveFields {
		if strings.Contains(lowerName, field) {
			return true
		}
	}
	return false
}
