package logger

import (
	"strings"
)

// SanitizedEmail masks an email address for logging (e.g., "a***@e***.com")
func SanitizedEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "[invalid-email]"
	}

	username := parts[0]
	domain := parts[1]

	if len(username) > 1 {
		username = string(username[0]) + strings.Repeat("*", len(username)-1)
	}

	domainParts := strings.Split(domain, ".")
	if len(domainParts) > 1 {
		for i := 0; i < len(domainParts)-1; i++ {
			domainParts[i] = strings.Repeat("*", len(domainParts[i]))
		}
		domain = strings.Join(domainParts, ".")
	}

	return username + "@" + domain
}

// SanitizeQueryString reports whether a query string contains sensitive
// parameters and should be redacted wholesale from logs. QR tokens grant
// emergency profile access, so "token" is treated as sensitive.
func SanitizeQueryString(rawQuery string) bool {
	sensitiveParams := []string{
		"password",
		"token",
		"secret",
		"license",
		"auth",
		"code",
	}

	query := strings.ToLower(rawQuery)
	for _, param := range sensitiveParams {
		if strings.Contains(query, param) {
			return true
		}
	}
	return false
}
