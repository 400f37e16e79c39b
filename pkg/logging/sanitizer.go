package logging

import (
	"regexp"
	"strings"

	"github.com/ekaya-inc/ekaya-jobenv/pkg/dsn"
)

// RedactedText replaces keyword secrets such as password=... in free text.
const RedactedText = "[REDACTED]"

var (
	// Matches: password=xxx, pwd=xxx, pass=xxx (until next delimiter)
	passwordPattern = regexp.MustCompile(`(?i)\b(password|pwd|pass)=[^;&\s]+`)

	// Matches: api_key=xxx, token=xxx, secret=xxx with values of 20+ characters
	secretPattern = regexp.MustCompile(`(?i)\b(api[_-]?key|apikey|key|token|secret)=[A-Za-z0-9\-_]{20,}`)

	// Matches the credentials of scheme://user:pass@ up to the last '@' of the token,
	// the same split the DSN parser uses.
	uriCredentialPattern = regexp.MustCompile(`([A-Za-z][A-Za-z0-9+.\-]*://)([^\s:/@]*):(\S+)@`)
)

// SanitizeConnectionString masks the password of a connection string before it is
// logged. A valid DSN is rendered in its masked form; anything else falls back to
// pattern based redaction.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}

	if d, err := dsn.Parse(strings.TrimSpace(connStr)); err == nil {
		return passwordPattern.ReplaceAllString(d.String(), "${1}="+RedactedText)
	}
	return SanitizeText(connStr)
}

// SanitizeError sanitizes error messages that might contain credentials.
// Use this before logging any error that may carry a configuration value.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeText(err.Error())
}

// SanitizeText redacts keyword secrets and URI credentials anywhere in s.
func SanitizeText(s string) string {
	sanitized := passwordPattern.ReplaceAllString(s, "${1}="+RedactedText)
	sanitized = secretPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	sanitized = uriCredentialPattern.ReplaceAllString(sanitized, "${1}${2}:"+dsn.Mask+"@")
	return sanitized
}
