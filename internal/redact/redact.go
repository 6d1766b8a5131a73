// Package redact scrubs sensitive fragments from strings before they are
// persisted or returned to API callers. Job failure messages embed output
// from external tools, which can leak connection strings or the tokens the
// engine was invoked with.
package redact

import "regexp"

// Redaction placeholders.
const (
	CredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	ConnStringPlaceholder = "[REDACTED_CONNECTION]"
)

var (
	// Database connection strings with inline credentials.
	connStringRegex = regexp.MustCompile(`(?i)(postgres(ql)?|mysql|redis)://[^@\s]+@[^\s]+`)

	// key=value style credentials.
	passwordRegex = regexp.MustCompile(`(?i)(password|passwd|pwd|secret|token|api[_-]?key)([=:\s]['"]?)[^'"&\s]{3,}`)

	// Hugging Face access tokens; the diarization model downloads with one.
	hfTokenRegex = regexp.MustCompile(`\bhf_[A-Za-z0-9]{20,}\b`)

	// Bearer headers copied into error output.
	bearerRegex = regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9_\-.~+/]{8,}`)
)

// String returns s with credential-shaped fragments replaced by
// placeholders. Safe on arbitrary input; non-sensitive text passes through
// unchanged.
func String(s string) string {
	if s == "" {
		return s
	}

	s = connStringRegex.ReplaceAllString(s, ConnStringPlaceholder)
	s = passwordRegex.ReplaceAllString(s, "${1}${2}"+CredentialPlaceholder)
	s = hfTokenRegex.ReplaceAllString(s, CredentialPlaceholder)
	s = bearerRegex.ReplaceAllString(s, CredentialPlaceholder)
	return s
}

// Error redacts an error's message; nil yields the empty string.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
