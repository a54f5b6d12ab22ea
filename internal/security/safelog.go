// Package security provides credential masking and the read-only trading guard.
package security

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

// sensitiveFields contains field names that should be masked in logs.
var sensitiveFields = map[string]bool{
	"api_key":       true,
	"api_secret":    true,
	"apikey":        true,
	"secret":        true,
	"password":      true,
	"token":         true,
	"access_token":  true,
	"request_token": true,
	"totp_secret":   true,
	"checksum":      true,
	"authorization": true,
	"crumb":         true,
	"cookie":        true,
}

// sensitivePatterns contains regex patterns for sensitive data.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(api[_-]?key|api[_-]?secret|access[_-]?token|request[_-]?token|password)([=:]\s*)["']?([^\s"'&]+)["']?`),
	// Kite authorization header: "token key:token"
	regexp.MustCompile(`(?i)(token\s+)([^\s:]+):([^\s"']+)`),
}

// MaskCredential masks a credential value for logging.
func MaskCredential(value string) string {
	if len(value) == 0 {
		return ""
	}
	if len(value) <= 4 {
		return strings.Repeat("*", len(value))
	}
	if len(value) <= 8 {
		return value[:2] + strings.Repeat("*", len(value)-2)
	}
	return value[:4] + strings.Repeat("*", len(value)-8) + value[len(value)-4:]
}

// MaskString masks credential-looking substrings in free text such as
// error messages and response bodies.
func MaskString(input string) string {
	out := sensitivePatterns[0].ReplaceAllStringFunc(input, func(m string) string {
		sub := sensitivePatterns[0].FindStringSubmatch(m)
		return sub[1] + sub[2] + MaskCredential(sub[3])
	})
	return sensitivePatterns[1].ReplaceAllStringFunc(out, func(m string) string {
		sub := sensitivePatterns[1].FindStringSubmatch(m)
		return sub[1] + MaskCredential(sub[2]) + ":" + MaskCredential(sub[3])
	})
}

// IsSensitiveField reports whether a field name carries a secret.
func IsSensitiveField(field string) bool {
	return sensitiveFields[strings.ToLower(field)]
}

// MaskValues returns the encoded form of v with sensitive parameters masked.
func MaskValues(v url.Values) string {
	if len(v) == 0 {
		return ""
	}
	masked := make(url.Values, len(v))
	for k, vals := range v {
		if !IsSensitiveField(k) {
			masked[k] = vals
			continue
		}
		for _, val := range vals {
			masked.Add(k, MaskCredential(val))
		}
	}
	return masked.Encode()
}

// MaskedErr adds err to the event with credential substrings masked.
func MaskedErr(e *zerolog.Event, err error) *zerolog.Event {
	if err == nil {
		return e
	}
	return e.Str(zerolog.ErrorFieldName, MaskString(err.Error()))
}
