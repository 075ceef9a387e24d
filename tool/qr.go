package tool

import (
	"errors"
	"net/url"
	"path"
	"regexp"
	"strings"
)

const CodeLength = 6

var (
	codePattern = regexp.MustCompile(`^\d{6}$`)

	ErrInvalidQRPayload = errors.New("qr payload does not contain a valid 6-digit code")
)

// IsValidCode reports whether code is exactly six ASCII digits once surrounding space is trimmed.
func IsValidCode(code string) bool {
	return codePattern.MatchString(strings.TrimSpace(code))
}

// SanitizeCode keeps the digits of typed or pasted input and truncates to six of them.
func SanitizeCode(input string) string {
	var b strings.Builder
	for _, r := range input {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			if b.Len() == CodeLength {
				break
			}
		}
	}
	return b.String()
}

// ParsePairingPayload turns a scanned QR value into a (code, token) pair.
// Accepted shapes: "<token>:<code>", a URL containing /validate-code (code taken from the
// "code" query parameter or the last path segment), or the bare code.
func ParsePairingPayload(raw string) (code, token string, err error) {
	raw = strings.TrimSpace(raw)

	if parts := strings.Split(raw, ":"); len(parts) == 2 {
		if c := strings.TrimSpace(parts[1]); IsValidCode(c) {
			return c, strings.TrimSpace(parts[0]), nil
		}
	}

	candidate := raw
	if strings.Contains(raw, "/validate-code") {
		u, parseErr := url.Parse(raw)
		if parseErr != nil {
			return "", "", ErrInvalidQRPayload
		}
		candidate = u.Query().Get("code")
		if candidate == "" {
			candidate = path.Base(u.Path)
		}
	}

	candidate = strings.TrimSpace(candidate)
	if !IsValidCode(candidate) {
		return "", "", ErrInvalidQRPayload
	}
	return candidate, "", nil
}

// BuildPairingPayload is the inverse used by the desktop helper: "<token>:<code>" or the code.
func BuildPairingPayload(code, token string) string {
	if token == "" {
		return code
	}
	return token + ":" + code
}
