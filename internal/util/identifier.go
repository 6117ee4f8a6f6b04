package util

import (
	"net/mail"
	"regexp"
	"strings"
)

var (
	phonePattern    = regexp.MustCompile(`^\+?[1-9][0-9]{6,14}$`)
	phoneSeparators = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.]{3,32}$`)
)

// IsEmail reports whether s is a bare email address (no display name).
func IsEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return false
	}
	return addr.Address == s
}

// IsPhone reports whether s is an international phone number with optional
// leading '+', digits only.
func IsPhone(s string) bool {
	return phonePattern.MatchString(s)
}

// IsUsername reports whether s can be used as a username. Phone-shaped
// strings are rejected so that phone and username never share a value.
func IsUsername(s string) bool {
	return usernamePattern.MatchString(s) && !IsPhone(s)
}

// NormalizeIdentifier trims an email or phone and brings it to the form used
// as a storage key: lowercase emails, phones without separators.
func NormalizeIdentifier(s string) string {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "@") {
		return strings.ToLower(s)
	}
	if compact := phoneSeparators.Replace(s); IsPhone(compact) {
		return compact
	}
	return s
}

// MaskIdentifier hides most of an email or phone for logging.
func MaskIdentifier(s string) string {
	if at := strings.LastIndex(s, "@"); at > 0 {
		return s[:1] + "***" + s[at:]
	}
	if len(s) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}
