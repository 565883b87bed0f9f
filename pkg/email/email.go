package email

import (
	"net/mail"
	"strings"
	"unicode"

	dErrors "housing/pkg/domain-errors"
)

// Normalize lowercases and trims an address and checks that it parses as a
// bare addr-spec (no display name).
func Normalize(address string) (string, error) {
	address = strings.ToLower(strings.TrimSpace(address))
	if address == "" {
		return "", dErrors.New(dErrors.CodeValidation, "email is required")
	}
	parsed, err := mail.ParseAddress(address)
	if err != nil || parsed.Address != address {
		return "", dErrors.New(dErrors.CodeValidation, "invalid email")
	}
	return address, nil
}

// DeriveDisplayName builds "First Last" from the local part of an address,
// used when a registrant leaves the display name blank.
func DeriveDisplayName(address string) string {
	localPart := address
	if at := strings.IndexByte(address, '@'); at >= 0 {
		localPart = address[:at]
	}

	parts := strings.FieldsFunc(localPart, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})
	if len(parts) == 0 {
		return "Student"
	}
	if len(parts) == 1 {
		return capitalize(parts[0])
	}
	return capitalize(parts[0]) + " " + capitalize(parts[len(parts)-1])
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
