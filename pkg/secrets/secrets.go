// Package secrets hashes account passwords and mints random keys.
package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	dErrors "housing/pkg/domain-errors"
)

// Cost is the bcrypt work factor for new hashes. Tests lower it.
var Cost = bcrypt.DefaultCost

// Generate returns 32 random bytes as unpadded base64url. main uses it for
// the session signing key when none is configured.
func Generate() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Hash refuses empty passwords and those over bcrypt's 72-byte limit with a
// validation error.
func Hash(password string) (string, error) {
	switch {
	case password == "":
		return "", dErrors.New(dErrors.CodeValidation, "password is required")
	case len(password) > 72:
		return "", dErrors.New(dErrors.CodeValidation, "password must be at most 72 bytes")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), Cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify reports a mismatch as unauthorized; a malformed hash is an internal
// fault.
func Verify(password, hash string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return dErrors.New(dErrors.CodeUnauthorized, "invalid password")
	default:
		return fmt.Errorf("verify password: %w", err)
	}
}
