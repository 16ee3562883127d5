// Package auth holds the admin credential check and session tracking for the
// admin endpoints.
package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordVerifier compares login attempts against the configured admin
// password. The plaintext from configuration is hashed once at startup so
// later comparisons are constant-time bcrypt checks.
type PasswordVerifier struct {
	hash []byte
}

// NewPasswordVerifier hashes the configured password. An empty password is
// rejected so the admin surface cannot be left open by mistake.
func NewPasswordVerifier(password string) (*PasswordVerifier, error) {
	if password == "" {
		return nil, fmt.Errorf("admin password must not be empty")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash admin password: %w", err)
	}

	return &PasswordVerifier{hash: hash}, nil
}

// Verify reports whether the attempt matches the configured password.
func (v *PasswordVerifier) Verify(password string) bool {
	return bcrypt.CompareHashAndPassword(v.hash, []byte(password)) == nil
}
