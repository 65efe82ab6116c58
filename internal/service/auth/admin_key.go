package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// KeyVerifier defines the interface for checking the admin API key.
// The plaintext key never touches configuration or logs; only its bcrypt
// hash is configured.
type KeyVerifier interface {
	// Compare compares a bcrypt hash with a presented plaintext key.
	// Returns nil on success, ErrInvalidAdminKey on mismatch, or another
	// error when the hash itself is unusable.
	Compare(hashedKey, key string) error
}

// BcryptVerifier implements KeyVerifier using bcrypt.
type BcryptVerifier struct{}

// NewBcryptVerifier creates a new BcryptVerifier.
func NewBcryptVerifier() *BcryptVerifier {
	return &BcryptVerifier{}
}

// Compare implements the KeyVerifier interface using bcrypt.
func (v *BcryptVerifier) Compare(hashedKey, key string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hashedKey), []byte(key))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidAdminKey
		}
		return err
	}
	return nil
}
