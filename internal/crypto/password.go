package crypto

import (
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var ErrMismatch = errors.New("secret_mismatch")

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// CompareSecret checks a plain configured secret without leaking timing.
// An empty expected secret never matches.
func CompareSecret(expected, given string) error {
	if expected == "" {
		return ErrMismatch
	}
	if subtle.ConstantTimeCompare([]byte(expected), []byte(given)) != 1 {
		return ErrMismatch
	}
	return nil
}
