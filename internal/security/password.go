package security

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a plain text password with bcrypt (salted).
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// CheckPassword compares a bcrypt hash with a plaintext password. A nil
// error means they match.
func CheckPassword(hash, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
}

var (
	dummyOnce sync.Once
	dummyHash []byte
)

// BurnPasswordCheck runs a bcrypt comparison against a throwaway hash so a
// login for an unknown email costs about as much as one with a wrong
// password.
func BurnPasswordCheck(plain string) {
	dummyOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("notehub-dummy-password"), bcrypt.DefaultCost)
	})

	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(plain))
}
