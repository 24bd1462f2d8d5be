package auth

import (
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a plaintext password with configured cost.
func HashPassword(password string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePassword verifies a password against its hashed value.
func ComparePassword(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}

// NeedsRehash reports whether hashed was produced with a cost below cost.
func NeedsRehash(hashed string, cost int) bool {
	current, err := bcrypt.Cost([]byte(hashed))
	return err != nil || current < cost
}

func newTokenID() string {
	return uuid.NewString()
}
