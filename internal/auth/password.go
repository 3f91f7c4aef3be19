package auth

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

var bcryptCost = bcrypt.DefaultCost

var (
	dummyOnce sync.Once
	dummy     []byte
)

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// burnPasswordCheck runs a comparison against a fixed hash so failed lookups
// cost the same as a wrong password.
func burnPasswordCheck(password string) {
	dummyOnce.Do(func() {
		dummy, _ = bcrypt.GenerateFromPassword([]byte("kinder-admin-placeholder"), bcryptCost)
	})
	_ = bcrypt.CompareHashAndPassword(dummy, []byte(password))
}
