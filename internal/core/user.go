package core

import (
	"fmt"
	"strings"
)

const (
	minUsernameLen = 3
	maxUsernameLen = 80
	minPasswordLen = 6
)

// User is an operator allowed to use the ledger.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	IsAdmin      bool
}

// ValidateCredentials checks a username and clear-text password before hashing.
func ValidateCredentials(username, password string) error {
	u := strings.TrimSpace(username)
	if len(u) < minUsernameLen || len(u) > maxUsernameLen {
		return fmt.Errorf("%w: username must be %d-%d characters", ErrInvalidInput, minUsernameLen, maxUsernameLen)
	}
	if len(password) < minPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLen)
	}
	return nil
}
