// Package managers holds the domain logic: each manager wraps a gorm handle
// (constructor-injected) and translates entity operations into queries. Typed
// sentinel errors let callers tell not-found from conflict from a store
// failure.
package managers

import (
	"errors"
	"strings"
)

var (
	ErrViolationNotFound  = errors.New("violation not found")
	ErrPaymentNotFound    = errors.New("payment not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrAlreadyPaid        = errors.New("violation already paid")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNothingToUpdate    = errors.New("no updatable fields provided")
)

// IsConflict reports whether err is one of the duplicate/conflict sentinels.
func IsConflict(err error) bool {
	return errors.Is(err, ErrUsernameTaken) || errors.Is(err, ErrEmailTaken) || errors.Is(err, ErrAlreadyPaid)
}

// IsNotFound reports whether err is one of the absent-row sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrViolationNotFound) || errors.Is(err, ErrPaymentNotFound) || errors.Is(err, ErrUserNotFound)
}

// isUniqueConstraintError matches the driver text for a violated unique
// index. The advisory exists-checks run first, so this only fires on the
// check-then-insert race.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "duplicate key") || strings.Contains(s, "unique constraint") || strings.Contains(s, "already exists")
}

// conflictFromDuplicate maps a duplicate-key error to the sentinel for the
// unique column that was actually violated. Postgres names the index in the
// error text (idx_users_username, idx_users_email).
func conflictFromDuplicate(err error) error {
	if strings.Contains(err.Error(), "email") {
		return ErrEmailTaken
	}
	return ErrUsernameTaken
}
