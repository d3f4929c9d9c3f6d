package managers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsUniqueConstraintError(t *testing.T) {
	assert.False(t, isUniqueConstraintError(nil))
	assert.False(t, isUniqueConstraintError(errors.New("connection refused")))
	assert.True(t, isUniqueConstraintError(errors.New(
		`ERROR: duplicate key value violates unique constraint "idx_users_username" (SQLSTATE 23505)`)))
}

func TestConflictFromDuplicate(t *testing.T) {
	cases := []struct {
		text string
		want error
	}{
		{`ERROR: duplicate key value violates unique constraint "idx_users_username" (SQLSTATE 23505)`, ErrUsernameTaken},
		{`ERROR: duplicate key value violates unique constraint "idx_users_email" (SQLSTATE 23505)`, ErrEmailTaken},
	}
	for _, tc := range cases {
		assert.ErrorIs(t, conflictFromDuplicate(errors.New(tc.text)), tc.want)
	}
}
