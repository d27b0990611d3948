package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindMatching(t *testing.T) {
	err := fmt.Errorf("edit budget: %w", Policy("PAST_PERIOD", "budget for %s is closed", "2024-01"))

	assert.True(t, IsPolicy(err))
	assert.False(t, IsValidation(err))
	assert.Equal(t, KindPolicy, KindOf(err))
	assert.Equal(t, "edit budget: budget for 2024-01 is closed", err.Error())

	var e *Error
	assert.True(t, errors.As(err, &e))
	assert.Equal(t, "PAST_PERIOD", e.Code)
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(cause, "recompute spent")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, "recompute spent: disk full", err.Error())
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.True(t, IsNotFound(NotFound("expense", 7)))
	assert.True(t, IsDuplicate(Duplicate("budget exists")))
	assert.True(t, IsValidation(Validation("amount must be positive")))
}
