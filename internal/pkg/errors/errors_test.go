package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(cause, "failed to create user")

	assert.Equal(t, "failed to create user: connection refused", err.Error())
	assert.Equal(t, CodeInternal, err.Code)
	assert.True(t, Is(err, cause))
}

func TestWrapCodeMatchesSentinel(t *testing.T) {
	err := WrapCode(ErrAlreadyExists, "email already registered", CodeDuplicate)

	assert.True(t, Is(err, ErrAlreadyExists))
	assert.False(t, Is(err, ErrNotFound))

	var coded *Error
	assert.True(t, As(fmt.Errorf("signup: %w", err), &coded))
	assert.Equal(t, CodeDuplicate, coded.Code)
}
