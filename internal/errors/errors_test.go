package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsKind(t *testing.T) {
	cause := New("disk on fire")
	err := ErrIntegrity.Wrap(cause)

	assert.True(t, Is(err, ErrIntegrity))
	assert.True(t, Is(err, cause))
	assert.False(t, Is(err, ErrNotFound))
	assert.Equal(t, "integrity violation: disk on fire", err.Error())

	// the sentinel itself is not mutated
	assert.Nil(t, ErrIntegrity.Unwrap())
	assert.Equal(t, "integrity violation", ErrIntegrity.Error())
}

func TestWrapTwice(t *testing.T) {
	inner := ErrNotFound.Wrap(fmt.Errorf("key abc"))
	outer := inner.Wrap(fmt.Errorf("key def"))

	assert.True(t, Is(outer, ErrNotFound))
	assert.Equal(t, "not found: key def", outer.Error())
}

func TestFmtWrapping(t *testing.T) {
	err := fmt.Errorf("checkout %q: %w", "dev", ErrInvalidState)

	assert.True(t, Is(err, ErrInvalidState))

	var kind *Error
	assert.True(t, As(err, &kind))
	assert.Equal(t, ErrInvalidState, kind)
}
