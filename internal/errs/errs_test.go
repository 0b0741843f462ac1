package errs

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindMatching(t *testing.T) {
	err := E(InvalidArgument, "SetPixel", "x=%d out of range", 40)
	assert.True(t, errors.Is(err, ErrInvalidArgument))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, InvalidArgument, KindOf(err))
	assert.Contains(t, err.Error(), "SetPixel")
}

func TestWrapKeepsCause(t *testing.T) {
	err := Wrap(IOFailure, "Save", io.ErrUnexpectedEOF)
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	assert.True(t, errors.Is(err, ErrIOFailure))

	outer := fmt.Errorf("persist: %w", err)
	assert.Equal(t, IOFailure, KindOf(outer))
	assert.Nil(t, Wrap(Timeout, "noop", nil))
	assert.Equal(t, Other, KindOf(io.EOF))
}
