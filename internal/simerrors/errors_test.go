package simerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeOf(t *testing.T) {
	err := New(CodeInvalidEndpoint, "endpoint has no address")
	assert.Equal(t, CodeInvalidEndpoint, CodeOf(err))

	wrapped := fmt.Errorf("tick failed: %w", err)
	assert.Equal(t, CodeInvalidEndpoint, CodeOf(wrapped))

	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
	assert.Equal(t, Code(""), CodeOf(nil))
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("dial refused")
	err := Wrap(CodeInternal, cause, "connect failed")

	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "INTERNAL")
	assert.Contains(t, err.Error(), "dial refused")
}

func TestHasCode(t *testing.T) {
	err := Newf(CodeNodeNotFound, "no node with id %q", "abc")
	assert.True(t, HasCode(err, CodeNodeNotFound))
	assert.False(t, HasCode(err, CodeInvalidEndpoint))
	assert.False(t, HasCode(nil, CodeNodeNotFound))
}
