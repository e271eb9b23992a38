package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapNilReturnsNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, CodeInternal, "ignored"))
}

func TestHasCode(t *testing.T) {
	err := New(CodeRateLimit, "too many processes")
	assert.True(t, HasCode(err, CodeRateLimit))
	assert.False(t, HasCode(err, CodeNotFound))
	assert.False(t, HasCode(errors.New("plain"), CodeRateLimit))
}

func TestHasCodeThroughChain(t *testing.T) {
	inner := New(CodeProvider, "verification call failed")
	outer := fmt.Errorf("check result: %w", inner)
	assert.True(t, HasCode(outer, CodeProvider))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeStateConflict, CodeOf(New(CodeStateConflict, "locked")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(cause, CodeDelivery, "otp delivery failed")
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "DELIVERY")
	assert.Contains(t, err.Error(), "connection reset")
}
