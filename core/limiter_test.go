package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTurnLimiter(t *testing.T) {
	tl := NewTurnLimiter(2)
	assert.Equal(t, 2, tl.Limit())
	assert.Equal(t, 2, tl.Remaining())

	require.NoError(t, tl.Increment())
	require.NoError(t, tl.Increment())
	assert.Equal(t, 0, tl.Remaining())
	assert.ErrorIs(t, tl.Increment(), ErrTurnLimit)
	assert.Equal(t, 3, tl.Count())
	assert.Equal(t, 0, tl.Remaining())

	tl.Reset()
	assert.Equal(t, 0, tl.Count())
	assert.NoError(t, tl.Increment())
}

func TestTurnLimiter_Unlimited(t *testing.T) {
	tl := NewTurnLimiter(0)
	for i := 0; i < 100; i++ {
		require.NoError(t, tl.Increment())
	}
	assert.Equal(t, -1, tl.Remaining())
}
