package types

import (
	"errors"
	"fmt"
	"testing"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	addr, err := ParseAddress("  alice ")
	require.NoError(t, err)
	assert.Equal(t, Address("alice"), addr)
	assert.Equal(t, "alice", addr.String())

	_, err = ParseAddress("   ")
	assert.ErrorIs(t, err, ErrZeroAddress)

	_, err = ParseAddress("al ice")
	assert.Error(t, err)

	assert.True(t, ZeroAddress.IsZero())
	assert.Equal(t, "<zero>", ZeroAddress.String())
}

func TestSlippageErrorUnwraps(t *testing.T) {
	err := fmt.Errorf("buy: %w", &SlippageError{
		Operation: "buy",
		Expected:  math.NewInt(5),
		Minimum:   math.NewInt(6),
	})

	assert.ErrorIs(t, err, ErrSlippageExceeded)
	var slip *SlippageError
	require.True(t, errors.As(err, &slip))
	assert.Equal(t, int64(6), slip.Minimum.Int64())
	assert.Contains(t, err.Error(), "output 5 below minimum 6")
}
