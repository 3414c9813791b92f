package tokens

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnits(t *testing.T) {
	a, err := Units(48)
	require.NoError(t, err)
	assert.Equal(t, Amount(48_000_000_000), a)
	assert.Equal(t, uint64(48), a.Whole())

	_, err = Units(MaxUnits)
	assert.NoError(t, err)

	_, err = Units(MaxUnits + 1)
	assert.ErrorIs(t, err, ErrAmountOverflow)
}

func TestAmountString(t *testing.T) {
	assert.Equal(t, "24.000000000", MustUnits(24).String())
	assert.Equal(t, "0.000000001", Amount(1).String())
	assert.Equal(t, "18446744073.709551615", Amount(^uint64(0)).String())
}

func TestAmountAdd(t *testing.T) {
	sum, ok := Amount(1).add(2)
	assert.True(t, ok)
	assert.Equal(t, Amount(3), sum)

	_, ok = Amount(^uint64(0)).add(1)
	assert.False(t, ok)
}
