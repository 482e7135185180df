package units

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatUnits(t *testing.T) {
	tests := []struct {
		value    uint64
		decimals int32
		want     string
	}{
		{1500000000000000000, 18, "1.5"},
		{1, 18, "0.000000000000000001"},
		{0, 18, "0"},
		{700, 0, "700"},
		{12345, 2, "123.45"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatUnits(uint256.NewInt(tt.value), tt.decimals))
	}
	assert.Equal(t, "0", FormatUnits(nil, 18))

	max := new(uint256.Int).SetAllOne()
	assert.Equal(t, max.Dec(), FormatUnits(max, 0))
}

func TestParseUnits(t *testing.T) {
	v, err := ParseUnits("1.5", 18)
	require.NoError(t, err)
	assert.Equal(t, "1500000000000000000", v.Dec())

	v, err = ParseUnits("42", 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), v.Uint64())

	for _, bad := range []string{"abc", "-1", "0.5"} {
		_, err := ParseUnits(bad, 0)
		assert.ErrorIs(t, err, ErrInvalidUnits, bad)
	}

	_, err = ParseUnits("115792089237316195423570985008687907853269984665640564039457584007913129639936", 0)
	assert.ErrorIs(t, err, ErrInvalidUnits)
}
