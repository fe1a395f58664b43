package units

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToWei(t *testing.T) {
	tests := []struct {
		ether string
		want  string
	}{
		{"0.01", "10000000000000000"},
		{"0.1", "100000000000000000"},
		{"1", "1000000000000000000"},
		{"0.000000000000000001", "1"},
		{"0", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.ether, func(t *testing.T) {
			got, err := ToWei(tt.ether)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestToWeiRejects(t *testing.T) {
	for _, in := range []string{"", "abc", "-1", "0.0000000000000000001"} {
		_, err := ToWei(in)
		assert.Error(t, err, in)
	}
}

func TestFromWei(t *testing.T) {
	assert.Equal(t, "0.01", FromWei(big.NewInt(10000000000000000)))
	assert.Equal(t, "0", FromWei(nil))
	assert.Equal(t, "0.000000000000000001", FromWei(big.NewInt(1)))
}

func TestParseWei(t *testing.T) {
	v, err := ParseWei(" 100 ")
	require.NoError(t, err)
	assert.Equal(t, "100", v.String())

	_, err = ParseWei("-5")
	assert.Error(t, err)
	_, err = ParseWei("1.5")
	assert.Error(t, err)

	maxUint256 := "115792089237316195423570985008687907853269984665640564039457584007913129639935"
	v, err = ParseWei(maxUint256)
	require.NoError(t, err)
	assert.Equal(t, maxUint256, v.String())

	_, err = ParseWei("115792089237316195423570985008687907853269984665640564039457584007913129639936")
	assert.ErrorIs(t, err, ErrAmountTooLarge)
	_, err = ParseWei("1" + strings.Repeat("0", 100))
	assert.ErrorIs(t, err, ErrAmountTooLarge)
}

func TestToWeiRejectsOversizedAmount(t *testing.T) {
	_, err := ToWei("1" + strings.Repeat("0", 60))
	assert.ErrorIs(t, err, ErrAmountTooLarge)
}
