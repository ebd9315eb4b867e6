package decimals

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/genius-solver/internal/errs"
)

func TestAdjust(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		from, to int
		want     string
	}{
		{"same precision", "123456", 6, 6, "123456"},
		{"scale up", "1500000", 6, 18, "1500000000000000000"},
		{"scale down truncates", "1999999999999999999", 18, 6, "1999999"},
		{"scale down below one unit", "999", 18, 6, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, ok := new(big.Int).SetString(tt.amount, 10)
			require.True(t, ok)
			got := Adjust(in, tt.from, tt.to)
			assert.Equal(t, tt.want, got.String())
			assert.Equal(t, tt.amount, in.String(), "input must not be mutated")
		})
	}
}

func TestConvert(t *testing.T) {
	out, err := Convert(big.NewInt(0), 18, 6)
	require.NoError(t, err)
	assert.Equal(t, "0", out.String())

	_, err = Convert(big.NewInt(999), 18, 6)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindValidation))
	assert.Contains(t, err.Error(), "Conversion resulted in zero")

	_, err = Convert(big.NewInt(5), -1, 6)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Decimals cannot be negative")

	out, err = Convert(big.NewInt(5_000_000), 6, 18)
	require.NoError(t, err)
	assert.Equal(t, "5000000000000000000", out.String())
}

func TestParse(t *testing.T) {
	v, err := Parse("1000000000000000000000")
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000000", v.String())

	for _, bad := range []string{"", "abc", "-1", "1.5"} {
		_, err := Parse(bad)
		assert.Error(t, err, bad)
	}
}

func TestShare(t *testing.T) {
	assert.Equal(t, "50000000", Share(big.NewInt(100_000_000), 0.5).String())
	// float64 product rounds to exactly 1e7 before flooring
	assert.Equal(t, "10000000", Share(big.NewInt(30_000_000), 1.0/3.0).String())
	assert.Equal(t, "3333333", Share(big.NewInt(10_000_000), 1.0/3.0).String())
	assert.Equal(t, "0", Share(big.NewInt(1), math.Inf(1)).String())
	assert.Equal(t, "0", Share(big.NewInt(0), 0.25).String())
}
