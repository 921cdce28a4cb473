package widget

import (
	"testing"

	companion "currency-companion"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestValidAmount(t *testing.T) {
	valid := []string{"", "0", "1", "100", "12.5", "12.", ".5", ".", "007", "1234567890.0987654321"}
	for _, s := range valid {
		assert.True(t, ValidAmount(s), "%q should be accepted", s)
	}

	invalid := []string{"12.5.3", "abc", "-1", "+1", "1e5", " 1", "1 ", "1,5", "..", "١٢"}
	for _, s := range invalid {
		assert.False(t, ValidAmount(s), "%q should be rejected", s)
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "0"},
		{".", "0"},
		{"1", "1"},
		{"12.", "12"},
		{".5", "0.5"},
		{"12.50", "12.5"},
		{"007", "7"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseAmount(tt.in)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %v", got)
		})
	}
}

func TestConvert(t *testing.T) {
	amounts := []string{"0", "1", "100", "12.5", "0.01"}
	rates := []companion.Rate{0, 0.0061, 0.0067, 1, 149.5, 1.2345}

	for _, a := range amounts {
		for _, r := range rates {
			want := decimal.RequireFromString(a).Mul(decimal.NewFromFloat(float64(r)))
			got := Convert(ParseAmount(a), r)
			assert.True(t, want.Equal(got), "%v x %v: got %v", a, r, got)
		}
	}
}

func TestConvert_TwoDecimalDisplay(t *testing.T) {
	assert.Equal(t, "0.67", Convert(ParseAmount("100"), 0.0067).StringFixed(2))
	assert.Equal(t, "0.61", Convert(ParseAmount("100"), 0.0061).StringFixed(2))
	assert.Equal(t, "0.01", Convert(ParseAmount("1"), 0.0067).StringFixed(2))
}
