package util

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatPnL(t *testing.T) {
	cases := map[float64]string{
		4.651162790697675: "4.65",
		-12.5:             "-12.50",
		0:                 "0.00",
		-0.001:            "-0.00",
		1234.005:          "1234.01",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatPnL(in), "input %v", in)
	}
	assert.Equal(t, "-", FormatPnL(math.NaN()))
}

func TestFormatAmountAndMarketCap(t *testing.T) {
	assert.Equal(t, "150.00", FormatAmount(150))
	assert.Equal(t, "107.50", FormatAmount(107.5))
	assert.Equal(t, "-", FormatAmount(math.Inf(1)))
	assert.Equal(t, "100000.00K", FormatMarketCap(100))
	assert.Equal(t, "120500.00K", FormatMarketCap(120.5))
}
