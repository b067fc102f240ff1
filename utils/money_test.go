package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatMoney(t *testing.T) {
	tests := map[int64]string{
		0:      "0.00",
		5:      "0.05",
		599:    "5.99",
		1797:   "17.97",
		100000: "1000.00",
		-250:   "-2.50",
	}
	for amount, want := range tests {
		assert.Equal(t, want, FormatMoney(amount), "amount %d", amount)
	}
}
