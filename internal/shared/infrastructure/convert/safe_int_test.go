package convert

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntToUintClamped(t *testing.T) {
	assert.Equal(t, uint(0), IntToUintClamped(-5))
	assert.Equal(t, uint(0), IntToUintClamped(0))
	assert.Equal(t, uint(42), IntToUintClamped(42))
}

func TestIntToUint32Clamped(t *testing.T) {
	tests := []struct {
		name string
		in   int
		want uint32
	}{
		{"negative", -1, 0},
		{"zero", 0, 0},
		{"in range", 5, 5},
		{"max", math.MaxUint32, math.MaxUint32},
		{"above max", math.MaxUint32 + 1, math.MaxUint32},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IntToUint32Clamped(tt.in))
		})
	}
}
