package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatSigned(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{3, "+3.0"},
		{-1.54, "-1.5"},
		{0, "+0.0"},
		{-0.04, "+0.0"},
		{12.25, "+12.3"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatSigned(tt.in), "%v", tt.in)
	}
}

func TestIsUp(t *testing.T) {
	assert.True(t, IsUp(0))
	assert.True(t, IsUp(0.3))
	assert.True(t, IsUp(-0.01))
	assert.False(t, IsUp(-0.5))
}
