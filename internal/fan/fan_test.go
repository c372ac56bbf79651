package fan_test

import (
	"testing"

	"codeberg.org/mutker/dustctl/internal/errors"
	"codeberg.org/mutker/dustctl/internal/fan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOnClampsPercent(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{-20, "fan:on:0"},
		{0, "fan:on:0"},
		{55, "fan:on:55"},
		{100, "fan:on:100"},
		{250, "fan:on:100"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, fan.On(tt.in).Wire())
	}
}

func TestClampProperty(t *testing.T) {
	for p := -300; p <= 300; p++ {
		cmd, err := fan.Parse(fan.On(p).Wire())
		require.NoError(t, err, "percent %d", p)
		assert.Equal(t, fan.On(fan.ClampPercent(p)), cmd)
		c := fan.ClampPercent(p)
		assert.True(t, c >= 0 && c <= 100)
	}
}

func TestParse(t *testing.T) {
	for _, wire := range []string{"fan:auto", "fan:off", "fan:dust", "fan:on:42"} {
		cmd, err := fan.Parse(wire)
		require.NoError(t, err)
		assert.Equal(t, wire, cmd.Wire())
	}

	for _, wire := range []string{"auto", "fan:spin", "fan:on:abc", "fan:on:101", "fan:on:-1"} {
		_, err := fan.Parse(wire)
		require.Error(t, err, wire)
		assert.True(t, errors.HasCode(err, errors.ErrFanInvalidCommand))
	}
}
