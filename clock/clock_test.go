package clock_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/greenwave-sim-go/clock"
	"github.com/tsinghua-fib-lab/greenwave-sim-go/utils/config"
)

func TestClockAdvance(t *testing.T) {
	c := clock.New(config.ControlStep{Total: 10, Interval: 0.5})
	assert.Equal(t, 0, c.Tick)
	assert.Equal(t, 0.0, c.T)
	assert.False(t, c.Done())

	c.Advance()
	assert.Equal(t, 1, c.Tick)
	assert.Equal(t, 0.5, c.T)

	for ri := 0; ri < 9; ri++ {
		c.Advance()
	}
	assert.Equal(t, 10, c.Tick)
	assert.True(t, c.Done())
}

func TestClockReset(t *testing.T) {
	c := clock.New(config.ControlStep{Total: 5, Interval: 1})
	c.Advance()
	c.Advance()
	c.Reset()
	assert.Equal(t, 0, c.Tick)
	assert.Equal(t, 0.0, c.T)
	assert.Equal(t, 5, c.HORIZON)
	assert.Equal(t, 1.0, c.DT)
}

func TestClockString(t *testing.T) {
	c := clock.New(config.ControlStep{Total: 100000, Interval: 1})
	for ri := 0; ri < 3661; ri++ {
		c.Advance()
	}
	assert.Equal(t, "01:01:01", c.String())
}
