package si4703

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c"

	"github.com/bartgrantham/si4703/internal/fakechip"
)

// clock replaces time.Now and the context aware sleep so tests never block.
type clock struct {
	t     time.Time
	slept []time.Duration
}

func (c *clock) now() time.Time {
	return c.t
}

func (c *clock) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.slept = append(c.slept, d)
	c.t = c.t.Add(d)
	return nil
}

// newDev returns a device on b driven by a fake clock.
func newDev(t *testing.T, b i2c.Bus, opts *Opts) (*Dev, *clock) {
	t.Helper()
	d, err := NewI2C(b, opts)
	require.NoError(t, err)
	clk := &clock{t: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)}
	d.now = clk.now
	d.sleep = clk.sleep
	return d, clk
}

// readyDev returns a powered up device on a simulated chip.
func readyDev(t *testing.T, opts *Opts) (*Dev, *fakechip.Chip, *clock) {
	t.Helper()
	chip := fakechip.New()
	d, clk := newDev(t, chip, opts)
	require.NoError(t, d.PowerUp(context.Background()))
	clk.slept = nil
	return d, chip, clk
}

// wireImage encodes a logical register image in read burst order.
func wireImage(regs [numRegs]uint16) []byte {
	buf := make([]byte, readBurstLen)
	for i := 0; i < numRegs; i++ {
		v := regs[(i+int(firstReadReg))%numRegs]
		buf[2*i] = byte(v >> 8)
		buf[2*i+1] = byte(v)
	}
	return buf
}
