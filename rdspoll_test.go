package si4703

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bartgrantham/si4703/rds"
)

// ps returns the 0A group carrying segment idx of name.
func ps(idx int, name string) [4]uint16 {
	return [4]uint16{0x3aab, uint16(idx), 0xe0e0, uint16(name[2*idx])<<8 | uint16(name[2*idx+1])}
}

func TestReadRDS(t *testing.T) {
	d, chip, clk := readyDev(t, nil)
	const name = "KQED FM "
	chip.QueueRDS(
		ps(2, name),
		[4]uint16{0x3aab, 0x2001, 0, 0x2121}, // at or above the threshold
		ps(0, name),
		ps(2, "XXXXXXXX"), // repeat
		ps(3, name),
		ps(1, name),
	)
	got, err := d.ReadRDS(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, name, got)
	assert.Len(t, got, 8)
	require.Len(t, clk.slept, 6, "one read per queued group")
	for _, d := range clk.slept {
		assert.Equal(t, 40*time.Millisecond, d)
	}
}

func TestReadRDSIncomplete(t *testing.T) {
	d, chip, clk := readyDev(t, nil)
	chip.QueueRDS(ps(0, "KQED FM "), ps(1, "KQED FM "))
	start := clk.t
	got, err := d.ReadRDS(context.Background(), 500*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "", got)
	assert.True(t, clk.t.Sub(start) >= 500*time.Millisecond)
	require.True(t, len(clk.slept) > 3)
	assert.Equal(t, 40*time.Millisecond, clk.slept[1])
	assert.Equal(t, 30*time.Millisecond, clk.slept[2])
}

func TestReadRDSThreshold(t *testing.T) {
	tp := func(idx int) [4]uint16 {
		g := ps(idx, "NEWS 880")
		g[1] |= 0x0400 // traffic program
		return g
	}

	d, chip, _ := readyDev(t, nil)
	chip.QueueRDS(tp(0), tp(1), tp(2), tp(3))
	got, err := d.ReadRDS(context.Background(), 300*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "", got, "B blocks above the default threshold are dropped")

	opts := DefaultOpts
	opts.RDSThreshold = 0x1000
	d, chip, _ = readyDev(t, &opts)
	chip.QueueRDS(tp(0), tp(1), tp(2), tp(3))
	got, err = d.ReadRDS(context.Background(), 300*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "NEWS 880", got)
}

func TestReadRDSCancelled(t *testing.T) {
	d, _, _ := readyDev(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := d.ReadRDS(ctx, time.Second)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestPollRDS(t *testing.T) {
	d, chip, _ := readyDev(t, nil)
	const name = "KQED FM "
	for i := 0; i < 2; i++ {
		chip.QueueRDS(ps(0, name), ps(1, name), ps(2, name), ps(3, name))
	}
	chip.QueueRDS(ps(0, name))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dec := rds.NewDecoder()
	calls := 0
	err := d.PollRDS(ctx, dec, func(dec *rds.Decoder) {
		calls++
		if dec.ProgramService != "" {
			cancel()
		}
	})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, name, dec.ProgramService)
	assert.Equal(t, "KQED", dec.CallSign)
	assert.Equal(t, 2, calls, "call sign, then program service")
	assert.Equal(t, 9, dec.Groups[0])
}
