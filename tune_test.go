package si4703

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/physic"

	"github.com/bartgrantham/si4703/internal/fakechip"
)

const kHz = physic.KiloHertz

func TestSetChannel(t *testing.T) {
	d, chip, _ := readyDev(t, nil)
	ctx := context.Background()
	for _, tt := range []struct{ in, want int }{
		{40, 40},
		{0, 0},
		{102, 102},
		{-5, 0},
		{500, 102},
	} {
		got, err := d.SetChannel(ctx, tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "SetChannel(%d)", tt.in)
		ch, err := d.Channel()
		require.NoError(t, err)
		assert.Equal(t, tt.want, ch)
		assert.Equal(t, uint16(tt.want), chip.Reg(int(Channel)), "CHAN set, TUNE cleared")
		assert.Zero(t, chip.Reg(int(StatusRSSI))&0x4000, "STC cleared")
	}
}

func TestSetFrequency(t *testing.T) {
	d, _, _ := readyDev(t, nil)
	ctx := context.Background()
	for _, tt := range []struct{ in, want physic.Frequency }{
		{95500 * kHz, 95500 * kHz},
		{95550 * kHz, 95500 * kHz},
		{95610 * kHz, 95700 * kHz},
		{80 * physic.MegaHertz, 87500 * kHz},
		{110 * physic.MegaHertz, 107900 * kHz},
	} {
		got, err := d.SetFrequency(ctx, tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "SetFrequency(%s)", tt.in)
		f, err := d.Frequency()
		require.NoError(t, err)
		assert.Equal(t, tt.want, f)
	}
}

func TestSetFrequencyEurope(t *testing.T) {
	opts := DefaultOpts
	opts.Spacing = Spacing100kHz
	d, chip, _ := readyDev(t, &opts)
	got, err := d.SetFrequency(context.Background(), 99900*kHz)
	require.NoError(t, err)
	assert.Equal(t, 99900*kHz, got)
	assert.Equal(t, uint16(124), chip.Reg(int(ReadChan))&0x3ff)
}

func TestIncDecChannel(t *testing.T) {
	d, _, _ := readyDev(t, nil)
	ctx := context.Background()

	f, err := d.DecChannel(ctx)
	require.NoError(t, err)
	assert.Equal(t, 87500*kHz, f, "stays at the bottom")
	f, err = d.IncChannel(ctx)
	require.NoError(t, err)
	assert.Equal(t, 87700*kHz, f)

	_, err = d.SetChannel(ctx, 102)
	require.NoError(t, err)
	f, err = d.IncChannel(ctx)
	require.NoError(t, err)
	assert.Equal(t, 107900*kHz, f, "stays at the top")
	f, err = d.DecChannel(ctx)
	require.NoError(t, err)
	assert.Equal(t, 107700*kHz, f)
}

func TestSeekWrapsAtTop(t *testing.T) {
	d, chip, _ := readyDev(t, nil)
	ctx := context.Background()
	_, err := d.SetChannel(ctx, 102)
	require.NoError(t, err)

	f, err := d.SeekUp(ctx)
	require.NoError(t, err)
	assert.Equal(t, 87500*kHz, f)
	assert.Zero(t, chip.Reg(int(PowerCfg))&0x0100, "SEEK cleared")
	assert.Zero(t, chip.Reg(int(PowerCfg))&0x0400, "SKMODE 0 wraps")
}

func TestSeekStopsAtBandLimit(t *testing.T) {
	d, chip, _ := readyDev(t, nil)
	ctx := context.Background()
	_, err := d.SetChannel(ctx, 102)
	require.NoError(t, err)

	d.SetSeekWrap(false)
	f, err := d.SeekUp(ctx)
	require.NoError(t, err)
	assert.Zero(t, f)
	assert.NotZero(t, chip.Reg(int(PowerCfg))&0x0400, "SKMODE 1 stops")
	assert.Equal(t, uint16(102), chip.Reg(int(ReadChan))&0x3ff, "READCHAN still holds a channel")
}

func TestSeekFailure(t *testing.T) {
	d, chip, _ := readyDev(t, nil)
	ctx := context.Background()
	_, err := d.SetChannel(ctx, 40)
	require.NoError(t, err)

	chip.Stations = []int{1000}
	f, err := d.SeekDown(ctx)
	require.NoError(t, err)
	assert.Zero(t, f)
	assert.Zero(t, chip.Reg(int(StatusRSSI))&0x6000, "STC and SFBL cleared")
}

func TestSeekFindsStation(t *testing.T) {
	d, chip, _ := readyDev(t, nil)
	ctx := context.Background()
	chip.Stations = []int{12, 40, 77}
	_, err := d.SetChannel(ctx, 40)
	require.NoError(t, err)

	f, err := d.Seek(ctx, SeekDown)
	require.NoError(t, err)
	assert.Equal(t, 89900*kHz, f)
	f, err = d.Seek(ctx, SeekUp)
	require.NoError(t, err)
	assert.Equal(t, 95500*kHz, f)
	f, err = d.Seek(ctx, SeekUp)
	require.NoError(t, err)
	assert.Equal(t, 102900*kHz, f)
	assert.NotZero(t, chip.Reg(int(PowerCfg))&0x0200, "SEEKUP")
}

func TestTuneTimeout(t *testing.T) {
	opts := DefaultOpts
	opts.TuneTimeout = 50 * time.Millisecond
	d, chip, clk := readyDev(t, &opts)
	chip.HoldSTC = true

	start := clk.t
	_, err := d.SetChannel(context.Background(), 30)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout))
	assert.True(t, clk.t.Sub(start) >= 50*time.Millisecond)
	assert.Zero(t, chip.Reg(int(Channel))&0x8000, "TUNE cleared after the timeout")

	chip.HoldSTC = false
	ch, err := d.SetChannel(context.Background(), 30)
	require.NoError(t, err)
	assert.Equal(t, 30, ch)
}

func TestSeekTimeoutWithPin(t *testing.T) {
	opts := DefaultOpts
	opts.TuneTimeout = 20 * time.Millisecond
	d, chip, _ := readyDev(t, &opts)
	// the pin only matters after PowerUp
	d.opts.STCPin = chip.STCPin()
	chip.HoldSTC = true

	_, err := d.SeekUp(context.Background())
	assert.True(t, errors.Is(err, ErrTimeout))
	assert.Zero(t, chip.Reg(int(PowerCfg))&0x0100, "SEEK cleared after the timeout")
}

func TestTuneMissedPulse(t *testing.T) {
	opts := DefaultOpts
	opts.TuneTimeout = 20 * time.Millisecond
	d, chip, _ := readyDev(t, &opts)
	d.opts.STCPin = &gpiotest.Pin{N: "GPIO2", L: gpio.High}

	ch, err := d.SetChannel(context.Background(), 30)
	require.NoError(t, err, "the status register confirms completion")
	assert.Equal(t, 30, ch)
	assert.Equal(t, uint16(30), chip.Reg(int(ReadChan))&0x3ff)
	assert.Zero(t, chip.Reg(int(Channel))&0x8000)
}

func TestTuneReadBackFailure(t *testing.T) {
	d, chip, _ := readyDev(t, nil)
	ctx := context.Background()
	// read 1 prepares the image, read 2 sees STC, read 3 fetches the result
	chip.FailReadAt = chip.Reads + 3

	_, err := d.SetChannel(ctx, 40)
	assert.True(t, errors.Is(err, fakechip.ErrInjected))
	assert.Zero(t, chip.Reg(int(Channel))&0x8000, "TUNE cleared after the failure")

	ch, err := d.SetChannel(ctx, 60)
	require.NoError(t, err)
	assert.Equal(t, 60, ch)
	assert.Equal(t, uint16(60), chip.Reg(int(ReadChan))&0x3ff)
}

func TestTuneClearFailure(t *testing.T) {
	d, chip, _ := readyDev(t, nil)
	ctx := context.Background()
	// write 1 starts the tune, write 2 clears TUNE
	chip.FailWriteAt = chip.Writes + 2

	_, err := d.SetChannel(ctx, 40)
	assert.True(t, errors.Is(err, fakechip.ErrInjected))
	assert.Zero(t, chip.Reg(int(Channel))&0x8000, "TUNE cleared after the failure")

	ch, err := d.SetChannel(ctx, 60)
	require.NoError(t, err)
	assert.Equal(t, 60, ch)
}

func TestStaleStartBit(t *testing.T) {
	d, chip, _ := readyDev(t, nil)
	ctx := context.Background()
	chip.SetReg(int(Channel), 0x8000|40)
	chip.SetReg(int(StatusRSSI), chip.Reg(int(StatusRSSI))|0x4000)

	ch, err := d.SetChannel(ctx, 60)
	require.NoError(t, err)
	assert.Equal(t, 60, ch)
	assert.Equal(t, uint16(60), chip.Reg(int(ReadChan))&0x3ff)
	assert.Zero(t, chip.Reg(int(Channel))&0x8000)

	chip.SetReg(int(PowerCfg), chip.Reg(int(PowerCfg))|0x0100)
	chip.SetReg(int(StatusRSSI), chip.Reg(int(StatusRSSI))|0x4000)
	f, err := d.SeekUp(ctx)
	require.NoError(t, err)
	assert.Equal(t, 87500*kHz+61*200*kHz, f)
	assert.Zero(t, chip.Reg(int(PowerCfg))&0x0100)
}

func TestTuneWithPin(t *testing.T) {
	d, chip, clk := readyDev(t, nil)
	d.opts.STCPin = chip.STCPin()
	ch, err := d.SetChannel(context.Background(), 64)
	require.NoError(t, err)
	assert.Equal(t, 64, ch)
	assert.Empty(t, clk.slept, "the pin was already low")
}

func TestTuneCancelled(t *testing.T) {
	d, chip, _ := readyDev(t, nil)
	chip.HoldSTC = true
	ctx, cancel := context.WithCancel(context.Background())
	d.sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}
	_, err := d.SetChannel(ctx, 10)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestDirectionString(t *testing.T) {
	assert.Equal(t, "up", SeekUp.String())
	assert.Equal(t, "down", SeekDown.String())
}
