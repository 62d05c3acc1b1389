package si4703

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bartgrantham/si4703/internal/fakechip"
)

func TestSetVolume(t *testing.T) {
	d, chip, _ := readyDev(t, nil)
	for _, tt := range []struct{ in, want int }{
		{0, 0},
		{7, 7},
		{15, 15},
		{-3, 0},
		{16, 15},
		{100, 15},
	} {
		require.NoError(t, d.SetVolume(tt.in))
		v, err := d.Volume()
		require.NoError(t, err)
		assert.Equal(t, tt.want, v, "SetVolume(%d)", tt.in)
		assert.Equal(t, uint16(tt.want), chip.Reg(int(SysConfig2))&0xf)
	}
}

func TestSetGPIO(t *testing.T) {
	d, chip, _ := readyDev(t, nil)
	require.NoError(t, d.SetGPIO(1, GPIOLow))
	require.NoError(t, d.SetGPIO(3, GPIOIndicator))
	before := chip.Reg(int(SysConfig1))

	require.NoError(t, d.SetGPIO(2, GPIOHigh))
	after := chip.Reg(int(SysConfig1))
	assert.Equal(t, before&^0x000c, after&^0x000c, "only GPIO2 bits changed")
	assert.Equal(t, uint16(0x000c), after&0x000c)

	for n, want := range map[int]GPIOMode{1: GPIOLow, 2: GPIOHigh, 3: GPIOIndicator} {
		m, err := d.GPIO(n)
		require.NoError(t, err)
		assert.Equal(t, want, m, "GPIO%d", n)
	}
}

func TestSetGPIOInvalid(t *testing.T) {
	d, chip, _ := readyDev(t, nil)
	reads, writes := chip.Reads, chip.Writes
	for _, n := range []int{0, 4, -1} {
		err := d.SetGPIO(n, GPIOHigh)
		assert.True(t, errors.Is(err, ErrInvalidGPIO), "GPIO%d", n)
		_, err = d.GPIO(n)
		assert.True(t, errors.Is(err, ErrInvalidGPIO), "GPIO%d", n)
	}
	assert.Equal(t, reads, chip.Reads, "no bus traffic")
	assert.Equal(t, writes, chip.Writes, "no bus traffic")
}

func TestGPIOModeString(t *testing.T) {
	assert.Equal(t, "high-z", GPIOHighZ.String())
	assert.Equal(t, "indicator", GPIOIndicator.String())
	assert.Equal(t, "GPIOMode(7)", GPIOMode(7).String())
}

func TestMuteMono(t *testing.T) {
	d, chip, _ := readyDev(t, nil)
	assert.NotZero(t, chip.Reg(int(PowerCfg))&0x4000, "unmuted after power up")

	require.NoError(t, d.SetMute(true))
	assert.Zero(t, chip.Reg(int(PowerCfg))&0x4000)
	require.NoError(t, d.SetMono(true))
	assert.NotZero(t, chip.Reg(int(PowerCfg))&0x2000)

	require.NoError(t, d.SetMute(false))
	require.NoError(t, d.SetMono(false))
	assert.Equal(t, uint16(0x4000), chip.Reg(int(PowerCfg))&0x6000)
}

func TestIdentity(t *testing.T) {
	chip := fakechip.New()
	d, _ := newDev(t, chip, nil)

	id, err := d.DeviceID()
	require.NoError(t, err)
	assert.Equal(t, DeviceID{Manufacturer: 0x242, Part: 1}, id)
	assert.Equal(t, "Si4702/03 (part 0x1, manufacturer 0x242)", id.String())

	chipID, err := d.ChipID()
	require.NoError(t, err)
	assert.Equal(t, ChipID{Firmware: 0, Device: 8, Revision: 4}, chipID)
	assert.Equal(t, "Si4703 (off) rev C firmware 0", chipID.String())

	chip.SetReg(int(ChipIDReg), 0x1253)
	chipID, err = d.ChipID()
	require.NoError(t, err)
	assert.Equal(t, "Si4703 (on) rev C firmware 19", chipID.String())
}

func TestStatus(t *testing.T) {
	d, chip, _ := readyDev(t, nil)
	chip.RSSI = 37
	_, err := d.SetChannel(context.Background(), 40)
	require.NoError(t, err)
	chip.SetReg(int(StatusRSSI), chip.Reg(int(StatusRSSI))|0x0800|0x0600)
	chip.SetReg(int(ReadChan), chip.Reg(int(ReadChan))|0xd000)

	st, err := d.Status()
	require.NoError(t, err)
	assert.Equal(t, Status{
		RSSI:        37,
		Stereo:      true,
		RDSSynced:   true,
		BlockErrors: [4]uint8{3, 3, 1, 0},
		Channel:     40,
	}, st)
	assert.Equal(t, "channel 40, RSSI 37 dBµV, stereo, RDS synced", st.String())
}
