// Package si4703 drives the Silicon Labs Si4702/Si4703 FM receiver over I²C.
//
// The chip has no addressed register writes: a read always returns all 16
// registers starting at 0x0a, and a write always starts at 0x02 and
// auto-increments. The driver therefore keeps a shadow copy of the register
// file and every change follows the same bracket: read the whole image,
// change fields, write the six control registers back.
//
// Datasheet and programming guide:
// https://www.silabs.com/documents/public/data-sheets/Si4702-03-C19.pdf
// https://www.silabs.com/documents/public/application-notes/AN230.pdf
package si4703

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
)

// I2CAddr is the fixed I²C address of the chip.
const I2CAddr uint16 = 0x10

var (
	// ErrTimeout is returned when the chip does not confirm a tune or seek
	// within Opts.TuneTimeout.
	ErrTimeout = errors.New("si4703: hardware did not confirm completion")

	// ErrNotReady is returned by operations issued before PowerUp completed.
	ErrNotReady = errors.New("si4703: device not powered up")

	// ErrInvalidGPIO is returned for a GPIO index outside 1..3.
	ErrInvalidGPIO = errors.New("si4703: invalid GPIO index")
)

// PinOut is the part of gpio.PinOut the driver needs.
type PinOut interface {
	Out(l gpio.Level) error
}

// PinIn is the part of gpio.PinIn the driver needs.
type PinIn interface {
	Read() gpio.Level
}

// Opts holds the configuration applied at PowerUp and the timing of the
// blocking operations. Zero durations and thresholds take the value from
// DefaultOpts.
type Opts struct {
	Addr uint16

	// ResetPin drives RST. ModePin drives SDIO low during reset to select
	// the 2-wire interface; leave it nil when a pull-down or the board
	// already takes care of it. SDIO is the I²C data line once the chip is
	// out of reset, so ModePin must be able to let go of it: when it also
	// implements In, as every gpio.PinIO does, it is switched back to an
	// input as soon as RST is high. STCPin is GPIO2 used as the seek/tune
	// complete line (active low); when nil the status register is polled.
	ResetPin PinOut
	ModePin  PinOut
	STCPin   PinIn

	Band           Band
	Spacing        Spacing
	DeEmphasis     DeEmphasis
	Mono           bool
	ExtendedVolume bool
	SeekWrap       bool
	SeekThreshold  uint8 // SEEKTH, 0x00-0x7f
	SeekSNR        uint8 // SKSNR, 0 disables
	SeekImpulse    uint8 // SKCNT, 0 disables

	// Softmute lowers the volume on weak signals, by SoftmuteAttenuation at
	// SoftmuteRate. Off by default.
	Softmute            bool
	SoftmuteAttenuation SoftmuteAttenuation
	SoftmuteRate        SoftmuteRate

	// RDSThreshold drops RDSB blocks at or above this value while
	// assembling the program service name.
	RDSThreshold uint16

	OscillatorSettle time.Duration
	PowerUpDelay     time.Duration
	TuneTimeout      time.Duration
	PollInterval     time.Duration
	RDSReadyPause    time.Duration
	RDSIdlePause     time.Duration
	RDSPollInterval  time.Duration

	// WriteAttempts bounds how many times a control write is tried. Retries
	// back off exponentially between RetryMin and RetryMax.
	WriteAttempts int
	RetryMin      time.Duration
	RetryMax      time.Duration

	Logf func(format string, v ...interface{})
}

// DefaultOpts is the recommended default configuration.
//
// From AN230: RDS data appears every ~88 ms and RDSR stays set for at least
// 40 ms, so polling at 40 ms or less is sufficient.
var DefaultOpts = Opts{
	Addr:             I2CAddr,
	Band:             BandUSEurope,
	Spacing:          Spacing200kHz,
	DeEmphasis:       DeEmphasis75us,
	SeekWrap:         true,
	RDSThreshold:     500,
	OscillatorSettle: 500 * time.Millisecond,
	PowerUpDelay:     110 * time.Millisecond,
	TuneTimeout:      5 * time.Second,
	PollInterval:     10 * time.Millisecond,
	RDSReadyPause:    40 * time.Millisecond,
	RDSIdlePause:     30 * time.Millisecond,
	RDSPollInterval:  40 * time.Millisecond,
	WriteAttempts:    1,
	RetryMin:         time.Millisecond,
	RetryMax:         50 * time.Millisecond,
}

// validate fills zero values from DefaultOpts and clamps fields to what the
// registers can hold.
func (o *Opts) validate() {
	def := DefaultOpts
	if o.Addr == 0 {
		o.Addr = def.Addr
	}
	if o.Band > BandJapan {
		o.logf("band %d is reserved, using %s", o.Band, def.Band)
		o.Band = def.Band
	}
	if o.Spacing > Spacing50kHz {
		o.logf("spacing %d is reserved, using %s", o.Spacing, def.Spacing)
		o.Spacing = def.Spacing
	}
	if o.DeEmphasis > DeEmphasis50us {
		o.DeEmphasis = def.DeEmphasis
	}
	if o.SeekThreshold > 0x7f {
		o.logf("seek threshold %d > 127, adjusting to 127", o.SeekThreshold)
		o.SeekThreshold = 0x7f
	}
	if o.SeekSNR > 0xf {
		o.SeekSNR = 0xf
	}
	if o.SeekImpulse > 0xf {
		o.SeekImpulse = 0xf
	}
	if o.SoftmuteAttenuation > Softmute10dB {
		o.SoftmuteAttenuation = Softmute10dB
	}
	if o.SoftmuteRate > SoftmuteSlowest {
		o.SoftmuteRate = SoftmuteSlowest
	}
	if o.RDSThreshold == 0 {
		o.RDSThreshold = def.RDSThreshold
	}
	for _, d := range []struct {
		v   *time.Duration
		def time.Duration
	}{
		{&o.OscillatorSettle, def.OscillatorSettle},
		{&o.PowerUpDelay, def.PowerUpDelay},
		{&o.TuneTimeout, def.TuneTimeout},
		{&o.PollInterval, def.PollInterval},
		{&o.RDSReadyPause, def.RDSReadyPause},
		{&o.RDSIdlePause, def.RDSIdlePause},
		{&o.RDSPollInterval, def.RDSPollInterval},
		{&o.RetryMin, def.RetryMin},
		{&o.RetryMax, def.RetryMax},
	} {
		if *d.v <= 0 {
			*d.v = d.def
		}
	}
	if o.WriteAttempts < 1 {
		o.WriteAttempts = 1
	}
}

func (o *Opts) logf(format string, v ...interface{}) {
	if o.Logf != nil {
		o.Logf(format, v...)
	}
}

// State is the power-up state of the device.
type State uint8

const (
	StateReset State = iota
	StateOscillatorEnabling
	StateConfiguring
	StateReady
)

func (s State) String() string {
	switch s {
	case StateReset:
		return "reset"
	case StateOscillatorEnabling:
		return "oscillator enabling"
	case StateConfiguring:
		return "configuring"
	case StateReady:
		return "ready"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Dev is a handle to an Si4703.
//
// All operations are serialized: a register bracket started by one caller
// always completes before another caller touches the shadow.
type Dev struct {
	c      i2c.Dev
	opts   Opts
	sem    *semaphore.Weighted
	state  State
	wrap   bool
	shadow Shadow

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewI2C returns a handle to an Si4703 on b. The chip is not touched until
// PowerUp.
//
// opts may be nil, in which case DefaultOpts is used.
func NewI2C(b i2c.Bus, opts *Opts) (*Dev, error) {
	if b == nil {
		return nil, errors.New("si4703: nil bus")
	}
	o := DefaultOpts
	if opts != nil {
		o = *opts
	}
	o.validate()
	if o.Addr > 0x7f {
		return nil, fmt.Errorf("si4703: invalid address 0x%x", o.Addr)
	}
	return &Dev{
		c:     i2c.Dev{Bus: b, Addr: o.Addr},
		opts:  o,
		sem:   semaphore.NewWeighted(1),
		wrap:  o.SeekWrap,
		now:   time.Now,
		sleep: sleepCtx,
	}, nil
}

// String implements conn.Resource.
func (d *Dev) String() string {
	return fmt.Sprintf("Si4703{%s}", &d.c)
}

// Halt powers the tuner down.
//
// Halt implements conn.Resource.
func (d *Dev) Halt() error {
	return d.PowerDown()
}

// State returns where the device is in its power-up sequence.
func (d *Dev) State() State {
	if err := d.lock(context.Background()); err != nil {
		return StateReset
	}
	defer d.unlock()
	return d.state
}

// Shadow returns a copy of the register image as of the last transaction.
func (d *Dev) Shadow() Shadow {
	if err := d.lock(context.Background()); err != nil {
		return Shadow{}
	}
	defer d.unlock()
	return d.shadow
}

// PowerUp resets the chip into 2-wire mode, starts the crystal oscillator
// and applies the configuration. The oscillator has no ready flag, so the
// configuration write only happens after OscillatorSettle has elapsed.
func (d *Dev) PowerUp(ctx context.Context) (err error) {
	if err = d.lock(ctx); err != nil {
		return err
	}
	defer d.unlock()
	defer func() {
		if err != nil {
			d.logf("power up failed in state %s: %v", d.state, err)
			d.state = StateReset
		}
	}()

	d.state = StateReset
	if err = d.reset(ctx); err != nil {
		return err
	}

	d.state = StateOscillatorEnabling
	if err = d.readAll(); err != nil {
		return err
	}
	d.shadow.SetFlag(XOSCEN, true)
	if err = d.writeControl(ctx); err != nil {
		return err
	}
	if err = d.sleep(ctx, d.opts.OscillatorSettle); err != nil {
		return err
	}

	d.state = StateConfiguring
	if err = d.readAll(); err != nil {
		return err
	}
	d.configure()
	if err = d.writeControl(ctx); err != nil {
		return err
	}
	if err = d.sleep(ctx, d.opts.PowerUpDelay); err != nil {
		return err
	}

	d.state = StateReady
	d.logf("powered up: band %s, spacing %s", d.opts.Band, d.opts.Spacing)
	return nil
}

// PowerDown disables the chip. RDS is turned off first as recommended by
// AN230. The oscillator keeps running so a later PowerUp is quick.
func (d *Dev) PowerDown() error {
	ctx := context.Background()
	if err := d.lock(ctx); err != nil {
		return err
	}
	defer d.unlock()
	if err := d.readAll(); err != nil {
		return err
	}
	d.shadow.SetFlag(RDS, false)
	d.shadow.SetFlag(ENABLE, true)
	d.shadow.SetFlag(DISABLE, true)
	if err := d.writeControl(ctx); err != nil {
		return err
	}
	d.state = StateReset
	d.logf("powered down")
	return nil
}

// reset puts the chip in 2-wire mode: SDIO must be low while RST rises.
func (d *Dev) reset(ctx context.Context) error {
	const settle = time.Millisecond
	if d.opts.ResetPin == nil {
		d.logf("no reset pin, assuming the chip is already in 2-wire mode")
		return nil
	}
	if d.opts.ModePin != nil {
		if err := d.opts.ModePin.Out(gpio.Low); err != nil {
			return fmt.Errorf("si4703: mode select: %w", err)
		}
	}
	if err := d.opts.ResetPin.Out(gpio.Low); err != nil {
		return fmt.Errorf("si4703: reset: %w", err)
	}
	if err := d.sleep(ctx, settle); err != nil {
		return err
	}
	if err := d.opts.ResetPin.Out(gpio.High); err != nil {
		return fmt.Errorf("si4703: reset: %w", err)
	}
	if p, ok := d.opts.ModePin.(releaser); ok {
		if err := p.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
			return fmt.Errorf("si4703: release mode select: %w", err)
		}
	}
	return d.sleep(ctx, settle)
}

// releaser is a mode select line that can stop driving SDIO.
type releaser interface {
	In(pull gpio.Pull, edge gpio.Edge) error
}

// configure sets up the power configuration after the oscillator is stable.
func (d *Dev) configure() {
	s := &d.shadow
	o := &d.opts

	s.SetFlag(ENABLE, true)
	s.SetFlag(DISABLE, false)
	s.SetFlag(DMUTE, true)
	s.SetFlag(DSMUTE, !o.Softmute)
	s.SetFlag(MONO, o.Mono)
	s.SetFlag(SKMODE, !d.wrap)

	s.SetFlag(RDS, true)
	s.Set(DE, uint16(o.DeEmphasis))
	if o.STCPin != nil {
		s.SetFlag(STCIEN, true)
		s.Set(GPIO2, uint16(GPIOIndicator))
	}

	s.Set(SPACE, uint16(o.Spacing))
	s.Set(BAND, uint16(o.Band))
	s.Set(VOLUME, 0)
	s.Set(SEEKTH, uint16(o.SeekThreshold))

	s.SetFlag(VOLEXT, o.ExtendedVolume)
	s.Set(SKSNR, uint16(o.SeekSNR))
	s.Set(SKCNT, uint16(o.SeekImpulse))
	s.Set(SMUTEA, uint16(o.SoftmuteAttenuation))
	s.Set(SMUTER, uint16(o.SoftmuteRate))
}

func (d *Dev) lock(ctx context.Context) error {
	return d.sem.Acquire(ctx, 1)
}

func (d *Dev) unlock() {
	d.sem.Release(1)
}

// lockReady locks the device and checks it is powered up.
func (d *Dev) lockReady(ctx context.Context) error {
	if err := d.lock(ctx); err != nil {
		return err
	}
	if d.state != StateReady {
		d.unlock()
		return ErrNotReady
	}
	return nil
}

func (d *Dev) logf(format string, v ...interface{}) {
	d.opts.logf(format, v...)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var _ conn.Resource = &Dev{}
