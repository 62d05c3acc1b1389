package si4703

import (
	"context"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// Direction is the seek direction.
type Direction uint8

const (
	SeekDown Direction = 0
	SeekUp   Direction = 1
)

func (d Direction) String() string {
	if d == SeekUp {
		return "up"
	}
	return "down"
}

// The STC line is a short low pulse, so it is sampled much faster than the
// status register is polled.
const stcPinPoll = 500 * time.Microsecond

// Channel returns the channel the chip is currently tuned to.
func (d *Dev) Channel() (int, error) {
	if err := d.lock(context.Background()); err != nil {
		return 0, err
	}
	defer d.unlock()
	if err := d.readAll(); err != nil {
		return 0, err
	}
	return int(d.shadow.Get(READCHAN)), nil
}

// Frequency returns the frequency the chip is currently tuned to.
func (d *Dev) Frequency() (physic.Frequency, error) {
	if err := d.lock(context.Background()); err != nil {
		return 0, err
	}
	defer d.unlock()
	if err := d.readAll(); err != nil {
		return 0, err
	}
	return d.frequencyOf(int(d.shadow.Get(READCHAN))), nil
}

// SetChannel tunes to channel ch, where frequency = bottom of band + ch *
// spacing. ch saturates to the band edges. It returns the channel read back
// from the chip once tuning has completed.
func (d *Dev) SetChannel(ctx context.Context, ch int) (int, error) {
	if err := d.lockReady(ctx); err != nil {
		return 0, err
	}
	defer d.unlock()
	got, err := d.tune(ctx, func(Band, Spacing) int { return ch })
	if err != nil {
		return 0, fmt.Errorf("si4703: tune channel %d: %w", ch, err)
	}
	return got, nil
}

// SetFrequency tunes to the channel nearest to f. f saturates to the band
// edges. It returns the frequency the chip actually tuned to.
func (d *Dev) SetFrequency(ctx context.Context, f physic.Frequency) (physic.Frequency, error) {
	if err := d.lockReady(ctx); err != nil {
		return 0, err
	}
	defer d.unlock()
	got, err := d.tune(ctx, func(b Band, s Spacing) int { return b.Channel(f, s) })
	if err != nil {
		return 0, fmt.Errorf("si4703: tune %s: %w", f, err)
	}
	return d.frequencyOf(got), nil
}

// IncChannel tunes one step up, stopping at the top of the band.
func (d *Dev) IncChannel(ctx context.Context) (physic.Frequency, error) {
	return d.step(ctx, +1)
}

// DecChannel tunes one step down, stopping at the bottom of the band.
func (d *Dev) DecChannel(ctx context.Context) (physic.Frequency, error) {
	return d.step(ctx, -1)
}

func (d *Dev) step(ctx context.Context, delta int) (physic.Frequency, error) {
	if err := d.lockReady(ctx); err != nil {
		return 0, err
	}
	defer d.unlock()
	got, err := d.tune(ctx, func(Band, Spacing) int {
		return int(d.shadow.Get(READCHAN)) + delta
	})
	if err != nil {
		return 0, fmt.Errorf("si4703: step %+d: %w", delta, err)
	}
	return d.frequencyOf(got), nil
}

// SetSeekWrap selects whether seeks wrap around at the band edges (true) or
// stop there (false). It takes effect on the next seek.
func (d *Dev) SetSeekWrap(wrap bool) {
	if err := d.lock(context.Background()); err != nil {
		return
	}
	d.wrap = wrap
	d.unlock()
}

// SeekUp seeks to the next station above the current one.
func (d *Dev) SeekUp(ctx context.Context) (physic.Frequency, error) {
	return d.Seek(ctx, SeekUp)
}

// SeekDown seeks to the next station below the current one.
func (d *Dev) SeekDown(ctx context.Context) (physic.Frequency, error) {
	return d.Seek(ctx, SeekDown)
}

// Seek lets the chip scan for the next receivable station in dir. It
// returns 0 when the chip reports a seek failure or band limit, and the
// tuned frequency otherwise.
func (d *Dev) Seek(ctx context.Context, dir Direction) (physic.Frequency, error) {
	if err := d.lockReady(ctx); err != nil {
		return 0, err
	}
	defer d.unlock()

	if err := d.readAll(); err != nil {
		return 0, err
	}
	d.shadow.SetFlag(SEEKUP, dir == SeekUp)
	d.shadow.SetFlag(SKMODE, !d.wrap)
	failed, err := d.bracket(ctx, SEEK)
	if err != nil {
		return 0, fmt.Errorf("si4703: seek %s: %w", dir, err)
	}
	if failed {
		d.logf("seek %s: no station found", dir)
		return 0, nil
	}
	if err := d.readAll(); err != nil {
		return 0, err
	}
	return d.frequencyOf(int(d.shadow.Get(READCHAN))), nil
}

// tune reads the image, sets the channel returned by target (clamped to the
// band) and runs the tune bracket. It returns READCHAN once STC cleared.
func (d *Dev) tune(ctx context.Context, target func(Band, Spacing) int) (int, error) {
	if err := d.readAll(); err != nil {
		return 0, err
	}
	b, s := d.band(), d.spacing()
	ch := clamp(target(b, s), 0, b.MaxChannel(s))
	d.shadow.Set(CHAN, uint16(ch))
	if _, err := d.bracket(ctx, TUNE); err != nil {
		return 0, err
	}
	got := int(d.shadow.Get(READCHAN))
	d.logf("tuned to channel %d (%s), requested %d", got, d.frequencyOf(got), ch)
	return got, nil
}

// bracket runs one tune or seek on an image already prepared by the caller:
// set start, commit, wait for STC, read back, clear start, commit, wait for
// STC to clear. It reports SFBL as it was before start was cleared.
//
// Once start has been committed every failure clears it again, otherwise the
// next operation would find it set and never produce the 0 to 1 transition
// the chip starts on.
func (d *Dev) bracket(ctx context.Context, start Field) (bool, error) {
	if d.shadow.Flag(start) {
		// left over from an operation whose cleanup failed
		d.logf("%s start bit still set, clearing it first", start.Reg)
		d.shadow.SetFlag(start, false)
		if err := d.writeControl(ctx); err != nil {
			return false, err
		}
		if err := d.waitSTC(ctx, false); err != nil {
			return false, err
		}
	}

	d.shadow.SetFlag(start, true)
	if err := d.writeControl(ctx); err != nil {
		d.abort(start)
		return false, err
	}
	if err := d.waitComplete(ctx); err != nil {
		d.abort(start)
		return false, err
	}

	if err := d.readAll(); err != nil {
		d.abort(start)
		return false, err
	}
	failed := d.shadow.Flag(SFBL)
	d.shadow.SetFlag(start, false)
	if err := d.writeControl(ctx); err != nil {
		d.abort(start)
		return failed, err
	}

	// The STC line is only an approximation of the status bit, so the bit
	// itself is checked before the next operation may start.
	if err := d.waitSTC(ctx, false); err != nil {
		return failed, err
	}
	return failed, nil
}

// waitComplete blocks until the chip signals seek/tune complete, on the STC
// line when there is one and on the status register otherwise.
//
// The line only pulses low for a few milliseconds, so when the pulse is
// missed the status bit has the final word.
func (d *Dev) waitComplete(ctx context.Context) error {
	pin := d.opts.STCPin
	if pin == nil {
		return d.waitSTC(ctx, true)
	}
	deadline := d.now().Add(d.opts.TuneTimeout)
	for pin.Read() != gpio.Low {
		if !d.now().Before(deadline) {
			if err := d.readAll(); err != nil {
				return err
			}
			if d.shadow.Flag(STC) {
				d.logf("STC line never went low, status register says complete")
				return nil
			}
			return ErrTimeout
		}
		if err := d.sleep(ctx, stcPinPoll); err != nil {
			return err
		}
	}
	return nil
}

// waitSTC polls the status register until STC equals want.
func (d *Dev) waitSTC(ctx context.Context, want bool) error {
	deadline := d.now().Add(d.opts.TuneTimeout)
	for {
		if err := d.readAll(); err != nil {
			return err
		}
		if d.shadow.Flag(STC) == want {
			return nil
		}
		if !d.now().Before(deadline) {
			return ErrTimeout
		}
		if err := d.sleep(ctx, d.opts.PollInterval); err != nil {
			return err
		}
	}
}

// abort clears a start bit left set by a tune or seek that never completed.
func (d *Dev) abort(start Field) {
	if err := d.readAll(); err != nil {
		d.logf("abort %s: %v", start.Reg, err)
		return
	}
	d.shadow.SetFlag(start, false)
	if err := d.writeControl(context.Background()); err != nil {
		d.logf("abort %s: %v", start.Reg, err)
	}
}

func (d *Dev) band() Band {
	return Band(d.shadow.Get(BAND))
}

func (d *Dev) spacing() Spacing {
	return Spacing(d.shadow.Get(SPACE))
}

func (d *Dev) frequencyOf(ch int) physic.Frequency {
	return d.band().Frequency(ch, d.spacing())
}
