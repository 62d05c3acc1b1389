package si4703

import (
	"context"
	"fmt"
	"io"

	"github.com/jpillora/backoff"
)

// readAll replaces the whole shadow with one 32 byte read burst.
//
// The burst starts at 0x0a and wraps to 0x00; decode maps it back to
// logical order.
func (d *Dev) readAll() error {
	var buf [readBurstLen]byte
	if err := d.c.Tx(nil, buf[:]); err != nil {
		return fmt.Errorf("si4703: read registers: %w", err)
	}
	d.shadow.decode(buf[:])
	return nil
}

// writeControl commits registers 0x02..0x07 in one 12 byte write burst.
//
// The shadow is left as is on failure; the caller decides whether to start
// over with a fresh readAll.
func (d *Dev) writeControl(ctx context.Context) error {
	var buf [writeBurstLen]byte
	d.shadow.encodeControl(buf[:])

	b := backoff.Backoff{
		Min:    d.opts.RetryMin,
		Max:    d.opts.RetryMax,
		Factor: 2,
	}
	for attempt := 1; ; attempt++ {
		err := d.write(buf[:])
		if err == nil {
			return nil
		}
		if attempt >= d.opts.WriteAttempts {
			return fmt.Errorf("si4703: write control registers: %w", err)
		}
		wait := b.Duration()
		d.logf("write attempt %d/%d failed: %v, retrying in %s", attempt, d.opts.WriteAttempts, err, wait)
		if err := d.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (d *Dev) write(buf []byte) error {
	n, err := d.c.Write(buf)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return io.ErrShortWrite
	}
	return nil
}
