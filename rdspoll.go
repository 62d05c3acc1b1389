package si4703

import (
	"context"
	"time"

	"github.com/bartgrantham/si4703/rds"
)

// ReadRDS polls the chip until the 8 character program service name has been
// assembled or timeout elapsed. On timeout the partial name is dropped and ""
// is returned with a nil error; only bus failures and ctx cancellation are
// errors.
func (d *Dev) ReadRDS(ctx context.Context, timeout time.Duration) (string, error) {
	if err := d.lockReady(ctx); err != nil {
		return "", err
	}
	defer d.unlock()

	asm := rds.Assembler{Threshold: d.opts.RDSThreshold}
	deadline := d.now().Add(timeout)
	for !asm.Complete() && d.now().Before(deadline) {
		if err := d.readAll(); err != nil {
			return "", err
		}
		pause := d.opts.RDSIdlePause
		if d.shadow.Flag(RDSR) {
			asm.Add(d.shadow.Word(RDSB), d.shadow.Word(RDSD))
			// give RDSR time to clear before the next read
			pause = d.opts.RDSReadyPause
		}
		if err := d.sleep(ctx, pause); err != nil {
			return "", err
		}
	}
	if !asm.Complete() {
		d.logf("RDS: no complete program service name within %s", timeout)
	}
	return asm.Message(), nil
}

// PollRDS feeds every RDS group the chip receives into dec until ctx is
// done, calling changed (if not nil) whenever a published field of dec
// changed. The device is only locked for the duration of each read so other
// operations can interleave.
func (d *Dev) PollRDS(ctx context.Context, dec *rds.Decoder, changed func(*rds.Decoder)) error {
	next := d.now()
	for {
		g, ready, err := d.pollGroup(ctx)
		if err != nil {
			return err
		}
		if ready && dec.Update(g) && changed != nil {
			changed(dec)
		}
		next = next.Add(d.opts.RDSPollInterval)
		if err := d.sleep(ctx, next.Sub(d.now())); err != nil {
			return err
		}
	}
}

func (d *Dev) pollGroup(ctx context.Context) (rds.Group, bool, error) {
	if err := d.lockReady(ctx); err != nil {
		return rds.Group{}, false, err
	}
	defer d.unlock()
	if err := d.readAll(); err != nil {
		return rds.Group{}, false, err
	}
	s := &d.shadow
	g := rds.Group{A: s.Word(RDSA), B: s.Word(RDSB), C: s.Word(RDSC), D: s.Word(RDSD)}
	return g, s.Flag(RDSR), nil
}
