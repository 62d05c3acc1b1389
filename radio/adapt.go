package radio

import (
	"fmt"
	"io"

	gpiodrv "gobot.io/x/gobot/drivers/gpio"
	"gobot.io/x/gobot/drivers/i2c"
	"periph.io/x/conn/v3/gpio"
	periphi2c "periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// connBus presents a gobot connection, already bound to one address, as a
// periph bus.
type connBus struct {
	conn i2c.Connection
	addr uint16
}

func (b *connBus) String() string {
	return fmt.Sprintf("gobot-i2c(0x%02x)", b.addr)
}

// SetSpeed is a no-op: gobot adaptors fix the bus speed.
func (b *connBus) SetSpeed(physic.Frequency) error {
	return nil
}

func (b *connBus) Tx(addr uint16, w, r []byte) error {
	if addr != b.addr {
		return fmt.Errorf("connection is bound to 0x%02x, not 0x%02x", b.addr, addr)
	}
	if len(w) != 0 {
		n, err := b.conn.Write(w)
		if err != nil {
			return err
		}
		if n != len(w) {
			return io.ErrShortWrite
		}
	}
	if len(r) != 0 {
		n, err := b.conn.Read(r)
		if err != nil {
			return err
		}
		if n != len(r) {
			return fmt.Errorf("failed to read %d bytes from the line, read %d", len(r), n)
		}
	}
	return nil
}

type outPin struct {
	dw   gpiodrv.DigitalWriter
	name string
}

func (p *outPin) Out(l gpio.Level) error {
	v := byte(low)
	if l == gpio.High {
		v = high
	}
	return p.dw.DigitalWrite(p.name, v)
}

type inPin struct {
	dr   gpiodrv.DigitalReader
	name string
	log  func(format string, v ...interface{})
}

// Read reports High on error, so a broken line looks like an operation
// that never completes.
func (p *inPin) Read() gpio.Level {
	v, err := p.dr.DigitalRead(p.name)
	if err != nil {
		p.log("Reading pin %s: %v\n", p.name, err)
		return gpio.High
	}
	return v != low
}

var _ periphi2c.Bus = &connBus{}
