// Package fakechip simulates an Si4703 behind a periph i2c.Bus.
//
// It models just enough of the chip for the driver's tests: the wire order
// of reads and writes, TUNE and SEEK with the STC handshake, the seek band
// limit, and a queue of RDS groups delivered one per read.
package fakechip

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/physic"
)

// Register indexes and bits, duplicated here so the simulation does not
// depend on the package under test.
const (
	regDeviceID   = 0x0
	regChipID     = 0x1
	regPowerCfg   = 0x2
	regChannel    = 0x3
	regSysConfig2 = 0x5
	regStatusRSSI = 0xa
	regReadChan   = 0xb
	regRDSA       = 0xc

	bitSeek   = 1 << 8
	bitSeekUp = 1 << 9
	bitSkMode = 1 << 10
	bitTune   = 1 << 15
	bitSTC    = 1 << 14
	bitSFBL   = 1 << 13
	bitRDSR   = 1 << 15
	bitST     = 1 << 8
	maskChan  = 0x3ff
)

// ErrInjected is returned by transactions failed on purpose.
var ErrInjected = errors.New("fakechip: injected failure")

// Chip is a simulated Si4703. The zero value is not usable, use New.
type Chip struct {
	mu   sync.Mutex
	regs [16]uint16

	// Stations lists the channels a seek stops at. When empty every
	// channel is a station.
	Stations []int

	// RSSI reported while tuned.
	RSSI uint8

	// HoldSTC keeps STC from ever being set, to simulate a wedged chip.
	HoldSTC bool

	// FailReads and FailWrites fail the next n transactions of that kind.
	FailReads  int
	FailWrites int

	// FailReadAt and FailWriteAt fail the single transaction of that kind
	// whose count, as kept in Reads and Writes, reaches the value. Zero
	// disables them.
	FailReadAt  int
	FailWriteAt int

	groups [][4]uint16

	// Reads and Writes count the transactions seen.
	Reads  int
	Writes int
	// Written holds every write payload in order.
	Written [][]byte
}

// New returns a chip as found after reset: Si4703 rev C, firmware 0 and
// everything else cleared.
func New() *Chip {
	c := &Chip{RSSI: 40}
	c.regs[regDeviceID] = 0x1242
	c.regs[regChipID] = 0x4<<10 | 0x8<<6 // rev C, Si4703 powered down
	return c
}

// String implements i2c.Bus.
func (c *Chip) String() string {
	return "fakechip"
}

// SetSpeed implements i2c.Bus.
func (c *Chip) SetSpeed(f physic.Frequency) error {
	return nil
}

// Tx implements i2c.Bus. A write must start at register 0x02 and a read
// always returns the image starting at 0x0a.
func (c *Chip) Tx(addr uint16, w, r []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if addr != 0x10 {
		return fmt.Errorf("fakechip: no device at 0x%x", addr)
	}
	if len(w) != 0 {
		if err := c.write(w); err != nil {
			return err
		}
	}
	if len(r) != 0 {
		return c.read(r)
	}
	return nil
}

func (c *Chip) write(w []byte) error {
	c.Writes++
	if c.FailWrites > 0 {
		c.FailWrites--
		return ErrInjected
	}
	if c.Writes == c.FailWriteAt {
		return ErrInjected
	}
	if len(w)%2 != 0 || len(w) > 28 {
		return fmt.Errorf("fakechip: bad write length %d", len(w))
	}
	c.Written = append(c.Written, append([]byte(nil), w...))
	prev := c.regs[regPowerCfg]
	prevChan := c.regs[regChannel]
	for i := 0; i < len(w)/2; i++ {
		c.regs[regPowerCfg+i] = uint16(w[2*i])<<8 | uint16(w[2*i+1])
	}
	c.react(prev, prevChan)
	return nil
}

// react applies the effects of TUNE and SEEK transitions.
func (c *Chip) react(prevPower, prevChan uint16) {
	power, ch := c.regs[regPowerCfg], c.regs[regChannel]
	switch {
	case ch&bitTune != 0 && prevChan&bitTune == 0:
		c.setChannel(int(ch & maskChan))
		c.complete(false)
	case power&bitSeek != 0 && prevPower&bitSeek == 0:
		c.seek(power&bitSeekUp != 0, power&bitSkMode == 0)
	case ch&bitTune == 0 && prevChan&bitTune != 0,
		power&bitSeek == 0 && prevPower&bitSeek != 0:
		c.regs[regStatusRSSI] &^= bitSTC | bitSFBL
	}
}

func (c *Chip) complete(failed bool) {
	if c.HoldSTC {
		return
	}
	c.regs[regStatusRSSI] |= bitSTC
	if failed {
		c.regs[regStatusRSSI] |= bitSFBL
	}
}

func (c *Chip) setChannel(ch int) {
	c.regs[regReadChan] = c.regs[regReadChan]&^maskChan | uint16(ch)&maskChan
	c.regs[regStatusRSSI] = c.regs[regStatusRSSI]&^0xff | uint16(c.RSSI) | bitST
}

func (c *Chip) maxChannel() int {
	// BAND and SPACE of SYSCONFIG2
	sc2 := c.regs[regSysConfig2]
	band, space := (sc2>>6)&3, (sc2>>4)&3
	span := [4]int{20500, 32000, 14000, 14000}[band]
	step := [4]int{200, 100, 50, 50}[space]
	return span / step
}

func (c *Chip) isStation(ch int) bool {
	if len(c.Stations) == 0 {
		return true
	}
	for _, s := range c.Stations {
		if s == ch {
			return true
		}
	}
	return false
}

func (c *Chip) seek(up, wrap bool) {
	max := c.maxChannel()
	start := int(c.regs[regReadChan] & maskChan)
	ch := start
	for i := 0; i <= max; i++ {
		if up {
			ch++
		} else {
			ch--
		}
		if ch < 0 || ch > max {
			if !wrap {
				// band limit: stop at the edge and report it
				if ch < 0 {
					ch = 0
				} else {
					ch = max
				}
				c.setChannel(ch)
				c.complete(true)
				return
			}
			ch = (ch + max + 1) % (max + 1)
		}
		if ch == start {
			break
		}
		if c.isStation(ch) {
			c.setChannel(ch)
			c.complete(false)
			return
		}
	}
	c.complete(true)
}

func (c *Chip) read(r []byte) error {
	c.Reads++
	if c.FailReads > 0 {
		c.FailReads--
		return ErrInjected
	}
	if c.Reads == c.FailReadAt {
		return ErrInjected
	}
	if len(c.groups) != 0 {
		g := c.groups[0]
		c.groups = c.groups[1:]
		copy(c.regs[regRDSA:], g[:])
		c.regs[regStatusRSSI] |= bitRDSR
	} else {
		c.regs[regStatusRSSI] &^= bitRDSR
	}
	for i := 0; i < len(r)/2; i++ {
		v := c.regs[(i+regStatusRSSI)%16]
		r[2*i] = byte(v >> 8)
		r[2*i+1] = byte(v)
	}
	return nil
}

// QueueRDS queues groups; each read delivers the next one with RDSR set.
func (c *Chip) QueueRDS(groups ...[4]uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.groups = append(c.groups, groups...)
}

// Reg returns the current value of logical register i.
func (c *Chip) Reg(i int) uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.regs[i]
}

// SetReg overwrites logical register i.
func (c *Chip) SetReg(i int, v uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.regs[i] = v
}

// LastWrite returns a copy of the most recent write payload, nil if none.
func (c *Chip) LastWrite() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.Written) == 0 {
		return nil
	}
	return append([]byte(nil), c.Written[len(c.Written)-1]...)
}

// STCPin returns the GPIO2 line of the chip configured as seek/tune complete
// interrupt: low while STC is set.
func (c *Chip) STCPin() *STCPin {
	return &STCPin{Pin: gpiotest.Pin{N: "GPIO2"}, chip: c}
}

// STCPin is the active low seek/tune complete line.
type STCPin struct {
	gpiotest.Pin
	chip *Chip
}

// Read returns Low while the chip reports STC.
func (p *STCPin) Read() gpio.Level {
	if p.chip.Reg(regStatusRSSI)&bitSTC != 0 {
		return gpio.Low
	}
	return gpio.High
}
