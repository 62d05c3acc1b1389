// Package radio wraps the Si4703 receiver as a gobot device, for robots that
// already talk to their hardware through a gobot adaptor.
//
// The main implementation is Si4703Driver, configured with Si4703Config. The
// register protocol itself lives in the si4703 package; this package only
// adapts a gobot i2c.Connection into a periph i2c.Bus and gobot digital pins
// into the reset and STC lines.
package radio

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"gobot.io/x/gobot"
	gpiodrv "gobot.io/x/gobot/drivers/gpio"
	"gobot.io/x/gobot/drivers/i2c"
	"periph.io/x/conn/v3/physic"

	"github.com/bartgrantham/si4703"
)

const (
	low  = 0x0
	high = 0x1
)

// Address is the fixed address of the receiver.
const Address = int(si4703.I2CAddr)

// Si4703Config holds the additional configuration needed for Si4703Driver.
type Si4703Config struct {
	// ResetPin and STCPin are pin names on the adaptor. ResetPin needs a
	// gpio.DigitalWriter adaptor and STCPin a gpio.DigitalReader one. Empty
	// names leave the line unused.
	ResetPin string
	STCPin   string

	Band       si4703.Band
	Spacing    si4703.Spacing
	DeEmphasis si4703.DeEmphasis
	Mono       bool
	// SeekStop makes seeks stop at the band edges. By default they wrap
	// around, as with si4703.DefaultOpts.
	SeekStop bool

	// Frequency is tuned on Start when not zero.
	Frequency physic.Frequency
	Volume    int

	OscillatorSettle time.Duration
	PowerUpDelay     time.Duration

	DebugMode bool
	DebugLog  func(format string, v ...interface{})
	Log       func(format string, v ...interface{})
}

// Validate fills in defaults and brings out of range values back in range,
// logging every adjustment.
func (c *Si4703Config) Validate() error {
	if c.Log == nil {
		c.Log = func(string, ...interface{}) {}
	}
	if c.DebugMode && c.DebugLog == nil {
		return fmt.Errorf("cannot use debugging mode without configuring a DebugLog function, e.g. log.Printf")
	}

	if c.Band > si4703.BandJapan {
		c.Log("Band %d is reserved. Using %s.\n", c.Band, si4703.BandUSEurope)
		c.Band = si4703.BandUSEurope
	}
	if c.Spacing > si4703.Spacing50kHz {
		c.Log("Spacing %d is reserved. Using %s.\n", c.Spacing, si4703.Spacing200kHz)
		c.Spacing = si4703.Spacing200kHz
	}
	if c.Frequency != 0 {
		if c.Frequency < c.Band.Bottom() {
			c.Log("Frequency %s below band %s. Adjusting to %s.\n", c.Frequency, c.Band, c.Band.Bottom())
			c.Frequency = c.Band.Bottom()
		} else if c.Frequency > c.Band.Top() {
			c.Log("Frequency %s above band %s. Adjusting to %s.\n", c.Frequency, c.Band, c.Band.Top())
			c.Frequency = c.Band.Top()
		}
	}
	if c.Volume < 0 {
		c.Log("Volume %d < 0. Adjusting to minimum of 0.\n", c.Volume)
		c.Volume = 0
	} else if c.Volume > si4703.MaxVolume {
		c.Log("Volume %d > %d. Adjusting to maximum of %d.\n", c.Volume, si4703.MaxVolume, si4703.MaxVolume)
		c.Volume = si4703.MaxVolume
	}
	return nil
}

// Si4703Driver is a gobot driver for the Si4703 FM receiver.
type Si4703Driver struct {
	name         string
	conn         i2c.Connection
	i2cConnector i2c.Connector
	i2c.Config

	cfg Si4703Config
	dev *si4703.Dev
}

// NewSi4703Driver creates a new driver on connector. The chip is only
// accessed on Start.
//
// Optional params:
//
//	i2c.WithBus(int):     bus to use with this driver
//	i2c.WithAddress(int): address to use with this driver
func NewSi4703Driver(connector i2c.Connector, cfg Si4703Config, options ...func(i2c.Config)) (*Si4703Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	res := &Si4703Driver{
		name:         gobot.DefaultName("Si4703Driver"),
		i2cConnector: connector,
		Config:       i2c.NewConfig(),
		cfg:          cfg,
	}

	for _, option := range options {
		option(res)
	}

	return res, nil
}

// Name of our device.
func (s *Si4703Driver) Name() string {
	return s.name
}

// SetName set the name of our device.
func (s *Si4703Driver) SetName(name string) {
	s.name = name
}

// Start connects to the receiver, powers it up, then tunes and sets the
// volume when configured to.
func (s *Si4703Driver) Start() error {
	bus := s.GetBusOrDefault(s.i2cConnector.GetDefaultBus())
	addr := s.GetAddressOrDefault(Address)
	var err error
	s.conn, err = s.i2cConnector.GetConnection(addr, bus)
	if err != nil {
		return err
	}

	opts := si4703.DefaultOpts
	opts.Addr = uint16(addr)
	opts.Band = s.cfg.Band
	opts.Spacing = s.cfg.Spacing
	opts.DeEmphasis = s.cfg.DeEmphasis
	opts.Mono = s.cfg.Mono
	opts.SeekWrap = !s.cfg.SeekStop
	opts.OscillatorSettle = s.cfg.OscillatorSettle
	opts.PowerUpDelay = s.cfg.PowerUpDelay
	if s.cfg.DebugMode {
		opts.Logf = s.cfg.DebugLog
	}
	if s.cfg.ResetPin != "" {
		dw, ok := s.i2cConnector.(gpiodrv.DigitalWriter)
		if !ok {
			return fmt.Errorf("i2c connector does not have a digital writer capability")
		}
		opts.ResetPin = &outPin{dw: dw, name: s.cfg.ResetPin}
	}
	if s.cfg.STCPin != "" {
		dr, ok := s.i2cConnector.(gpiodrv.DigitalReader)
		if !ok {
			return fmt.Errorf("i2c connector does not have a digital reader capability")
		}
		opts.STCPin = &inPin{dr: dr, name: s.cfg.STCPin, log: s.cfg.Log}
	}

	s.dev, err = si4703.NewI2C(&connBus{conn: s.conn, addr: uint16(addr)}, &opts)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if err = s.dev.PowerUp(ctx); err != nil {
		return err
	}
	if s.cfg.Frequency != 0 {
		if s.cfg.DebugMode {
			s.cfg.DebugLog("Tuning into %s\n", s.cfg.Frequency)
		}
		f, err := s.dev.SetFrequency(ctx, s.cfg.Frequency)
		if err != nil {
			return err
		}
		s.cfg.Log("Tuned to %s\n", f)
	}
	return s.dev.SetVolume(s.cfg.Volume)
}

// Halt powers the receiver down and releases the connection.
func (s *Si4703Driver) Halt() error {
	var result error
	if s.dev != nil {
		if err := s.dev.PowerDown(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			result = multierror.Append(result, err)
		}
		s.conn = nil
	}
	return result
}

// Connection retrieves the i2c connection to the device.
func (s *Si4703Driver) Connection() gobot.Connection {
	return s.i2cConnector.(gobot.Connection)
}

// Device returns the receiver, nil before Start.
func (s *Si4703Driver) Device() *si4703.Dev {
	return s.dev
}

var _ gobot.Device = &Si4703Driver{}
