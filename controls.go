package si4703

import (
	"context"
	"fmt"
)

// MaxVolume is the loudest volume setting.
const MaxVolume = 15

// SetVolume sets the volume, 0 (mute) to MaxVolume. Out of range values are
// clamped.
func (d *Dev) SetVolume(v int) error {
	return d.update(func(s *Shadow) {
		s.Set(VOLUME, uint16(clamp(v, 0, MaxVolume)))
	})
}

// Volume returns the current volume.
func (d *Dev) Volume() (int, error) {
	v, err := d.get(VOLUME)
	return int(v), err
}

// SetMute mutes or unmutes the audio output.
func (d *Dev) SetMute(on bool) error {
	// DMUTE is "disable mute": zero means muted.
	return d.update(func(s *Shadow) {
		s.SetFlag(DMUTE, !on)
	})
}

// SetMono forces mono output when on, and allows stereo otherwise.
func (d *Dev) SetMono(on bool) error {
	return d.update(func(s *Shadow) {
		s.SetFlag(MONO, on)
	})
}

// GPIOMode is the function of one of the three GPIO pins.
type GPIOMode uint8

const (
	GPIOHighZ     GPIOMode = 0 // high impedance, the reset default
	GPIOIndicator GPIOMode = 1 // GPIO1 reserved, GPIO2 STC/RDS interrupt, GPIO3 stereo indicator
	GPIOLow       GPIOMode = 2
	GPIOHigh      GPIOMode = 3
)

func (m GPIOMode) String() string {
	switch m {
	case GPIOHighZ:
		return "high-z"
	case GPIOIndicator:
		return "indicator"
	case GPIOLow:
		return "low"
	case GPIOHigh:
		return "high"
	}
	return fmt.Sprintf("GPIOMode(%d)", uint8(m))
}

var gpioFields = [...]Field{GPIO1, GPIO2, GPIO3}

func gpioField(n int) (Field, error) {
	if n < 1 || n > len(gpioFields) {
		return Field{}, fmt.Errorf("%w: %d", ErrInvalidGPIO, n)
	}
	return gpioFields[n-1], nil
}

// SetGPIO sets the mode of GPIO n (1 to 3). The other two pins are left
// untouched. An invalid n is reported without any bus traffic.
func (d *Dev) SetGPIO(n int, m GPIOMode) error {
	f, err := gpioField(n)
	if err != nil {
		d.logf("set GPIO: %v", err)
		return err
	}
	return d.update(func(s *Shadow) {
		s.Set(f, uint16(m))
	})
}

// GPIO returns the mode of GPIO n (1 to 3).
func (d *Dev) GPIO(n int) (GPIOMode, error) {
	f, err := gpioField(n)
	if err != nil {
		return 0, err
	}
	v, err := d.get(f)
	return GPIOMode(v), err
}

// update runs the read/modify/write bracket on a powered up device.
func (d *Dev) update(modify func(s *Shadow)) error {
	ctx := context.Background()
	if err := d.lockReady(ctx); err != nil {
		return err
	}
	defer d.unlock()
	if err := d.readAll(); err != nil {
		return err
	}
	modify(&d.shadow)
	return d.writeControl(ctx)
}

// get reads the image and returns one field.
func (d *Dev) get(f Field) (uint16, error) {
	if err := d.lock(context.Background()); err != nil {
		return 0, err
	}
	defer d.unlock()
	if err := d.readAll(); err != nil {
		return 0, err
	}
	return d.shadow.Get(f), nil
}

// DeviceID is the content of register 0x00.
type DeviceID struct {
	Manufacturer uint16 // 0x242 for Silicon Labs
	Part         uint8
}

func (id DeviceID) String() string {
	part := "unknown"
	if id.Part == 0x1 {
		part = "Si4702/03"
	}
	return fmt.Sprintf("%s (part 0x%x, manufacturer 0x%03x)", part, id.Part, id.Manufacturer)
}

// ChipID is the content of register 0x01.
type ChipID struct {
	Firmware uint8 // 0 before power up
	Device   uint8
	Revision uint8
}

func (id ChipID) String() string {
	dev := "unknown"
	switch id.Device {
	case 0x0:
		dev = "Si4702 (off)"
	case 0x1:
		dev = "Si4702 (on)"
	case 0x8:
		dev = "Si4703 (off)"
	case 0x9:
		dev = "Si4703 (on)"
	}
	rev := fmt.Sprintf("rev 0x%x", id.Revision)
	if id.Revision == 0x04 {
		rev = "rev C"
	}
	return fmt.Sprintf("%s %s firmware %d", dev, rev, id.Firmware)
}

// DeviceID reads the manufacturer and part number.
func (d *Dev) DeviceID() (DeviceID, error) {
	if err := d.lock(context.Background()); err != nil {
		return DeviceID{}, err
	}
	defer d.unlock()
	if err := d.readAll(); err != nil {
		return DeviceID{}, err
	}
	return DeviceID{
		Manufacturer: d.shadow.Get(MFGID),
		Part:         uint8(d.shadow.Get(PN)),
	}, nil
}

// ChipID reads the firmware, device and revision numbers.
func (d *Dev) ChipID() (ChipID, error) {
	if err := d.lock(context.Background()); err != nil {
		return ChipID{}, err
	}
	defer d.unlock()
	if err := d.readAll(); err != nil {
		return ChipID{}, err
	}
	return ChipID{
		Firmware: uint8(d.shadow.Get(FIRMWARE)),
		Device:   uint8(d.shadow.Get(DEV)),
		Revision: uint8(d.shadow.Get(REV)),
	}, nil
}

// Status is a decoded snapshot of STATUSRSSI and READCHAN.
type Status struct {
	RSSI      uint8 // dBµV
	Stereo    bool
	RDSReady  bool
	RDSSynced bool
	AFCRail   bool
	SeekFail  bool
	Complete  bool
	// Block errors: 0 none, 1 1–2 corrected, 2 3–5 corrected, 3 uncorrectable.
	BlockErrors [4]uint8
	Channel     int
}

func (s Status) String() string {
	mode := "mono"
	if s.Stereo {
		mode = "stereo"
	}
	rds := "no RDS"
	if s.RDSSynced {
		rds = "RDS synced"
	}
	return fmt.Sprintf("channel %d, RSSI %d dBµV, %s, %s", s.Channel, s.RSSI, mode, rds)
}

// Status reads the current signal status.
func (d *Dev) Status() (Status, error) {
	if err := d.lock(context.Background()); err != nil {
		return Status{}, err
	}
	defer d.unlock()
	if err := d.readAll(); err != nil {
		return Status{}, err
	}
	return d.status(), nil
}

func (d *Dev) status() Status {
	s := &d.shadow
	return Status{
		RSSI:      uint8(s.Get(RSSI)),
		Stereo:    s.Flag(ST),
		RDSReady:  s.Flag(RDSR),
		RDSSynced: s.Flag(RDSS),
		AFCRail:   s.Flag(AFCRL),
		SeekFail:  s.Flag(SFBL),
		Complete:  s.Flag(STC),
		BlockErrors: [4]uint8{
			uint8(s.Get(BLERA)),
			uint8(s.Get(BLERB)),
			uint8(s.Get(BLERC)),
			uint8(s.Get(BLERD)),
		},
		Channel: int(s.Get(READCHAN)),
	}
}
