package si4703

// Register is a logical register address, 0x00 through 0x0F.
type Register uint8

const (
	// registers 0..1 are read-only
	DeviceIDReg Register = iota
	ChipIDReg
	// registers 2..7 are read-write
	PowerCfg
	Channel
	SysConfig1
	SysConfig2
	SysConfig3
	Test1
	// 8..9 are reserved for the vendor; a..f are read-only status
	Test2
	BootConfig
	StatusRSSI
	ReadChan
	RDSA
	RDSB
	RDSC
	RDSD

	numRegs = 16
)

// The chip starts a read burst at 0x0a and wraps, and always starts writes at
// 0x02.
const (
	firstReadReg  = StatusRSSI
	firstCtrlReg  = PowerCfg
	numCtrlRegs   = 6
	readBurstLen  = numRegs * 2
	writeBurstLen = numCtrlRegs * 2
)

var regNames = [numRegs]string{
	"DEVICEID", "CHIPID", "POWERCFG", "CHANNEL",
	"SYSCONFIG1", "SYSCONFIG2", "SYSCONFIG3", "TEST1",
	"TEST2", "BOOTCONFIG", "STATUSRSSI", "READCHAN",
	"RDSA", "RDSB", "RDSC", "RDSD",
}

func (r Register) String() string {
	if int(r) < len(regNames) {
		return regNames[r]
	}
	return "INVALID"
}

// Field is a bit field of Width bits starting at bit Shift of Reg.
type Field struct {
	Reg   Register
	Shift uint8
	Width uint8
}

func (f Field) mask() uint16 {
	return uint16(1<<f.Width-1) << f.Shift
}

// Register map, named after the datasheet.
var (
	// DEVICEID
	MFGID = Field{DeviceIDReg, 0, 12}
	PN    = Field{DeviceIDReg, 12, 4}

	// CHIPID
	FIRMWARE = Field{ChipIDReg, 0, 6}
	DEV      = Field{ChipIDReg, 6, 4}
	REV      = Field{ChipIDReg, 10, 6}

	// POWERCFG
	ENABLE  = Field{PowerCfg, 0, 1}
	DISABLE = Field{PowerCfg, 6, 1}
	SEEK    = Field{PowerCfg, 8, 1}
	SEEKUP  = Field{PowerCfg, 9, 1}
	SKMODE  = Field{PowerCfg, 10, 1} // 0: wrap at band edge, 1: stop
	RDSM    = Field{PowerCfg, 11, 1}
	MONO    = Field{PowerCfg, 13, 1}
	DMUTE   = Field{PowerCfg, 14, 1} // 1 disables mute
	DSMUTE  = Field{PowerCfg, 15, 1} // 1 disables softmute

	// CHANNEL
	CHAN = Field{Channel, 0, 10}
	TUNE = Field{Channel, 15, 1}

	// SYSCONFIG1
	GPIO1   = Field{SysConfig1, 0, 2}
	GPIO2   = Field{SysConfig1, 2, 2}
	GPIO3   = Field{SysConfig1, 4, 2}
	BLNDADJ = Field{SysConfig1, 6, 2}
	AGCD    = Field{SysConfig1, 10, 1}
	DE      = Field{SysConfig1, 11, 1}
	RDS     = Field{SysConfig1, 12, 1}
	STCIEN  = Field{SysConfig1, 14, 1}
	RDSIEN  = Field{SysConfig1, 15, 1}

	// SYSCONFIG2
	VOLUME = Field{SysConfig2, 0, 4}
	SPACE  = Field{SysConfig2, 4, 2}
	BAND   = Field{SysConfig2, 6, 2}
	SEEKTH = Field{SysConfig2, 8, 8}

	// SYSCONFIG3
	SKCNT  = Field{SysConfig3, 0, 4}
	SKSNR  = Field{SysConfig3, 4, 4}
	VOLEXT = Field{SysConfig3, 8, 1}
	SMUTEA = Field{SysConfig3, 12, 2}
	SMUTER = Field{SysConfig3, 14, 2}

	// TEST1
	AHIZEN = Field{Test1, 14, 1}
	XOSCEN = Field{Test1, 15, 1}

	// STATUSRSSI
	RSSI  = Field{StatusRSSI, 0, 8}
	ST    = Field{StatusRSSI, 8, 1}
	BLERA = Field{StatusRSSI, 9, 2}
	RDSS  = Field{StatusRSSI, 11, 1}
	AFCRL = Field{StatusRSSI, 12, 1}
	SFBL  = Field{StatusRSSI, 13, 1}
	STC   = Field{StatusRSSI, 14, 1}
	RDSR  = Field{StatusRSSI, 15, 1}

	// READCHAN
	READCHAN = Field{ReadChan, 0, 10}
	BLERD    = Field{ReadChan, 10, 2}
	BLERC    = Field{ReadChan, 12, 2}
	BLERB    = Field{ReadChan, 14, 2}
)

// Shadow is the in-memory image of the register file, in logical order.
//
// It does no I/O. The only way to move it to or from the chip is through the
// Dev, which always reads the whole image before mutating and writing back
// the control registers.
type Shadow struct {
	words [numRegs]uint16
}

// Word returns the raw value of r.
func (s Shadow) Word(r Register) uint16 {
	return s.words[r&0xf]
}

// SetWord replaces the raw value of r.
func (s *Shadow) SetWord(r Register, v uint16) {
	s.words[r&0xf] = v
}

// Get returns the value of f, right aligned.
func (s Shadow) Get(f Field) uint16 {
	return (s.words[f.Reg&0xf] & f.mask()) >> f.Shift
}

// Set stores v into f. Bits of v beyond the field width are dropped.
func (s *Shadow) Set(f Field, v uint16) {
	w := s.words[f.Reg&0xf] &^ f.mask()
	s.words[f.Reg&0xf] = w | (v<<f.Shift)&f.mask()
}

// Flag reports whether the single bit field f is set.
func (s Shadow) Flag(f Field) bool {
	return s.Get(f) != 0
}

// SetFlag sets or clears the single bit field f.
func (s *Shadow) SetFlag(f Field, on bool) {
	var v uint16
	if on {
		v = 1
	}
	s.Set(f, v)
}

// wireReg maps slot i of a read burst to its logical register.
//
// (i+10) % 16 == 10, 11, 12, 13, 14, 15, 0, 1...
func wireReg(i int) Register {
	return Register((i + int(firstReadReg)) % numRegs)
}

// decode replaces the whole image from a read burst. Words are big-endian.
func (s *Shadow) decode(buf []byte) {
	for i := 0; i < numRegs; i++ {
		s.words[wireReg(i)] = uint16(buf[i*2])<<8 | uint16(buf[i*2+1])
	}
}

// encodeControl writes registers 0x02..0x07 into buf, big-endian.
func (s *Shadow) encodeControl(buf []byte) {
	for i := 0; i < numCtrlRegs; i++ {
		w := s.words[int(firstCtrlReg)+i]
		buf[i*2] = byte(w >> 8)
		buf[i*2+1] = byte(w)
	}
}
