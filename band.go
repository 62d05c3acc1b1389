package si4703

import (
	"fmt"

	"periph.io/x/conn/v3/physic"
)

// Band is one of the frequency ranges the tuner supports.
type Band uint8

const (
	BandUSEurope  Band = 0 // 87.5–108 MHz
	BandJapanWide Band = 1 // 76–108 MHz
	BandJapan     Band = 2 // 76–90 MHz
)

// Spacing is the channel step.
type Spacing uint8

const (
	Spacing200kHz Spacing = 0 // US, Australia
	Spacing100kHz Spacing = 1 // Europe, Japan
	Spacing50kHz  Spacing = 2
)

// DeEmphasis selects the audio de-emphasis time constant.
type DeEmphasis uint8

const (
	DeEmphasis75us DeEmphasis = 0 // USA
	DeEmphasis50us DeEmphasis = 1 // Europe, Australia, Japan
)

// SoftmuteAttenuation is how far the audio is attenuated on a weak signal
// when softmute is on.
type SoftmuteAttenuation uint8

const (
	Softmute16dB SoftmuteAttenuation = 0 // reset default
	Softmute14dB SoftmuteAttenuation = 1
	Softmute12dB SoftmuteAttenuation = 2
	Softmute10dB SoftmuteAttenuation = 3
)

// SoftmuteRate is how fast softmute attacks and recovers.
type SoftmuteRate uint8

const (
	SoftmuteFastest SoftmuteRate = 0 // reset default
	SoftmuteFast    SoftmuteRate = 1
	SoftmuteSlow    SoftmuteRate = 2
	SoftmuteSlowest SoftmuteRate = 3
)

// Bottom returns the lowest frequency of the band.
func (b Band) Bottom() physic.Frequency {
	if b == BandUSEurope {
		return 87500 * physic.KiloHertz
	}
	return 76 * physic.MegaHertz
}

// Top returns the highest frequency of the band.
func (b Band) Top() physic.Frequency {
	if b == BandJapan {
		return 90 * physic.MegaHertz
	}
	return 108 * physic.MegaHertz
}

func (b Band) String() string {
	switch b {
	case BandUSEurope:
		return "US/Europe"
	case BandJapanWide:
		return "Japan wide"
	case BandJapan:
		return "Japan"
	}
	return fmt.Sprintf("Band(%d)", uint8(b))
}

// Step returns the spacing as a frequency.
func (s Spacing) Step() physic.Frequency {
	switch s {
	case Spacing100kHz:
		return 100 * physic.KiloHertz
	case Spacing50kHz:
		return 50 * physic.KiloHertz
	}
	return 200 * physic.KiloHertz
}

func (s Spacing) String() string {
	return s.Step().String()
}

// MaxChannel returns the highest channel number inside the band.
func (b Band) MaxChannel(s Spacing) int {
	return int((b.Top() - b.Bottom()) / s.Step())
}

// Channel converts f to a channel number, rounding to the nearest step.
// Frequencies outside the band saturate to its edges.
func (b Band) Channel(f physic.Frequency, s Spacing) int {
	if f <= b.Bottom() {
		return 0
	}
	if f >= b.Top() {
		return b.MaxChannel(s)
	}
	step := s.Step()
	return int((f - b.Bottom() + step/2) / step)
}

// Frequency converts a channel number back to a frequency.
//
// Freq = Spacing * Channel + Bottom of Band.
func (b Band) Frequency(ch int, s Spacing) physic.Frequency {
	ch = clamp(ch, 0, b.MaxChannel(s))
	return b.Bottom() + physic.Frequency(ch)*s.Step()
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
