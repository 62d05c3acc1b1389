package rds

// DefaultThreshold is the RDSB value at or above which a group is ignored by
// the Assembler.
const DefaultThreshold = 500

// Assembler rebuilds the 8 character program service name from groups
// polled one at a time. Each of the four character pairs is taken from the
// first group that carries it; repeats are ignored.
//
// Nothing is returned until all four pairs arrived.
type Assembler struct {
	// Threshold filters out groups whose B block is at or above it. Zero
	// means DefaultThreshold.
	Threshold uint16

	buf    [8]byte
	filled [4]bool
	n      int
}

// Add offers one group, given by its B and D blocks. The low 2 bits of B
// select the character pair and D holds the two characters. It reports
// whether a new pair was stored.
func (a *Assembler) Add(b, d uint16) bool {
	th := a.Threshold
	if th == 0 {
		th = DefaultThreshold
	}
	idx := int(b & 0x3)
	if a.filled[idx] || b >= th {
		return false
	}
	a.buf[idx*2] = byte(d >> 8)
	a.buf[idx*2+1] = byte(d)
	a.filled[idx] = true
	a.n++
	return true
}

// Complete reports whether all four pairs arrived.
func (a *Assembler) Complete() bool {
	return a.n == len(a.filled)
}

// Message returns the 8 characters, or "" while the message is incomplete.
func (a *Assembler) Message() string {
	if !a.Complete() {
		return ""
	}
	return string(a.buf[:])
}

// Reset discards everything assembled so far.
func (a *Assembler) Reset() {
	th := a.Threshold
	*a = Assembler{Threshold: th}
}
