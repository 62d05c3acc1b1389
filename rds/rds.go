// Package rds decodes Radio Data System (RDS/RBDS) groups as delivered by
// FM receiver chips: four 16 bit blocks per group, already error corrected.
//
// Block layout:
//
//	A: PI code; in North America an encoded call sign
//	B: group type (4 bits), version (1), traffic program (1), program type (5),
//	   5 group dependent bits
//	C: group dependent (version B groups repeat PI here)
//	D: group dependent
//
// The vast majority of observed groups are 0A/0B (program service name,
// alternative frequencies) and 2A/2B (radiotext).
package rds

import (
	"bytes"
	"fmt"

	"periph.io/x/conn/v3/physic"
)

// Group is one RDS group.
type Group struct {
	A, B, C, D uint16
}

// Type returns the group type code, 0 to 15.
func (g Group) Type() int {
	return int(g.B >> 12)
}

// VersionB reports whether this is a version B group.
func (g Group) VersionB() bool {
	return g.B&0x0800 != 0
}

func (g Group) String() string {
	v := 'A'
	if g.VersionB() {
		v = 'B'
	}
	return fmt.Sprintf("%04x %04x %04x %04x %d%c", g.A, g.B, g.C, g.D, g.Type(), v)
}

// Name returns the description of the group type.
func (g Group) Name() string {
	if g.VersionB() {
		return GroupTypesB[g.Type()]
	}
	return GroupTypesA[g.Type()]
}

// ProgramItem is the program item number carried by 1A/1B groups.
type ProgramItem struct {
	Day, Hour, Minute int
}

// Decoder accumulates station information from successive groups.
//
// Text fields (call sign, program service, radiotext) are only published
// once the same content has been seen twice, which filters out most of the
// garbage left by uncorrected block errors.
type Decoder struct {
	PI                  uint16
	CallSign            string
	ProgramType         int
	TrafficProgram      bool
	TrafficAnnouncement bool
	Music               bool
	Stereo              bool
	ArtificialHead      bool
	Compressed          bool
	DynamicPTY          bool
	ProgramService      string
	RadioText           string
	ProgramItem         ProgramItem

	// AltFreqs holds alternative frequencies announced in 0A groups and
	// NumAltFreqs the count the station says it sends.
	AltFreqs    map[physic.Frequency]bool
	NumAltFreqs int

	// ODA maps application group type codes (type<<1 | version) to the
	// application identification announced in 3A groups.
	ODA map[uint8]uint16

	// Groups counts decoded groups per type code (type<<1 | version).
	Groups [32]int

	cs   [4]byte
	ps   text
	rt   text
	rtAB bool
}

// NewDecoder returns an empty decoder. The zero Decoder is also ready to
// use.
func NewDecoder() *Decoder {
	r := &Decoder{}
	r.init()
	return r
}

func (r *Decoder) init() {
	if r.AltFreqs == nil {
		r.AltFreqs = map[physic.Frequency]bool{}
	}
	if r.ODA == nil {
		r.ODA = map[uint8]uint16{}
	}
	if r.ps.cur == nil {
		r.ps = newText(8)
		r.rt = newText(64)
	}
}

// Update feeds one group. It reports whether any published field changed.
func (r *Decoder) Update(g Group) bool {
	r.init()
	before := r.snapshot()

	r.PI = g.A
	r.updateCallSign(g.A)
	r.TrafficProgram = g.B&0x0400 != 0
	r.ProgramType = int((g.B >> 5) & 0x1f)

	code := uint8(g.Type()<<1) | uint8(g.B>>11&1)
	r.Groups[code]++

	switch g.Type() {
	case 0:
		r.updatePS(g)
	case 1:
		r.updatePIN(g)
	case 2:
		r.updateRT(g)
	case 3:
		if !g.VersionB() {
			r.updateODA(g)
		}
	}
	return r.snapshot() != before
}

type snapshot struct {
	cs, ps, rt string
	pty        int
	tp, ta     bool
}

func (r *Decoder) snapshot() snapshot {
	return snapshot{
		cs:  r.CallSign,
		ps:  r.ProgramService,
		rt:  r.RadioText,
		pty: r.ProgramType,
		tp:  r.TrafficProgram,
		ta:  r.TrafficAnnouncement,
	}
}

// ProgramTypeName returns the name of the current program type in the North
// American (RBDS) or European (RDS) table.
func (r *Decoder) ProgramTypeName(rbds bool) string {
	if rbds {
		return ProgramTypesRBDS[r.ProgramType&0x1f]
	}
	return ProgramTypesRDS[r.ProgramType&0x1f]
}

// See: U.S. RBDS Standard - April 1998, pg 80-90
func callSign(pi uint16) ([4]byte, bool) {
	var cs [4]byte
	if pi < 4096 || pi > 39247 {
		return cs, false
	}
	// North American 4 letter "W" and "K" stations
	tmp := pi - 4096
	cs[0] = 'K'
	if pi >= 21672 {
		cs[0] = 'W'
		tmp = pi - 21672
	}
	cs[1] = 'A' + byte(tmp/676)
	tmp %= 676
	cs[2] = 'A' + byte(tmp/26)
	cs[3] = 'A' + byte(tmp%26)
	return cs, true
}

func (r *Decoder) updateCallSign(pi uint16) {
	cs, ok := callSign(pi)
	if !ok {
		return
	}
	if cs == r.cs {
		r.CallSign = string(cs[:])
	}
	r.cs = cs
}

// 0A, 0B: basic tuning and switching information.
func (r *Decoder) updatePS(g Group) {
	r.TrafficAnnouncement = g.B&0x0010 != 0
	r.Music = g.B&0x0008 != 0

	idx := int(g.B & 0x3)
	if s, ok := r.ps.put(idx, byte(g.D>>8), byte(g.D)); ok {
		r.ProgramService = s
	}

	// decoder identification, one bit per segment
	di := g.B&0x4 != 0
	switch idx {
	case 0:
		r.DynamicPTY = di
	case 1:
		r.Compressed = di
	case 2:
		r.ArtificialHead = di
	case 3:
		r.Stereo = di
	}

	if g.VersionB() {
		// 0B: C repeats PI
		return
	}
	for _, f := range []uint16{g.C >> 8, g.C & 0xff} {
		switch {
		case f >= 1 && f <= 204:
			r.AltFreqs[87500*physic.KiloHertz+physic.Frequency(f)*100*physic.KiloHertz] = true
		case f >= 224 && f <= 249:
			r.NumAltFreqs = int(f - 224)
		default:
			// 0: not to be used, 205: filler, 250: LF/MF follows, others unassigned
		}
	}
}

// 1A, 1B: program item number and slow labeling codes.
func (r *Decoder) updatePIN(g Group) {
	if g.D == 0 {
		return
	}
	r.ProgramItem = ProgramItem{
		Day:    int(g.D >> 11),
		Hour:   int((g.D >> 6) & 0x1f),
		Minute: int(g.D & 0x3f),
	}
}

// 2A, 2B: radiotext.
func (r *Decoder) updateRT(g Group) {
	ab := g.B&0x0010 != 0
	if ab != r.rtAB {
		// text A/B flag toggled: the station started a new message
		r.rt.clear()
		r.rtAB = ab
	}
	idx := int(g.B & 0xf)
	var s string
	var ok bool
	if g.VersionB() {
		s, ok = r.rt.put(idx, byte(g.D>>8), byte(g.D))
	} else {
		s, ok = r.rt.put(idx, byte(g.C>>8), byte(g.C), byte(g.D>>8), byte(g.D))
	}
	if ok {
		r.RadioText = s
	}
}

// 3A: application identification for open data applications.
func (r *Decoder) updateODA(g Group) {
	if g.D == 0 {
		return
	}
	r.ODA[uint8(g.B&0x1f)] = g.D
}

// text is a double buffered segmented string.
type text struct {
	cur  []byte
	prev []byte
}

func newText(n int) text {
	t := text{cur: make([]byte, n), prev: make([]byte, n)}
	t.clear()
	return t
}

func (t *text) clear() {
	for i := range t.cur {
		t.cur[i] = ' '
	}
}

// put stores one segment. Every time segment 0 comes around the buffer is
// compared with the one from the previous round and published if they
// match.
func (t *text) put(idx int, chars ...byte) (string, bool) {
	off := idx * len(chars)
	if off+len(chars) > len(t.cur) {
		return "", false
	}
	cr := -1
	for i, c := range chars {
		c &= 0x7f
		t.cur[off+i] = c
		if c == '\r' && cr < 0 {
			cr = off + i
		}
	}
	if cr >= 0 {
		// carriage return ends the message, blank the rest
		for i := cr + 1; i < len(t.cur); i++ {
			t.cur[i] = ' '
		}
	}
	if idx != 0 {
		return "", false
	}
	same := bytes.Equal(t.cur, t.prev)
	copy(t.prev, t.cur)
	if !same {
		return "", false
	}
	s := t.prev
	if i := bytes.IndexByte(s, '\r'); i >= 0 {
		s = s[:i]
	}
	return string(s), true
}
