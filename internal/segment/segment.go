package segment

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"

	"z64import/internal/diag"
)

// Count is the number of addressable segments.
const Count = 16

// Conventional segment ids.
const (
	Room          = 0x03
	LinkAnimTable = 0x04
	Object        = 0x06
	LinkAnimData  = 0x07
	ExternalAnim  = 0x0F
)

// Split returns the segment id and 24-bit offset of a segmented address.
func Split(addr uint32) (int, int) {
	return int(addr >> 24), int(addr & 0x00FFFFFF)
}

// Addr builds a segmented address.
func Addr(seg int, off int) uint32 {
	return uint32(seg)<<24 | uint32(off)&0x00FFFFFF
}

// Table holds the raw bytes of each segment. Unset segments are empty.
type Table struct {
	segs [Count][]byte
}

// Load replaces segment id wholesale.
func (t *Table) Load(id int, data []byte) error {
	if id < 0 || id >= Count {
		return fmt.Errorf("segment: id 0x%02X out of range", id)
	}
	t.segs[id] = data
	return nil
}

// Bytes returns the buffer of segment id, nil when unset or id is invalid.
func (t *Table) Bytes(id int) []byte {
	if id < 0 || id >= Count {
		return nil
	}
	return t.segs[id]
}

// Len returns the current length of segment id.
func (t *Table) Len(id int) int {
	return len(t.Bytes(id))
}

// Valid reports whether addr names a byte inside a loaded segment.
func (t *Table) Valid(addr uint32) bool {
	seg, off := Split(addr)
	return seg < Count && off < len(t.segs[seg])
}

// ValidRange reports whether n bytes starting at addr lie in one segment.
func (t *Table) ValidRange(addr uint32, n int) bool {
	seg, off := Split(addr)
	if seg >= Count || n < 0 {
		return false
	}
	return off+n <= len(t.segs[seg]) && (n > 0 || off < len(t.segs[seg]))
}

// Read returns n bytes at addr. The slice aliases the segment buffer.
func (t *Table) Read(addr uint32, n int) ([]byte, error) {
	if !t.ValidRange(addr, n) {
		seg, off := Split(addr)
		return nil, errors.Wrapf(diag.ErrOutOfRange, "segment 0x%02X offset 0x%06X+%d (len 0x%X)", seg, off, n, t.Len(seg))
	}
	seg, off := Split(addr)
	return t.segs[seg][off : off+n], nil
}

// Decode reads the big-endian layout of v (a pointer to a fixed-size
// struct or value) from addr.
func (t *Table) Decode(addr uint32, v interface{}) error {
	n := binary.Size(v)
	if n < 0 {
		return fmt.Errorf("segment: cannot decode into %T", v)
	}
	b, err := t.Read(addr, n)
	if err != nil {
		return err
	}
	return binary.Read(bytes.NewReader(b), binary.BigEndian, v)
}

func (t *Table) U8(addr uint32) (uint8, error) {
	b, err := t.Read(addr, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (t *Table) U16(addr uint32) (uint16, error) {
	b, err := t.Read(addr, 2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (t *Table) I16(addr uint32) (int16, error) {
	v, err := t.U16(addr)
	return int16(v), err
}

func (t *Table) U32(addr uint32) (uint32, error) {
	b, err := t.Read(addr, 4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// I16x3 reads three consecutive signed 16-bit values.
func (t *Table) I16x3(addr uint32) ([3]int16, error) {
	var v [3]int16
	b, err := t.Read(addr, 6)
	if err != nil {
		return v, err
	}
	for i := range v {
		v[i] = int16(binary.BigEndian.Uint16(b[i*2:]))
	}
	return v, nil
}
