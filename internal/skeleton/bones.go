package skeleton

import (
	"fmt"

	"github.com/pkg/errors"

	"z64import/internal/diag"
	"z64import/internal/mathutil"
	"z64import/internal/segment"
)

// MatrixStride is the spacing of per-limb matrices addressed by opcode 0xDA.
const MatrixStride = 0x40

// Limb is one node of a skeletal hierarchy. Pos is the bind position in
// model space once the hierarchy has been propagated.
type Limb struct {
	Index   int
	Parent  int
	Child   int
	Sibling int
	Pos     mathutil.Vec3
	Near    uint32
	Far     uint32
}

// Hierarchy is a parsed limb tree.
type Hierarchy struct {
	Name       string
	Offset     uint32
	DListCount int
	Limbs      []Limb
}

// limbRecord is the 16-byte on-disk limb layout.
type limbRecord struct {
	Pos     [3]int16
	Child   int8
	Sibling int8
	Near    uint32
	Far     uint32
}

// Options controls parsing.
type Options struct {
	Scale  float32
	Prefix string
}

// Parse reads the hierarchy header at addr, its limb index table and every
// limb, then propagates bind positions from limb 0. Limbs whose record is
// out of range are logged and left as unlinked leaves at the origin.
func Parse(segs *segment.Table, addr uint32, o Options, log diag.Logger) (*Hierarchy, error) {
	if !segs.Valid(addr + 5) {
		return nil, errors.Wrapf(diag.ErrOutOfRange, "hierarchy header 0x%08X", addr+5)
	}
	h := &Hierarchy{
		Name:   fmt.Sprintf("%ssk_%08X", o.Prefix, addr),
		Offset: addr,
	}

	table, err := segs.U32(addr)
	if err != nil {
		return nil, errors.Wrap(err, "limb index table address")
	}
	if !segs.Valid(table) {
		return nil, errors.Wrapf(diag.ErrOutOfRange, "limb index table 0x%08X", table)
	}
	count, _ := segs.U8(addr + 4)
	if segs.Valid(addr + 9) {
		n, _ := segs.U8(addr + 8)
		h.DListCount = int(n)
	} else {
		log.Warnf("Invalid segmented offset 0x%X for hierarchy (incomplete header), still trying to import ignoring dlistCount", addr+9)
		h.DListCount = 1
	}
	if count == 0 {
		return nil, errors.Wrapf(diag.ErrMalformedHeader, "hierarchy 0x%08X has no limbs", addr)
	}

	h.Limbs = make([]Limb, count)
	for i := range h.Limbs {
		l := &h.Limbs[i]
		*l = Limb{Index: i, Parent: -1, Child: -1, Sibling: -1}

		limbAddr, err := segs.U32(table + uint32(4*i))
		if err != nil {
			log.Errorf("Limb 0x%02X index entry out of range: %v", i, err)
			continue
		}
		var rec limbRecord
		if err := segs.Decode(limbAddr, &rec); err != nil {
			log.Errorf("Limb 0x%02X offset 0x%08X out of range", i, limbAddr)
			continue
		}
		l.Child, l.Sibling = int(rec.Child), int(rec.Sibling)
		l.Near, l.Far = rec.Near, rec.Far
		l.Pos = mathutil.SwapYZ(float32(rec.Pos[0]), float32(rec.Pos[1]), float32(rec.Pos[2])).Scale(o.Scale)
		log.Tracef("Limb %d: %v child %d sibling %d near 0x%08X far 0x%08X", i, rec.Pos, l.Child, l.Sibling, l.Near, l.Far)
	}
	h.Limbs[0].Pos = mathutil.Vec3{}

	if err := h.propagate(log); err != nil {
		return nil, errors.Wrapf(err, "hierarchy 0x%08X", addr)
	}
	return h, nil
}

// propagate walks the tree from limb 0. A child inherits the limb as
// parent and accumulates its position; a sibling shares the limb's parent
// and accumulates the parent's position.
func (h *Hierarchy) propagate(log diag.Logger) error {
	visited := make([]bool, len(h.Limbs))
	visited[0] = true

	var walk func(i int) error
	link := func(from, to int, kind string) (bool, error) {
		if to < 0 {
			return false, nil
		}
		if to == from {
			log.Warnf("Limb %d is its own %s, ignoring", from, kind)
			return false, nil
		}
		if to >= len(h.Limbs) {
			return false, errors.Wrapf(diag.ErrMalformedHeader, "limb %d %s index %d exceeds limb count %d", from, kind, to, len(h.Limbs))
		}
		if visited[to] {
			return false, errors.Wrapf(diag.ErrMalformedHeader, "limb %d %s index %d forms a cycle", from, kind, to)
		}
		visited[to] = true
		return true, nil
	}

	walk = func(i int) error {
		l := &h.Limbs[i]
		ok, err := link(i, l.Child, "child")
		if err != nil {
			return err
		}
		if ok {
			c := &h.Limbs[l.Child]
			c.Parent = i
			c.Pos = c.Pos.Add(l.Pos)
			if err := walk(l.Child); err != nil {
				return err
			}
		}
		ok, err = link(i, l.Sibling, "sibling")
		if err != nil {
			return err
		}
		if ok {
			s := &h.Limbs[l.Sibling]
			s.Parent = l.Parent
			if l.Parent >= 0 {
				s.Pos = s.Pos.Add(h.Limbs[l.Parent].Pos)
			}
			if err := walk(l.Sibling); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(0)
}

// MatrixLimbFor maps a matrix address to a limb index. The offset divided
// by MatrixStride is an ordinal among limbs that carry a display list.
// Unaligned offsets and ordinals past the end resolve to limb 0.
func (h *Hierarchy) MatrixLimbFor(addr uint32) int {
	off := addr & 0x00FFFFFF
	if off%MatrixStride != 0 {
		return 0
	}
	ordinal := int(off / MatrixStride)
	j := 0
	for i, l := range h.Limbs {
		if l.Near == 0 {
			continue
		}
		if j == ordinal {
			return i
		}
		j++
	}
	return 0
}

// LimbName is the vertex group and node name of limb i.
func LimbName(i int) string {
	return fmt.Sprintf("limb_%02d", i)
}

// LocalPos returns the bind position of limb i relative to its parent.
func (h *Hierarchy) LocalPos(i int) mathutil.Vec3 {
	l := h.Limbs[i]
	if l.Parent < 0 {
		return l.Pos
	}
	return l.Pos.Sub(h.Limbs[l.Parent].Pos)
}

// RootPosition re-reads the unscaled position stored in the first limb
// record. Parse discards it since limb 0 sits at the origin.
func (h *Hierarchy) RootPosition(segs *segment.Table) ([3]int16, error) {
	table, err := segs.U32(h.Offset)
	if err != nil {
		return [3]int16{}, errors.Wrap(err, "limb index table address")
	}
	limb, err := segs.U32(table)
	if err != nil {
		return [3]int16{}, errors.Wrap(err, "first limb address")
	}
	return segs.I16x3(limb)
}
