package f3dzex

import (
	"z64import/internal/mathutil"
	"z64import/internal/skeleton"
)

// EntryKind tags a matrix stack entry.
type EntryKind int

const (
	// EntryRoot is the model root: no limb, no offset.
	EntryRoot EntryKind = iota
	// EntryLimb is a hierarchy limb at its bind position.
	EntryLimb
	// EntryTransient is a limb index paired with a synthesized position.
	EntryTransient
)

// StackEntry is one element of the matrix stack.
type StackEntry struct {
	Kind EntryKind
	Limb int
	Pos  mathutil.Vec3
}

func rootEntry() StackEntry {
	return StackEntry{Kind: EntryRoot, Limb: -1}
}

func limbEntry(h *skeleton.Hierarchy, i int) StackEntry {
	return StackEntry{Kind: EntryLimb, Limb: i, Pos: h.Limbs[i].Pos}
}

// matrixStack is never empty.
type matrixStack []StackEntry

func newMatrixStack(h *skeleton.Hierarchy, limb int) matrixStack {
	if h == nil || limb < 0 || limb >= len(h.Limbs) {
		return matrixStack{rootEntry()}
	}
	return matrixStack{limbEntry(h, limb)}
}

func (s matrixStack) top() StackEntry {
	return s[len(s)-1]
}

func (s *matrixStack) push(e StackEntry) {
	*s = append(*s, e)
}

func (s *matrixStack) replace(e StackEntry) {
	(*s)[len(*s)-1] = e
}

// pop removes the top entry unless it is the last one.
func (s *matrixStack) pop() {
	if len(*s) > 1 {
		*s = (*s)[:len(*s)-1]
	}
}

// Matrix flag bits of opcode 0xDA, as set in the low byte of w0. They are
// extracted as found; their meaning for limb matrices is unconfirmed.
const (
	mtxNoPush     = 0x01
	mtxLoad       = 0x02
	mtxProjection = 0x04
)

// applyMatrix runs a 0xDA command addressed at segment 0x0D.
func (s *matrixStack) applyMatrix(h *skeleton.Hierarchy, flags uint8, addr uint32) {
	if flags&mtxProjection != 0 {
		s.push(s.top())
		return
	}
	e := limbEntry(h, h.MatrixLimbFor(addr))
	if flags&mtxLoad == 0 {
		// multiply: approximate the product by the midpoint with the current top
		e = StackEntry{Kind: EntryTransient, Limb: e.Limb, Pos: e.Pos.Mid(s.top().Pos)}
	}
	if flags&mtxNoPush == 0 {
		s.push(e)
	} else {
		s.replace(e)
	}
}
