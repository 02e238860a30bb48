package anim

import (
	"github.com/pkg/errors"

	"z64import/internal/diag"
	"z64import/internal/mathutil"
	"z64import/internal/segment"
)

// Rotation is the per-frame rotation of one bone in degrees. Ok is false
// when the bone had no data for the frame.
type Rotation struct {
	Bone    int
	Degrees [3]float64
	Ok      bool
}

// Frame is one decoded keyframe: the root translation plus one rotation
// per bone.
type Frame struct {
	Translation [3]float32
	Rotations   []Rotation
}

// Track is a decoded animation.
type Track struct {
	Name   string
	Offset uint32
	Bones  int
	Frames []Frame
}

// header is the 16-byte standard animation header.
type header struct {
	Frames    int16
	_         uint16
	RotValues uint32
	RotIndex  uint32
	Limit     uint16
	_         uint16
}

// rotationTable resolves indices into the rotation value table.
type rotationTable struct {
	segs   *segment.Table
	seg    int
	values int
	maxLen int
}

// value returns entry index. ok is false when index is past the table or
// past the segment.
func (t rotationTable) value(index int) (int16, bool) {
	if index < 0 || (t.maxLen != 0 && index >= t.maxLen) {
		return 0, false
	}
	v, err := t.segs.I16(segment.Addr(t.seg, t.values+2*index))
	if err != nil {
		return 0, false
	}
	return v, true
}

// limited applies the Limit rule: indices at or above limit advance with
// the frame, lower ones name a constant.
func limited(idx [3]int16, limit uint16, frame int) [3]int {
	var out [3]int
	for k, v := range idx {
		out[k] = int(v)
		if int(v) >= int(limit) {
			out[k] += frame
		}
	}
	return out
}

// DecodeStandard decodes the indexed animation at addr for a skeleton of
// bones limbs. Bones past the end of the index table are skipped.
func DecodeStandard(segs *segment.Table, addr uint32, bones int, scale float32, log diag.Logger) (*Track, error) {
	if !segs.Valid(addr) {
		return nil, errors.Wrapf(diag.ErrOutOfRange, "animation 0x%08X", addr)
	}
	var h header
	if err := segs.Decode(addr, &h); err != nil {
		return nil, errors.Wrapf(err, "animation header 0x%08X", addr)
	}
	seg, _ := segment.Split(addr)
	values := int(h.RotValues & 0x00FFFFFF)
	index := int(h.RotIndex & 0x00FFFFFF)
	if h.Frames < 0 {
		return nil, errors.Wrapf(diag.ErrMalformedHeader, "animation 0x%08X has %d frames", addr, h.Frames)
	}

	maxLen := (index - values) / 2
	if maxLen < 0 {
		log.Infof("rotation indices (animation data) is located before indexed rotation values, this is weird but fine")
		maxLen = (segs.Len(seg) - values) / 2
	}
	table := rotationTable{segs: segs, seg: seg, values: values, maxLen: maxLen}

	tr := &Track{Offset: addr, Bones: bones, Frames: make([]Frame, h.Frames)}
	for f := range tr.Frames {
		fr := &tr.Frames[f]
		if idx, err := segs.I16x3(segment.Addr(seg, index)); err == nil {
			for k, i := range limited(idx, h.Limit, f) {
				v, _ := table.value(i)
				fr.Translation[k] = float32(v) * scale
			}
		}

		fr.Rotations = make([]Rotation, bones)
		for b := 0; b < bones; b++ {
			fr.Rotations[b].Bone = b
			if index+b*6+12 > segs.Len(seg) {
				log.Tracef("Ignoring bone %d in animation 0x%08X, rotation table does not have that many entries", b, addr)
				continue
			}
			idx, err := segs.I16x3(segment.Addr(seg, index+6+6*b))
			if err != nil {
				continue
			}
			rot, ok := resolveRotation(table, limited(idx, h.Limit, f))
			if !ok {
				log.Tracef("Ignoring bone %d in animation 0x%08X, rotation table did not have the entry", b, addr)
				continue
			}
			fr.Rotations[b] = Rotation{Bone: b, Degrees: rot, Ok: true}
		}
	}
	return tr, nil
}

func resolveRotation(t rotationTable, idx [3]int) ([3]float64, bool) {
	var deg [3]float64
	for k, i := range idx {
		v, ok := t.value(i)
		if !ok {
			return deg, false
		}
		deg[k] = mathutil.UnitsToDegrees(v)
	}
	return deg, true
}
