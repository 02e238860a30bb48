package anim

import (
	"fmt"

	"github.com/pkg/errors"

	"z64import/internal/diag"
	"z64import/internal/mathutil"
	"z64import/internal/segment"
)

// Link animation table ranges in segment 0x04, as [start, end).
var (
	LinkTable        = [2]int{0x2310, 0x34F8}
	LinkTableMajora  = [2]int{0xD000, 0xE4F8}
	linkTableStride  = 8
	linkTranslationK = float32(79)
	linkZOffset      = float32(25.5)
)

// LinkEntry is one record of the fixed Link animation table.
type LinkEntry struct {
	Frames int
	Data   uint32
}

// LocateLink reads the Link animation table. It returns nil when segment
// 0x04 is not loaded.
func LocateLink(segs *segment.Table, majora bool, log diag.Logger) []LinkEntry {
	if segs.Len(segment.LinkAnimTable) == 0 {
		return nil
	}
	rng := LinkTable
	if majora {
		rng = LinkTableMajora
	}
	var out []LinkEntry
	for off := rng[0]; off < rng[1]; off += linkTableStride {
		addr := segment.Addr(segment.LinkAnimTable, off)
		frames, err := segs.I16(addr)
		if err != nil {
			log.Warnf("Link animation table ends early at 0x%X: %v", off, err)
			break
		}
		data, err := segs.U32(addr + 4)
		if err != nil {
			log.Warnf("Link animation table ends early at 0x%X: %v", off, err)
			break
		}
		out = append(out, LinkEntry{Frames: int(frames), Data: data})
		log.Debugf("- Animation #%d offset: %07X frames: %d", len(out), data, frames)
	}
	return out
}

// LinkStride is the byte length of one Link animation frame.
func LinkStride(bones int) int {
	return bones*6 + 8
}

// DecodeLink decodes one Link animation. rootPos is the raw position of
// the skeleton's first limb, added to every frame's root translation.
func DecodeLink(segs *segment.Table, e LinkEntry, bones int, rootPos [3]int16) (*Track, error) {
	seg, base := segment.Split(e.Data)
	if e.Frames < 0 {
		return nil, errors.Wrapf(diag.ErrMalformedHeader, "link animation 0x%08X has %d frames", e.Data, e.Frames)
	}
	tr := &Track{
		Name:   fmt.Sprintf("link_%08X_%d", e.Data, e.Frames),
		Offset: e.Data,
		Bones:  bones,
		Frames: make([]Frame, e.Frames),
	}
	stride := LinkStride(bones)
	for f := range tr.Frames {
		at := base + f*stride
		raw, err := segs.I16x3(segment.Addr(seg, at))
		if err != nil {
			return nil, errors.Wrapf(err, "link animation frame %d", f)
		}
		var t [3]float32
		for k := range t {
			t[k] = float32(int(raw[k])+int(rootPos[k])) / linkTranslationK
		}
		t[2] -= linkZOffset
		fr := &tr.Frames[f]
		fr.Translation = [3]float32{t[0], t[2], t[1]}
		fr.Rotations = make([]Rotation, bones)
		for b := 0; b < bones; b++ {
			fr.Rotations[b].Bone = b
			r, err := segs.I16x3(segment.Addr(seg, at+6+6*b))
			if err != nil {
				continue
			}
			fr.Rotations[b] = Rotation{
				Bone:    b,
				Degrees: [3]float64{mathutil.UnitsToDegrees(r[0]), mathutil.UnitsToDegrees(r[1]), mathutil.UnitsToDegrees(r[2])},
				Ok:      true,
			}
		}
	}
	return tr, nil
}
