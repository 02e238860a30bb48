package texel

import (
	"fmt"

	"z64import/internal/diag"
)

// Format is the 3-bit texel format field of a tile.
type Format uint8

const (
	RGBA Format = 0
	YUV  Format = 1
	CI   Format = 2
	IA   Format = 3
	I    Format = 4
)

func (f Format) String() string {
	switch f {
	case RGBA:
		return "RGBA"
	case YUV:
		return "YUV"
	case CI:
		return "CI"
	case IA:
		return "IA"
	case I:
		return "I"
	}
	return "UnkFmt"
}

// Size is the 2-bit bits-per-texel field of a tile.
type Size uint8

const (
	Bits4  Size = 0
	Bits8  Size = 1
	Bits16 Size = 2
	Bits32 Size = 3
)

func (s Size) String() string {
	switch s {
	case Bits4:
		return "4"
	case Bits8:
		return "8"
	case Bits16:
		return "16"
	case Bits32:
		return "32"
	}
	return "_UnkSiz"
}

// nibbles returns the texel width in 4-bit units.
func (s Size) nibbles() int {
	return 1 << s
}

// Tile is the state of one tile descriptor. The lower block of fields is
// derived by CalculateSize.
type Tile struct {
	Format   Format
	Size     Size
	LineSize int
	// Rect is uls, ult, lrs, lrt in texels.
	Rect    [4]int
	Mirror  [2]bool
	Wrap    [2]bool
	Mask    [2]int
	TShift  [2]int
	Scale   [2]float32
	Data    uint32
	Palette uint32

	Dims   [2]int
	RDims  [2]int
	Shift  [2]float32
	Ratio  [2]float32
	Offset [2]float32
}

// NewTile returns a tile with unit scale and ratio.
func NewTile() Tile {
	return Tile{
		Scale: [2]float32{1, 1},
		Ratio: [2]float32{1, 1},
	}
}

// FormatName returns e.g. "CI4" or "RGBA16".
func (t *Tile) FormatName() string {
	return t.Format.String() + t.Size.String()
}

// sizeRule is one row of the texel budget table.
type sizeRule struct {
	formats   [2]Format
	size      Size
	maxTexels int
	lineShift int
}

var sizeRules = []sizeRule{
	{[2]Format{RGBA, CI}, Bits4, 4096, 4},
	{[2]Format{IA, I}, Bits4, 8192, 4},
	{[2]Format{RGBA, CI}, Bits8, 2048, 3},
	{[2]Format{IA, I}, Bits8, 4096, 3},
	{[2]Format{RGBA, IA}, Bits16, 2048, 2},
	{[2]Format{CI, I}, Bits16, 2048, 0},
	{[2]Format{RGBA, RGBA}, Bits32, 1024, 2},
}

// budget returns the max texel count and line shift for the tile's
// format/size, ok=false when the combination has no entry.
func (t *Tile) budget() (maxTexels, lineShift int, ok bool) {
	for _, r := range sizeRules {
		if t.Size == r.size && (t.Format == r.formats[0] || t.Format == r.formats[1]) {
			return r.maxTexels, r.lineShift, true
		}
	}
	return 0, 0, false
}

func pow2(v int) int {
	i := 1
	for i < v {
		i <<= 1
	}
	return i
}

func powof(v int) int {
	num, i := 1, 0
	for num < v {
		num <<= 1
		i++
	}
	return i
}

// CalculateSize recomputes Dims, RDims, Shift, Ratio and Offset from the
// rectangle, mask, wrap/mirror flags and the format budget. It may lower
// Mask when the mask period exceeds the computed dimension.
func (t *Tile) CalculateSize(replicateMirror bool, log diag.Logger) {
	maxTxl, _, ok := t.budget()
	if !ok {
		log.Warnf("Unknown format for texture %s (texFmt %d texSiz %d)", t.FormatName(), t.Format, t.Size)
	}

	// The line size is used unshifted; the shifted value was never applied.
	lineSize := [2]int{t.LineSize, 0}
	tileSize := [2]int{t.Rect[2] - t.Rect[0] + 1, t.Rect[3] - t.Rect[1] + 1}
	maskSize := [2]int{1 << uint(t.Mask[0]), 1 << uint(t.Mask[1])}

	if lineSize[0] > 0 {
		lineSize[1] = maxTxl / lineSize[0]
		if tileSize[1] < lineSize[1] {
			lineSize[1] = tileSize[1]
		}
	}

	for i := 0; i < 2; i++ {
		switch {
		case t.Mask[i] > 0 && maskSize[0]*maskSize[1] <= maxTxl:
			t.Dims[i] = maskSize[i]
		case tileSize[0]*tileSize[1] <= maxTxl:
			t.Dims[i] = tileSize[i]
		default:
			t.Dims[i] = lineSize[i]
		}

		clamp := t.Dims[i]
		if t.Mirror[i] && t.Wrap[i] {
			clamp = tileSize[i]
		}

		if maskSize[i] > t.Dims[i] {
			t.Mask[i] = powof(t.Dims[i])
			maskSize[i] = 1 << uint(t.Mask[i])
		}

		switch {
		case !t.Wrap[i]:
			t.RDims[i] = pow2(clamp)
		case t.Mirror[i]:
			t.RDims[i] = pow2(maskSize[i])
		default:
			t.RDims[i] = pow2(t.Dims[i])
		}

		t.Shift[i] = 1
		if t.TShift[i] > 10 {
			t.Shift[i] = float32(int(1) << uint(16-t.TShift[i]))
		} else if t.TShift[i] > 0 {
			t.Shift[i] /= float32(int(1) << uint(t.TShift[i]))
		}

		t.Ratio[i] = (t.Scale[i] * t.Shift[i]) / float32(t.RDims[i]) / 32
		if t.Mirror[i] && replicateMirror {
			t.Ratio[i] /= 2
		}
		t.Offset[i] = float32(t.Rect[i])
	}
	t.Offset[1] += 1
}

// UV maps raw vertex texel coordinates into image space through the
// derived offset and ratio.
func (t *Tile) UV(s, u int16) [2]float32 {
	return [2]float32{
		t.Offset[0] + float32(s)*t.Ratio[0],
		t.Offset[1] - float32(u)*t.Ratio[1],
	}
}

// NameOptions controls the decorations added to texture names.
type NameOptions struct {
	Prefix          string
	ReplicateMirror bool
	MirrorTags      bool
	ClampTags       bool
}

// TextureName returns the stable name of the texture this tile selects.
func (t *Tile) TextureName(o NameOptions) string {
	suffix := ""
	if t.Mirror[0] && o.MirrorTags {
		suffix += "#MirrorX"
	}
	if t.Mirror[1] && o.MirrorTags {
		suffix += "#MirrorY"
	}
	if !t.Wrap[0] && o.ClampTags {
		suffix += "#ClampX"
	}
	if !t.Wrap[1] && o.ClampTags {
		suffix += "#ClampY"
	}
	pal := ""
	if t.Format == CI {
		pal = fmt.Sprintf("_pal%08X", t.Palette)
	}
	return fmt.Sprintf("%s%s_%08X%s%s", o.Prefix, t.FormatName(), t.Data, pal, suffix)
}
