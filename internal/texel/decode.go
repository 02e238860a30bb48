package texel

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"

	"z64import/internal/diag"
	"z64import/internal/segment"
)

// Image is one decoded texture. Pix is always populated, top row first.
// CI textures also keep their raw Indices and Palette.
type Image struct {
	Name     string
	Format   Format
	Size     Size
	Width    int
	Height   int
	Pix      *image.NRGBA
	Indices  []uint8
	Palette  []color.NRGBA
	Fallback bool
}

var fallbackColor = color.NRGBA{0, 0, 0, 255}

// supported lists the (format, size) pairs with a texel decoder.
var supported = map[[2]uint8]bool{
	{uint8(RGBA), uint8(Bits16)}: true,
	{uint8(RGBA), uint8(Bits32)}: true,
	{uint8(CI), uint8(Bits4)}:    true,
	{uint8(CI), uint8(Bits8)}:    true,
	{uint8(IA), uint8(Bits4)}:    true,
	{uint8(IA), uint8(Bits8)}:    true,
	{uint8(IA), uint8(Bits16)}:   true,
	{uint8(I), uint8(Bits4)}:     true,
	{uint8(I), uint8(Bits8)}:     true,
}

// Supported reports whether f/s has a texel decoder.
func Supported(f Format, s Size) bool {
	return supported[[2]uint8{uint8(f), uint8(s)}]
}

// PaletteEntries is the number of palette colors read for a CI texture.
func PaletteEntries(s Size) int {
	if s == Bits4 {
		return 16
	}
	return 256
}

// DecodeRGBA16 expands a 5/5/5/1 texel.
func DecodeRGBA16(c uint16) color.NRGBA {
	return color.NRGBA{
		R: uint8(int(c>>11&0x1F) * 255 / 31),
		G: uint8(int(c>>6&0x1F) * 255 / 31),
		B: uint8(int(c>>1&0x1F) * 255 / 31),
		A: uint8(c&1) * 255,
	}
}

// DecodeTexel converts one raw texel value of a non-CI format to NRGBA.
func DecodeTexel(f Format, s Size, v uint32) (color.NRGBA, bool) {
	switch {
	case f == RGBA && s == Bits16:
		return DecodeRGBA16(uint16(v)), true
	case f == RGBA && s == Bits32:
		return color.NRGBA{uint8(v >> 24), uint8(v >> 16), uint8(v >> 8), uint8(v)}, true
	case f == IA && s == Bits4:
		i := uint8((v >> 1) * 255 / 7)
		return color.NRGBA{i, i, i, uint8(v&1) * 255}, true
	case f == IA && s == Bits8:
		i := uint8((v >> 4) * 255 / 15)
		return color.NRGBA{i, i, i, uint8((v & 0xF) * 255 / 15)}, true
	case f == IA && s == Bits16:
		i := uint8(v >> 8)
		return color.NRGBA{i, i, i, uint8(v)}, true
	case f == I && s == Bits4:
		i := uint8(v * 255 / 15)
		return color.NRGBA{i, i, i, i}, true
	case f == I && s == Bits8:
		i := uint8(v)
		return color.NRGBA{i, i, i, i}, true
	}
	return fallbackColor, false
}

// Options controls decoding.
type Options struct {
	ReplicateMirror bool
}

// Decode reads the texture selected by t from segs. The returned image is
// always well-formed; when err is non-nil it holds fallback texels and
// img.Fallback is set.
func Decode(t *Tile, segs *segment.Table, o Options) (*Image, error) {
	w, h := t.RDims[0], t.RDims[1]
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	mx := t.Mirror[0] && o.ReplicateMirror
	my := t.Mirror[1] && o.ReplicateMirror

	img := &Image{Format: t.Format, Size: t.Size}

	var palErr error
	if t.Format == CI {
		img.Palette, palErr = readPalette(segs, t.Palette, PaletteEntries(t.Size))
	}

	var dataErr error
	nbytes := (h * w * t.Size.nibbles()) / 2
	if nbytes < 1 {
		nbytes = 1
	}
	if !Supported(t.Format, t.Size) {
		dataErr = errors.Wrapf(diag.ErrUnknownEncoding, "fmt/siz combination %d/%d (%s)", t.Format, t.Size, t.FormatName())
	} else if !segs.ValidRange(t.Data, nbytes) {
		dataErr = errors.Wrapf(diag.ErrOutOfRange, "texture data 0x%X-0x%X", t.Data, t.Data+uint32(nbytes)-1)
	}

	if t.Format == CI {
		idx := make([]uint8, w*h)
		if dataErr == nil {
			idx = readIndices(segs, t, w, h)
		}
		img.Indices, img.Width, img.Height = mirrorGrid(idx, w, h, 1, mx, my)
		img.Pix = resolvePalette(img.Indices, img.Palette, img.Width, img.Height)
	} else {
		var base *image.NRGBA
		if dataErr == nil {
			base = readColors(segs, t, w, h)
		} else {
			base = image.NewNRGBA(image.Rect(0, 0, w, h))
			draw.Draw(base, base.Bounds(), image.NewUniform(fallbackColor), image.Point{}, draw.Src)
		}
		img.Pix = mirrorImage(base, mx, my)
		img.Width, img.Height = img.Pix.Rect.Dx(), img.Pix.Rect.Dy()
	}

	switch {
	case dataErr != nil && palErr != nil:
		img.Fallback = true
		return img, errors.Wrapf(dataErr, "and %v", palErr)
	case dataErr != nil:
		img.Fallback = true
		return img, dataErr
	case palErr != nil:
		img.Fallback = true
		return img, palErr
	}
	return img, nil
}

// readPalette reads n RGBA16 entries. On failure it returns a fully
// transparent black palette together with the error.
func readPalette(segs *segment.Table, addr uint32, n int) ([]color.NRGBA, error) {
	pal := make([]color.NRGBA, n)
	b, err := segs.Read(addr, n*2)
	if err != nil {
		return pal, errors.Wrapf(err, "palette 0x%X-0x%X", addr, addr+uint32(n*2)-1)
	}
	for i := range pal {
		pal[i] = DecodeRGBA16(uint16(b[i*2])<<8 | uint16(b[i*2+1]))
	}
	return pal, nil
}

// rawTexel returns texel x of the row starting at byte offset row.
func rawTexel(data []byte, row, x int, s Size) uint32 {
	switch s {
	case Bits4:
		b := data[row+x/2]
		if x%2 == 0 {
			return uint32(b >> 4)
		}
		return uint32(b & 0xF)
	case Bits8:
		return uint32(data[row+x])
	case Bits16:
		o := row + x*2
		return uint32(data[o])<<8 | uint32(data[o+1])
	}
	o := row + x*4
	return uint32(data[o])<<24 | uint32(data[o+1])<<16 | uint32(data[o+2])<<8 | uint32(data[o+3])
}

func textureBytes(segs *segment.Table, t *Tile) []byte {
	seg, off := segment.Split(t.Data)
	return segs.Bytes(seg)[off:]
}

func rowOffset(y, w int, s Size) int {
	return (y * w * s.nibbles()) / 2
}

func readIndices(segs *segment.Table, t *Tile, w, h int) []uint8 {
	data := textureBytes(segs, t)
	idx := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		row := rowOffset(y, w, t.Size)
		for x := 0; x < w; x++ {
			idx[y*w+x] = uint8(rawTexel(data, row, x, t.Size))
		}
	}
	return idx
}

func readColors(segs *segment.Table, t *Tile, w, h int) *image.NRGBA {
	data := textureBytes(segs, t)
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		row := rowOffset(y, w, t.Size)
		for x := 0; x < w; x++ {
			c, _ := DecodeTexel(t.Format, t.Size, rawTexel(data, row, x, t.Size))
			dst.SetNRGBA(x, y, c)
		}
	}
	return dst
}

func resolvePalette(idx []uint8, pal []color.NRGBA, w, h int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i, p := range idx {
		c := fallbackColor
		if int(p) < len(pal) {
			c = pal[p]
		}
		dst.SetNRGBA(i%w, i/w, c)
	}
	return dst
}

// mirrorImage doubles src horizontally (original | reflected) and/or
// vertically (reflected on top, original below).
func mirrorImage(src *image.NRGBA, mx, my bool) *image.NRGBA {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	out := src
	if mx {
		flipped := image.NewNRGBA(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				flipped.SetNRGBA(x, y, src.NRGBAAt(w-1-x, y))
			}
		}
		out = image.NewNRGBA(image.Rect(0, 0, w*2, h))
		draw.Copy(out, image.Pt(0, 0), src, src.Bounds(), draw.Src, nil)
		draw.Copy(out, image.Pt(w, 0), flipped, flipped.Bounds(), draw.Src, nil)
		w *= 2
	}
	if my {
		flipped := image.NewNRGBA(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				flipped.SetNRGBA(x, y, out.NRGBAAt(x, h-1-y))
			}
		}
		doubled := image.NewNRGBA(image.Rect(0, 0, w, h*2))
		draw.Copy(doubled, image.Pt(0, 0), flipped, flipped.Bounds(), draw.Src, nil)
		draw.Copy(doubled, image.Pt(0, h), out, out.Bounds(), draw.Src, nil)
		out = doubled
	}
	return out
}

// mirrorGrid is mirrorImage for a raw grid of elem-byte cells.
func mirrorGrid(pix []uint8, w, h, elem int, mx, my bool) ([]uint8, int, int) {
	if mx {
		out := make([]uint8, 0, len(pix)*2)
		for y := 0; y < h; y++ {
			row := pix[y*w*elem : (y+1)*w*elem]
			out = append(out, row...)
			for x := w - 1; x >= 0; x-- {
				out = append(out, row[x*elem:(x+1)*elem]...)
			}
		}
		pix, w = out, w*2
	}
	if my {
		stride := w * elem
		out := make([]uint8, 0, len(pix)*2)
		for y := h - 1; y >= 0; y-- {
			out = append(out, pix[y*stride:(y+1)*stride]...)
		}
		out = append(out, pix...)
		pix, h = out, h*2
	}
	return pix, w, h
}
