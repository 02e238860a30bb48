package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"z64import/internal/config"
	"z64import/internal/diag"
	"z64import/internal/export"
	"z64import/internal/segment"
	"z64import/internal/texel"
)

type texRequest struct {
	addr    uint32
	palette uint32
	format  texel.Format
	size    texel.Size
	width   int
	height  int
}

var formats = map[string]texel.Format{
	"RGBA": texel.RGBA, "YUV": texel.YUV, "CI": texel.CI, "IA": texel.IA, "I": texel.I,
}

var sizes = map[string]texel.Size{
	"4": texel.Bits4, "8": texel.Bits8, "16": texel.Bits16, "32": texel.Bits32,
}

// parseFormat reads a format name such as "CI4" or "RGBA16".
func parseFormat(s string) (texel.Format, texel.Size, error) {
	s = strings.ToUpper(s)
	i := strings.IndexAny(s, "0123456789")
	if i <= 0 {
		return 0, 0, fmt.Errorf("bad texture format %q", s)
	}
	f, ok := formats[s[:i]]
	z, ok2 := sizes[s[i:]]
	if !ok || !ok2 {
		return 0, 0, fmt.Errorf("bad texture format %q", s)
	}
	return f, z, nil
}

func parseAddr(s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 32)
	return uint32(v), err
}

func dumpTexture(segs *segment.Table, req texRequest, out, format string) error {
	t := texel.NewTile()
	t.Format, t.Size = req.format, req.size
	t.Data, t.Palette = req.addr, req.palette
	t.Rect = [4]int{0, 0, req.width - 1, req.height - 1}
	t.Wrap = [2]bool{true, true}
	t.LineSize = req.width
	t.CalculateSize(false, diag.Discard)

	img, err := texel.Decode(&t, segs, texel.Options{})
	img.Name = t.TextureName(texel.NameOptions{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARN %s: %v\n", img.Name, err)
	}

	rel, werr := export.WriteTexture(out, img, "", format)
	if werr != nil {
		return fmt.Errorf("write %s: %w", img.Name, werr)
	}
	fmt.Printf("OK  %s -> %s  (%dx%d)\n", img.Name, rel, img.Width, img.Height)
	return nil
}

func main() {
	segFile := flag.String("file", "", "Segment file holding the texture")
	segID := flag.String("seg", "06", "Segment id the file is loaded as")
	palFile := flag.String("palfile", "", "Optional file loaded as the palette segment")
	palSeg := flag.String("palseg", "", "Segment id of -palfile")
	addr := flag.String("addr", "", "Texture address, e.g. 06001000")
	pal := flag.String("pal", "", "Palette address for CI textures")
	fmtName := flag.String("fmt", "RGBA16", "Texel format: RGBA16, RGBA32, CI4, CI8, IA4, IA8, IA16, I4, I8")
	width := flag.Int("w", 32, "Width in texels")
	height := flag.Int("h", 32, "Height in texels")
	outDir := flag.String("out", ".", "Output directory")
	outFmt := flag.String("format", export.FormatTGA, "tga or webp")
	flag.Parse()

	fail := func(err error) {
		fmt.Fprintf(os.Stderr, "ERR %v\n", err)
		os.Exit(1)
	}

	var segs segment.Table
	load := func(idArg, path string) {
		id, err := config.ParseSegmentID(idArg)
		if err != nil {
			fail(err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			fail(err)
		}
		if err := segs.Load(id, data); err != nil {
			fail(err)
		}
	}
	if *segFile == "" || *addr == "" {
		fmt.Fprintln(os.Stderr, "usage: texdump -file object.zobj -addr 06001000 -fmt CI4 -pal 06000800 -w 32 -h 32")
		os.Exit(2)
	}
	load(*segID, *segFile)
	if *palFile != "" {
		load(*palSeg, *palFile)
	}

	req := texRequest{width: *width, height: *height}
	var err error
	if req.format, req.size, err = parseFormat(*fmtName); err != nil {
		fail(err)
	}
	if req.addr, err = parseAddr(*addr); err != nil {
		fail(fmt.Errorf("bad address %q", *addr))
	}
	if *pal != "" {
		if req.palette, err = parseAddr(*pal); err != nil {
			fail(fmt.Errorf("bad palette address %q", *pal))
		}
	}
	if req.width < 1 || req.height < 1 {
		fail(fmt.Errorf("bad size %dx%d", req.width, req.height))
	}

	if err := dumpTexture(&segs, req, *outDir, *outFmt); err != nil {
		fail(err)
	}
}
