package discovery

import (
	"bytes"
	"fmt"
	"image/jpeg"

	"z64import/internal/f3dzex"
	"z64import/internal/segment"
	"z64import/internal/texel"
)

// Room header commands.
const (
	cmdMeshHeader = 0x0A
	cmdEndHeader  = 0x14
)

// bgRecordSize is the stride of format 2 background records.
const bgRecordSize = 0x1C

// Background is a prerendered JFIF backdrop found in a room. Quad is the
// scaled rectangle it is drawn on, in mesh space.
type Background struct {
	Name   string
	Offset uint32
	Width  int
	Height int
	Format string
	JFIF   []byte
	Quad   [4][3]float32
}

// ImportRoom imports segment 0x03 as a room: the header walk unless the
// strategy is heuristic only, then the scan selected by the strategy.
func (im *Importer) ImportRoom() *Result {
	switch im.opts.Strategy {
	case NoDetection:
		im.walkRoomHeaders()
	case Bruteforce:
		im.Scan(segment.Room, false)
	case Smart:
		im.walkRoomHeaders()
		im.Scan(segment.Room, true)
	case TryEverything:
		im.walkRoomHeaders()
		im.Scan(segment.Room, false)
	}
	return &im.res
}

func u24(b []byte) int {
	return int(b[0])<<16 | int(b[1])<<8 | int(b[2])
}

// walkRoomHeaders follows mesh header commands until the end command.
func (im *Importer) walkRoomHeaders() {
	log := im.log.Named("room")
	data := im.segs.Bytes(segment.Room)
	for i := 0; i+8 <= len(data); i += 8 {
		switch data[i] {
		case cmdEndHeader:
			return
		case cmdMeshHeader:
			if seg := data[i+4]; seg != segment.Room {
				log.Warnf("Skipping map header located in segment 0x%02X, referenced by command at 0x%X", seg, i)
				continue
			}
			mho := u24(data[i+5:])
			if mho >= len(data) {
				log.Errorf("Mesh header offset 0x%X is past the room file size, skipping", mho)
				continue
			}
			im.meshHeader(data, mho)
		}
	}
	log.Warnf("Map headers ended unexpectedly")
}

func (im *Importer) meshHeader(data []byte, mho int) {
	log := im.log.Named("room")
	typ := data[mho]
	log.Infof("            Mesh Type: %d", typ)
	switch typ {
	case 0, 2:
		if mho+12 > len(data) {
			log.Errorf("Mesh header at 0x%X of type %d extends past the room file size, skipping", mho, typ)
			return
		}
		count := data[mho+1]
		startSeg, start := data[mho+4], u24(data[mho+5:])
		endSeg, end := data[mho+8], u24(data[mho+9:])
		if startSeg != endSeg {
			log.Errorf("Mesh header at 0x%X of type %d has start and end in different segments 0x%02X and 0x%02X, skipping", mho, typ, startSeg, endSeg)
			return
		}
		if startSeg != segment.Room {
			log.Errorf("Skipping mesh header at 0x%X of type %d: entries are in segment 0x%02X", mho, typ, startSeg)
			return
		}
		log.Infof("Reading %d display lists from 0x%X to 0x%X", count, start, end)
		stride, skip := 8, 0
		if typ == 2 {
			stride, skip = 16, 8
		}
		for j := start; j < end; j += stride {
			im.roomEntry(segment.Addr(segment.Room, j+skip))
		}
	case 1:
		if mho+8 > len(data) {
			log.Errorf("Mesh header at 0x%X of type %d extends past the room file size, skipping", mho, typ)
			return
		}
		format := data[mho+1]
		if seg := data[mho+4]; seg == segment.Room {
			im.roomEntry(segment.Addr(segment.Room, u24(data[mho+5:])))
		} else {
			log.Errorf("Skipping mesh header at 0x%X of type %d: entry is in segment 0x%02X", mho, typ, seg)
		}
		switch format {
		case 1:
			if im.background(segment.Addr(segment.Room, mho+8), "bg_%08X", 0) == nil {
				log.Errorf("Failed to import jfif background image, mesh header at 0x%X of type 1 format 1", mho)
			}
		case 2:
			im.backgroundRecords(mho)
		default:
			log.Errorf("Unknown format %d for mesh type 1 in mesh header at 0x%X", format, mho)
		}
	default:
		log.Errorf("Unknown mesh type %d in mesh header at 0x%X", typ, mho)
	}
}

// roomEntry decodes the opaque then the translucent list of one entry.
func (im *Importer) roomEntry(addr uint32) {
	opa, err := im.segs.U32(addr)
	if err != nil {
		im.log.Errorf("Room display list entry 0x%08X: %v", addr, err)
		return
	}
	xlu, err := im.segs.U32(addr + 4)
	if err != nil {
		im.log.Errorf("Room display list entry 0x%08X: %v", addr, err)
		return
	}
	if opa != 0 {
		im.ctx.UseTransparency = false
		im.build(opa, nil, 0, f3dzex.BuildParams{NameFormat: "%s_opa"})
	}
	if xlu != 0 {
		im.ctx.UseTransparency = true
		im.build(xlu, nil, 0, f3dzex.BuildParams{NameFormat: "%s_xlu"})
	}
}

// backgroundRecords imports every record of a format 2 background array.
// The record layout past the 0x0082 tag is reproduced as found, its
// meaning is unconfirmed.
func (im *Importer) backgroundRecords(mho int) {
	log := im.log.Named("room")
	count, err := im.segs.U8(segment.Addr(segment.Room, mho+8))
	if err != nil {
		log.Errorf("Mesh header at 0x%X of type 1 format 2: %v", mho, err)
		return
	}
	array, err := im.segs.U32(segment.Addr(segment.Room, mho+0xC))
	if err != nil {
		log.Errorf("Mesh header at 0x%X of type 1 format 2: %v", mho, err)
		return
	}
	if seg, _ := segment.Split(array); seg != segment.Room {
		log.Errorf("Skipping mesh header at 0x%X of type 1 format 2: backgrounds_array=0x%08X is not in segment 0x03", mho, array)
		return
	}
	for i := 0; i < int(count); i++ {
		rec := array + uint32(i*bgRecordSize)
		tag, err := im.segs.U16(rec)
		if err != nil || tag != 0x0082 {
			log.Errorf("Skipping JFIF: mesh header at 0x%X type 1 format 2 background record entry #%d at 0x%X expected unk82=0x0082, not 0x%04X", mho, i, rec&0xFFFFFF, tag)
			continue
		}
		if im.background(rec+4, fmt.Sprintf("bg_%d_%%08X", i), i) == nil {
			log.Errorf("Failed to import jfif background image from record entry #%d at 0x%X, mesh header at 0x%X of type 1 format 2", i, rec&0xFFFFFF, mho)
		}
	}
}

// bgProps is the background image description a JFIF pointer sits in.
type bgProps struct {
	Image    uint32
	Unknown  uint32
	Unknown2 int32
	Width    uint16
	Height   uint16
	Fmt      uint8
	Siz      uint8
	Pal      uint16
	Flip     uint16
}

// jfifHeader is the SOI marker, the APP0 segment and the next marker.
type jfifHeader struct {
	SOI     uint16
	APP0    uint16
	Length  uint16
	Ident   uint32
	Null    uint8
	Version uint16
	Units   uint8
	DensX   uint16
	DensY   uint16
	ThumbW  uint8
	ThumbH  uint8
	Next    uint16
}

func (h jfifHeader) problems() []string {
	var bad []string
	check := func(ok bool, format string, v ...interface{}) {
		if !ok {
			bad = append(bad, fmt.Sprintf(format, v...))
		}
	}
	check(h.SOI == 0xFFD8, "Expected marker_begin=0xFFD8 instead of 0x%04X", h.SOI)
	check(h.APP0 == 0xFFE0, "Expected marker_begin_header=0xFFE0 instead of 0x%04X", h.APP0)
	check(h.Length == 16, "Expected header_length=16 instead of %d", h.Length)
	check(h.Ident == 0x4A464946, `Expected jfif=0x4A464946="JFIF" instead of 0x%08X`, h.Ident)
	check(h.Null == 0, "Expected null=0 instead of 0x%02X", h.Null)
	check(h.Version == 0x0101, "Expected version=0x0101 instead of 0x%04X", h.Version)
	check(h.Units == 0, "Expected dens=0 instead of %d", h.Units)
	check(h.DensX == 1, "Expected densx=1 instead of %d", h.DensX)
	check(h.DensY == 1, "Expected densy=1 instead of %d", h.DensY)
	check(h.ThumbW == 0, "Expected thumbnail_width=0 instead of %d", h.ThumbW)
	check(h.ThumbH == 0, "Expected thumbnail_height=0 instead of %d", h.ThumbH)
	check(h.Next == 0xFFDB, "Expected marker_end_header=0xFFDB instead of 0x%04X", h.Next)
	return bad
}

// background reads the properties at props, validates the JFIF stream
// they point to and records it with a quad of the declared size. Row
// shifts each successive format 2 background down.
func (im *Importer) background(props uint32, nameFormat string, row int) *Background {
	log := im.log.Named("jfif")
	var p bgProps
	if err := im.segs.Decode(props, &p); err != nil {
		log.Errorf("Background properties at 0x%08X: %v", props, err)
		return nil
	}
	t := texel.Tile{Format: texel.Format(p.Fmt), Size: texel.Size(p.Siz)}
	log.Debugf("JFIF background image init properties imagePtr=0x%X size=%dx%d fmt=%d, siz=%d (%s) imagePal=%d imageFlip=%d",
		p.Image, p.Width, p.Height, p.Fmt, p.Siz, t.FormatName(), p.Pal, p.Flip)
	if seg, _ := segment.Split(p.Image); seg != segment.Room {
		log.Errorf("Skipping JFIF background image, pointer 0x%08X is not in segment 0x03", p.Image)
		return nil
	}

	var h jfifHeader
	if err := im.segs.Decode(p.Image, &h); err != nil {
		log.Errorf("JFIF header at 0x%08X: %v", p.Image, err)
		return nil
	}
	_, start := segment.Split(p.Image)
	if bad := h.problems(); len(bad) > 0 {
		log.Errorf("Bad JFIF format for background image at 0x%X:", start)
		for _, msg := range bad {
			log.Errorf("%s", msg)
		}
		return nil
	}

	data := im.segs.Bytes(segment.Room)
	end := bytes.Index(data[start:], []byte{0xFF, 0xD9})
	if end < 0 {
		log.Errorf("Did not find end marker 0xFFD9 in background image at 0x%X", start)
		return nil
	}
	stream := data[start : start+end+2]
	if cfg, err := jpeg.DecodeConfig(bytes.NewReader(stream)); err != nil {
		log.Warnf("Background image at 0x%X does not decode, exporting it as is: %v", start, err)
	} else if cfg.Width != int(p.Width) || cfg.Height != int(p.Height) {
		log.Warnf("Background image at 0x%X is %dx%d, properties declare %dx%d", start, cfg.Width, cfg.Height, p.Width, p.Height)
	}

	s := im.opts.Scale
	w, ht := float32(p.Width)*s, float32(p.Height)*s
	y := -s * 100 * float32(row)
	bg := &Background{
		Name:   im.opts.Prefix + fmt.Sprintf(nameFormat, start),
		Offset: p.Image,
		Width:  int(p.Width),
		Height: int(p.Height),
		Format: t.FormatName(),
		JFIF:   append([]byte(nil), stream...),
		Quad: [4][3]float32{
			{w, y, 0},
			{0, y, 0},
			{0, y, ht},
			{w, y, ht},
		},
	}
	im.res.Backgrounds = append(im.res.Backgrounds, bg)
	log.Infof("Found jfif image %s (%d bytes)", bg.Name, len(stream))
	return bg
}
