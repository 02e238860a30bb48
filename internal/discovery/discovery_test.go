package discovery

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/jpeg"
	"strings"
	"testing"

	"z64import/internal/diag"
	"z64import/internal/f3dzex"
	"z64import/internal/segment"
)

var be = binary.BigEndian

func put32(b []byte, off int, v ...uint32) {
	for i, x := range v {
		be.PutUint32(b[off+4*i:], x)
	}
}

// triangleList writes load-3-vertices, one triangle and 0xDF at off, with
// three vertex records at verts.
func triangleList(data []byte, seg, off, verts int) {
	put32(data, off,
		0x01<<24|3<<12|3<<1, segment.Addr(seg, verts),
		0x05<<24|0<<16|2<<8|4, 0,
		0xDF000000, 0,
	)
	for i, p := range [][3]int16{{0, 0, 0}, {100, 0, 0}, {0, 100, 0}} {
		rec := data[verts+16*i:]
		for k, v := range p {
			be.PutUint16(rec[2*k:], uint16(v))
		}
		rec[12], rec[13], rec[14], rec[15] = 0xFF, 0xFF, 0xFF, 0xFF
	}
}

// objectSegment holds a triangle list at 0, vertices at 0x100, one limb
// record at 0x130 pointing at the list, its index table at 0x140 and the
// hierarchy header at 0x144.
func objectSegment() []byte {
	data := make([]byte, 0x150)
	triangleList(data, segment.Object, 0, 0x100)
	put32(data, 0x130, 0, 0x0000FFFF, 0x06000000, 0)
	put32(data, 0x140, 0x06000130)
	put32(data, 0x144, 0x06000140, 0x01000000, 0x01000000)
	return data
}

func newImporter(t *testing.T, segs *segment.Table, o Options, log diag.Logger) (*Importer, *f3dzex.Collector) {
	t.Helper()
	fo := f3dzex.DefaultOptions()
	fo.Scale = o.Scale
	sink := &f3dzex.Collector{}
	ctx := f3dzex.NewContext(segs, fo, sink, log)
	return NewImporter(ctx, o, log), sink
}

func triangles(ms []*f3dzex.Mesh) int {
	n := 0
	for _, m := range ms {
		n += len(m.Tris)
	}
	return n
}

func TestParseStrategy(t *testing.T) {
	for _, s := range []Strategy{NoDetection, Bruteforce, Smart, TryEverything} {
		got, err := ParseStrategy(strings.ToLower(s.String()))
		if err != nil || got != s {
			t.Errorf("ParseStrategy(%q) = %v, %v", s.String(), got, err)
		}
	}
	if _, err := ParseStrategy("GUESS"); err == nil {
		t.Error("ParseStrategy accepted an unknown strategy")
	}
}

func TestParseDisplayLists(t *testing.T) {
	rec := diag.NewRecorder()
	got, err := ParseDisplayLists(strings.NewReader("0x06000010\r\n100\nzz\n\n0300002A\n"), rec)
	if err != nil {
		t.Fatal(err)
	}
	want := []uint32{0x06000010, 0x06000100, 0x0300002A}
	if len(got) != len(want) {
		t.Fatalf("ParseDisplayLists = %X want %X", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = 0x%08X want 0x%08X", i, got[i], want[i])
		}
	}
	if rec.Count(diag.LevelWarn) != 1 || rec.Count(diag.LevelError) != 1 {
		t.Errorf("warnings = %d errors = %d want 1, 1", rec.Count(diag.LevelWarn), rec.Count(diag.LevelError))
	}
}

func TestScanSkipsAlreadyRead(t *testing.T) {
	data := make([]byte, 0x130)
	triangleList(data, segment.Object, 0, 0x100)
	var segs segment.Table
	segs.Load(segment.Object, data)

	im, sink := newImporter(t, &segs, Options{Scale: 1}, diag.Discard)
	im.Scan(segment.Object, false)
	if len(sink.Meshes) != 1 || triangles(sink.Meshes) != 1 {
		t.Fatalf("first scan meshes = %d tris = %d want 1, 1", len(sink.Meshes), triangles(sink.Meshes))
	}
	if sink.Meshes[0].Name != "me_06000000_detect" {
		t.Errorf("Name = %q", sink.Meshes[0].Name)
	}

	before := triangles(sink.Meshes)
	im.Scan(segment.Object, true)
	if got := triangles(sink.Meshes) - before; got != 0 {
		t.Errorf("rescan with skip decoded %d more triangles want 0", got)
	}
	im.Scan(segment.Object, false)
	if got := triangles(sink.Meshes) - before; got != 1 {
		t.Errorf("rescan without skip decoded %d more triangles want 1", got)
	}
}

func TestScanExcludesUnimplemented(t *testing.T) {
	data := make([]byte, 0x130)
	triangleList(data, segment.Object, 0x10, 0x100)
	data[0x08] = 0xE5
	var segs segment.Table
	segs.Load(segment.Object, data)

	rec := diag.NewRecorder()
	im, sink := newImporter(t, &segs, Options{Scale: 1, ExcludeUnimplemented: true}, rec)
	im.Scan(segment.Object, false)
	if len(sink.Meshes) != 1 || sink.Meshes[0].Offset != 0x06000010 {
		t.Fatalf("meshes = %+v want one starting after the excluded opcode", sink.Meshes)
	}
}

func TestImportObject(t *testing.T) {
	var segs segment.Table
	segs.Load(segment.Object, objectSegment())

	im, sink := newImporter(t, &segs, Options{Strategy: Smart, Scale: 1, LoadAnimations: true}, diag.Discard)
	res := im.ImportObject(nil)
	if len(res.Hierarchies) != 1 || res.Hierarchies[0].Offset != 0x06000144 {
		t.Fatalf("hierarchies = %+v", res.Hierarchies)
	}
	if len(sink.Meshes) != 1 {
		t.Fatalf("meshes = %d want 1 (smart scan must skip the limb list)", len(sink.Meshes))
	}
	m := sink.Meshes[0]
	if m.Hierarchy != res.Hierarchies[0] || len(m.Groups()["limb_00"]) != 3 {
		t.Errorf("groups = %v", m.Groups())
	}
	if res.Armature != nil || len(res.Tracks) != 0 {
		t.Errorf("animations decoded from an object without any: %+v", res.Tracks)
	}

	var again segment.Table
	again.Load(segment.Object, objectSegment())
	im, sink = newImporter(t, &again, Options{Strategy: Bruteforce, Scale: 1}, diag.Discard)
	im.ImportObject([]uint32{0x06000000})
	if len(sink.Meshes) != 3 {
		t.Errorf("bruteforce meshes = %d want 3", len(sink.Meshes))
	}
}

// roomSegment has a mesh header command pointing at a type 0 header with
// one entry whose opaque list is at 0x40.
func roomSegment() []byte {
	data := make([]byte, 0x130)
	put32(data, 0x00, 0x0A000000, 0x03000020, 0x14000000, 0)
	put32(data, 0x20, 0x00010000, 0x03000030, 0x03000038)
	put32(data, 0x30, 0x03000040, 0)
	triangleList(data, segment.Room, 0x40, 0x100)
	return data
}

func TestImportRoomHeaders(t *testing.T) {
	var segs segment.Table
	segs.Load(segment.Room, roomSegment())

	rec := diag.NewRecorder()
	im, sink := newImporter(t, &segs, Options{Strategy: Smart, Scale: 1}, rec)
	im.ImportRoom()
	if len(sink.Meshes) != 1 || sink.Meshes[0].Name != "me_03000040_opa" {
		t.Fatalf("meshes = %+v", sink.Meshes)
	}
	if rec.Count(diag.LevelError) != 0 {
		t.Errorf("errors = %v", rec.Entries())
	}
}

func TestImportRoomForeignSegment(t *testing.T) {
	data := roomSegment()
	data[0x04] = 0x02
	var segs segment.Table
	segs.Load(segment.Room, data)

	rec := diag.NewRecorder()
	im, sink := newImporter(t, &segs, Options{Strategy: NoDetection, Scale: 1}, rec)
	im.ImportRoom()
	if len(sink.Meshes) != 0 || rec.Count(diag.LevelWarn) != 1 {
		t.Errorf("meshes = %d warnings = %d want 0, 1", len(sink.Meshes), rec.Count(diag.LevelWarn))
	}
}

// jfif returns a baseline JPEG carrying the APP0 header rooms use.
func jfif(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h)), nil); err != nil {
		t.Fatal(err)
	}
	enc := buf.Bytes()
	app0 := []byte{0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0, 1, 1, 0, 0, 1, 0, 1, 0, 0}
	out := append([]byte{0xFF, 0xD8}, app0...)
	return append(out, enc[2:]...)
}

// backgroundRoom has a type 1 format 1 header at 0x20 with its JFIF
// stream at 0x100.
func backgroundRoom(t *testing.T) []byte {
	img := jfif(t, 8, 8)
	data := make([]byte, 0x100+len(img))
	put32(data, 0x00, 0x0A000000, 0x03000020, 0x14000000, 0)
	put32(data, 0x20, 0x01010000, 0x03000040)
	put32(data, 0x28, 0x03000100, 0, 0)
	be.PutUint16(data[0x34:], 8)
	be.PutUint16(data[0x36:], 8)
	copy(data[0x100:], img)
	return data
}

func TestImportRoomBackground(t *testing.T) {
	var segs segment.Table
	segs.Load(segment.Room, backgroundRoom(t))

	rec := diag.NewRecorder()
	im, _ := newImporter(t, &segs, Options{Strategy: NoDetection, Scale: 1}, rec)
	res := im.ImportRoom()
	if len(res.Backgrounds) != 1 {
		t.Fatalf("backgrounds = %d want 1 (log %v)", len(res.Backgrounds), rec.Entries())
	}
	bg := res.Backgrounds[0]
	if bg.Name != "bg_00000100" || bg.Width != 8 || bg.Height != 8 {
		t.Errorf("background = %s %dx%d", bg.Name, bg.Width, bg.Height)
	}
	if !bytes.HasSuffix(bg.JFIF, []byte{0xFF, 0xD9}) {
		t.Error("JFIF stream not cut at the end marker")
	}
	if bg.Quad[3] != [3]float32{8, 0, 8} {
		t.Errorf("quad corner = %v want [8 0 8]", bg.Quad[3])
	}
}

func TestImportRoomBadBackground(t *testing.T) {
	data := backgroundRoom(t)
	copy(data[0x106:], "JPEG")
	var segs segment.Table
	segs.Load(segment.Room, data)

	rec := diag.NewRecorder()
	im, _ := newImporter(t, &segs, Options{Strategy: NoDetection, Scale: 1}, rec)
	if res := im.ImportRoom(); len(res.Backgrounds) != 0 {
		t.Errorf("backgrounds = %d want 0", len(res.Backgrounds))
	}
	if rec.Count(diag.LevelError) < 2 {
		t.Errorf("errors = %d want the header complaint and the import failure", rec.Count(diag.LevelError))
	}
}

func TestImportRoomUndecodableBackgroundKept(t *testing.T) {
	data := backgroundRoom(t)
	// keep the checked header and its DQT marker, then cut the stream short
	body := []byte{0x00, 0x03, 0x00, 0xFF, 0xD9}
	copy(data[0x100+22:], body)
	var segs segment.Table
	segs.Load(segment.Room, data)

	rec := diag.NewRecorder()
	im, _ := newImporter(t, &segs, Options{Strategy: NoDetection, Scale: 1}, rec)
	res := im.ImportRoom()
	if len(res.Backgrounds) != 1 {
		t.Fatalf("backgrounds = %d want 1 (log %v)", len(res.Backgrounds), rec.Entries())
	}
	if n := len(res.Backgrounds[0].JFIF); n != 22+len(body) {
		t.Errorf("JFIF length = %d want %d", n, 22+len(body))
	}
	if rec.Count(diag.LevelWarn) != 1 || rec.Count(diag.LevelError) != 0 {
		t.Errorf("warnings = %d errors = %d want 1, 0", rec.Count(diag.LevelWarn), rec.Count(diag.LevelError))
	}
}
