package batch

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"z64import/internal/config"
	"z64import/internal/diag"
)

// objectFile writes a segment 0x06 image holding one triangle list, its
// vertices, one limb and the hierarchy header at 0x144.
func objectFile(t *testing.T, dir string) string {
	t.Helper()
	data := make([]byte, 0x150)
	put := func(off int, v ...uint32) {
		for i, x := range v {
			binary.BigEndian.PutUint32(data[off+4*i:], x)
		}
	}
	put(0x00, 0x01<<24|3<<12|3<<1, 0x06000100, 0x05<<24|0<<16|2<<8|4, 0, 0xDF000000, 0)
	for i, p := range [][3]int16{{0, 0, 0}, {100, 0, 0}, {0, 100, 0}} {
		rec := data[0x100+16*i:]
		for k, v := range p {
			binary.BigEndian.PutUint16(rec[2*k:], uint16(v))
		}
		rec[12], rec[13], rec[14], rec[15] = 0xFF, 0xFF, 0xFF, 0xFF
	}
	put(0x130, 0, 0x0000FFFF, 0x06000000, 0)
	put(0x140, 0x06000130)
	put(0x144, 0x06000140, 0x01000000, 0x01000000)

	p := filepath.Join(dir, "object.zobj")
	if err := os.WriteFile(p, data, 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func job(name, dir string, segs map[string]string) Job {
	cfg := config.Default()
	cfg.Segments = segs
	cfg.Resolve(config.Flags{BaseDir: dir, OutputDir: filepath.Join(dir, "out")})
	return Job{Name: name, Config: cfg}
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	obj := objectFile(t, dir)
	jobs := []Job{
		job("obj", dir, map[string]string{"06": obj}),
		job("missing", dir, map[string]string{"06": "nope.zobj"}),
		job("badseg", dir, map[string]string{"0x1F": obj}),
	}

	results := Run(jobs, 2, diag.Discard)
	if len(results) != 3 {
		t.Fatalf("results = %d", len(results))
	}

	r := results[0]
	if !r.Success || r.Kind != "object" {
		t.Fatalf("obj: %+v", r)
	}
	if r.Meshes != 1 || r.Triangles != 1 || r.Hierarchies != 1 || r.Errors != 0 {
		t.Errorf("obj counts: %+v", r)
	}
	scene := filepath.Join(dir, "out", "obj", r.Files.Scene)
	data, err := os.ReadFile(scene)
	if err != nil {
		t.Fatal(err)
	}
	if n := gjson.GetBytes(data, "meshes.#").Int(); n != 1 {
		t.Errorf("scene meshes = %d", n)
	}

	for _, r := range results[1:] {
		if r.Success || r.Error == "" || r.Errors != 1 {
			t.Errorf("%s: %+v", r.Name, r)
		}
	}
}

func TestKindFromSegments(t *testing.T) {
	dir := t.TempDir()
	j := job("room", dir, map[string]string{"03": objectFile(t, dir)})
	segs, err := LoadSegments(&j.Config)
	if err != nil {
		t.Fatal(err)
	}
	if k := Kind(&j.Config, segs); k != "room" {
		t.Errorf("Kind = %q want room", k)
	}
	j.Config.Import.Kind = "object"
	if k := Kind(&j.Config, segs); k != "object" {
		t.Errorf("Kind = %q want the configured kind", k)
	}
}

func TestManifestMerge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	first, second := uuid.New(), uuid.New()

	err := WriteManifest(path, first, []Result{
		{Name: "a", Kind: "object", Success: true, Meshes: 2},
		{Name: "b", Kind: "room", Error: "boom"},
	})
	if err != nil {
		t.Fatal(err)
	}
	err = WriteManifest(path, second, []Result{
		{Name: "b", Kind: "room", Success: true, Backgrounds: 1},
		{Name: "c", Kind: "object", Success: true},
	})
	if err != nil {
		t.Fatal(err)
	}

	entries, err := ReadManifest(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries = %+v", entries)
	}
	if a := entries[0]; a.Name != "a" || a.Meshes != 2 || a.RunID != first.String() {
		t.Errorf("kept entry = %+v", a)
	}
	if b := entries[1]; b.Name != "b" || !b.Success || b.Error != "" || b.Backgrounds != 1 || b.RunID != second.String() {
		t.Errorf("replaced entry = %+v", b)
	}
	if c := entries[2]; c.Name != "c" {
		t.Errorf("appended entry = %+v", c)
	}

	data, _ := os.ReadFile(path)
	if id := gjson.GetBytes(data, "run_id").String(); id != second.String() {
		t.Errorf("run_id = %q", id)
	}
}
