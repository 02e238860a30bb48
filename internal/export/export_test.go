package export

import (
	"bytes"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/ftrvxmtrx/tga"
	"github.com/qmuntal/gltf"
	"github.com/tidwall/gjson"

	"z64import/internal/anim"
	"z64import/internal/f3dzex"
	"z64import/internal/mathutil"
	"z64import/internal/skeleton"
	"z64import/internal/texel"
)

func testImage(name string) *texel.Image {
	pix := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	pix.SetNRGBA(0, 0, color.NRGBA{255, 0, 0, 255})
	pix.SetNRGBA(1, 0, color.NRGBA{0, 255, 0, 255})
	pix.SetNRGBA(0, 1, color.NRGBA{0, 0, 255, 255})
	pix.SetNRGBA(1, 1, color.NRGBA{255, 255, 255, 255})
	return &texel.Image{Name: name, Format: texel.RGBA, Size: texel.Bits16, Width: 2, Height: 2, Pix: pix}
}

func TestTextureFile(t *testing.T) {
	img := testImage("p_RGBA16_06001000#MirrorX")
	if got := TextureFile(img, "p_", FormatTGA); got != filepath.Join("textures", "p_RGBA16_06001000#MirrorX.tga") {
		t.Errorf("TextureFile = %q", got)
	}
	img.Fallback = true
	if got := TextureFile(img, "p_", FormatWebP); got != filepath.Join("textures", "p_fallback_RGBA16_06001000#MirrorX.webp") {
		t.Errorf("fallback TextureFile = %q", got)
	}
}

func TestEncodeTGA(t *testing.T) {
	img := testImage("t")
	var buf bytes.Buffer
	if err := EncodeTexture(&buf, img.Pix, FormatTGA); err != nil {
		t.Fatal(err)
	}
	got, err := tga.Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range []image.Point{{0, 0}, {1, 0}, {0, 1}, {1, 1}} {
		want := img.Pix.At(p.X, p.Y)
		r1, g1, b1, a1 := got.At(p.X, p.Y).RGBA()
		r2, g2, b2, a2 := want.RGBA()
		if r1 != r2 || g1 != g2 || b1 != b2 || a1 != a2 {
			t.Errorf("pixel %v = %v want %v", p, got.At(p.X, p.Y), want)
		}
	}
}

func TestEncodeWebP(t *testing.T) {
	var buf bytes.Buffer
	if err := EncodeTexture(&buf, testImage("t").Pix, FormatWebP); err != nil {
		t.Fatal(err)
	}
	b := buf.Bytes()
	if len(b) < 12 || string(b[:4]) != "RIFF" || string(b[8:12]) != "WEBP" {
		t.Errorf("not a WebP stream: % X", b[:min(len(b), 12)])
	}
	if err := EncodeTexture(&buf, testImage("t").Pix, "bmp"); err == nil {
		t.Error("EncodeTexture accepted an unknown format")
	}
}

func TestAnimationJSON(t *testing.T) {
	tr := &anim.Track{
		Name:   "anim1_2",
		Offset: 0x06001234,
		Bones:  2,
		Frames: []anim.Frame{
			{Translation: [3]float32{1, 2, 3}, Rotations: []anim.Rotation{
				{Bone: 0, Degrees: [3]float64{90, 0, 0}, Ok: true},
				{Bone: 1},
			}},
			{Rotations: []anim.Rotation{{Bone: 0, Ok: true}, {Bone: 1, Ok: true}}},
		},
	}
	data, err := AnimationJSON(tr, "sk_06000144")
	if err != nil {
		t.Fatal(err)
	}
	checks := map[string]string{
		"name":                   "anim1_2",
		"offset":                 "0x06001234",
		"armature":               "sk_06000144",
		"frame_count":            "2",
		"frames.0.translation.2": "3",
		"frames.0.rotations.0.0": "90",
		"frames.1.rotations.#":   "2",
	}
	for path, want := range checks {
		if got := gjson.GetBytes(data, path).String(); got != want {
			t.Errorf("%s = %q want %q", path, got, want)
		}
	}
	if r := gjson.GetBytes(data, "frames.0.rotations.1"); r.Type != gjson.Null {
		t.Errorf("missing bone encoded as %s", r.Raw)
	}
}

func testHierarchy() *skeleton.Hierarchy {
	return &skeleton.Hierarchy{
		Name:   "sk_06000144",
		Offset: 0x06000144,
		Limbs: []skeleton.Limb{
			{Index: 0, Parent: -1, Child: 1, Sibling: -1, Near: 0x06000000},
			{Index: 1, Parent: 0, Child: -1, Sibling: -1, Pos: mathutil.Vec3{1, 2, 3}},
		},
	}
}

func testMesh(h *skeleton.Hierarchy, mat *f3dzex.Material) *f3dzex.Mesh {
	white := [4]float32{1, 1, 1, 1}
	return &f3dzex.Mesh{
		Name:       "me_06000000",
		Offset:     0x06000000,
		Hierarchy:  h,
		UseNormals: true,
		Verts:      [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {1, 1, 0}},
		VertLimbs:  [][]int{{0}, {0}, {1}, {1}},
		Tris:       [][3]int{{0, 1, 2}, {1, 3, 2}},
		UVs:        make([][2]float32, 6),
		Colors:     [][4]float32{white, white, white, white, white, {0, 0, 0, 0.5}},
		Normals:    [][3]float32{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}, {0, 0, 2}, {0, 0, 0}, {0, 0, 1}},
		Smooth:     []bool{true, true},
		Materials:  []*f3dzex.Material{mat, nil},
	}
}

func TestSceneMesh(t *testing.T) {
	h := testHierarchy()
	mat := &f3dzex.Material{
		Name:    "mtl_06001000",
		Texture: testImage("RGBA16_06001000"),
		Wrap:    [2]bool{true, false},
		Mirror:  [2]bool{true, false},
	}
	s := NewScene("obj", false)
	root := s.AddHierarchy(h)
	if err := s.AddMesh(testMesh(h, mat)); err != nil {
		t.Fatal(err)
	}
	doc := s.Document()

	limb1 := doc.Nodes[doc.Nodes[doc.Nodes[root].Children[0]].Children[0]]
	if limb1.Name != "limb_01" {
		t.Fatalf("limb node = %q", limb1.Name)
	}
	if tr := limb1.Translation; tr[0] != 1 || tr[1] != 3 || tr[2] != -2 {
		t.Errorf("limb_01 translation = %v want Y-up [1 3 -2]", tr)
	}

	if len(doc.Meshes) != 1 || len(doc.Meshes[0].Primitives) != 2 {
		t.Fatalf("meshes = %d", len(doc.Meshes))
	}
	p0 := doc.Meshes[0].Primitives[0]
	if p0.Material == nil || *p0.Material != 0 || doc.Meshes[0].Primitives[1].Material != nil {
		t.Errorf("primitive materials = %v, %v", p0.Material, doc.Meshes[0].Primitives[1].Material)
	}
	if _, ok := p0.Attributes[gltf.NORMAL]; !ok {
		t.Error("normals not written for a normals mesh")
	}
	if len(doc.Samplers) != 1 || doc.Samplers[0].WrapS != gltf.WrapMirroredRepeat || doc.Samplers[0].WrapT != gltf.WrapClampToEdge {
		t.Errorf("samplers = %+v", doc.Samplers)
	}
	if len(doc.Images) != 1 || doc.Images[0].MimeType != "image/png" {
		t.Errorf("images = %+v", doc.Images)
	}
	groups := doc.Meshes[0].Extras.(map[string]interface{})["groups"].(map[string][]int)
	if len(groups["limb_00"]) != 2 || len(groups["limb_01"]) != 2 {
		t.Errorf("groups = %v", groups)
	}
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()
	h := testHierarchy()
	img := testImage("RGBA16_06001000")
	img.Fallback = true
	in := &Input{
		Name:        "obj",
		Meshes:      []*f3dzex.Mesh{testMesh(h, &f3dzex.Material{Name: "mtl", Texture: img})},
		Textures:    []*texel.Image{img},
		Hierarchies: []*skeleton.Hierarchy{h},
		Armature:    h,
		Tracks:      []*anim.Track{{Name: "anim1_1", Bones: 2, Frames: make([]anim.Frame, 1)}},
	}
	files, err := Write(in, Options{Dir: dir, Textures: true, TextureFormat: FormatTGA, Scene: true, Animations: true})
	if err != nil {
		t.Fatal(err)
	}
	if files.Fallbacks != 1 || len(files.Textures) != 1 || len(files.Animations) != 1 {
		t.Errorf("files = %+v", files)
	}
	for _, rel := range append(append([]string{files.Scene}, files.Textures...), files.Animations...) {
		if _, err := os.Stat(filepath.Join(dir, rel)); err != nil {
			t.Errorf("missing %s: %v", rel, err)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, files.Scene))
	if err != nil {
		t.Fatal(err)
	}
	if v := gjson.GetBytes(data, "asset.version").String(); v != "2.0" {
		t.Errorf("asset.version = %q", v)
	}
	if n := gjson.GetBytes(data, "meshes.#").Int(); n != 1 {
		t.Errorf("meshes = %d want 1", n)
	}
	if name := gjson.GetBytes(data, "meshes.0.name").String(); name != "me_06000000" {
		t.Errorf("mesh name = %q", name)
	}
}
