package export

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"z64import/internal/discovery"
	"z64import/internal/f3dzex"
	"z64import/internal/mathutil"
	"z64import/internal/skeleton"
	"z64import/internal/texel"
)

// Scene accumulates decoded meshes, skeletons and backgrounds into one glTF
// document. Decoded positions are Z-up and are turned Y-up on the way in.
type Scene struct {
	doc *gltf.Document
	// replicated is set when mirrored textures were already doubled.
	replicated bool

	materials map[*f3dzex.Material]uint32
	images    map[*texel.Image]uint32
	samplers  map[[2]gltf.WrappingMode]uint32
}

// NewScene starts an empty document.
func NewScene(name string, replicatedMirror bool) *Scene {
	doc := gltf.NewDocument()
	doc.Scenes[0].Name = name
	return &Scene{
		doc:        doc,
		replicated: replicatedMirror,
		materials:  make(map[*f3dzex.Material]uint32),
		images:     make(map[*texel.Image]uint32),
		samplers:   make(map[[2]gltf.WrappingMode]uint32),
	}
}

// Document returns the document built so far.
func (s *Scene) Document() *gltf.Document {
	return s.doc
}

func yUp(v [3]float32) [3]float32 {
	return [3]float32{v[0], v[2], -v[1]}
}

func setTranslation[T float32 | float64](dst *[3]T, v [3]float32) {
	v = yUp(v)
	*dst = [3]T{T(v[0]), T(v[1]), T(v[2])}
}

// addRoot appends n and lists it in the scene.
func (s *Scene) addRoot(n *gltf.Node) uint32 {
	s.doc.Nodes = append(s.doc.Nodes, n)
	idx := uint32(len(s.doc.Nodes) - 1)
	s.doc.Scenes[0].Nodes = append(s.doc.Scenes[0].Nodes, idx)
	return idx
}

// AddHierarchy adds one node per limb under a node named after h. Limb
// nodes carry their bind position relative to the parent limb.
func (s *Scene) AddHierarchy(h *skeleton.Hierarchy) uint32 {
	root := s.addRoot(&gltf.Node{
		Name:   h.Name,
		Extras: map[string]interface{}{"offset": fmt.Sprintf("0x%08X", h.Offset)},
	})

	// Limb indices need not be topologically ordered: create, then link.
	nodes := make([]uint32, len(h.Limbs))
	for i, l := range h.Limbs {
		n := &gltf.Node{
			Name: skeleton.LimbName(i),
			Extras: map[string]interface{}{
				"near": fmt.Sprintf("0x%08X", l.Near),
				"far":  fmt.Sprintf("0x%08X", l.Far),
			},
		}
		setTranslation(&n.Translation, h.LocalPos(i))
		s.doc.Nodes = append(s.doc.Nodes, n)
		nodes[i] = uint32(len(s.doc.Nodes) - 1)
	}
	for i, l := range h.Limbs {
		parent := s.doc.Nodes[root]
		if l.Parent >= 0 {
			parent = s.doc.Nodes[nodes[l.Parent]]
		}
		parent.Children = append(parent.Children, nodes[i])
	}
	return root
}

// primitive gathers the triangles of one mesh that share a material.
type primitive struct {
	mat       *f3dzex.Material
	positions [][3]float32
	uvs       [][2]float32
	colors    [][4]uint8
	normals   [][3]float32
	vertices  []int
}

func unorm8(v float32) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	}
	return uint8(v*255 + 0.5)
}

// AddMesh adds m as a node at the scene root. Triangles are split into one
// primitive per material and un-indexed per loop. The source vertex of
// every glTF vertex is kept in the primitive extras, and the limb groups of
// a skinned mesh in the mesh extras.
func (s *Scene) AddMesh(m *f3dzex.Mesh) error {
	var prims []*primitive
	byMat := make(map[*f3dzex.Material]*primitive)
	for t, tri := range m.Tris {
		mat := m.Materials[t]
		p, ok := byMat[mat]
		if !ok {
			p = &primitive{mat: mat}
			byMat[mat] = p
			prims = append(prims, p)
		}
		for k, vi := range tri {
			loop := 3*t + k
			uv := m.UVs[loop]
			c := m.Colors[loop]
			p.positions = append(p.positions, yUp(m.Verts[vi]))
			p.uvs = append(p.uvs, [2]float32{uv[0], 1 - uv[1]})
			p.colors = append(p.colors, [4]uint8{unorm8(c[0]), unorm8(c[1]), unorm8(c[2]), unorm8(c[3])})
			n := mathutil.Vec3(yUp(m.Normals[loop])).Normalize()
			if n == (mathutil.Vec3{}) {
				n = mathutil.Vec3{0, 1, 0}
			}
			p.normals = append(p.normals, [3]float32(n))
			p.vertices = append(p.vertices, vi)
		}
	}

	mesh := &gltf.Mesh{Name: m.Name}
	extras := map[string]interface{}{"offset": fmt.Sprintf("0x%08X", m.Offset)}
	if m.Hierarchy != nil {
		extras["hierarchy"] = m.Hierarchy.Name
		extras["groups"] = m.Groups()
	}
	mesh.Extras = extras

	for _, p := range prims {
		indices := make([]uint32, len(p.positions))
		for i := range indices {
			indices[i] = uint32(i)
		}
		attrs := map[string]uint32{
			gltf.POSITION:   modeler.WritePosition(s.doc, p.positions),
			gltf.TEXCOORD_0: modeler.WriteTextureCoord(s.doc, p.uvs),
			gltf.COLOR_0:    modeler.WriteColor(s.doc, p.colors),
		}
		if m.UseNormals {
			attrs[gltf.NORMAL] = modeler.WriteNormal(s.doc, p.normals)
		}
		prim := &gltf.Primitive{
			Indices:    gltf.Index(modeler.WriteIndices(s.doc, indices)),
			Attributes: attrs,
			Extras:     map[string]interface{}{"vertices": p.vertices},
		}
		if p.mat != nil {
			idx, err := s.material(p.mat)
			if err != nil {
				return err
			}
			prim.Material = gltf.Index(idx)
		}
		mesh.Primitives = append(mesh.Primitives, prim)
	}

	s.doc.Meshes = append(s.doc.Meshes, mesh)
	s.addRoot(&gltf.Node{Name: m.Name, Mesh: gltf.Index(uint32(len(s.doc.Meshes) - 1))})
	return nil
}

func wrapMode(wrap, mirror, replicated bool) gltf.WrappingMode {
	switch {
	case !wrap:
		return gltf.WrapClampToEdge
	case mirror && !replicated:
		return gltf.WrapMirroredRepeat
	}
	return gltf.WrapRepeat
}

func (s *Scene) sampler(m *f3dzex.Material) uint32 {
	key := [2]gltf.WrappingMode{
		wrapMode(m.Wrap[0], m.Mirror[0], s.replicated),
		wrapMode(m.Wrap[1], m.Mirror[1], s.replicated),
	}
	if idx, ok := s.samplers[key]; ok {
		return idx
	}
	s.doc.Samplers = append(s.doc.Samplers, &gltf.Sampler{
		MagFilter: gltf.MagNearest,
		WrapS:     key[0],
		WrapT:     key[1],
	})
	idx := uint32(len(s.doc.Samplers) - 1)
	s.samplers[key] = idx
	return idx
}

func (s *Scene) image(img *texel.Image) (uint32, error) {
	if idx, ok := s.images[img]; ok {
		return idx, nil
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img.Pix); err != nil {
		return 0, fmt.Errorf("export: encode %s: %w", img.Name, err)
	}
	idx, err := modeler.WriteImage(s.doc, img.Name, "image/png", &buf)
	if err != nil {
		return 0, fmt.Errorf("export: embed %s: %w", img.Name, err)
	}
	s.images[img] = idx
	return idx, nil
}

func (s *Scene) material(m *f3dzex.Material) (uint32, error) {
	if idx, ok := s.materials[m]; ok {
		return idx, nil
	}
	pbr := &gltf.PBRMetallicRoughness{}
	if m.Texture != nil {
		img, err := s.image(m.Texture)
		if err != nil {
			return 0, err
		}
		s.doc.Textures = append(s.doc.Textures, &gltf.Texture{
			Source:  gltf.Index(img),
			Sampler: gltf.Index(s.sampler(m)),
		})
		pbr.BaseColorTexture = &gltf.TextureInfo{Index: uint32(len(s.doc.Textures) - 1)}
	}
	mat := &gltf.Material{
		Name:                 m.Name,
		PBRMetallicRoughness: pbr,
		AlphaMode:            gltf.AlphaMask,
	}
	if m.Transparent {
		mat.AlphaMode = gltf.AlphaBlend
	}
	s.doc.Materials = append(s.doc.Materials, mat)
	idx := uint32(len(s.doc.Materials) - 1)
	s.materials[m] = idx
	return idx, nil
}

// AddBackground adds bg as a textured quad with its JFIF stream embedded.
func (s *Scene) AddBackground(bg *discovery.Background) error {
	img, err := modeler.WriteImage(s.doc, bg.Name, "image/jpeg", bytes.NewReader(bg.JFIF))
	if err != nil {
		return fmt.Errorf("export: embed %s: %w", bg.Name, err)
	}
	s.doc.Textures = append(s.doc.Textures, &gltf.Texture{Source: gltf.Index(img)})
	s.doc.Materials = append(s.doc.Materials, &gltf.Material{
		Name: bg.Name,
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorTexture: &gltf.TextureInfo{Index: uint32(len(s.doc.Textures) - 1)},
		},
	})
	mat := uint32(len(s.doc.Materials) - 1)

	var pos [4][3]float32
	for i, v := range bg.Quad {
		pos[i] = yUp(v)
	}
	s.doc.Meshes = append(s.doc.Meshes, &gltf.Mesh{
		Name: bg.Name,
		Primitives: []*gltf.Primitive{{
			Indices: gltf.Index(modeler.WriteIndices(s.doc, []uint16{0, 1, 2, 0, 2, 3})),
			Attributes: map[string]uint32{
				gltf.POSITION:   modeler.WritePosition(s.doc, pos[:]),
				gltf.TEXCOORD_0: modeler.WriteTextureCoord(s.doc, [][2]float32{{1, 1}, {0, 1}, {0, 0}, {1, 0}}),
			},
			Material: gltf.Index(mat),
		}},
		Extras: map[string]interface{}{"width": bg.Width, "height": bg.Height, "format": bg.Format},
	})
	s.addRoot(&gltf.Node{Name: bg.Name, Mesh: gltf.Index(uint32(len(s.doc.Meshes) - 1))})
	return nil
}

// Save writes the document as .gltf with embedded buffers, or as .glb.
func (s *Scene) Save(path string, binary bool) error {
	if len(s.doc.BufferViews) == 0 {
		s.doc.Buffers = nil
	}
	if binary {
		return gltf.SaveBinary(s.doc, path)
	}
	for _, b := range s.doc.Buffers {
		if b.URI == "" {
			b.EmbeddedResource()
		}
	}
	return gltf.Save(s.doc, path)
}
