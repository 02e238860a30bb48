package f3dzex

import (
	"slices"
	"sort"

	"z64import/internal/skeleton"
	"z64import/internal/texel"
)

// Material binds a decoded texture to the sampling state of the tile it
// came from.
type Material struct {
	Name        string
	Texture     *texel.Image
	Wrap        [2]bool
	Mirror      [2]bool
	Transparent bool
}

// Mesh is the triangle soup produced by one display list. UVs, Colors and
// Normals hold three entries per triangle in loop order.
type Mesh struct {
	Name      string
	Offset    uint32
	Hierarchy *skeleton.Hierarchy
	// UseNormals is set when the vertex mode resolved to normals.
	UseNormals bool

	Verts [][3]float32
	// VertLimbs lists every limb each vertex is bound to, in binding order.
	VertLimbs [][]int
	Tris      [][3]int
	UVs       [][2]float32
	Colors    [][4]float32
	Normals   [][3]float32
	Smooth    []bool
	Materials []*Material

	index map[[3]float32]int
	// bound lists vertices that gained a limb after creation.
	bound []int
}

func newMesh() *Mesh {
	return &Mesh{index: make(map[[3]float32]int)}
}

// vertex returns the index of the vertex at pos, appending it if new. A
// shared vertex joins the group of every limb that references it.
func (m *Mesh) vertex(pos [3]float32, limb int) int {
	if i, ok := m.index[pos]; ok {
		if limb >= 0 && !slices.Contains(m.VertLimbs[i], limb) {
			m.VertLimbs[i] = append(m.VertLimbs[i], limb)
			m.bound = append(m.bound, i)
		}
		return i
	}
	var limbs []int
	if limb >= 0 {
		limbs = []int{limb}
	}
	m.Verts = append(m.Verts, pos)
	m.VertLimbs = append(m.VertLimbs, limbs)
	m.index[pos] = len(m.Verts) - 1
	return len(m.Verts) - 1
}

// meshMark is a snapshot of every per-mesh array length.
type meshMark struct {
	verts, tris, loops, bound int
}

func (m *Mesh) mark() meshMark {
	return meshMark{
		verts: len(m.Verts),
		tris:  len(m.Tris),
		loops: len(m.UVs),
		bound: len(m.bound),
	}
}

// rollback restores the mesh to a mark taken earlier.
func (m *Mesh) rollback(k meshMark) {
	for _, p := range m.Verts[k.verts:] {
		delete(m.index, p)
	}
	m.Verts = m.Verts[:k.verts]
	for j := len(m.bound) - 1; j >= k.bound; j-- {
		if i := m.bound[j]; i < k.verts {
			m.VertLimbs[i] = m.VertLimbs[i][:len(m.VertLimbs[i])-1]
		}
	}
	m.bound = m.bound[:k.bound]
	m.VertLimbs = m.VertLimbs[:k.verts]
	m.Tris = m.Tris[:k.tris]
	m.Smooth = m.Smooth[:k.tris]
	m.Materials = m.Materials[:k.tris]
	m.UVs = m.UVs[:k.loops]
	m.Colors = m.Colors[:k.loops]
	m.Normals = m.Normals[:k.loops]
}

// Groups maps limb names to the vertices bound to that limb.
func (m *Mesh) Groups() map[string][]int {
	if m.Hierarchy == nil {
		return nil
	}
	g := make(map[string][]int)
	for i, limbs := range m.VertLimbs {
		for _, l := range limbs {
			name := skeleton.LimbName(l)
			g[name] = append(g[name], i)
		}
	}
	return g
}

// GroupNames returns the keys of Groups in sorted order.
func (m *Mesh) GroupNames() []string {
	g := m.Groups()
	names := make([]string, 0, len(g))
	for n := range g {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
