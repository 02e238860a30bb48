package f3dzex

import (
	"fmt"
	"strings"
)

// VertexMode selects which per-vertex data feeds the combiner.
type VertexMode int

const (
	VertexColors VertexMode = iota
	VertexNormals
	VertexNone
	VertexAuto
)

func (m VertexMode) String() string {
	switch m {
	case VertexColors:
		return "COLORS"
	case VertexNormals:
		return "NORMALS"
	case VertexNone:
		return "NONE"
	case VertexAuto:
		return "AUTO"
	}
	return fmt.Sprintf("VertexMode(%d)", int(m))
}

// ParseVertexMode accepts the names printed by VertexMode.String.
func ParseVertexMode(s string) (VertexMode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "COLORS":
		return VertexColors, nil
	case "NORMALS":
		return VertexNormals, nil
	case "NONE":
		return VertexNone, nil
	case "AUTO", "":
		return VertexAuto, nil
	}
	return VertexAuto, fmt.Errorf("f3dzex: unknown vertex mode %q", s)
}

// usesColors reports whether vertex colors feed the combiner under geo.
func (m VertexMode) usesColors(geo GeometryMode) bool {
	return m == VertexColors || (m == VertexAuto && !geo.Has(GLighting))
}

// usesNormals reports whether vertex normals feed the combiner under geo.
func (m VertexMode) usesNormals(geo GeometryMode) bool {
	return m == VertexNormals || (m == VertexAuto && geo.Has(GLighting))
}

var white = [4]float32{1, 1, 1, 1}

// Combiner holds the primitive and environment colors.
type Combiner struct {
	Prim [4]float32
	Env  [4]float32
}

// Reset sets both colors back to opaque white.
func (c *Combiner) Reset() {
	c.Prim, c.Env = white, white
}

func mul4(a, b [4]float32) [4]float32 {
	return [4]float32{a[0] * b[0], a[1] * b[1], a[2] * b[2], a[3] * b[3]}
}

// CombinerInputs selects the enabled combiner terms.
type CombinerInputs struct {
	Prim bool
	Env  bool
	Mode VertexMode
}

// Color resolves the per-loop color for a vertex with color vc and normal
// derived shade sc.
func (c *Combiner) Color(in CombinerInputs, geo GeometryMode, vc [4]float32, sc float32) [4]float32 {
	cc := white
	if in.Prim {
		cc = mul4(cc, c.Prim)
	}
	if in.Env {
		cc = mul4(cc, c.Env)
	}
	switch {
	case in.Mode.usesColors(geo):
		cc = mul4(cc, vc)
	case in.Mode.usesNormals(geo):
		cc = mul4(cc, [4]float32{sc, sc, sc, 1})
	}
	return cc
}

// wordColor splits w1 into four channels in 0..1.
func wordColor(w1 uint32) [4]float32 {
	var c [4]float32
	for i := range c {
		c[i] = float32((w1>>(8*(3-i)))&0xFF) / 255
	}
	return c
}
