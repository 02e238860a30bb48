package f3dzex

import "strings"

// GeometryMode is the set of RSP geometry mode flags.
type GeometryMode uint32

const (
	GZBuffer          GeometryMode = 0x00000001
	GShade            GeometryMode = 0x00000004
	GCullFront        GeometryMode = 0x00000200
	GCullBack         GeometryMode = 0x00000400
	GFog              GeometryMode = 0x00010000
	GLighting         GeometryMode = 0x00020000
	GTextureGen       GeometryMode = 0x00040000
	GTextureGenLinear GeometryMode = 0x00080000
	GShadingSmooth    GeometryMode = 0x00200000
	GClipping         GeometryMode = 0x00800000
)

const knownGeometryFlags = GZBuffer | GShade | GCullFront | GCullBack | GFog | GLighting |
	GTextureGen | GTextureGenLinear | GShadingSmooth | GClipping

var geometryNames = []struct {
	flag GeometryMode
	name string
}{
	{GZBuffer, "G_ZBUFFER"},
	{GShade, "G_SHADE"},
	{GCullFront, "G_CULL_FRONT"},
	{GCullBack, "G_CULL_BACK"},
	{GFog, "G_FOG"},
	{GLighting, "G_LIGHTING"},
	{GTextureGen, "G_TEXTURE_GEN"},
	{GTextureGenLinear, "G_TEXTURE_GEN_LINEAR"},
	{GShadingSmooth, "G_SHADING_SMOOTH"},
	{GClipping, "G_CLIPPING"},
}

// Apply clears then sets the known flags. Unknown bits are ignored.
func (g GeometryMode) Apply(clear, set uint32) GeometryMode {
	g &^= GeometryMode(clear) & knownGeometryFlags
	g |= GeometryMode(set) & knownGeometryFlags
	return g
}

// Has reports whether every flag in f is set.
func (g GeometryMode) Has(f GeometryMode) bool {
	return g&f == f
}

// Smooth reports whether faces use smooth shading.
func (g GeometryMode) Smooth() bool {
	return g.Has(GShade | GShadingSmooth)
}

func (g GeometryMode) String() string {
	var names []string
	for _, n := range geometryNames {
		if g.Has(n.flag) {
			names = append(names, n.name)
		}
	}
	return "{" + strings.Join(names, ",") + "}"
}
