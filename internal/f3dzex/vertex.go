package f3dzex

import (
	"z64import/internal/mathutil"
	"z64import/internal/segment"
)

// VertexSize is the byte length of one vertex record.
const VertexSize = 16

// VertexSlots is the capacity of the vertex buffer.
const VertexSlots = 32

// Vertex is one vertex buffer slot. Limb is -1 when the vertex is not
// bound to a hierarchy limb.
type Vertex struct {
	Pos    mathutil.Vec3
	UV     [2]int16
	Normal mathutil.Vec3
	Color  [4]float32
	Limb   int
}

// vertexRecord is the on-disk vertex layout. The last four bytes hold a
// normal (signed xyz) or a color (rgba) depending on lighting.
type vertexRecord struct {
	Pos  [3]int16
	Flag uint16
	UV   [2]int16
	NC   [4]uint8
}

func decodeNormal(b [3]uint8) mathutil.Vec3 {
	return mathutil.SwapYZ(float32(int8(b[0])), float32(int8(b[1])), float32(int8(b[2]))).Scale(1.0 / 128)
}

func decodeColor(b [4]uint8) [4]float32 {
	return [4]float32{float32(b[0]) / 255, float32(b[1]) / 255, float32(b[2]) / 255, float32(b[3]) / 255}
}

// readVertex decodes the vertex record at addr.
func readVertex(segs *segment.Table, addr uint32, scale float32) (Vertex, error) {
	var rec vertexRecord
	if err := segs.Decode(addr, &rec); err != nil {
		return Vertex{Limb: -1}, err
	}
	return Vertex{
		Pos:    mathutil.SwapYZ(float32(rec.Pos[0]), float32(rec.Pos[1]), float32(rec.Pos[2])).Scale(scale),
		UV:     rec.UV,
		Normal: decodeNormal([3]uint8{rec.NC[0], rec.NC[1], rec.NC[2]}),
		Color:  decodeColor(rec.NC),
		Limb:   -1,
	}, nil
}

// shade is the grey level derived from the vertex normal.
func (v *Vertex) shade() float32 {
	return ((v.Normal[0]+v.Normal[1]+v.Normal[2])/3 + 1) / 2
}
