package mathutil

import "github.com/chewxy/math32"

// Vec3 is a 3-component float32 vector (value type).
type Vec3 [3]float32

func (a Vec3) Add(b Vec3) Vec3 {
	return Vec3{a[0] + b[0], a[1] + b[1], a[2] + b[2]}
}

func (a Vec3) Sub(b Vec3) Vec3 {
	return Vec3{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

func (v Vec3) Scale(s float32) Vec3 {
	return Vec3{v[0] * s, v[1] * s, v[2] * s}
}

// Mid returns the midpoint of a and b.
func (a Vec3) Mid(b Vec3) Vec3 {
	return a.Add(b).Scale(0.5)
}

func (a Vec3) Dot(b Vec3) float32 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func (v Vec3) Len() float32 {
	return math32.Sqrt(v.Dot(v))
}

func (v Vec3) Normalize() Vec3 {
	l := v.Len()
	if l < 1e-12 {
		return Vec3{}
	}
	return Vec3{v[0] / l, v[1] / l, v[2] / l}
}

// SwapYZ maps a source-space triple (x, y, z) to (x, -z, y).
// Positions, limb offsets and normals all go through this.
func SwapYZ(x, y, z float32) Vec3 {
	return Vec3{x, -z, y}
}
