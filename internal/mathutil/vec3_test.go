package mathutil

import (
	"math"
	"testing"
)

func TestSwapYZ(t *testing.T) {
	got := SwapYZ(1, 2, 3)
	if got != (Vec3{1, -3, 2}) {
		t.Errorf("SwapYZ(1, 2, 3) = %v", got)
	}
}

func TestMid(t *testing.T) {
	got := Vec3{0, 2, 4}.Mid(Vec3{2, 2, 0})
	if got != (Vec3{1, 2, 2}) {
		t.Errorf("Mid = %v", got)
	}
}

func TestNormalize(t *testing.T) {
	n := Vec3{3, 0, 4}.Normalize()
	if math.Abs(float64(n.Len())-1) > 1e-6 {
		t.Errorf("Normalize len = %v", n.Len())
	}
	if z := (Vec3{}).Normalize(); z != (Vec3{}) {
		t.Errorf("Normalize(zero) = %v", z)
	}
}

func TestUnitsToDegrees(t *testing.T) {
	cases := []struct {
		raw  int16
		want float64
	}{
		{0, 0},
		{0x4000, 90},
		{-0x4000, -90},
		{-0x8000, -180},
	}
	for _, c := range cases {
		if got := UnitsToDegrees(c.raw); math.Abs(got-c.want) > 1e-9 {
			t.Errorf("UnitsToDegrees(%d) = %v want %v", c.raw, got, c.want)
		}
	}
}
