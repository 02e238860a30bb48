package mathutil

// UnitsPerDegree is the fixed-point rotation scale: a full turn is 0x10000 units.
const UnitsPerDegree = 65536.0 / 360.0

// UnitsToDegrees converts a raw rotation value to degrees.
func UnitsToDegrees(raw int16) float64 {
	return float64(raw) / UnitsPerDegree
}
