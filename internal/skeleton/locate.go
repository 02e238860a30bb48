package skeleton

import (
	"encoding/binary"

	"z64import/internal/segment"
)

// Locate scans an object segment for hierarchy headers. A header is
// "06oooooo NN" where the limb index table at oooooo holds NN in-range,
// 4-aligned segment 0x06 entries and ends exactly at the header itself.
// It returns the segmented addresses of every header found.
func Locate(data []byte) []uint32 {
	var found []uint32
	for i := 0; i+11 < len(data); i += 4 {
		if data[i] != segment.Object || data[i+3]&3 != 0 || data[i+4] == 0 {
			continue
		}
		table := int(binary.BigEndian.Uint32(data[i:]) & 0x00FFFFFF)
		if table >= len(data) {
			continue
		}
		end := table + int(data[i+4])<<2
		if end > len(data) {
			continue
		}
		j := table
		for j < end {
			if data[j] != segment.Object || data[j+3]&3 != 0 ||
				int(binary.BigEndian.Uint32(data[j:])&0x00FFFFFF) > len(data) {
				break
			}
			j += 4
		}
		if j == i {
			found = append(found, segment.Addr(segment.Object, i))
		}
	}
	return found
}
