package anim

// Header is an animation header found by Locate.
type Header struct {
	Addr   uint32
	Frames int
}

// Locate scans data for standard animation headers, 4-aligned:
//
//	00 NN 00 00  SS vv vv vv  SS ii ii ii  ?? ?? 00 00
//
// with NN > 1 frames, SS the object segment and both offsets inside data.
// Matches are reported as addresses in segment seg.
func Locate(data []byte, seg int) []Header {
	var found []Header
	for i := 0; i+15 < len(data); i += 4 {
		d := data[i : i+16]
		if d[0] != 0 || d[1] <= 1 || d[2] != 0 || d[3] != 0 {
			continue
		}
		if d[4] != 0x06 || u24(d[5:]) >= len(data) {
			continue
		}
		if d[8] != 0x06 || u24(d[9:]) >= len(data) {
			continue
		}
		if d[14] != 0 || d[15] != 0 {
			continue
		}
		found = append(found, Header{
			Addr:   uint32(seg)<<24 | uint32(i),
			Frames: int(d[1]),
		})
	}
	return found
}

func u24(b []byte) int {
	return int(b[0])<<16 | int(b[1])<<8 | int(b[2])
}
