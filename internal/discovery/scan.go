package discovery

import (
	"fmt"
	"sort"
	"strings"

	"z64import/internal/f3dzex"
	"z64import/internal/segment"
)

// unimplemented opcodes are valid but rare, and are treated as invalid
// when Options.ExcludeUnimplemented is set.
var unimplemented = map[byte]bool{
	0x07: true, 0xD3: true, 0xDB: true, 0xDC: true, 0xDD: true, 0xE0: true,
	0xE5: true, 0xE9: true, 0xEC: true, 0xF6: true, 0xF8: true,
}

func validOpcode(op byte) bool {
	return op <= 0x07 || op >= 0xD3
}

// Scan walks segment seg 8 bytes at a time, tracking the current run of
// valid opcodes. At each list terminator it decodes leniently from the
// start of the run. With skip set, ranges already in the ledger are not
// decoded again.
func (im *Importer) Scan(seg int, skip bool) {
	log := im.log.Named("scan")
	data := im.segs.Bytes(seg)
	im.ctx.UseTransparency = im.opts.DetectedUseTransparency

	what := "any"
	if skip {
		what = "non-read"
	}
	log.Infof("Searching for %s display lists in segment 0x%02X (materials with transparency: %t)", what, seg, im.ctx.UseTransparency)
	log.Warnf("If the imported geometry is weird/wrong, consider using displaylists.txt to manually define the display lists to import!")

	skipped := make(map[byte]bool)
	start := -1
	for i := 0; i+8 <= len(data); i += 8 {
		op := data[i]
		valid := validOpcode(op)
		if valid && im.opts.ExcludeUnimplemented && unimplemented[op] {
			valid = false
			skipped[op] = true
		}
		switch {
		case !valid:
			start = -1
		case start < 0:
			start = i
		}
		if (op == 0xDE && data[i+1] != 0) || op == 0xDF {
			log.Debugf("Found opcode 0x%X at 0x%X, building display list from 0x%X", op, i, start)
			im.build(segment.Addr(seg, start), nil, 0, f3dzex.BuildParams{
				NameFormat:      "%s_detect",
				SkipAlreadyRead: skip,
				Lenient:         true,
			})
			start = -1
		}
	}
	if len(skipped) > 0 {
		ops := make([]int, 0, len(skipped))
		for op := range skipped {
			ops = append(ops, int(op))
		}
		sort.Ints(ops)
		names := make([]string, len(ops))
		for i, op := range ops {
			names[i] = fmt.Sprintf("0x%02X", op)
		}
		log.Infof("Valid opcodes %s considered invalid because unimplemented (meaning rare)", strings.Join(names, ","))
	}
}
