// Package discovery finds display lists, hierarchies and animations in
// loaded segments and feeds them to the display-list interpreter.
package discovery

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"z64import/internal/anim"
	"z64import/internal/diag"
	"z64import/internal/f3dzex"
	"z64import/internal/segment"
	"z64import/internal/skeleton"
)

// Strategy selects how much heuristic scanning follows the header walk.
type Strategy int

const (
	// NoDetection only follows headers.
	NoDetection Strategy = iota
	// Bruteforce scans every terminated opcode run, ignoring the ledger.
	Bruteforce
	// Smart scans after the header walk, skipping already-read lists.
	Smart
	// TryEverything scans after the header walk without skipping.
	TryEverything
)

var strategyNames = [...]string{"NO_DETECTION", "BRUTEFORCE", "SMART", "TRY_EVERYTHING"}

func (s Strategy) String() string {
	if s < 0 || int(s) >= len(strategyNames) {
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
	return strategyNames[s]
}

// ParseStrategy parses one of the names printed by String.
func ParseStrategy(s string) (Strategy, error) {
	for i, name := range strategyNames {
		if strings.EqualFold(s, name) {
			return Strategy(i), nil
		}
	}
	return NoDetection, fmt.Errorf("unknown import strategy %q", s)
}

// Options are the discovery settings of one import.
type Options struct {
	Strategy Strategy
	Scale    float32
	Prefix   string

	LoadAnimations bool
	// ExternalAnimations reads animation headers from segment 0x0F.
	ExternalAnimations bool
	MajoraAnimations   bool
	// LinkAnimation is the entry of the fixed Link table to decode.
	LinkAnimation int

	// DetectedUseTransparency marks heuristically found lists translucent.
	DetectedUseTransparency bool
	// ExcludeUnimplemented narrows the valid-opcode set of the scan.
	ExcludeUnimplemented bool
}

// Result holds everything an import found besides meshes, which go to the
// interpreter's sink.
type Result struct {
	Hierarchies []*skeleton.Hierarchy
	// Armature is the hierarchy animations were decoded against.
	Armature    *skeleton.Hierarchy
	Tracks      []*anim.Track
	Backgrounds []*Background
}

// Importer drives one import over a single builder context.
type Importer struct {
	ctx  *f3dzex.Context
	segs *segment.Table
	opts Options
	log  diag.Logger
	res  Result
}

// NewImporter returns an importer feeding ctx.
func NewImporter(ctx *f3dzex.Context, o Options, log diag.Logger) *Importer {
	if log == nil {
		log = diag.Discard
	}
	return &Importer{ctx: ctx, segs: ctx.Segments, opts: o, log: log}
}

// Result returns what the importer has found so far.
func (im *Importer) Result() *Result {
	return &im.res
}

// ParseDisplayLists reads newline-separated hexadecimal offsets, with or
// without a 0x prefix. Offsets without a segment default to 0x06. Entries
// that do not parse are logged and skipped.
func ParseDisplayLists(r io.Reader, log diag.Logger) ([]uint32, error) {
	var out []uint32
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		s := strings.TrimRight(sc.Text(), "\r\n")
		if s == "" {
			continue
		}
		if isDecimal(s) {
			log.Warnf("Reading offset %s as hexadecimal, NOT decimal", s)
		}
		if len(s) > 2 && s[:2] == "0x" {
			s = s[2:]
		}
		v, err := strconv.ParseUint(s, 16, 32)
		if err != nil {
			log.Errorf("Could not parse %s from displaylists.txt as hexadecimal, skipping entry", s)
			continue
		}
		addr := uint32(v)
		if addr&0xFF000000 == 0 {
			log.Infof("Defaulting segment for offset 0x%X to 6", addr)
			addr |= segment.Addr(segment.Object, 0)
		}
		out = append(out, addr)
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("discovery: read display list offsets: %w", err)
	}
	return out, nil
}

func isDecimal(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
