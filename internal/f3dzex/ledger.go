package f3dzex

import "z64import/internal/segment"

// span is an inclusive range of offsets already decoded.
type span struct {
	from, to int
}

// Ledger records, per segment, the offset ranges already decoded.
type Ledger struct {
	spans [segment.Count][]span
}

// Record marks [from, to] of seg as decoded.
func (l *Ledger) Record(seg, from, to int) {
	l.spans[seg] = append(l.spans[seg], span{from, to})
}

// Clip checks a decode starting at start that would otherwise run to end.
// It reports skip when start lies inside a recorded range, and otherwise
// returns end truncated to the first recorded range at or after start.
func (l *Ledger) Clip(seg, start, end int) (newEnd int, skip bool) {
	for _, s := range l.spans[seg] {
		if s.from <= start && start <= s.to {
			return end, true
		}
		if start <= s.from && end > s.from {
			end = s.from
		}
	}
	return end, false
}

// Spans returns the recorded ranges of seg.
func (l *Ledger) Spans(seg int) [][2]int {
	out := make([][2]int, len(l.spans[seg]))
	for i, s := range l.spans[seg] {
		out[i] = [2]int{s.from, s.to}
	}
	return out
}
