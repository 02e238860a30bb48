package diag

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pkg/errors"
)

func TestStdLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelWarn).Named("F3DZEX")
	l.Debugf("hidden %d", 1)
	l.Warnf("shown %d", 2)
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug message leaked: %q", out)
	}
	if !strings.Contains(out, "WARNING:z64import.F3DZEX: shown 2") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestRecorderSharesEntries(t *testing.T) {
	r := NewRecorder()
	r.Named("a").Errorf("x")
	r.Named("b").Warnf("y")
	r.Errorf("z")
	if got := r.Count(LevelError); got != 2 {
		t.Errorf("Count(LevelError) = %d want 2", got)
	}
	if got := len(r.Entries()); got != 3 {
		t.Errorf("len(Entries) = %d want 3", got)
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]Level{"trace": LevelTrace, "Warning": LevelWarn, "?": LevelInfo} {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v want %v", in, got, want)
		}
	}
}

func TestWrappedKindsMatch(t *testing.T) {
	err := errors.Wrapf(ErrOutOfRange, "segment 0x%02X", 6)
	if !errors.Is(err, ErrOutOfRange) {
		t.Errorf("errors.Is(%v, ErrOutOfRange) = false", err)
	}
	if errors.Is(err, ErrMalformedHeader) {
		t.Errorf("errors.Is(%v, ErrMalformedHeader) = true", err)
	}
}
