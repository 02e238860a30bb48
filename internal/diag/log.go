package diag

import (
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
)

// Level orders log severities. Trace is the noisiest.
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARNING"
	case LevelError:
		return "ERROR"
	}
	return fmt.Sprintf("LEVEL%d", int(l))
}

// ParseLevel accepts the names printed by Level.String, case-insensitive.
// Unknown names map to LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	}
	return LevelInfo
}

// Logger is the diagnostics sink handed to every decoder.
type Logger interface {
	Tracef(format string, v ...interface{})
	Debugf(format string, v ...interface{})
	Infof(format string, v ...interface{})
	Warnf(format string, v ...interface{})
	Errorf(format string, v ...interface{})
	// Named returns a child logger whose messages carry name.
	Named(name string) Logger
}

// StdLogger writes "LEVEL:name: message" lines through a log.Logger.
type StdLogger struct {
	out   *log.Logger
	level Level
	name  string
}

// New returns a logger writing entries at or above level to w.
func New(w io.Writer, level Level) *StdLogger {
	return &StdLogger{out: log.New(w, "", 0), level: level, name: "z64import"}
}

func (l *StdLogger) Named(name string) Logger {
	return &StdLogger{out: l.out, level: l.level, name: l.name + "." + name}
}

func (l *StdLogger) logf(level Level, format string, v ...interface{}) {
	if level < l.level {
		return
	}
	l.out.Printf("%s:%s: %s", level, l.name, fmt.Sprintf(format, v...))
}

func (l *StdLogger) Tracef(format string, v ...interface{}) { l.logf(LevelTrace, format, v...) }
func (l *StdLogger) Debugf(format string, v ...interface{}) { l.logf(LevelDebug, format, v...) }
func (l *StdLogger) Infof(format string, v ...interface{})  { l.logf(LevelInfo, format, v...) }
func (l *StdLogger) Warnf(format string, v ...interface{})  { l.logf(LevelWarn, format, v...) }
func (l *StdLogger) Errorf(format string, v ...interface{}) { l.logf(LevelError, format, v...) }

type discard struct{}

func (discard) Tracef(string, ...interface{}) {}
func (discard) Debugf(string, ...interface{}) {}
func (discard) Infof(string, ...interface{})  {}
func (discard) Warnf(string, ...interface{})  {}
func (discard) Errorf(string, ...interface{}) {}
func (d discard) Named(string) Logger         { return d }

// Discard drops everything.
var Discard Logger = discard{}

// Entry is one message captured by a Recorder.
type Entry struct {
	Level   Level
	Name    string
	Message string
}

// Recorder keeps every entry in memory. Children share the parent's entries.
type Recorder struct {
	mu      *sync.Mutex
	entries *[]Entry
	name    string
}

func NewRecorder() *Recorder {
	return &Recorder{mu: new(sync.Mutex), entries: new([]Entry)}
}

func (r *Recorder) Named(name string) Logger {
	return &Recorder{mu: r.mu, entries: r.entries, name: name}
}

func (r *Recorder) add(level Level, format string, v ...interface{}) {
	r.mu.Lock()
	*r.entries = append(*r.entries, Entry{Level: level, Name: r.name, Message: fmt.Sprintf(format, v...)})
	r.mu.Unlock()
}

func (r *Recorder) Tracef(format string, v ...interface{}) { r.add(LevelTrace, format, v...) }
func (r *Recorder) Debugf(format string, v ...interface{}) { r.add(LevelDebug, format, v...) }
func (r *Recorder) Infof(format string, v ...interface{})  { r.add(LevelInfo, format, v...) }
func (r *Recorder) Warnf(format string, v ...interface{})  { r.add(LevelWarn, format, v...) }
func (r *Recorder) Errorf(format string, v ...interface{}) { r.add(LevelError, format, v...) }

// Entries returns a copy of everything recorded so far.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), *r.entries...)
}

// Count returns how many entries were recorded at exactly level.
func (r *Recorder) Count(level Level) int {
	n := 0
	for _, e := range r.Entries() {
		if e.Level == level {
			n++
		}
	}
	return n
}
