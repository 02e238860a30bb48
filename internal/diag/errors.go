package diag

import "github.com/pkg/errors"

// Error kinds. Callers wrap these with errors.Wrapf and test with errors.Is.
var (
	// ErrOutOfRange: an address resolves outside a loaded segment.
	ErrOutOfRange = errors.New("address out of range")
	// ErrMalformedHeader: hierarchy or animation header fields are inconsistent.
	ErrMalformedHeader = errors.New("malformed header")
	// ErrUnknownEncoding: unrecognized texel format/size or opcode.
	ErrUnknownEncoding = errors.New("unknown encoding")
	// ErrTruncatedStream: a display list ended early or nested too deep.
	ErrTruncatedStream = errors.New("truncated stream")
)
