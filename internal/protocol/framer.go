package protocol

import (
	"bytes"
	"errors"
)

// ErrLineTooLong is returned when buffered input exceeds the maximum line
// length without a line delimiter. The text is sent to clients verbatim.
var ErrLineTooLong = errors.New("Line too long")

// Framer accumulates bytes across reads and releases only whole,
// delimiter-terminated lines. The unterminated tail is kept for the next Feed.
type Framer struct {
	pending    []byte
	maxLine    int
	discarding bool // dropping the rest of an over-long line
}

// NewFramer creates a Framer. maxLine <= 0 disables the length limit.
func NewFramer(maxLine int) *Framer {
	return &Framer{maxLine: maxLine}
}

// Feed appends p and returns the complete lines now available, split and
// trimmed by SplitLines. framed reports whether at least one delimiter was
// consumed, which distinguishes blank input from a partial line.
//
// If the unterminated tail grows beyond the limit it is dropped, along with
// everything up to the next delimiter, and ErrLineTooLong is returned together
// with whatever complete lines preceded it.
func (f *Framer) Feed(p []byte) (lines []string, framed bool, err error) {
	if f.discarding {
		i := bytes.IndexByte(p, LineDelimiter)
		if i < 0 {
			return nil, false, nil
		}
		f.discarding = false
		p = p[i+1:]
	}

	f.pending = append(f.pending, p...)

	if i := bytes.LastIndexByte(f.pending, LineDelimiter); i >= 0 {
		framed = true
		lines = SplitLines(f.pending[:i+1])
		rest := copy(f.pending, f.pending[i+1:])
		f.pending = f.pending[:rest]
	}

	if f.maxLine > 0 && len(f.pending) > f.maxLine {
		f.pending = f.pending[:0]
		f.discarding = true
		return lines, framed, ErrLineTooLong
	}
	return lines, framed, nil
}

// Pending returns the number of buffered bytes awaiting a delimiter.
func (f *Framer) Pending() int {
	return len(f.pending)
}

// Reset drops all buffered state.
func (f *Framer) Reset() {
	f.pending = f.pending[:0]
	f.discarding = false
}
