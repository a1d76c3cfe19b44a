package sse

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
)

const (
	initialBufferSize = 64 * 1024

	// MaxLineSize bounds a single line. Longer lines fail with ErrLineTooLong.
	MaxLineSize = 16 * 1024 * 1024
)

// ErrLineTooLong is returned when a line does not fit in MaxLineSize.
var ErrLineTooLong = fmt.Errorf("sse: line longer than %d bytes", MaxLineSize)

// LineReader reads logical lines from a source io.Reader.
//
// ┌──────────────────┐
// │ source io.Reader │
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐
// │ LineReader.Next()│  skips blank lines, strips "data:"
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐
// │   logical line   │
// └──────────────────┘
//
// A LineReader holds at most one line at a time and is not reusable once
// the source is exhausted.
type LineReader struct {
	scanner *bufio.Scanner
}

// NewLineReader returns a LineReader that parses lines from src.
func NewLineReader(src io.Reader) *LineReader {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, initialBufferSize), MaxLineSize)
	scanner.Split(scanLines)

	return &LineReader{
		scanner: scanner,
	}
}

// Next returns the next logical line. It blocks until a non-blank line is
// available. Next returns io.EOF when the source is exhausted, or the
// underlying read error if reading failed.
func (r *LineReader) Next() (string, error) {
	for r.scanner.Scan() {
		line, ok := TrimLine(r.scanner.Text())
		if !ok {
			continue
		}
		return line, nil
	}

	if err := r.scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return "", ErrLineTooLong
		}
		return "", err
	}

	return "", io.EOF
}

// scanLines splits on "\n", "\r\n" or a lone "\r". A CRLF pair yields an
// extra empty line, which Next skips with the other blank lines, so a
// trailing "\r" never has to wait for the next read.
func scanLines(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// Lines returns a single-use iterator over the logical lines of src.
// Iteration stops after the first read error, which is yielded with an empty
// line. Exhaustion is not reported as an error.
func Lines(src io.Reader) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		r := NewLineReader(src)
		for {
			line, err := r.Next()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield("", err)
				return
			}
			if !yield(line, nil) {
				return
			}
		}
	}
}
