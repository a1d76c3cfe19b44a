// Package sse provides a minimal, purpose-built SSE (Server-Sent Events)
// line reader for the pulse chat client. It turns a streamed response body
// into a lazy sequence of logical lines, unwrapping the "data:" field prefix
// where present.
//
// Unlike a full SSE event parser, each "data:" line is its own logical line:
// multi-line payloads are never joined. Chat backends emit one JSON frame per
// data line, and some emit bare JSON or "event: x{...}" lines with no framing
// at all, so the reader passes any other non-blank line through trimmed.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

import "strings"

// DataPrefix is the SSE field prefix stripped from data lines.
const DataPrefix = "data:"

// TrimLine converts one raw line into its logical form. The second return
// value is false when the line is blank and must be skipped.
func TrimLine(raw string) (string, bool) {
	line := strings.TrimSpace(raw)
	if line == "" {
		return "", false
	}

	if rest, ok := strings.CutPrefix(line, DataPrefix); ok {
		return strings.TrimSpace(rest), true
	}

	return line, true
}
