package frame

import (
	"encoding/json"
	"fmt"
)

// Kind is the classification of one logical line.
type Kind int

const (
	// KindIgnored is a line that carries nothing for the reader: heartbeats,
	// comments, malformed JSON, suppressed envelope types.
	KindIgnored Kind = iota

	// KindToken is a line carrying one answer fragment.
	KindToken

	// KindError is a well-formed frame reporting an application-level error.
	KindError

	// KindDone is the end-of-stream sentinel.
	KindDone
)

func (k Kind) String() string {
	switch k {
	case KindToken:
		return "token"
	case KindError:
		return "error"
	case KindDone:
		return "done"
	default:
		return "ignored"
	}
}

// Event is the classification result for one logical line.
type Event struct {
	Kind Kind

	// Text is the token for KindToken and the error message for KindError.
	Text string
}

// Classify turns one logical line into an Event. The sentinel is matched
// exactly; error frames take precedence over token extraction.
func Classify(line string) Event {
	if line == Done {
		return Event{Kind: KindDone}
	}

	obj, ok := Parse(line)
	if !ok {
		return Event{Kind: KindIgnored}
	}

	if v, ok := obj["error"]; ok {
		return Event{Kind: KindError, Text: errorText(v)}
	}

	if tok, ok := tokenFrom(obj); ok {
		return Event{Kind: KindToken, Text: tok}
	}

	return Event{Kind: KindIgnored}
}

// errorText renders the value of an "error" field for display.
func errorText(v any) string {
	switch e := v.(type) {
	case string:
		return e
	case map[string]any:
		if msg, ok := e["message"].(string); ok {
			return msg
		}
	case nil:
		return "null"
	}

	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
