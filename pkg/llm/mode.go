package llm

import (
	"fmt"
	"strings"
)

// Mode is a hint forwarded to the backend to toggle retrieval or document
// generation behaviour. The client attaches it to every request and does not
// interpret it.
type Mode string

const (
	ModeChat Mode = "chat"
	ModeRAG  Mode = "rag"
	ModeDoc  Mode = "doc"
)

var modeLabels = map[Mode]string{
	ModeChat: "Chat only",
	ModeRAG:  "Chat with RAG",
	ModeDoc:  "Document gen",
}

// Modes returns all modes in display order.
func Modes() []Mode {
	return []Mode{ModeChat, ModeRAG, ModeDoc}
}

// Label returns the human-readable name of the mode.
func (m Mode) Label() string {
	if l, ok := modeLabels[m]; ok {
		return l
	}
	return string(m)
}

// Next returns the mode following m in display order, wrapping around.
func (m Mode) Next() Mode {
	modes := Modes()
	for i, mode := range modes {
		if mode == m {
			return modes[(i+1)%len(modes)]
		}
	}
	return ModeChat
}

// ParseMode accepts either a wire value ("rag") or a display label
// ("Chat with RAG"), case-insensitively.
func ParseMode(s string) (Mode, error) {
	s = strings.TrimSpace(s)
	for _, m := range Modes() {
		if strings.EqualFold(s, string(m)) || strings.EqualFold(s, m.Label()) {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown mode: %q (available: chat, rag, doc)", s)
}
