package mock

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/papercomputeco/pulse/pkg/llm"
)

// Answer returns the reply the backend streams for req. It is deterministic
// so tests and manual runs can check what arrived.
func Answer(req llm.ChatRequest) string {
	query := strings.TrimSpace(req.Query)

	switch req.Mode {
	case llm.ModeRAG:
		return fmt.Sprintf("Based on 2 retrieved documents, here is what I found about %q.", query)
	case llm.ModeDoc:
		return fmt.Sprintf("# %s\n\n## Summary\n\nThis document was generated for **%s**.\n\n- first point\n- second point\n", title(query), req.UserID)
	default:
		return fmt.Sprintf("You said: %s", query)
	}
}

// Tokenize splits s into word-sized chunks. Whitespace stays attached to the
// preceding word so concatenating the chunks yields s exactly.
func Tokenize(s string) []string {
	var tokens []string
	start, seenWord, prevSpace := 0, false, false

	for i, r := range s {
		space := unicode.IsSpace(r)
		if !space && prevSpace && seenWord {
			tokens = append(tokens, s[start:i])
			start = i
		}
		if !space {
			seenWord = true
		}
		prevSpace = space
	}

	if start < len(s) {
		tokens = append(tokens, s[start:])
	}
	return tokens
}

func title(query string) string {
	if query == "" {
		return "Untitled"
	}
	first, _, _ := strings.Cut(query, "\n")
	if runes := []rune(first); len(runes) > 60 {
		first = string(runes[:60])
	}
	return first
}
