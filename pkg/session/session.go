// Package session holds the in-memory chat sessions of one pulse process.
// Sessions live only as long as the process; nothing is persisted.
package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/pulse/pkg/llm"
)

// ID identifies a session within a Store. IDs are never reused.
type ID string

func newID() ID {
	return ID(uuid.NewString())
}

// Session is a titled, ordered list of messages.
type Session struct {
	ID        ID
	Title     string
	CreatedAt time.Time
	Messages  []llm.Message
}

// LastUserMessage returns the content of the most recent user message, or
// "" when the session has none.
func (s *Session) LastUserMessage() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == llm.RoleUser {
			return s.Messages[i].Content
		}
	}
	return ""
}

// clone returns a copy whose message slice does not alias the original.
func (s *Session) clone() *Session {
	c := *s
	c.Messages = append([]llm.Message(nil), s.Messages...)
	return &c
}

// Summary is the list view of a Session.
type Summary struct {
	ID           ID
	Title        string
	MessageCount int
	Selected     bool
}

// Label returns the display title, falling back to "Session N" where n is
// the zero-based list position.
func (s Summary) Label(n int) string {
	if s.Title != "" {
		return s.Title
	}
	return fmt.Sprintf("Session %d", n+1)
}

// DefaultTitle returns the title given to sessions created without one.
func DefaultTitle(t time.Time) string {
	return "Session • " + t.Format("2006-01-02 15:04")
}
