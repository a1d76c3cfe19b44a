package session

import (
	"strings"
	"sync"
	"time"

	"github.com/papercomputeco/pulse/pkg/llm"
)

// Store is the sole owner of all sessions and their messages. At most one
// session is selected at a time. Store is safe for concurrent use.
type Store struct {
	// mu guards every field below
	mu sync.RWMutex

	// sessions is keyed by session ID
	sessions map[ID]*Session

	// order preserves creation order for listing
	order []ID

	// selected is the current session, empty when nothing is selected
	selected ID

	// now stamps newly created sessions
	now func() time.Time
}

// NewStore creates an empty Store with no selection.
func NewStore() *Store {
	return &Store{
		sessions: make(map[ID]*Session),
		now:      time.Now,
	}
}

// Create adds a new empty session, selects it and returns its ID. A blank
// title is replaced with DefaultTitle.
func (s *Store) Create(title string) ID {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.createLocked(title)
}

func (s *Store) createLocked(title string) ID {
	now := s.now()
	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultTitle(now)
	}

	id := newID()
	s.sessions[id] = &Session{
		ID:        id,
		Title:     title,
		CreatedAt: now,
	}
	s.order = append(s.order, id)
	s.selected = id

	return id
}

// EnsureCurrent returns the selected session's ID, creating and selecting a
// new session with the given title when nothing is selected.
func (s *Store) EnsureCurrent(title string) ID {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.selected != "" {
		return s.selected
	}
	return s.createLocked(title)
}

// Select makes id the current session.
func (s *Store) Select(id ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return NotFoundError{ID: id}
	}

	s.selected = id
	return nil
}

// Delete removes a session immediately and irreversibly. If it was selected
// the selection is cleared; otherwise the selection is unchanged.
func (s *Store) Delete(id ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return NotFoundError{ID: id}
	}

	delete(s.sessions, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	if s.selected == id {
		s.selected = ""
	}

	return nil
}

// Current returns a copy of the selected session.
func (s *Store) Current() (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.selected == "" {
		return nil, false
	}
	return s.sessions[s.selected].clone(), true
}

// Selected returns the selected session ID.
func (s *Store) Selected() (ID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.selected, s.selected != ""
}

// Get returns a copy of the session with the given ID.
func (s *Store) Get(id ID) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, NotFoundError{ID: id}
	}
	return sess.clone(), nil
}

// Append adds msg to the end of the session's message list.
func (s *Store) Append(id ID, msg llm.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return NotFoundError{ID: id}
	}

	sess.Messages = append(sess.Messages, msg)
	return nil
}

// List returns summaries of all sessions in creation order.
func (s *Store) List() []Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]Summary, 0, len(s.order))
	for _, id := range s.order {
		sess := s.sessions[id]
		summaries = append(summaries, Summary{
			ID:           id,
			Title:        sess.Title,
			MessageCount: len(sess.Messages),
			Selected:     id == s.selected,
		})
	}
	return summaries
}

// Len returns the number of sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.order)
}
