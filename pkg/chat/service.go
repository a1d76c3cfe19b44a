// Package chat runs user turns: it records the user message in the session,
// streams the assistant response and commits it, whatever the stream's
// outcome, as exactly one assistant message.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/papercomputeco/pulse/pkg/llm"
	"github.com/papercomputeco/pulse/pkg/session"
	"github.com/papercomputeco/pulse/pkg/stream"
)

var (
	// ErrEmptyMessage is returned when the submitted text is blank.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrTurnInProgress is returned when a session already has a turn in flight.
	ErrTurnInProgress = errors.New("a response is still streaming for this session")
)

// DefaultUserID is sent when no user id is configured.
const DefaultUserID = "test-user"

// Streamer consumes one streamed response. *stream.Client implements it.
type Streamer interface {
	Stream(ctx context.Context, req llm.ChatRequest, obs stream.Observer) (*stream.Result, error)
}

// Config configures a Service.
type Config struct {
	// UserID is sent with every request.
	UserID string

	// Mode is the initial request mode.
	Mode llm.Mode
}

// Service orchestrates turns against a session store.
type Service struct {
	store    *session.Store
	streamer Streamer
	userID   string
	logger   *slog.Logger

	modeMu sync.RWMutex
	mode   llm.Mode

	// inflight holds the sessions with a turn streaming. Entries leave
	// when the turn ends, so deleted sessions are never retained.
	inflightMu sync.Mutex
	inflight   map[session.ID]struct{}
}

// NewService creates a new Service.
func NewService(store *session.Store, streamer Streamer, config Config, logger *slog.Logger) *Service {
	userID := strings.TrimSpace(config.UserID)
	if userID == "" {
		userID = DefaultUserID
	}

	mode := config.Mode
	if mode == "" {
		mode = llm.ModeChat
	}

	return &Service{
		store:    store,
		streamer: streamer,
		userID:   userID,
		logger:   logger,
		mode:     mode,
		inflight: make(map[session.ID]struct{}),
	}
}

// Store returns the session store the service writes to.
func (s *Service) Store() *session.Store {
	return s.store
}

// Mode returns the mode attached to new requests.
func (s *Service) Mode() llm.Mode {
	s.modeMu.RLock()
	defer s.modeMu.RUnlock()
	return s.mode
}

// SetMode changes the mode attached to subsequent requests.
func (s *Service) SetMode(mode llm.Mode) error {
	parsed, err := llm.ParseMode(string(mode))
	if err != nil {
		return err
	}

	s.modeMu.Lock()
	defer s.modeMu.Unlock()
	s.mode = parsed
	return nil
}

// Submit runs one turn on the given session. The user message is appended,
// the response is streamed with obs receiving snapshots and notices, and the
// accumulated text is appended as an assistant message.
//
// On stream failure the partial assistant message is still committed and
// returned alongside the error. Messages are only appended after the
// session has been confirmed to exist.
func (s *Service) Submit(ctx context.Context, id session.ID, text string, obs stream.Observer) (llm.Message, error) {
	if strings.TrimSpace(text) == "" {
		return llm.Message{}, ErrEmptyMessage
	}

	if !s.begin(id) {
		return llm.Message{}, ErrTurnInProgress
	}
	defer s.end(id)

	if err := s.store.Append(id, llm.NewUserMessage(text)); err != nil {
		return llm.Message{}, err
	}

	sess, err := s.store.Get(id)
	if err != nil {
		return llm.Message{}, err
	}

	req := llm.ChatRequest{
		UserID:    s.userID,
		Query:     sess.LastUserMessage(),
		SessionID: nil,
		Mode:      s.Mode(),
	}

	log := s.logger.With("session", string(id), "mode", req.Mode)
	log.Debug("submitting turn", "query_len", len(req.Query))

	res, streamErr := s.streamer.Stream(ctx, req, obs)

	var content string
	if res != nil {
		content = res.Content
	}

	reply := llm.NewAssistantMessage(content)
	if err := s.store.Append(id, reply); err != nil {
		// Deleted mid-stream. Nothing left to commit to.
		log.Warn("session removed before response was committed", "error", err)
		return reply, errors.Join(streamErr, err)
	}

	if streamErr != nil {
		log.Warn("turn failed", "error", streamErr, "partial_len", len(content))
		return reply, streamErr
	}

	log.Debug("turn committed", "response_len", len(content))
	return reply, nil
}

// SubmitCurrent runs a turn on the selected session, creating one first when
// there is none.
func (s *Service) SubmitCurrent(ctx context.Context, text string, obs stream.Observer) (session.ID, llm.Message, error) {
	if strings.TrimSpace(text) == "" {
		return "", llm.Message{}, ErrEmptyMessage
	}

	id := s.store.EnsureCurrent("")
	msg, err := s.Submit(ctx, id, text, obs)
	return id, msg, err
}

// Busy reports whether a turn is in flight for the session.
func (s *Service) Busy(id session.ID) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	_, ok := s.inflight[id]
	return ok
}

func (s *Service) begin(id session.ID) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, ok := s.inflight[id]; ok {
		return false
	}
	s.inflight[id] = struct{}{}
	return true
}

func (s *Service) end(id session.ID) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, id)
}
