// Package mock provides a local streaming chat backend that emits every frame
// shape the pulse client understands. It exists so the client can be driven
// end to end without access to the real service.
package mock

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/pulse/pkg/llm"
)

// Server is the mock streaming backend.
type Server struct {
	config Config
	logger *slog.Logger
	server *fiber.App
}

// New creates a new Server.
func New(config Config, logger *slog.Logger) (*Server, error) {
	if config.Delay < 0 {
		return nil, errors.New("delay must not be negative")
	}
	if _, err := ParseShape(string(config.Shape)); err != nil {
		return nil, err
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		logger: logger,
		server: app,
	}

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	app.Post("/*", s.handleStream)

	return s, nil
}

// Run starts the server on the configured listening address.
func (s *Server) Run() error {
	s.logger.Info("starting mock backend",
		"listen", s.config.ListenAddr,
		"shape", s.shapeName(),
		"delay", s.config.Delay,
	)

	return s.server.Listen(s.config.ListenAddr)
}

// RunWithListener starts the server using the provided listener.
func (s *Server) RunWithListener(listener net.Listener) error {
	s.logger.Info("starting mock backend",
		"listen", listener.Addr().String(),
		"shape", s.shapeName(),
		"delay", s.config.Delay,
	)

	return s.server.Listener(listener)
}

// Close shuts the server down.
func (s *Server) Close() error {
	return s.server.Shutdown()
}

func (s *Server) shapeName() string {
	if s.config.Shape == "" {
		return "by mode"
	}
	return string(s.config.Shape)
}

func (s *Server) handleStream(c *fiber.Ctx) error {
	if s.config.Token != "" {
		token, ok := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
		if !ok || token != s.config.Token {
			s.logger.Warn("rejected request with missing or wrong token", "path", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(llm.ErrorResponse{Error: "invalid bearer token"})
		}
	}

	var req llm.ChatRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}
	if strings.TrimSpace(req.Query) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "query is required"})
	}
	if req.Mode == "" {
		req.Mode = llm.ModeChat
	}

	shape := s.config.Shape
	if shape == "" {
		shape = ShapeFor(req.Mode)
	}

	s.logger.Debug("streaming mock response",
		"path", c.Path(),
		"user_id", req.UserID,
		"mode", req.Mode,
		"shape", shape,
	)

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")

	// io.Pipe gives per-frame backpressure: fasthttp flushes every chunk it
	// reads from pr to the socket.
	pr, pw := io.Pipe()
	go s.writeFrames(pw, req, newEncoder(shape))

	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

// writeFrames writes the whole response for req to pw and closes it.
func (s *Server) writeFrames(pw *io.PipeWriter, req llm.ChatRequest, enc *encoder) {
	start := time.Now()
	write := func(frame string) bool {
		if _, err := io.WriteString(pw, frame); err != nil {
			s.logger.Debug("client went away", "error", err)
			return false
		}
		return true
	}

	if s.config.Heartbeat && !write(": heartbeat\n\n") {
		return
	}

	for _, frame := range enc.preamble(req) {
		if !write(frame) {
			return
		}
	}

	tokens := Tokenize(Answer(req))
	for i, tok := range tokens {
		if s.config.Delay > 0 {
			time.Sleep(s.config.Delay)
		}

		if s.config.DropAfter > 0 && i == s.config.DropAfter {
			s.logger.Debug("dropping stream", "after_tokens", i)
			pw.CloseWithError(errors.New("mock: connection dropped"))
			return
		}

		if !write(enc.token(i, tok)) {
			return
		}

		if s.config.ErrorAfter > 0 && i+1 == s.config.ErrorAfter {
			if !write(enc.errorFrame("mock: simulated upstream hiccup")) {
				return
			}
		}
	}

	if !write(enc.done()) {
		return
	}
	pw.Close()

	s.logger.Debug("mock response complete",
		"tokens", len(tokens),
		"elapsed", time.Since(start),
	)
}
