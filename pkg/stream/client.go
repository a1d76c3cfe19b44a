// Package stream drives one request/response cycle against the remote chat
// endpoint: it posts the turn, reads the server-sent event stream line by
// line, and accumulates answer tokens into the turn's response text.
package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/papercomputeco/pulse/pkg/credentials"
	"github.com/papercomputeco/pulse/pkg/frame"
	"github.com/papercomputeco/pulse/pkg/llm"
	"github.com/papercomputeco/pulse/pkg/sse"
)

// DefaultTimeout bounds the connection attempt and the whole stream.
const DefaultTimeout = 120 * time.Second

// maxErrorBody caps how much of a non-2xx body is kept for the error.
const maxErrorBody = 4 * 1024

// Config is the stream client configuration.
type Config struct {
	// Endpoint is the absolute http(s) URL of the streaming chat endpoint.
	Endpoint string

	// Timeout covers connecting and consuming the whole stream.
	// Zero means DefaultTimeout.
	Timeout time.Duration

	// TokenSource supplies the bearer token. Nil or empty tokens omit the
	// Authorization header.
	TokenSource credentials.TokenSource

	// HTTPClient is used for requests. Defaults to a client without its own
	// timeout, since the stream deadline is carried by the request context.
	HTTPClient *http.Client
}

// Result is the outcome of one stream. It is returned even when Stream
// fails so that partial content is never lost.
type Result struct {
	// Content is every token received, concatenated in order.
	Content string

	// State is the terminal state, StateDone or StateFailed.
	State State

	// Tokens counts the tokens appended to Content.
	Tokens int

	// Notices are the inline service errors seen during the stream.
	Notices []string
}

// Client posts chat turns and consumes their streamed responses.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a new Client.
func New(config Config, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(config.Endpoint) == "" {
		return nil, ErrNoEndpoint
	}

	u, err := url.Parse(config.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("parsing chat endpoint: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("chat endpoint must be an absolute http(s) URL, got %q", config.Endpoint)
	}

	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Endpoint returns the configured endpoint URL.
func (c *Client) Endpoint() string {
	return c.config.Endpoint
}

// Stream sends req and consumes the response until the [DONE] sentinel, the
// end of the body, a failure, or ctx cancellation. Tokens are appended to the
// result and reported to obs as full snapshots; inline error frames are
// reported to obs and do not stop the stream.
//
// The returned Result is never nil. On failure its Content holds everything
// accumulated before the failure and the error is a *ConnectionError.
func (c *Client) Stream(ctx context.Context, req llm.ChatRequest, obs Observer) (*Result, error) {
	if obs == nil {
		obs = nopObserver{}
	}

	res := &Result{State: StateIdle}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	res.State = StateConnecting
	body, err := c.open(ctx, req)
	if err != nil {
		res.State = StateFailed
		c.logger.Debug("stream failed to connect", "endpoint", c.config.Endpoint, "error", err)
		return res, err
	}
	defer body.Close()

	res.State = StateStreaming
	start := time.Now()

	var acc strings.Builder
	reader := sse.NewLineReader(body)

	for {
		line, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			res.Content = acc.String()
			res.State = StateFailed
			c.logger.Debug("stream read failed",
				"error", err,
				"tokens", res.Tokens,
				"elapsed", time.Since(start),
			)
			return res, &ConnectionError{Err: readError(ctx, err)}
		}

		ev := frame.Classify(line)
		switch ev.Kind {
		case frame.KindDone:
			res.Content = acc.String()
			res.State = StateDone
			c.logger.Debug("stream complete",
				"tokens", res.Tokens,
				"elapsed", time.Since(start),
			)
			return res, nil

		case frame.KindError:
			res.Notices = append(res.Notices, ev.Text)
			c.logger.Info("inline service error", "error", ev.Text)
			obs.Notice(ev.Text)

		case frame.KindToken:
			acc.WriteString(ev.Text)
			res.Tokens++
			obs.Snapshot(acc.String())

		default:
			c.logger.Debug("skipping line", "line", line)
		}
	}

	// The body ended without a sentinel. Treat it as a complete stream unless
	// the deadline or the caller cut it short.
	res.Content = acc.String()
	if ctxErr := ctx.Err(); ctxErr != nil {
		res.State = StateFailed
		return res, &ConnectionError{Err: ctxErr}
	}

	res.State = StateDone
	c.logger.Debug("stream exhausted without sentinel",
		"tokens", res.Tokens,
		"elapsed", time.Since(start),
	)
	return res, nil
}

// open posts req and returns the response body of a successful response.
func (c *Client) open(ctx context.Context, req llm.ChatRequest) (io.ReadCloser, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if c.config.TokenSource != nil {
		if token := c.config.TokenSource.Token(); token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	c.logger.Debug("sending chat request",
		"endpoint", c.config.Endpoint,
		"mode", req.Mode,
		"query_len", len(req.Query),
	)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &ConnectionError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &ConnectionError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(excerpt)),
		}
	}

	return resp.Body, nil
}

// readError prefers the context's error when the read failed because the
// deadline passed or the caller cancelled.
func readError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}
