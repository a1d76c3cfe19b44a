package mock

import "time"

// Config is the mock backend configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8090")
	ListenAddr string

	// Delay is the pause between streamed frames.
	Delay time.Duration

	// Shape forces one frame shape for every request. Empty picks the shape
	// from the request's mode.
	Shape Shape

	// Token, when set, is the bearer token every request must carry.
	Token string

	// ErrorAfter injects an inline error frame after that many tokens.
	// Zero disables it.
	ErrorAfter int

	// DropAfter closes the stream without the [DONE] sentinel after that
	// many tokens. Zero disables it.
	DropAfter int

	// Heartbeat emits an SSE comment before the first frame.
	Heartbeat bool
}
