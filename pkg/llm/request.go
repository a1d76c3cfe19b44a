package llm

// ChatRequest is the JSON body sent once per user turn to the remote chat
// service. SessionID encodes as null when unset.
type ChatRequest struct {
	// UserID identifies the caller to the backend.
	UserID string `json:"user_id"`

	// Query is the content of the conversation's latest user message.
	Query string `json:"query"`

	// SessionID is an optional backend conversation identifier.
	SessionID *string `json:"session_id"`

	// Mode tags the request for chat, retrieval or document generation.
	Mode Mode `json:"mode"`
}
