package llm

// ErrorResponse is the frame a backend uses to report an application-level
// error inside an otherwise healthy stream, and the body of non-streaming
// error replies.
type ErrorResponse struct {
	Error string `json:"error"`
}
