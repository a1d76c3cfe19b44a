package mock

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/papercomputeco/pulse/pkg/llm"
)

// Shape is a family of frame payloads the backend can emit.
type Shape string

const (
	// ShapeFlat emits {"content":...}, {"token":...} and {"text":...} frames.
	ShapeFlat Shape = "flat"

	// ShapeOpenAI emits chat.completion.chunk deltas.
	ShapeOpenAI Shape = "openai"

	// ShapeEnvelope emits {"data":{"type":...}} envelopes with thought and
	// sources frames ahead of the answer.
	ShapeEnvelope Shape = "envelope"

	// ShapeEvent emits bare lines with the event name glued to the JSON
	// payload, as in `event: message{"content":"..."}`, and no data: field.
	ShapeEvent Shape = "event"
)

// Shapes returns every supported shape.
func Shapes() []Shape {
	return []Shape{ShapeFlat, ShapeOpenAI, ShapeEnvelope, ShapeEvent}
}

// ParseShape validates s. The empty string is accepted and means "by mode".
func ParseShape(s string) (Shape, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", nil
	}
	for _, shape := range Shapes() {
		if s == string(shape) {
			return shape, nil
		}
	}
	return "", fmt.Errorf("unknown shape: %q (available: flat, openai, envelope, event)", s)
}

// ShapeFor returns the shape used for a mode when none is forced.
func ShapeFor(mode llm.Mode) Shape {
	switch mode {
	case llm.ModeRAG:
		return ShapeEnvelope
	case llm.ModeDoc:
		return ShapeEvent
	default:
		return ShapeOpenAI
	}
}

type envelope struct {
	Data envelopeData `json:"data"`
}

type envelopeData struct {
	Type    string `json:"type"`
	Content any    `json:"content"`
}

type openAIChunk struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Choices []openAIChoice `json:"choices"`
}

type openAIChoice struct {
	Index int         `json:"index"`
	Delta openAIDelta `json:"delta"`
}

type openAIDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content"`
}

// encoder renders the frames of one response in a given shape.
type encoder struct {
	shape Shape
	id    string
}

func newEncoder(shape Shape) *encoder {
	return &encoder{shape: shape, id: "chatcmpl-" + uuid.NewString()}
}

// preamble returns the frames sent before the first token.
func (e *encoder) preamble(req llm.ChatRequest) []string {
	if e.shape != ShapeEnvelope {
		return nil
	}
	return []string{
		e.data(envelope{Data: envelopeData{Type: "thought", Content: fmt.Sprintf("Searching the index for %q", req.Query)}}),
		e.data(envelope{Data: envelopeData{Type: "sources", Content: []string{"handbook.pdf#p4", "faq.md"}}}),
	}
}

// token returns the frame carrying the i-th token.
func (e *encoder) token(i int, tok string) string {
	switch e.shape {
	case ShapeFlat:
		key := [...]string{"content", "token", "text"}[i%3]
		return e.data(map[string]string{key: tok})

	case ShapeOpenAI:
		delta := openAIDelta{Content: tok}
		if i == 0 {
			delta.Role = "assistant"
		}
		return e.data(openAIChunk{
			ID:      e.id,
			Object:  "chat.completion.chunk",
			Choices: []openAIChoice{{Index: 0, Delta: delta}},
		})

	case ShapeEvent:
		raw, err := json.Marshal(map[string]string{"content": tok})
		if err != nil {
			panic(err)
		}
		return "event: message" + string(raw) + "\n\n"

	default:
		return e.data(envelope{Data: envelopeData{Type: "answer", Content: tok}})
	}
}

func (e *encoder) errorFrame(msg string) string {
	return e.data(llm.ErrorResponse{Error: msg})
}

func (e *encoder) done() string {
	return "data: [DONE]\n\n"
}

func (e *encoder) data(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		// Only fixed, marshalable types reach here.
		panic(err)
	}
	return "data: " + string(raw) + "\n\n"
}
