// Package frame classifies logical stream lines produced by pkg/sse into
// answer tokens, inline service errors, the end-of-stream sentinel, or
// ignorable noise.
//
// Chat backends disagree on payload shape, so extraction tries a fixed,
// priority-ordered list of known shapes and takes the first match. A line
// matching several shapes therefore produces exactly one token.
package frame

import (
	"encoding/json"
	"strings"
)

// Done is the sentinel line that ends a stream successfully.
const Done = "[DONE]"

// answerType is the only envelope type whose content is surfaced. Other
// envelope types ("thought", "talk", ...) are suppressed.
const answerType = "answer"

// flatKeys are checked in order on objects without a data envelope.
var flatKeys = []string{"content", "token", "text"}

// Parse decodes the JSON object in line. Anything before the first '{' is
// discarded first so that "event: message{...}" style lines parse. Lines
// that are not a JSON object report false.
func Parse(line string) (map[string]any, bool) {
	if i := strings.IndexByte(line, '{'); i > 0 {
		line = line[i:]
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(line), &obj); err != nil {
		return nil, false
	}
	if obj == nil {
		// "null" decodes without error into a nil map.
		return nil, false
	}

	return obj, true
}

// Extract returns the answer token carried by line, if any. It never fails:
// malformed lines and non-answer frames simply yield no token.
func Extract(line string) (string, bool) {
	obj, ok := Parse(line)
	if !ok {
		return "", false
	}
	return tokenFrom(obj)
}

// tokenFrom applies the shape precedence to a parsed frame:
//
//  1. {"data":{"type":"answer","content":"..."}}
//  2. {"content":"..."} / {"token":"..."} / {"text":"..."}
//  3. {"choices":[{"delta":{"content":"..."}}]}
func tokenFrom(obj map[string]any) (string, bool) {
	if data, ok := obj["data"].(map[string]any); ok {
		if data["type"] != answerType {
			return "", false
		}
		content, ok := data["content"].(string)
		return content, ok
	}

	for _, key := range flatKeys {
		if v, ok := obj[key].(string); ok {
			return v, true
		}
	}

	return deltaContent(obj)
}

func deltaContent(obj map[string]any) (string, bool) {
	choices, ok := obj["choices"].([]any)
	if !ok || len(choices) == 0 {
		return "", false
	}

	choice, ok := choices[0].(map[string]any)
	if !ok {
		return "", false
	}

	delta, ok := choice["delta"].(map[string]any)
	if !ok {
		return "", false
	}

	content, ok := delta["content"].(string)
	return content, ok
}
