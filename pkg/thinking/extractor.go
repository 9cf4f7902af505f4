// Package thinking separates a model's reasoning segment from its visible
// answer before the answer is stored as a node output or final reply.
package thinking

import (
	"encoding/json"
	"strings"
)

const (
	openMarker  = "<think>"
	closeMarker = "</think>"
)

// metadataKeys are probed, in order, on the provider's raw response message
// object when no inline marker is present.
var metadataKeys = []string{"reasoning", "thinking", "reasoning_content", "analysis"}

// Split separates an inline <think>...</think> segment from the answer
// text. Only the first occurrence is honored and matching is
// case-insensitive. An unterminated open marker treats the rest of the text
// as thinking.
func Split(text string) (answer, thinking string) {
	lower := strings.ToLower(text)

	start := strings.Index(lower, openMarker)
	if start < 0 {
		return text, ""
	}

	rest := text[start+len(openMarker):]

	end := strings.Index(strings.ToLower(rest), closeMarker)
	if end < 0 {
		return strings.TrimSpace(text[:start]), strings.TrimSpace(rest)
	}

	answer = text[:start] + rest[end+len(closeMarker):]

	return strings.TrimSpace(answer), strings.TrimSpace(rest[:end])
}

// FromRawResponse probes a provider's raw JSON response body for a
// reasoning segment under choices[0].message. Returns an empty string when
// the body is absent, malformed or carries no reasoning field; a bad
// payload is never an error here.
func FromRawResponse(rawBody string) string {
	if strings.TrimSpace(rawBody) == "" {
		return ""
	}

	var root map[string]any
	if err := json.Unmarshal([]byte(rawBody), &root); err != nil {
		return ""
	}

	choices, ok := root["choices"].([]any)
	if !ok || len(choices) == 0 {
		return ""
	}

	choice, ok := choices[0].(map[string]any)
	if !ok {
		return ""
	}

	message, ok := choice["message"].(map[string]any)
	if !ok {
		return ""
	}

	for _, key := range metadataKeys {
		if v, ok := message[key].(string); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}

	return ""
}

// Extract resolves the thinking segment for a response: the inline marker
// wins, then the provider metadata. The returned answer is always free of
// thinking markers.
func Extract(text, rawBody string) (answer, thinking string) {
	answer, thinking = Split(text)
	if thinking == "" {
		thinking = FromRawResponse(rawBody)
	}

	return answer, thinking
}
