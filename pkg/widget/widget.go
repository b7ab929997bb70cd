// Package widget separates structured widget payloads from conversational text.
//
// A model appends a widget to its answer by emitting the Sentinel followed by a
// single JSON object:
//
//	Here are your tasks: WIDGET_DATA:{"type":"work-items","data":{"items":[]}}
//
// Everything before the first Sentinel is conversational text. Everything from
// the Sentinel onward is the widget buffer, which is only parsed once the
// stream has ended.
package widget

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Sentinel marks the start of an inline widget payload.
const Sentinel = "WIDGET_DATA:"

var (
	// ErrNoSentinel is returned by Parse when the buffer has no Sentinel.
	ErrNoSentinel = errors.New("widget sentinel not found")

	// ErrMissingType is returned by Parse when the payload has no type.
	ErrMissingType = errors.New("widget payload has no type")
)

// Widget is a structured payload rendered alongside an assistant message.
// Data is kept raw: its schema depends on Type and is owned by the renderer.
type Widget struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Parse extracts the widget following the first Sentinel in buffer.
// Exactly one JSON object is decoded, so trailing text after the object and
// Sentinel literals inside its string values do not affect the result.
func Parse(buffer string) (*Widget, error) {
	i := strings.Index(buffer, Sentinel)
	if i < 0 {
		return nil, ErrNoSentinel
	}
	payload := strings.TrimSpace(buffer[i+len(Sentinel):])
	payload = strings.TrimPrefix(payload, "```json")
	payload = strings.TrimPrefix(payload, "```")

	dec := json.NewDecoder(strings.NewReader(payload))
	var w Widget
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("decoding widget payload: %w", err)
	}
	if w.Type == "" {
		return nil, ErrMissingType
	}
	if len(w.Data) > 0 {
		var compact bytes.Buffer
		if err := json.Compact(&compact, w.Data); err == nil {
			w.Data = compact.Bytes()
		}
	}
	return &w, nil
}
