// Package toolargs recovers tool parameters from the loosely structured
// input produced by a language model.
//
// A tool call arrives either as free text ("file_path='a.py', new_content='...'",
// a bare path, a JSON object rendered as a string) or as an already decoded
// mapping. Extract turns either form into Args deterministically and never panics.
package toolargs

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind discriminates the two shapes a Raw payload can take.
type Kind int

const (
	KindText Kind = iota
	KindStructured
)

// Raw is the payload of a single tool call before extraction.
// The zero value is empty text.
type Raw struct {
	kind   Kind
	text   string
	fields map[string]any
}

// Text wraps a free-form text payload.
func Text(s string) Raw {
	return Raw{kind: KindText, text: s}
}

// Structured wraps an already decoded mapping.
func Structured(m map[string]any) Raw {
	if m == nil {
		m = map[string]any{}
	}
	return Raw{kind: KindStructured, fields: m}
}

// FromJSON decodes a tool payload as delivered by a transport.
// A JSON string becomes Text, an object becomes Structured,
// null or empty input becomes empty Text.
// Any other JSON value is kept as its literal text.
func FromJSON(data json.RawMessage) (Raw, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return Text(""), nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return Raw{}, fmt.Errorf("decode tool input string: %w", err)
		}
		return Text(s), nil
	case '{':
		m := map[string]any{}
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&m); err != nil {
			return Raw{}, fmt.Errorf("decode tool input object: %w", err)
		}
		return Structured(m), nil
	}
	if !json.Valid(data) {
		return Raw{}, fmt.Errorf("tool input is not valid JSON")
	}
	return Text(string(data)), nil
}

func (r Raw) Kind() Kind {
	return r.kind
}

// Text returns the text payload. It is empty for structured payloads.
func (r Raw) Text() string {
	return r.text
}

// Fields returns the structured payload. It is nil for text payloads.
func (r Raw) Fields() map[string]any {
	return r.fields
}

// String renders the payload for logging.
func (r Raw) String() string {
	if r.kind == KindText {
		return r.text
	}
	b, err := json.Marshal(r.fields)
	if err != nil {
		return fmt.Sprint(r.fields)
	}
	return string(b)
}
