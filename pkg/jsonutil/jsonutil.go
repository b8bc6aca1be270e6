// Package jsonutil wraps github.com/go-json-experiment/json for the few
// places the notifier touches JSON: decoding provider responses and
// pretty-printing opaque provider metadata in the console dump.
//
// Usage:
//
//	var page shodanPage
//	err := jsonutil.DecodeLimited(resp.Body, iohelper.LargeMaxBodySize, &page)
package jsonutil

import (
	"io"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// Unmarshal parses the JSON-encoded data and stores the result in v.
func Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// Marshal returns the JSON encoding of v.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// MarshalIndent returns the indented JSON encoding of v.
// Map keys are sorted so repeated dumps of the same record are stable.
func MarshalIndent(v any, indent string) ([]byte, error) {
	return json.Marshal(v, jsontext.WithIndent(indent), json.Deterministic(true))
}

// DecodeLimited reads at most limit bytes from r and decodes them into v.
// Responses larger than limit fail with a syntax error instead of
// exhausting memory.
func DecodeLimited(r io.Reader, limit int64, v any) error {
	return json.UnmarshalRead(io.LimitReader(r, limit), v)
}

// Valid reports whether data is a valid JSON encoding.
func Valid(data []byte) bool {
	return jsontext.Value(data).IsValid()
}
