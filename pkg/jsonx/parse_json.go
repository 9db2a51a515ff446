// Package jsonx holds small strict-JSON decoding helpers shared by the
// chunk API client and server.
package jsonx

import (
	"encoding/json"
	"io"
)

// ParseJSONObject decodes exactly one JSON value from src into dst with
// unknown-field rejection.
//
//   - Malformed JSON (bad tokens, truncated input) surfaces the decoder
//     error (*json.SyntaxError, io.ErrUnexpectedEOF, ...).
//   - Type mismatches surface *json.UnmarshalTypeError.
//   - Unknown object fields are rejected by the decoder.
func ParseJSONObject[T any](src io.Reader, dst *T) error {
	dec := json.NewDecoder(src)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
