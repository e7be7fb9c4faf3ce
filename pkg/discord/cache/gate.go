package cache

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

// Canonicalize re-encodes a JSON document with object keys sorted and insignificant
// whitespace removed. Numbers keep their literal text.
func Canonicalize(data []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after JSON value")
	}
	return json.Marshal(v)
}

// IsChanged reports whether next differs structurally from prev. A nil prev means no
// stored value and is always a change. Input that is not valid JSON is treated as
// changed.
func IsChanged(next, prev []byte) bool {
	if prev == nil {
		return true
	}
	a, err := Canonicalize(next)
	if err != nil {
		return true
	}
	b, err := Canonicalize(prev)
	if err != nil {
		return true
	}
	return !bytes.Equal(a, b)
}
