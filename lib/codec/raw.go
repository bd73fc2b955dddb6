// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"encoding/json"
	"fmt"
)

// Raw is an encoded payload whose decoding is deferred. Use *Raw with
// omitempty in envelope structs so an absent payload is omitted in both
// formats.
type Raw struct {
	format Format
	data   []byte
}

// NewRaw encodes v in format and wraps the result. A nil v yields a nil
// Raw.
func NewRaw(format Format, v any) (*Raw, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(*Raw); ok {
		return raw, nil
	}
	data, err := Marshal(format, v)
	if err != nil {
		return nil, err
	}
	return &Raw{format: format, data: data}, nil
}

// RawBytes wraps bytes already encoded in format.
func RawBytes(format Format, data []byte) *Raw {
	return &Raw{format: format, data: append([]byte(nil), data...)}
}

// Format reports the encoding of the wrapped bytes.
func (r *Raw) Format() Format { return r.format }

// Bytes returns the wrapped bytes.
func (r *Raw) Bytes() []byte { return r.data }

// Decode unmarshals the payload into v. Decoding a nil Raw is a no-op
// so callers can decode optional params unconditionally.
func (r *Raw) Decode(v any) error {
	if r == nil || len(r.data) == 0 {
		return nil
	}
	return Unmarshal(r.format, r.data, v)
}

// In returns the payload re-encoded in format, or r itself when it is
// already in that format.
func (r *Raw) In(format Format) (*Raw, error) {
	if r == nil || r.format == format {
		return r, nil
	}
	value, err := decodeGeneric(r.format, r.data)
	if err != nil {
		return nil, fmt.Errorf("codec: transcoding %s payload: %w", r.format, err)
	}
	data, err := Marshal(format, value)
	if err != nil {
		return nil, fmt.Errorf("codec: transcoding to %s: %w", format, err)
	}
	return &Raw{format: format, data: data}, nil
}

// String renders the payload as JSON for logs.
func (r *Raw) String() string {
	if r == nil {
		return "null"
	}
	converted, err := r.In(FormatJSON)
	if err != nil {
		return fmt.Sprintf("<%s payload: %v>", r.format, err)
	}
	return string(converted.data)
}

// MarshalJSON implements json.Marshaler.
func (r *Raw) MarshalJSON() ([]byte, error) {
	if r == nil || len(r.data) == 0 {
		return []byte("null"), nil
	}
	converted, err := r.In(FormatJSON)
	if err != nil {
		return nil, err
	}
	return converted.data, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Raw) UnmarshalJSON(data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("codec: invalid JSON payload")
	}
	r.format = FormatJSON
	r.data = append(r.data[:0], data...)
	return nil
}

// MarshalCBOR implements cbor.Marshaler.
func (r *Raw) MarshalCBOR() ([]byte, error) {
	if r == nil || len(r.data) == 0 {
		return []byte{0xf6}, nil
	}
	converted, err := r.In(FormatCBOR)
	if err != nil {
		return nil, err
	}
	return converted.data, nil
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (r *Raw) UnmarshalCBOR(data []byte) error {
	r.format = FormatCBOR
	r.data = append(r.data[:0], data...)
	return nil
}
