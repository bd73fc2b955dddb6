// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Format identifies a wire encoding.
type Format uint8

const (
	// FormatJSON is UTF-8 JSON, carried in websocket text frames.
	FormatJSON Format = iota
	// FormatCBOR is deterministic CBOR, carried in binary frames.
	FormatCBOR
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatCBOR:
		return "cbor"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(f))
	}
}

// ParseFormat parses "json" or "cbor". The empty string selects JSON.
func ParseFormat(name string) (Format, error) {
	switch name {
	case "", "json":
		return FormatJSON, nil
	case "cbor":
		return FormatCBOR, nil
	default:
		return 0, fmt.Errorf("codec: unknown wire format %q", name)
	}
}

// Marshal encodes v in the given format.
func Marshal(format Format, v any) ([]byte, error) {
	switch format {
	case FormatJSON:
		return json.Marshal(v)
	case FormatCBOR:
		return marshalCBOR(v)
	default:
		return nil, fmt.Errorf("codec: cannot marshal %s", format)
	}
}

// Unmarshal decodes data in the given format into v.
func Unmarshal(format Format, data []byte, v any) error {
	switch format {
	case FormatJSON:
		return json.Unmarshal(data, v)
	case FormatCBOR:
		return unmarshalCBOR(data, v)
	default:
		return fmt.Errorf("codec: cannot unmarshal %s", format)
	}
}

// decodeGeneric decodes data into plain Go values (maps, slices,
// strings, numbers) suitable for re-encoding in either format. JSON
// numbers that are integral come out as int64 so they survive a trip
// through CBOR as integers.
func decodeGeneric(format Format, data []byte) (any, error) {
	if format == FormatCBOR {
		var value any
		if err := unmarshalCBOR(data, &value); err != nil {
			return nil, err
		}
		return value, nil
	}

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}
	return normalizeNumbers(value), nil
}

func normalizeNumbers(value any) any {
	switch typed := value.(type) {
	case json.Number:
		if integer, err := typed.Int64(); err == nil {
			return integer
		}
		float, _ := typed.Float64()
		return float
	case map[string]any:
		for key, element := range typed {
			typed[key] = normalizeNumbers(element)
		}
		return typed
	case []any:
		for index, element := range typed {
			typed[index] = normalizeNumbers(element)
		}
		return typed
	default:
		return value
	}
}
