// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bureau-foundation/console/lib/codec"
)

// EnvelopeType discriminates envelopes.
type EnvelopeType string

const (
	TypeCall         EnvelopeType = "call"
	TypeAnswer       EnvelopeType = "answer"
	TypeResponse     EnvelopeType = "response"
	TypeNotification EnvelopeType = "notification"
	TypeRemoteCall   EnvelopeType = "remoteCall"
	TypeProfile      EnvelopeType = "profile"
	TypeError        EnvelopeType = "error"
)

// ProfileEvent is the lifecycle change reported by a "profile" envelope.
type ProfileEvent string

const (
	ProfileStarted ProfileEvent = "started"
	ProfileStopped ProfileEvent = "stopped"
	ProfileExited  ProfileEvent = "exited"
	ProfileError   ProfileEvent = "error"
)

// Envelope frames every message on the session connection.
type Envelope struct {
	Type EnvelopeType `json:"type"`

	// CorrelationID pairs a call with its response. Console-assigned.
	CorrelationID string `json:"correlationId,omitempty"`

	// ProfileID routes the envelope to or from one profile.
	ProfileID string `json:"profileId,omitempty"`

	// InboundID identifies a remote call within its profile. It is a
	// pointer because zero is a valid id.
	InboundID *int64 `json:"inboundId,omitempty"`

	Method string     `json:"method,omitempty"`
	Params *codec.Raw `json:"params,omitempty"`
	Result *codec.Raw `json:"result,omitempty"`
	Error  *ErrorBody `json:"error,omitempty"`

	// Event, Message and ExitCode describe "profile" and "error"
	// envelopes.
	Event    ProfileEvent `json:"event,omitempty"`
	Message  string       `json:"message,omitempty"`
	ExitCode *int         `json:"exitCode,omitempty"`
}

// ErrMalformedEnvelope is returned by DecodeEnvelope for frames that
// parse but are not usable envelopes.
var ErrMalformedEnvelope = errors.New("protocol: malformed envelope")

// EncodeEnvelope encodes envelope in format.
func EncodeEnvelope(format codec.Format, envelope *Envelope) ([]byte, error) {
	data, err := codec.Marshal(format, envelope)
	if err != nil {
		return nil, fmt.Errorf("protocol: encoding %s envelope: %w", envelope.Type, err)
	}
	return data, nil
}

// DecodeEnvelope decodes one frame. It checks only the fields the
// envelope type cannot be routed without.
func DecodeEnvelope(format codec.Format, data []byte) (*Envelope, error) {
	var envelope Envelope
	if err := codec.Unmarshal(format, data, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	switch envelope.Type {
	case TypeResponse:
		if envelope.CorrelationID == "" {
			return nil, fmt.Errorf("%w: response without correlationId", ErrMalformedEnvelope)
		}
	case TypeNotification:
		if envelope.Method == "" {
			return nil, fmt.Errorf("%w: notification without method", ErrMalformedEnvelope)
		}
	case TypeRemoteCall:
		if envelope.Method == "" || envelope.InboundID == nil {
			return nil, fmt.Errorf("%w: remoteCall without method or inboundId", ErrMalformedEnvelope)
		}
	case TypeProfile:
		if envelope.ProfileID == "" || envelope.Event == "" {
			return nil, fmt.Errorf("%w: profile envelope without profileId or event", ErrMalformedEnvelope)
		}
	case TypeCall, TypeAnswer, TypeError:
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformedEnvelope)
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformedEnvelope, envelope.Type)
	}
	return &envelope, nil
}

// ErrorBody is the error carried by a response or answer. On the wire
// it is either a bare string or an object with code and message; both
// decode into ErrorBody and it always encodes as the object form.
type ErrorBody struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message"`
}

type errorBodyObject ErrorBody

// UnmarshalJSON accepts a string or an object.
func (e *ErrorBody) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*e = ErrorBody{Message: text}
		return nil
	}
	var object errorBodyObject
	if err := json.Unmarshal(data, &object); err != nil {
		return fmt.Errorf("protocol: error body is neither string nor object: %w", err)
	}
	*e = ErrorBody(object)
	return nil
}

// UnmarshalCBOR accepts a text string or a map.
func (e *ErrorBody) UnmarshalCBOR(data []byte) error {
	var text string
	if err := codec.Unmarshal(codec.FormatCBOR, data, &text); err == nil {
		*e = ErrorBody{Message: text}
		return nil
	}
	var object errorBodyObject
	if err := codec.Unmarshal(codec.FormatCBOR, data, &object); err != nil {
		return fmt.Errorf("protocol: error body is neither string nor map: %w", err)
	}
	*e = ErrorBody(object)
	return nil
}

func (e *ErrorBody) String() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
	}
	return e.Message
}
