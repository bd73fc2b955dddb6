// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"fmt"

	"github.com/bureau-foundation/console/lib/codec"
	"github.com/bureau-foundation/console/protocol"
)

// EventType discriminates events.
type EventType int

const (
	// EventNotification is a notification from a profile.
	EventNotification EventType = iota
	// EventRemoteCall is a call from a profile awaiting Respond.
	EventRemoteCall
	// EventProfile is a profile lifecycle change.
	EventProfile
)

func (t EventType) String() string {
	switch t {
	case EventNotification:
		return "notification"
	case EventRemoteCall:
		return "remoteCall"
	case EventProfile:
		return "profile"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

// Event is one published envelope.
type Event struct {
	Type      EventType
	ProfileID string

	// Method and Params are set for notifications and remote calls.
	Method string
	Params *codec.Raw

	// InboundID is set for remote calls; pass it to Respond.
	InboundID int64

	// Profile is set for EventProfile.
	Profile *ProfileStatus
}

// ProfileStatus is a profile lifecycle change.
type ProfileStatus struct {
	Event    protocol.ProfileEvent
	Message  string
	ExitCode *int
}

// Decode unmarshals the event params into v.
func (e Event) Decode(v any) error {
	if err := e.Params.Decode(v); err != nil {
		return fmt.Errorf("bridge: decoding %s params: %w", e.Method, err)
	}
	return nil
}

func eventFromEnvelope(envelope *protocol.Envelope) (Event, bool) {
	switch envelope.Type {
	case protocol.TypeNotification:
		return Event{
			Type:      EventNotification,
			ProfileID: envelope.ProfileID,
			Method:    envelope.Method,
			Params:    envelope.Params,
		}, true
	case protocol.TypeRemoteCall:
		return Event{
			Type:      EventRemoteCall,
			ProfileID: envelope.ProfileID,
			Method:    envelope.Method,
			Params:    envelope.Params,
			InboundID: *envelope.InboundID,
		}, true
	case protocol.TypeProfile:
		return Event{
			Type:      EventProfile,
			ProfileID: envelope.ProfileID,
			Profile: &ProfileStatus{
				Event:    envelope.Event,
				Message:  envelope.Message,
				ExitCode: envelope.ExitCode,
			},
		}, true
	}
	return Event{}, false
}
