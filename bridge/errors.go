// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bureau-foundation/console/transport"
)

// ErrNotConnected is returned by Call and Respond when the transport is
// not open.
var ErrNotConnected = transport.ErrNotConnected

// ErrConnectionLost fails calls that were in flight when the connection
// closed. It matches ErrNotConnected under errors.Is.
var ErrConnectionLost = fmt.Errorf("bridge: connection lost: %w", ErrNotConnected)

// ErrCallTimeout fails calls that received no response within
// CallTimeout.
var ErrCallTimeout = errors.New("bridge: call timed out")

// CallError describes a call that ended without a response from the
// profile: a timeout, a lost connection, a write failure, or a
// cancelled context.
type CallError struct {
	ProfileID     string
	Method        string
	CorrelationID string
	Err           error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("bridge: %s on profile %s: %v", e.Method, e.ProfileID, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// RemoteError is an error the profile host returned for a call. Message
// is the host's text, unmodified.
type RemoteError struct {
	ProfileID string
	Method    string
	Code      int
	Message   string
}

func (e *RemoteError) Error() string { return e.Message }

// IsRemoteError reports whether err is, or wraps, a RemoteError.
func IsRemoteError(err error) bool {
	var remoteError *RemoteError
	return errors.As(err, &remoteError)
}

// IsProfileNotRunning reports whether err is the host saying the target
// profile is not running.
func IsProfileNotRunning(err error) bool {
	var remoteError *RemoteError
	if !errors.As(err, &remoteError) {
		return false
	}
	return strings.Contains(strings.ToLower(remoteError.Message), "not running")
}
