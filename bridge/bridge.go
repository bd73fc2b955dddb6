// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/console/lib/clock"
	"github.com/bureau-foundation/console/lib/codec"
	"github.com/bureau-foundation/console/protocol"
	"github.com/bureau-foundation/console/transport"
)

// CallTimeout is the deadline for every outbound call.
const CallTimeout = 15 * time.Second

// Transport is the connection a Bridge runs over.
type Transport interface {
	SetHandler(handler transport.Handler)
	Format() codec.Format
	Connected() bool
	Send(data []byte) error
}

var (
	_ Transport         = (*transport.Session)(nil)
	_ transport.Handler = (*Bridge)(nil)
)

// Config configures a Bridge.
type Config struct {
	Transport Transport

	// Clock arms call deadlines. Nil selects the real clock.
	Clock clock.Clock

	Logger *slog.Logger
}

// Bridge correlates calls and fans out events over a Transport.
type Bridge struct {
	transport Transport
	clock     clock.Clock
	logger    *slog.Logger

	mu          sync.Mutex
	pending     map[string]*pendingCall
	subscribers []*Subscription

	// deliverMu keeps publish calls from interleaving, so subscribers
	// see events in transport order.
	deliverMu sync.Mutex
}

type pendingCall struct {
	profileID string
	method    string
	timer     *clock.Timer
	outcome   chan callOutcome
}

type callOutcome struct {
	result *codec.Raw
	err    error
}

// New creates a Bridge and installs it as the transport's handler.
func New(config Config) *Bridge {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	b := &Bridge{
		transport: config.Transport,
		clock:     clk,
		logger:    logger,
		pending:   make(map[string]*pendingCall),
	}
	config.Transport.SetHandler(b)
	return b
}

// Call sends method with params to profileID and decodes the result into
// result, which may be nil to discard it. Params may be nil.
func (b *Bridge) Call(ctx context.Context, profileID, method string, params, result any) error {
	if !b.transport.Connected() {
		return ErrNotConnected
	}

	format := b.transport.Format()
	encodedParams, err := codec.NewRaw(format, params)
	if err != nil {
		return fmt.Errorf("bridge: encoding %s params: %w", method, err)
	}
	correlationID := uuid.NewString()
	frame, err := protocol.EncodeEnvelope(format, &protocol.Envelope{
		Type:          protocol.TypeCall,
		CorrelationID: correlationID,
		ProfileID:     profileID,
		Method:        method,
		Params:        encodedParams,
	})
	if err != nil {
		return err
	}

	call := &pendingCall{
		profileID: profileID,
		method:    method,
		outcome:   make(chan callOutcome, 1),
	}
	b.mu.Lock()
	b.pending[correlationID] = call
	call.timer = b.clock.AfterFunc(CallTimeout, func() {
		if b.settle(correlationID, callOutcome{err: ErrCallTimeout}) {
			b.logger.Warn("call timed out",
				"profile_id", profileID,
				"method", method,
				"correlation_id", correlationID,
			)
		}
	})
	b.mu.Unlock()

	if err := b.transport.Send(frame); err != nil {
		b.settle(correlationID, callOutcome{})
		if errors.Is(err, transport.ErrNotConnected) {
			return ErrNotConnected
		}
		return &CallError{ProfileID: profileID, Method: method, CorrelationID: correlationID, Err: err}
	}

	var outcome callOutcome
	select {
	case outcome = <-call.outcome:
	case <-ctx.Done():
		b.settle(correlationID, callOutcome{})
		return &CallError{ProfileID: profileID, Method: method, CorrelationID: correlationID, Err: ctx.Err()}
	}

	if outcome.err != nil {
		var remoteError *RemoteError
		if errors.As(outcome.err, &remoteError) {
			return remoteError
		}
		return &CallError{ProfileID: profileID, Method: method, CorrelationID: correlationID, Err: outcome.err}
	}
	if result != nil {
		if err := outcome.result.Decode(result); err != nil {
			return fmt.Errorf("bridge: decoding %s result: %w", method, err)
		}
	}
	return nil
}

// settle removes the pending call and delivers its outcome. It reports
// false if the call had already ended.
func (b *Bridge) settle(correlationID string, outcome callOutcome) bool {
	b.mu.Lock()
	call, exists := b.pending[correlationID]
	if exists {
		delete(b.pending, correlationID)
	}
	b.mu.Unlock()
	if !exists {
		return false
	}
	call.timer.Stop()
	call.outcome <- outcome
	return true
}

// Pending returns the number of calls awaiting a response.
func (b *Bridge) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Respond answers the remote call inboundID from profileID. Exactly one
// of result and remoteErr should be set; a nil result with a nil
// remoteErr sends an empty answer.
func (b *Bridge) Respond(profileID string, inboundID int64, result any, remoteErr *protocol.ErrorBody) error {
	if !b.transport.Connected() {
		return ErrNotConnected
	}
	format := b.transport.Format()
	encodedResult, err := codec.NewRaw(format, result)
	if err != nil {
		return fmt.Errorf("bridge: encoding answer: %w", err)
	}
	frame, err := protocol.EncodeEnvelope(format, &protocol.Envelope{
		Type:      protocol.TypeAnswer,
		ProfileID: profileID,
		InboundID: &inboundID,
		Result:    encodedResult,
		Error:     remoteErr,
	})
	if err != nil {
		return err
	}
	if err := b.transport.Send(frame); err != nil {
		if errors.Is(err, transport.ErrNotConnected) {
			return ErrNotConnected
		}
		return fmt.Errorf("bridge: answering inbound call %d on profile %s: %w", inboundID, profileID, err)
	}
	b.logger.Debug("answered inbound call", "profile_id", profileID, "inbound_id", inboundID)
	return nil
}

// HandleFrame routes one inbound frame. Malformed frames are dropped.
func (b *Bridge) HandleFrame(format codec.Format, data []byte) {
	envelope, err := protocol.DecodeEnvelope(format, data)
	if err != nil {
		b.logger.Debug("dropping malformed frame", "format", format, "size", len(data), "error", err)
		return
	}

	switch envelope.Type {
	case protocol.TypeResponse:
		b.handleResponse(envelope)
	case protocol.TypeError:
		b.logger.Warn("profile host reported an error", "message", envelope.Message)
	case protocol.TypeCall, protocol.TypeAnswer:
		b.logger.Debug("dropping outbound-only envelope from host", "type", envelope.Type)
	default:
		if event, ok := eventFromEnvelope(envelope); ok {
			b.publish(event)
		}
	}
}

func (b *Bridge) handleResponse(envelope *protocol.Envelope) {
	outcome := callOutcome{result: envelope.Result}
	if envelope.Error != nil {
		b.mu.Lock()
		call := b.pending[envelope.CorrelationID]
		b.mu.Unlock()
		remoteError := &RemoteError{Code: envelope.Error.Code, Message: envelope.Error.Message}
		if call != nil {
			remoteError.ProfileID = call.profileID
			remoteError.Method = call.method
		}
		outcome = callOutcome{err: remoteError}
	}
	if !b.settle(envelope.CorrelationID, outcome) {
		b.logger.Debug("dropping response for unknown call", "correlation_id", envelope.CorrelationID)
	}
}

// HandleDisconnect fails every call in flight with ErrConnectionLost.
func (b *Bridge) HandleDisconnect(err error) {
	b.mu.Lock()
	pending := b.pending
	b.pending = make(map[string]*pendingCall)
	b.mu.Unlock()

	if len(pending) > 0 {
		b.logger.Warn("connection lost with calls in flight", "calls", len(pending), "error", err)
	}
	for _, call := range pending {
		call.timer.Stop()
		call.outcome <- callOutcome{err: ErrConnectionLost}
	}
}
