// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package console

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/bureau-foundation/console/bridge"
	"github.com/bureau-foundation/console/dispatch"
	"github.com/bureau-foundation/console/lib/clock"
	"github.com/bureau-foundation/console/protocol"
	"github.com/bureau-foundation/console/transcript"
)

// DefaultEventBuffer is the bridge subscription buffer used when
// Config.EventBuffer is zero.
const DefaultEventBuffer = 256

var (
	// ErrEmptyMessage is returned by SendMessage for blank text.
	ErrEmptyMessage = errors.New("console: message is empty")

	// ErrNoSideChannel is returned by operations that need the side
	// channel when none is configured.
	ErrNoSideChannel = errors.New("console: no side channel configured")
)

// SideChannel is the subset of the side-channel client the console
// uses: restarting stopped profiles and fetching thread history.
type SideChannel interface {
	bridge.ProfileStarter
	transcript.Resumer
}

var _ dispatch.TurnStarter = (*Console)(nil)

// Config configures New.
type Config struct {
	Bridge *bridge.Bridge

	// SideChannel is optional. Without it calls are not retried after
	// a profile restart and ResumeThread fails.
	SideChannel SideChannel

	Transcripts *transcript.Store
	Queue       *dispatch.Queue

	// EventBuffer sizes the bridge subscription and the Interactions
	// channel.
	EventBuffer int

	// Clock stamps optimistic messages. Nil selects the real clock.
	Clock clock.Clock

	Logger *slog.Logger
}

// Console is one console session over a bridge.
type Console struct {
	bridge       *bridge.Bridge
	starter      bridge.ProfileStarter
	resumer      transcript.Resumer
	transcripts  *transcript.Store
	queue        *dispatch.Queue
	dispatcher   *dispatch.Dispatcher
	clock        clock.Clock
	logger       *slog.Logger
	subscription *bridge.Subscription
	interactions chan bridge.Event

	// dispatches tracks queued-message sends started by Run.
	dispatches sync.WaitGroup
}

// New creates a Console and subscribes it to the bridge, so events
// published before Run starts are not lost.
func New(config Config) *Console {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	buffer := config.EventBuffer
	if buffer <= 0 {
		buffer = DefaultEventBuffer
	}

	c := &Console{
		bridge:       config.Bridge,
		transcripts:  config.Transcripts,
		queue:        config.Queue,
		clock:        clk,
		logger:       logger,
		subscription: config.Bridge.Subscribe(buffer),
		interactions: make(chan bridge.Event, buffer),
	}
	if config.SideChannel != nil {
		c.starter = config.SideChannel
		c.resumer = config.SideChannel
	}
	c.dispatcher = &dispatch.Dispatcher{
		Queue:   config.Queue,
		Starter: c,
		Status:  config.Transcripts,
		Logger:  logger,
	}
	return c
}

// Interactions yields remote calls and profile events in arrival
// order. Run blocks while the channel is full, so a consumer must
// drain it.
func (c *Console) Interactions() <-chan bridge.Event {
	return c.interactions
}

// Run routes bridge events until ctx is cancelled. It returns
// ctx.Err() after waiting for queued-message sends it started.
func (c *Console) Run(ctx context.Context) error {
	defer c.dispatches.Wait()
	defer c.subscription.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-c.subscription.C:
			c.route(ctx, event)
		}
	}
}

func (c *Console) route(ctx context.Context, event bridge.Event) {
	switch event.Type {
	case bridge.EventNotification:
		c.handleNotification(ctx, event)
	case bridge.EventRemoteCall, bridge.EventProfile:
		select {
		case c.interactions <- event:
		case <-ctx.Done():
		}
	}
}

func (c *Console) handleNotification(ctx context.Context, event bridge.Event) {
	switch event.Method {
	case protocol.MethodThreadStarted:
		var params protocol.ThreadStartedParams
		if !c.decode(event, &params) {
			return
		}
		c.transcripts.Track(params.Thread.ID, event.ProfileID)
		if params.Thread.Archived {
			c.transcripts.SetArchived(params.Thread.ID)
		}

	case protocol.MethodThreadArchived:
		var params protocol.ThreadArchivedParams
		if !c.decode(event, &params) {
			return
		}
		c.transcripts.SetArchived(params.ThreadID)

	case protocol.MethodTurnStarted:
		var params protocol.TurnParams
		if !c.decode(event, &params) {
			return
		}
		c.transcripts.Track(params.ThreadID, event.ProfileID)
		c.transcripts.SetStatus(params.ThreadID, transcript.StatusActive)

	case protocol.MethodTurnCompleted:
		var params protocol.TurnParams
		if !c.decode(event, &params) {
			return
		}
		// The head is claimed here, before the thread can look idle to
		// SendMessage. Its turn/start waits for a response delivered
		// through this subscription, so the send runs on its own
		// goroutine.
		next, ok := c.dispatcher.TurnEnded(ctx, params.ThreadID)
		if !ok {
			return
		}
		c.dispatches.Add(1)
		go func() {
			defer c.dispatches.Done()
			if err := c.dispatcher.Start(ctx, event.ProfileID, params.ThreadID, next, true); err != nil {
				c.logger.Error("queued message not sent", "thread_id", params.ThreadID, "error", err)
			}
		}()

	case protocol.MethodItemStarted:
		var params protocol.ItemParams
		if !c.decode(event, &params) {
			return
		}
		// User messages are already shown optimistically; the next
		// resume reconciles them with the host's copy.
		if params.Item.Type == protocol.ItemUserMessage || params.Item.ID == "" {
			return
		}
		c.transcripts.Ensure(params.ThreadID, params.Item.ID)

	case protocol.MethodItemCompleted:
		var params protocol.ItemParams
		if !c.decode(event, &params) {
			return
		}
		if params.Item.Type == protocol.ItemUserMessage {
			return
		}
		if message, ok := transcript.MessageFromItem(params.Item); ok {
			c.transcripts.Finalize(params.ThreadID, message)
		}

	default:
		if !protocol.IsDeltaMethod(event.Method) {
			c.logger.Debug("unrouted notification", "method", event.Method, "profile_id", event.ProfileID)
			return
		}
		var params protocol.DeltaParams
		if !c.decode(event, &params) {
			return
		}
		if params.ItemID == "" {
			return
		}
		if fragment := params.Fragment(); fragment != "" {
			c.transcripts.ApplyDelta(params.ThreadID, params.ItemID, event.Method, fragment)
		}
	}
}

func (c *Console) decode(event bridge.Event, v any) bool {
	if err := event.Decode(v); err != nil {
		c.logger.Debug("dropping undecodable notification",
			"method", event.Method,
			"profile_id", event.ProfileID,
			"error", err,
		)
		return false
	}
	return true
}

// StartTurn issues turn/start, starting the profile once if it is not
// running. It implements dispatch.TurnStarter.
func (c *Console) StartTurn(ctx context.Context, profileID string, params protocol.TurnStartParams) error {
	var result protocol.TurnStartResult
	return c.bridge.CallWithRestart(ctx, c.starter, profileID, protocol.MethodTurnStart, params, &result)
}

// SendRequest is a user message for a thread.
type SendRequest struct {
	ProfileID string
	ThreadID  string
	Text      string
	Params    dispatch.TurnParams
}

// SendResult describes what SendMessage did.
type SendResult struct {
	// MessageID is the id of the optimistic transcript message.
	MessageID string

	// Queued is true when a turn was running and the message waits in
	// the thread's queue. QueueID then identifies the queue entry.
	Queued  bool
	QueueID string
}

// SendMessage shows request.Text in the transcript immediately and
// either starts a turn with it or, while a turn is running, queues it
// for when that turn completes. On an idle thread with messages still
// waiting, the oldest is started and this one queues behind it. A
// failed turn start leaves the thread idle.
func (c *Console) SendMessage(ctx context.Context, request SendRequest) (SendResult, error) {
	if strings.TrimSpace(request.Text) == "" {
		return SendResult{}, ErrEmptyMessage
	}

	c.transcripts.Track(request.ThreadID, request.ProfileID)
	local := transcript.Message{
		ID:        "local-" + uuid.NewString(),
		Role:      transcript.RoleUser,
		Kind:      transcript.KindChat,
		Content:   request.Text,
		Timestamp: c.clock.Now().Format("15:04"),
	}
	c.transcripts.AddLocal(request.ThreadID, local)

	submission := c.dispatcher.Submit(ctx, request.ThreadID, dispatch.QueuedMessage{
		ProfileID: request.ProfileID,
		Text:      request.Text,
		Params:    request.Params,
	})
	result := SendResult{MessageID: local.ID, Queued: submission.Queued}
	if submission.Queued {
		result.QueueID = submission.Message.ID
		c.logger.Info("message queued",
			"thread_id", request.ThreadID,
			"message_id", submission.Message.ID,
			"queued", c.queue.Len(request.ThreadID),
		)
	}
	if !submission.Starting {
		return result, nil
	}

	err := c.dispatcher.Start(ctx, request.ProfileID, request.ThreadID, submission.Start, submission.FromQueue)
	if err != nil {
		return result, fmt.Errorf("console: sending message to %s: %w", request.ThreadID, err)
	}
	return result, nil
}

// StartThread creates a thread on profileID and tracks it.
func (c *Console) StartThread(ctx context.Context, profileID string, params protocol.ThreadStartParams) (protocol.Thread, error) {
	var result protocol.ThreadStartResult
	if err := c.bridge.CallWithRestart(ctx, c.starter, profileID, protocol.MethodThreadStart, params, &result); err != nil {
		return protocol.Thread{}, fmt.Errorf("console: starting thread on %s: %w", profileID, err)
	}
	if result.Thread.ID == "" {
		return protocol.Thread{}, fmt.Errorf("console: thread/start on %s returned no thread id", profileID)
	}
	c.transcripts.Track(result.Thread.ID, profileID)
	return result.Thread, nil
}

// ResumeThread loads the history of threadID. A stored snapshot, if
// any, is shown first; the fetched history is then merged with
// everything received live. It reports whether this call performed the
// fetch; a thread already loaded or loading returns false.
func (c *Console) ResumeThread(ctx context.Context, profileID, threadID string) (bool, error) {
	c.transcripts.Track(threadID, profileID)
	if _, err := c.transcripts.Restore(ctx, threadID); err != nil {
		c.logger.Warn("snapshot restore failed", "thread_id", threadID, "error", err)
	}
	if c.resumer == nil {
		return false, ErrNoSideChannel
	}
	return c.transcripts.Resume(ctx, threadID, c.resumer)
}

// InterruptTurn asks the profile to stop turnID.
func (c *Console) InterruptTurn(ctx context.Context, profileID, threadID, turnID string) error {
	params := protocol.TurnInterruptParams{ThreadID: threadID, TurnID: turnID}
	if err := c.bridge.Call(ctx, profileID, protocol.MethodTurnInterrupt, params, nil); err != nil {
		return fmt.Errorf("console: interrupting %s: %w", threadID, err)
	}
	return nil
}

// ArchiveThread archives threadID on its profile.
func (c *Console) ArchiveThread(ctx context.Context, profileID, threadID string) error {
	params := protocol.ThreadArchiveParams{ThreadID: threadID}
	if err := c.bridge.Call(ctx, profileID, protocol.MethodThreadArchive, params, nil); err != nil {
		return fmt.Errorf("console: archiving %s: %w", threadID, err)
	}
	c.transcripts.SetArchived(threadID)
	return nil
}

// Approve answers an approval request received on Interactions.
func (c *Console) Approve(profileID string, inboundID int64, decision string) error {
	return c.bridge.Respond(profileID, inboundID, protocol.ApprovalResult{Decision: decision}, nil)
}

// Messages returns the transcript of threadID.
func (c *Console) Messages(threadID string) []transcript.Message {
	return c.transcripts.Messages(threadID)
}

// Thread returns the state of threadID.
func (c *Console) Thread(threadID string) (transcript.ThreadState, bool) {
	return c.transcripts.Thread(threadID)
}

// Threads returns every known thread.
func (c *Console) Threads() []transcript.ThreadState {
	return c.transcripts.Threads()
}

// Queued returns the messages waiting for the current turn of threadID
// to complete.
func (c *Console) Queued(threadID string) []dispatch.QueuedMessage {
	return c.queue.Pending(threadID)
}
