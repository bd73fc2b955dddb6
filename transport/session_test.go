// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bureau-foundation/console/lib/codec"
	"github.com/bureau-foundation/console/lib/testutil"
)

const testTimeout = 5 * time.Second

type receivedFrame struct {
	format codec.Format
	data   string
}

type recordingHandler struct {
	frames      chan receivedFrame
	disconnects chan error
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		frames:      make(chan receivedFrame, 16),
		disconnects: make(chan error, 4),
	}
}

func (h *recordingHandler) HandleFrame(format codec.Format, data []byte) {
	h.frames <- receivedFrame{format: format, data: string(data)}
}

func (h *recordingHandler) HandleDisconnect(err error) {
	h.disconnects <- err
}

type scriptedTokenSource struct {
	mu      sync.Mutex
	results []tokenResult
	calls   int
}

type tokenResult struct {
	token string
	err   error
}

func (s *scriptedTokenSource) FetchToken(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := s.results[min(s.calls, len(s.results)-1)]
	s.calls++
	return result.token, result.err
}

func (s *scriptedTokenSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestConnectIsIdempotentWhileOpen(t *testing.T) {
	host := testutil.NewWebSocketHost(t)
	session := NewSession(Config{URL: host.URL()})
	t.Cleanup(func() { session.Close() })

	if err := session.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	host.Accept(t, testTimeout)
	if err := session.Connect(context.Background()); err != nil {
		t.Fatalf("second Connect: %v", err)
	}
	if session.State() != StateConnected {
		t.Errorf("State = %v, want connected", session.State())
	}
	if host.Handshakes() != 1 {
		t.Errorf("Handshakes = %d, want 1", host.Handshakes())
	}
}

func TestConnectFailureReportsError(t *testing.T) {
	session := NewSession(Config{URL: "ws://127.0.0.1:1/ws", HandshakeTimeout: time.Second})
	watch := session.WatchState(4)
	defer watch.Close()

	if err := session.Connect(context.Background()); err == nil {
		t.Fatal("Connect to a closed port succeeded")
	}
	if session.State() != StateError {
		t.Errorf("State = %v, want error", session.State())
	}
	if state := testutil.RequireReceive(t, watch.C, testTimeout); state != StateConnecting {
		t.Errorf("first transition = %v, want connecting", state)
	}
	if state := testutil.RequireReceive(t, watch.C, testTimeout); state != StateError {
		t.Errorf("second transition = %v, want error", state)
	}
}

func TestFailedTokenFetchIsNotCached(t *testing.T) {
	host := testutil.NewWebSocketHost(t)
	host.RequireToken("token-1")
	source := &scriptedTokenSource{results: []tokenResult{
		{err: errors.New("side channel down")},
		{token: "token-1"},
	}}
	session := NewSession(Config{URL: host.URL(), TokenSource: source})
	t.Cleanup(func() { session.Close() })

	if err := session.Connect(context.Background()); err == nil {
		t.Fatal("Connect succeeded with a failing token source")
	}
	if host.Handshakes() != 0 {
		t.Errorf("dialed %d times without a token", host.Handshakes())
	}

	if err := session.Connect(context.Background()); err != nil {
		t.Fatalf("Connect after retry: %v", err)
	}
	host.Accept(t, testTimeout)

	session.Disconnect()
	if err := session.Connect(context.Background()); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	host.Accept(t, testTimeout)
	if source.Calls() != 2 {
		t.Errorf("token fetched %d times, want 2 (cached after first success)", source.Calls())
	}
}

func TestUnauthorizedHandshakeDropsCachedToken(t *testing.T) {
	host := testutil.NewWebSocketHost(t)
	host.RequireToken("fresh")
	source := &scriptedTokenSource{results: []tokenResult{
		{token: "stale"},
		{token: "fresh"},
	}}
	session := NewSession(Config{URL: host.URL(), TokenSource: source})
	t.Cleanup(func() { session.Close() })

	err := session.Connect(context.Background())
	if !IsUnauthorized(err) {
		t.Fatalf("Connect err = %v, want unauthorized handshake", err)
	}
	var handshakeError *HandshakeError
	if !errors.As(err, &handshakeError) || handshakeError.StatusCode != http.StatusUnauthorized {
		t.Fatalf("err = %v, want HandshakeError 401", err)
	}

	if err := session.Connect(context.Background()); err != nil {
		t.Fatalf("Connect with refreshed token: %v", err)
	}
	host.Accept(t, testTimeout)
	if source.Calls() != 2 {
		t.Errorf("token fetched %d times, want 2", source.Calls())
	}
}

func TestStaticTokenSkipsTokenSource(t *testing.T) {
	host := testutil.NewWebSocketHost(t)
	host.RequireToken("configured")
	source := &scriptedTokenSource{results: []tokenResult{{token: "fetched"}}}
	session := NewSession(Config{URL: host.URL(), Token: "configured", TokenSource: source})
	t.Cleanup(func() { session.Close() })

	if err := session.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if source.Calls() != 0 {
		t.Errorf("token source called %d times", source.Calls())
	}
}

func TestFramesCarryTheirFormat(t *testing.T) {
	host := testutil.NewWebSocketHost(t)
	session := NewSession(Config{URL: host.URL(), Format: codec.FormatCBOR})
	handler := newRecordingHandler()
	session.SetHandler(handler)
	t.Cleanup(func() { session.Close() })

	if err := session.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	conn := host.Accept(t, testTimeout)

	conn.Send(t, websocket.TextMessage, []byte(`{"type":"error"}`))
	conn.Send(t, websocket.BinaryMessage, []byte{0xa0})

	first := testutil.RequireReceive(t, handler.frames, testTimeout, "text frame")
	if first.format != codec.FormatJSON || first.data != `{"type":"error"}` {
		t.Errorf("first frame = %+v", first)
	}
	second := testutil.RequireReceive(t, handler.frames, testTimeout, "binary frame")
	if second.format != codec.FormatCBOR {
		t.Errorf("second frame format = %v, want cbor", second.format)
	}

	if err := session.Send([]byte{0xa0}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	frame := conn.Receive(t, testTimeout)
	if frame.Type != websocket.BinaryMessage {
		t.Errorf("outbound frame type = %d, want binary", frame.Type)
	}
}

func TestSendWhileIdleFails(t *testing.T) {
	session := NewSession(Config{URL: "ws://unused"})
	if err := session.Send([]byte("{}")); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send err = %v, want ErrNotConnected", err)
	}
}

func TestDisconnectIsSafeRepeatedly(t *testing.T) {
	host := testutil.NewWebSocketHost(t)
	session := NewSession(Config{URL: host.URL()})
	handler := newRecordingHandler()
	session.SetHandler(handler)

	session.Disconnect()
	if err := session.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	conn := host.Accept(t, testTimeout)

	session.Disconnect()
	session.Disconnect()
	if session.State() != StateIdle {
		t.Errorf("State = %v, want idle", session.State())
	}
	testutil.RequireReceive(t, handler.disconnects, testTimeout, "disconnect notification")
	testutil.RequireNoReceive(t, handler.disconnects, 100*time.Millisecond, "second disconnect notification")

	// The host sees the connection end.
	for range conn.Frames() {
	}

	if err := session.Connect(context.Background()); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	host.Accept(t, testTimeout)
	if session.State() != StateConnected {
		t.Errorf("State after reconnect = %v", session.State())
	}
	session.Close()
}

func TestHostDropReportsError(t *testing.T) {
	host := testutil.NewWebSocketHost(t)
	session := NewSession(Config{URL: host.URL()})
	handler := newRecordingHandler()
	session.SetHandler(handler)
	t.Cleanup(func() { session.Close() })

	if err := session.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	conn := host.Accept(t, testTimeout)
	conn.Drop()

	testutil.RequireReceive(t, handler.disconnects, testTimeout, "disconnect after drop")
	if session.State() == StateConnected {
		t.Error("State still connected after the host dropped the connection")
	}
	if err := session.Send([]byte("{}")); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send after drop err = %v, want ErrNotConnected", err)
	}
}

func TestHostCloseReportsIdle(t *testing.T) {
	host := testutil.NewWebSocketHost(t)
	session := NewSession(Config{URL: host.URL()})
	handler := newRecordingHandler()
	session.SetHandler(handler)
	t.Cleanup(func() { session.Close() })

	if err := session.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	host.Accept(t, testTimeout).Close()

	testutil.RequireReceive(t, handler.disconnects, testTimeout, "disconnect after close")
	if session.State() != StateIdle {
		t.Errorf("State = %v, want idle", session.State())
	}
}
