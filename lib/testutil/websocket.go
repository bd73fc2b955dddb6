// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketHost is a fake profile host. Each accepted connection is
// delivered through Accept.
type WebSocketHost struct {
	server      *httptest.Server
	upgrader    websocket.Upgrader
	connections chan *HostConn

	mu           sync.Mutex
	requireToken string
	handshakes   atomic.Int64
	rejected     atomic.Int64
}

// NewWebSocketHost starts a host and registers its shutdown with
// t.Cleanup.
func NewWebSocketHost(t *testing.T) *WebSocketHost {
	t.Helper()
	host := &WebSocketHost{
		connections: make(chan *HostConn, 8),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	host.server = httptest.NewServer(http.HandlerFunc(host.serveHTTP))
	t.Cleanup(host.server.Close)
	return host
}

// URL returns the ws:// URL of the host.
func (h *WebSocketHost) URL() string {
	return "ws" + strings.TrimPrefix(h.server.URL, "http") + "/ws"
}

// RequireToken makes the handshake answer 401 unless the request
// carries "Authorization: Bearer <token>". An empty token disables the
// check.
func (h *WebSocketHost) RequireToken(token string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.requireToken = token
}

// Handshakes returns the number of upgrade attempts, accepted or not.
func (h *WebSocketHost) Handshakes() int { return int(h.handshakes.Load()) }

// Rejected returns the number of handshakes refused for a bad token.
func (h *WebSocketHost) Rejected() int { return int(h.rejected.Load()) }

func (h *WebSocketHost) serveHTTP(writer http.ResponseWriter, request *http.Request) {
	h.handshakes.Add(1)

	h.mu.Lock()
	required := h.requireToken
	h.mu.Unlock()
	if required != "" && request.Header.Get("Authorization") != "Bearer "+required {
		h.rejected.Add(1)
		http.Error(writer, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(writer, request, nil)
	if err != nil {
		return
	}
	hostConn := &HostConn{
		conn:   conn,
		frames: make(chan HostFrame, 64),
	}
	go hostConn.readLoop()
	h.connections <- hostConn
}

// Accept waits for the next connection.
func (h *WebSocketHost) Accept(t TestingT, timeout time.Duration) *HostConn {
	t.Helper()
	return RequireReceive(t, h.connections, timeout, "waiting for websocket connection")
}

// HostFrame is one message received by the host.
type HostFrame struct {
	Type int
	Data []byte
}

// HostConn is the host side of one websocket connection.
type HostConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	frames  chan HostFrame
}

func (c *HostConn) readLoop() {
	defer close(c.frames)
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.frames <- HostFrame{Type: messageType, Data: data}
	}
}

// Send writes one frame of the given websocket message type.
func (c *HostConn) Send(t TestingT, messageType int, data []byte) {
	t.Helper()
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(messageType, data); err != nil {
		t.Fatalf("host write: %v", err)
	}
}

// SendJSON encodes v as JSON and writes it as a text frame.
func (c *HostConn) SendJSON(t TestingT, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("host encode: %v", err)
	}
	c.Send(t, websocket.TextMessage, data)
}

// Receive returns the next frame the console wrote.
func (c *HostConn) Receive(t TestingT, timeout time.Duration) HostFrame {
	t.Helper()
	return RequireReceive(t, c.frames, timeout, "waiting for frame from console")
}

// ReceiveJSON decodes the next frame as JSON into v.
func (c *HostConn) ReceiveJSON(t TestingT, timeout time.Duration, v any) {
	t.Helper()
	frame := c.Receive(t, timeout)
	if err := json.Unmarshal(frame.Data, v); err != nil {
		t.Fatalf("host decode %q: %v", frame.Data, err)
	}
}

// Frames exposes the received-frame channel; it closes when the
// connection ends.
func (c *HostConn) Frames() <-chan HostFrame { return c.frames }

// Close sends a normal close frame and closes the connection.
func (c *HostConn) Close() {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	deadline := time.Now().Add(time.Second)
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "host closing"), deadline)
	_ = c.conn.Close()
}

// Drop closes the TCP connection without a close frame.
func (c *HostConn) Drop() {
	_ = c.conn.Close()
}
