// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bureau-foundation/console/lib/codec"
	"github.com/bureau-foundation/console/lib/netutil"
	"github.com/bureau-foundation/console/lib/secret"
	"github.com/bureau-foundation/console/lib/version"
)

// DefaultHandshakeTimeout bounds the websocket upgrade when the config
// does not.
const DefaultHandshakeTimeout = 10 * time.Second

// TokenSource fetches a bearer token for the session connection.
type TokenSource interface {
	FetchToken(ctx context.Context) (string, error)
}

// Handler receives inbound frames and unexpected disconnects. Both
// methods run on the read-loop goroutine.
type Handler interface {
	HandleFrame(format codec.Format, data []byte)
	HandleDisconnect(err error)
}

// Config configures a Session.
type Config struct {
	// URL is the ws:// or wss:// endpoint of the profile host.
	URL string

	// Token is a static bearer token. When set, TokenSource is unused.
	Token string

	// TokenSource supplies the token when Token is empty. Nil with an
	// empty Token dials without Authorization.
	TokenSource TokenSource

	// Format selects the encoding of outbound frames.
	Format codec.Format

	// HandshakeTimeout bounds the websocket upgrade. Zero selects
	// DefaultHandshakeTimeout.
	HandshakeTimeout time.Duration

	Logger *slog.Logger
}

// Session is the console's connection to the profile host.
type Session struct {
	url         string
	staticToken string
	tokenSource TokenSource
	format      codec.Format
	dialer      *websocket.Dialer
	logger      *slog.Logger

	// connectMu serializes Connect and Disconnect so a Disconnect
	// cannot interleave with a dial in progress.
	connectMu sync.Mutex

	// writeMu serializes writes; gorilla allows one concurrent writer.
	writeMu sync.Mutex

	mu          sync.Mutex
	conn        *websocket.Conn
	state       State
	cachedToken *secret.Buffer
	handler     Handler
	watchers    map[*StateWatch]struct{}
}

// NewSession creates an idle Session.
func NewSession(config Config) *Session {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	handshakeTimeout := config.HandshakeTimeout
	if handshakeTimeout <= 0 {
		handshakeTimeout = DefaultHandshakeTimeout
	}
	return &Session{
		url:         config.URL,
		staticToken: config.Token,
		tokenSource: config.TokenSource,
		format:      config.Format,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
		logger:   logger,
		watchers: make(map[*StateWatch]struct{}),
	}
}

// SetHandler installs the frame handler. It must be called before
// Connect.
func (s *Session) SetHandler(handler Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = handler
}

// Format returns the outbound frame encoding.
func (s *Session) Format() codec.Format { return s.format }

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connected reports whether a connection is open.
func (s *Session) Connected() bool {
	return s.State() == StateConnected
}

// WatchState registers a watcher for state transitions.
func (s *Session) WatchState(buffer int) *StateWatch {
	channel := make(chan State, buffer)
	watch := &StateWatch{C: channel, channel: channel, session: s}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers[watch] = struct{}{}
	return watch
}

// setStateLocked records a transition and notifies watchers. Caller
// holds s.mu.
func (s *Session) setStateLocked(state State) {
	if s.state == state {
		return
	}
	s.logger.Debug("session state changed", "from", s.state, "to", state)
	s.state = state
	for watch := range s.watchers {
		select {
		case watch.channel <- state:
		default:
		}
	}
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setStateLocked(state)
}

// Connect opens the connection. It returns once the websocket handshake
// has completed, or with an error if it fails first. Calling Connect
// while connected is a no-op.
func (s *Session) Connect(ctx context.Context) error {
	s.connectMu.Lock()
	defer s.connectMu.Unlock()

	s.mu.Lock()
	if s.conn != nil {
		s.mu.Unlock()
		return nil
	}
	s.setStateLocked(StateConnecting)
	s.mu.Unlock()

	token, err := s.bearerToken(ctx)
	if err != nil {
		s.setState(StateError)
		return fmt.Errorf("transport: acquiring token: %w", err)
	}

	header := http.Header{}
	header.Set("User-Agent", version.UserAgent())
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, response, err := s.dialer.DialContext(ctx, s.url, header)
	if err != nil {
		if response != nil && response.StatusCode >= 400 {
			err = &HandshakeError{StatusCode: response.StatusCode, Err: err}
			if IsUnauthorized(err) {
				s.dropCachedToken()
			}
		}
		s.setState(StateError)
		return fmt.Errorf("transport: dialing %s: %w", s.url, err)
	}
	if response != nil && response.Body != nil {
		response.Body.Close()
	}

	s.mu.Lock()
	s.conn = conn
	handler := s.handler
	s.setStateLocked(StateConnected)
	s.mu.Unlock()

	s.logger.Info("session connected", "url", s.url, "format", s.format)
	go s.readLoop(conn, handler)
	return nil
}

// Disconnect closes the connection. It is safe in any state and may be
// called any number of times. When a connection was open, the handler's
// HandleDisconnect runs before Disconnect returns.
func (s *Session) Disconnect() {
	s.connectMu.Lock()
	defer s.connectMu.Unlock()

	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	handler := s.handler
	s.setStateLocked(StateIdle)
	s.mu.Unlock()

	if conn == nil {
		return
	}

	s.writeMu.Lock()
	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	s.writeMu.Unlock()
	conn.Close()

	s.logger.Info("session disconnected", "url", s.url)
	if handler != nil {
		handler.HandleDisconnect(ErrNotConnected)
	}
}

// Close disconnects and releases the cached token. The Session must not
// be used afterwards.
func (s *Session) Close() error {
	s.Disconnect()
	s.connectMu.Lock()
	defer s.connectMu.Unlock()
	s.dropCachedToken()
	return nil
}

// Send writes one frame in the session format.
func (s *Session) Send(data []byte) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	messageType := websocket.TextMessage
	if s.format == codec.FormatCBOR {
		messageType = websocket.BinaryMessage
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := conn.WriteMessage(messageType, data); err != nil {
		return fmt.Errorf("transport: writing frame: %w", err)
	}
	return nil
}

func (s *Session) readLoop(conn *websocket.Conn, handler Handler) {
	var readErr error
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			readErr = err
			break
		}
		format := codec.FormatJSON
		if messageType == websocket.BinaryMessage {
			format = codec.FormatCBOR
		}
		if handler != nil {
			handler.HandleFrame(format, data)
		}
	}

	s.mu.Lock()
	if s.conn != conn {
		// Disconnect already tore this connection down and notified
		// the handler.
		s.mu.Unlock()
		return
	}
	s.conn = nil
	if netutil.IsExpectedCloseError(readErr) {
		s.setStateLocked(StateIdle)
	} else {
		s.setStateLocked(StateError)
	}
	s.mu.Unlock()
	conn.Close()

	if netutil.IsExpectedCloseError(readErr) {
		s.logger.Info("session closed by host", "url", s.url)
	} else {
		s.logger.Warn("session connection lost", "url", s.url, "error", readErr)
	}
	if handler != nil {
		handler.HandleDisconnect(readErr)
	}
}

// bearerToken returns the static token, the cached token, or a freshly
// fetched one. Connect holds connectMu, so fetches never overlap.
func (s *Session) bearerToken(ctx context.Context) (string, error) {
	if s.staticToken != "" {
		return s.staticToken, nil
	}
	if s.tokenSource == nil {
		return "", nil
	}

	s.mu.Lock()
	cached := s.cachedToken
	s.mu.Unlock()
	if cached != nil {
		return cached.String(), nil
	}

	token, err := s.tokenSource.FetchToken(ctx)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", errors.New("token source returned an empty token")
	}
	buffer, err := secret.NewFromString(token)
	if err != nil {
		// Locked memory is unavailable; use the token for this dial
		// only and fetch again next time.
		s.logger.Warn("cannot cache session token", "error", err)
		return token, nil
	}

	s.mu.Lock()
	s.cachedToken = buffer
	s.mu.Unlock()
	return token, nil
}

func (s *Session) dropCachedToken() {
	s.mu.Lock()
	cached := s.cachedToken
	s.cachedToken = nil
	s.mu.Unlock()
	if cached != nil {
		s.logger.Info("dropping cached session token")
		cached.Close()
	}
}
