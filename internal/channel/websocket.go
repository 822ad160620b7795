package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// SocketConfig tunes the websocket-backed channel.
type SocketConfig struct {
	// URL of the /ws endpoint, e.g. "ws://localhost:8080/ws".
	URL string
	// BaseDelay is multiplied by the attempt number for reconnect backoff.
	BaseDelay time.Duration
	// MaxAttempts caps reconnection tries before the terminal disconnect.
	MaxAttempts int
	// HandshakeTimeout bounds the dial.
	HandshakeTimeout time.Duration
}

func (c *SocketConfig) withDefaults() {
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
}

// Socket is the gorilla/websocket implementation of Channel. On unexpected
// close it redials with linearly increasing delay (attempt * BaseDelay); once
// attempts are exhausted it emits a terminal "disconnected" event and stops.
type Socket struct {
	*emitter
	cfg    SocketConfig
	dialer *websocket.Dialer

	mu            sync.Mutex
	writeMu       sync.Mutex
	status        Status
	closed        bool
	conn          *websocket.Conn
	gen           int
	participantID string
}

func NewSocket(cfg SocketConfig) *Socket {
	cfg.withDefaults()
	return &Socket{
		emitter: newEmitter(),
		cfg:     cfg,
		dialer:  &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout},
		status:  StatusDisconnected,
	}
}

func (s *Socket) Connect(ctx context.Context, participantID string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.status == StatusConnected {
		s.mu.Unlock()
		return nil
	}
	s.participantID = participantID
	s.status = StatusConnecting
	s.mu.Unlock()

	conn, err := s.dial(ctx)
	if err != nil {
		s.mu.Lock()
		s.status = StatusDisconnected
		s.mu.Unlock()
		return fmt.Errorf("connect %s: %w", s.cfg.URL, err)
	}

	s.adopt(conn)
	return nil
}

func (s *Socket) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(s.cfg.URL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("studentId", s.participantID)
	u.RawQuery = q.Encode()

	conn, _, err := s.dialer.DialContext(ctx, u.String(), nil)
	return conn, err
}

// adopt installs a live connection, starts its read pump and announces it.
func (s *Socket) adopt(conn *websocket.Conn) {
	s.mu.Lock()
	s.conn = conn
	s.gen++
	gen := s.gen
	s.status = StatusConnected
	s.mu.Unlock()

	go s.readPump(conn, gen)
	s.emit(EventConnected, nil)
}

func (s *Socket) readPump(conn *websocket.Conn, gen int) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			s.handleReadError(conn, gen, err)
			return
		}

		var envelope struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Type == "" {
			continue
		}
		s.emit(envelope.Type, raw)
	}
}

func (s *Socket) handleReadError(conn *websocket.Conn, gen int, err error) {
	_ = conn.Close()

	s.mu.Lock()
	if s.closed || gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	s.status = StatusConnecting
	s.mu.Unlock()

	s.emitError(err.Error())
	go s.reconnect()
}

// reconnect redials with linear backoff until it succeeds or gives up.
func (s *Socket) reconnect() {
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		time.Sleep(time.Duration(attempt) * s.cfg.BaseDelay)

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.HandshakeTimeout)
		conn, err := s.dial(ctx)
		cancel()
		if err == nil {
			s.adopt(conn)
			return
		}
		s.emitError(fmt.Sprintf("reconnect attempt %d: %v", attempt, err))
	}

	s.mu.Lock()
	s.status = StatusDisconnected
	s.mu.Unlock()
	s.emit(EventDisconnected, nil)
}

// Send is fire-and-forget: no delivery confirmation and no payload retry.
// While there is no live connection it fails fast with ErrNotConnected.
func (s *Socket) Send(event string, payload any) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	conn := s.conn
	connected := s.status == StatusConnected
	s.mu.Unlock()

	if !connected || conn == nil {
		return ErrNotConnected
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}

	s.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, raw)
	s.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("send %s: %w", event, err)
	}
	return nil
}

func (s *Socket) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status == StatusConnected
}

func (s *Socket) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Socket) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.status = StatusDisconnected
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}
	s.emit(EventDisconnected, nil)
	return nil
}

func (s *Socket) emitError(message string) {
	payload, _ := json.Marshal(map[string]string{"message": message})
	s.emit(EventError, payload)
}
