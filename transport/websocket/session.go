package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wricardo/mischool/quiz/config"
)

const (
	// Time allowed to write the close frame to the peer.
	writeWait = 10 * time.Second

	// Maximum message size allowed from the server.
	maxMessageSize = 1 << 20

	// Longest frame excerpt written to the log when a frame cannot be parsed.
	maxLoggedFrame = 256
)

// State is the lifecycle stage of a Session.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Initiator starts play sessions against a fixed endpoint.
type Initiator struct {
	endpoint string
	dialer   *websocket.Dialer
}

// NewInitiator creates an initiator for endpoints.PlayURL.
func NewInitiator(endpoints config.Endpoints) *Initiator {
	return &Initiator{
		endpoint: endpoints.PlayURL,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: endpoints.HandshakeTimeout,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
		},
	}
}

// Start opens one connection for roomCode and nickname. It returns before any
// network activity; dialing and reading happen on the session's goroutine.
// Cancelling ctx closes the session.
func (i *Initiator) Start(ctx context.Context, roomCode, nickname string) *Session {
	ctx, cancel := context.WithCancel(ctx)
	id := uuid.NewString()

	s := &Session{
		ID:        id,
		RoomCode:  roomCode,
		Nickname:  nickname,
		URL:       BuildURL(i.endpoint, roomCode, nickname),
		CreatedAt: time.Now(),
		dialer:    i.dialer,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		log:       log.With().Str("session", id).Str("room_code", roomCode).Logger(),
	}
	context.AfterFunc(ctx, s.closeConn)

	go s.run()
	return s
}

// Session owns a single play connection.
type Session struct {
	ID        string    `json:"id"`
	RoomCode  string    `json:"room_code"`
	Nickname  string    `json:"nickname"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`

	dialer *websocket.Dialer
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	log    zerolog.Logger

	state    atomic.Int32
	received atomic.Int64

	mu   sync.Mutex
	conn *websocket.Conn
	err  error
	last []byte
}

// State returns the current lifecycle stage.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Done is closed once the connection is gone and the session goroutine has
// exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns the transport error that ended the session, if any. A normal
// closure by either side leaves it nil.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Received returns the number of frames received so far.
func (s *Session) Received() int64 {
	return s.received.Load()
}

// LastMessage returns a copy of the most recent frame, or nil.
func (s *Session) LastMessage() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	return append([]byte(nil), s.last...)
}

// Close ends the session and waits for its goroutine to exit. It is safe to
// call more than once.
func (s *Session) Close() error {
	s.cancel()
	<-s.done
	return nil
}

func (s *Session) run() {
	defer close(s.done)
	defer s.state.Store(int32(StateClosed))
	// release the derived context however the session ends
	defer s.cancel()

	conn, resp, err := s.dialer.DialContext(s.ctx, s.URL, nil)
	if err != nil {
		if s.ctx.Err() != nil {
			s.log.Debug().Msg("[ws] closed before connecting")
			return
		}
		ev := s.log.Error().Err(err)
		if resp != nil {
			ev = ev.Int("status", resp.StatusCode)
		}
		ev.Msg("[ws] WebSocket error")
		s.setErr(err)
		s.log.Info().Msg("[ws] WebSocket disconnected")
		return
	}

	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.conn = conn
	s.mu.Unlock()

	s.state.Store(int32(StateOpen))
	s.log.Info().Str("nickname", s.Nickname).Msg("[ws] connected")

	conn.SetReadLimit(maxMessageSize)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.readFailed(err)
			break
		}
		s.handleMessage(data)
	}

	conn.Close()
	s.log.Info().Int64("received", s.Received()).Msg("[ws] WebSocket disconnected")
}

func (s *Session) readFailed(err error) {
	switch {
	case s.ctx.Err() != nil:
		// closed locally
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		var ce *websocket.CloseError
		if errors.As(err, &ce) {
			s.log.Debug().Int("code", ce.Code).Str("reason", ce.Text).Msg("[ws] server closed connection")
		}
	default:
		s.log.Error().Err(err).Msg("[ws] WebSocket error")
		s.setErr(err)
	}
}

func (s *Session) handleMessage(data []byte) {
	s.received.Add(1)
	s.mu.Lock()
	s.last = data
	s.mu.Unlock()

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		excerpt := data
		if len(excerpt) > maxLoggedFrame {
			excerpt = excerpt[:maxLoggedFrame]
		}
		s.log.Error().Err(err).Bytes("frame", excerpt).Msg("[ws] failed to parse message")
		return
	}

	ev := s.log.Info()
	if obj, ok := v.(map[string]any); ok {
		if msg, ok := obj["error"].(string); ok {
			ev = s.log.Warn().Str("server_error", msg)
		}
		if action, ok := obj["action"].(string); ok {
			ev = ev.Str("action", action)
		}
	}
	ev.RawJSON("payload", data).Msg("[ws] Received")
}

// closeConn runs once the session context is done.
func (s *Session) closeConn() {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return
	}

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	conn.Close()
}

func (s *Session) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}
