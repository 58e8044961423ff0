package viewer

import (
	"sync"

	"github.com/gofrs/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Outbound frames queued per session before the session is considered
// unreachable for further messages. Delivery is fire-and-forget, so a
// viewer that falls this far behind simply misses frames until it
// reconnects and requests a resync.
const _sendBuffer = 64

// session is one connected viewer. Viewers are stateless sinks: no state
// beyond the connection itself is retained, and the id exists only for
// logging.
type session struct {
	id   uuid.UUID
	conn *websocket.Conn
	send chan string

	logger *zap.SugaredLogger

	mu     sync.Mutex
	closed bool
}

func newSession(conn *websocket.Conn, logger *zap.SugaredLogger) *session {
	return &session{
		id:     uuid.Must(uuid.NewV4()),
		conn:   conn,
		send:   make(chan string, _sendBuffer),
		logger: logger,
	}
}

// deliver queues text for the session's write pump and reports whether it
// was accepted. Sessions that are closing or whose buffer is full are
// skipped for this message only.
func (s *session) deliver(text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	select {
	case s.send <- text:
		return true
	default:
		s.logger.Warnw("viewer send buffer full, dropping frame", zap.Stringer("session", s.id))
		return false
	}
}

// terminate closes the connection and stops the write pump. Idempotent.
func (s *session) terminate() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.send)
	s.mu.Unlock()

	s.conn.Close()
}

// writePump drains the send queue onto the connection. It exits when the
// session is terminated or the connection errors.
func (s *session) writePump() {
	for text := range s.send {
		if err := s.conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
			s.logger.Warnw("viewer send failed", zap.Stringer("session", s.id), zap.Error(err))
			return
		}
	}
}

// readPump forwards inbound frames until the connection closes, then
// invokes done exactly once.
func (s *session) readPump(onFrame func(data []byte), done func()) {
	defer done()
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		onFrame(data)
	}
}
