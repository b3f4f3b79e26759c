package websocket

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

const (
	stateOpen int32 = iota
	stateClosing
	stateClosed
)

var (
	ErrSessionClosed  = errors.New("session is closed")
	ErrSendQueueFull  = errors.New("session send queue is full")
	errLeaveCompleted = errors.New("session already left")
)

// session binds one websocket connection to one room.
type session struct {
	id     string
	roomID string
	conn   *websocket.Conn
	tx     chan []byte
	state  atomic.Int32

	closeOnce   sync.Once
	closeCode   int
	closeReason string

	leaveOnce sync.Once
}

func newSession(id, roomID string, conn *websocket.Conn, queueSize int) *session {
	return &session{
		id:     id,
		roomID: roomID,
		conn:   conn,
		tx:     make(chan []byte, queueSize),
	}
}

func (s *session) ID() string {
	return s.id
}

func (s *session) RoomID() string {
	return s.roomID
}

func (s *session) Ready() bool {
	return s.state.Load() == stateOpen
}

// Send queues a frame without blocking. Frames for a slow session are dropped.
func (s *session) Send(frame []byte) error {
	if !s.Ready() {
		return ErrSessionClosed
	}
	select {
	case s.tx <- frame:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// closeWith records the status the connection will be closed with.
// Only the first call has effect.
func (s *session) closeWith(code int, reason string) {
	s.closeOnce.Do(func() {
		s.state.CompareAndSwap(stateOpen, stateClosing)
		s.closeCode = code
		s.closeReason = reason
	})
}

// leave runs fn exactly once per session.
func (s *session) leave(fn func()) error {
	err := errLeaveCompleted
	s.leaveOnce.Do(func() {
		s.state.Store(stateClosed)
		fn()
		err = nil
	})
	return err
}
