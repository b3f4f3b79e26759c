package memory

import (
	"errors"
	"sync"

	"github.com/adwski/whiteboard/backend/model"
)

var (
	ErrNotAMember = errors.New("session is not a member of this room")
)

// Dispatcher delivers a message to the ready sessions among recipients.
type Dispatcher interface {
	Dispatch(recipients []model.Session, msg model.Message, exclude model.Session) int
}

// Room holds the bounded stroke history and membership of one room.
// All methods are safe for concurrent use; mutations and the fan-out
// that follows them happen under the room lock, so every member observes
// the same order of events.
type Room struct {
	id       string
	capacity int
	limit    int
	disp     Dispatcher

	mx       *sync.Mutex
	sessions map[string]model.Session
	history  []model.Stroke
}

func newRoom(id string, capacity, limit int, disp Dispatcher) *Room {
	return &Room{
		id:       id,
		capacity: capacity,
		limit:    limit,
		disp:     disp,
		mx:       &sync.Mutex{},
		sessions: make(map[string]model.Session),
	}
}

func (r *Room) ID() string {
	return r.id
}

// Admit adds the session if the room has capacity left and sends it
// the current history. Nothing is sent when history is empty.
func (r *Room) Admit(ses model.Session) error {
	r.mx.Lock()
	defer r.mx.Unlock()

	if _, ok := r.sessions[ses.ID()]; ok {
		return nil
	}
	if len(r.sessions) >= r.capacity {
		return model.ErrRoomIsFull
	}
	r.sessions[ses.ID()] = ses

	if len(r.history) > 0 {
		r.disp.Dispatch([]model.Session{ses}, model.HistoryMessage{Strokes: r.snapshot()}, nil)
	}
	return nil
}

// Release removes the session. It reports whether the session was a member
// and whether the room is now empty.
func (r *Room) Release(ses model.Session) (released, empty bool) {
	r.mx.Lock()
	defer r.mx.Unlock()

	if _, ok := r.sessions[ses.ID()]; ok {
		delete(r.sessions, ses.ID())
		released = true
	}
	return released, len(r.sessions) == 0
}

func (r *Room) SnapshotHistory() []model.Stroke {
	r.mx.Lock()
	defer r.mx.Unlock()
	return r.snapshot()
}

func (r *Room) RecordStroke(stroke model.Stroke) {
	r.mx.Lock()
	defer r.mx.Unlock()
	r.record(stroke)
}

func (r *Room) Clear() {
	r.mx.Lock()
	defer r.mx.Unlock()
	r.history = nil
}

// Dispatch sends msg to every ready member except exclude.
func (r *Room) Dispatch(msg model.Message, exclude model.Session) int {
	r.mx.Lock()
	defer r.mx.Unlock()
	return r.disp.Dispatch(r.members(), msg, exclude)
}

// Draw records the stroke and relays it to everyone except the sender.
func (r *Room) Draw(sender model.Session, stroke model.Stroke) (int, error) {
	r.mx.Lock()
	defer r.mx.Unlock()

	if _, ok := r.sessions[sender.ID()]; !ok {
		return 0, ErrNotAMember
	}
	r.record(stroke)
	return r.disp.Dispatch(r.members(), model.DrawMessage{Stroke: stroke}, sender), nil
}

// Reset clears history and notifies every member including the sender.
func (r *Room) Reset(sender model.Session) (int, error) {
	r.mx.Lock()
	defer r.mx.Unlock()

	if _, ok := r.sessions[sender.ID()]; !ok {
		return 0, ErrNotAMember
	}
	r.history = nil
	return r.disp.Dispatch(r.members(), model.ClearMessage{}, nil), nil
}

func (r *Room) Len() (sessions, strokes int) {
	r.mx.Lock()
	defer r.mx.Unlock()
	return len(r.sessions), len(r.history)
}

func (r *Room) record(stroke model.Stroke) {
	r.history = append(r.history, stroke)
	if over := len(r.history) - r.limit; over > 0 {
		// drop the evicted head so the backing array does not pin it
		clear(r.history[:over])
		r.history = r.history[over:]
	}
}

func (r *Room) snapshot() []model.Stroke {
	if len(r.history) == 0 {
		return nil
	}
	out := make([]model.Stroke, len(r.history))
	copy(out, r.history)
	return out
}

func (r *Room) members() []model.Session {
	out := make([]model.Session, 0, len(r.sessions))
	for _, ses := range r.sessions {
		out = append(out, ses)
	}
	return out
}
