package memory

import (
	"errors"
	"sync"

	"github.com/adwski/whiteboard/backend/model"
)

var (
	ErrRoomNotFound = errors.New("room is not found")
	ErrRoomNotEmpty = errors.New("room still has sessions")
)

type Config struct {
	Dispatcher   Dispatcher
	RoomCapacity int
	HistoryLimit int
}

// Registry maps room ids to rooms. A room exists only while it has sessions.
type Registry struct {
	disp     Dispatcher
	capacity int
	limit    int

	mx *sync.RWMutex
	db map[string]*Room
}

func NewRegistry(cfg Config) *Registry {
	reg := &Registry{
		disp:     cfg.Dispatcher,
		capacity: cfg.RoomCapacity,
		limit:    cfg.HistoryLimit,
		mx:       &sync.RWMutex{},
		db:       make(map[string]*Room),
	}
	if reg.capacity <= 0 {
		reg.capacity = model.DefaultRoomCapacity
	}
	if reg.limit <= 0 {
		reg.limit = model.DefaultHistoryLimit
	}
	return reg
}

func (reg *Registry) GetOrCreate(roomID string) *Room {
	reg.mx.Lock()
	defer reg.mx.Unlock()
	room, _ := reg.getOrCreate(roomID)
	return room
}

func (reg *Registry) Get(roomID string) (*Room, bool) {
	reg.mx.RLock()
	defer reg.mx.RUnlock()
	room, ok := reg.db[roomID]
	return room, ok
}

// Remove deletes an empty room.
func (reg *Registry) Remove(roomID string) error {
	reg.mx.Lock()
	defer reg.mx.Unlock()

	room, ok := reg.db[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	if sessions, _ := room.Len(); sessions > 0 {
		return ErrRoomNotEmpty
	}
	delete(reg.db, roomID)
	return nil
}

// Join looks up or creates the session's room and admits the session into it.
// A room created for a rejected session is not kept.
func (reg *Registry) Join(ses model.Session) (*Room, error) {
	reg.mx.Lock()
	defer reg.mx.Unlock()

	room, created := reg.getOrCreate(ses.RoomID())
	if err := room.Admit(ses); err != nil {
		if created {
			delete(reg.db, room.ID())
		}
		return nil, err
	}
	return room, nil
}

// Leave releases the session from its room and removes the room once it is empty.
// Calling Leave for a session that already left is a no-op.
func (reg *Registry) Leave(ses model.Session) (released, removed bool) {
	reg.mx.Lock()
	defer reg.mx.Unlock()

	room, ok := reg.db[ses.RoomID()]
	if !ok {
		return false, false
	}
	released, empty := room.Release(ses)
	if released && empty {
		delete(reg.db, room.ID())
		removed = true
	}
	return released, removed
}

func (reg *Registry) Stats() (rooms, sessions int) {
	reg.mx.RLock()
	defer reg.mx.RUnlock()

	rooms = len(reg.db)
	for _, room := range reg.db {
		n, _ := room.Len()
		sessions += n
	}
	return rooms, sessions
}

func (reg *Registry) getOrCreate(roomID string) (*Room, bool) {
	room, ok := reg.db[roomID]
	if ok {
		return room, false
	}
	room = newRoom(roomID, reg.capacity, reg.limit, reg.disp)
	reg.db[roomID] = room
	return room, true
}
