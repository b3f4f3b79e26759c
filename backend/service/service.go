package service

import (
	"errors"

	"github.com/adwski/whiteboard/backend/model"
	"github.com/adwski/whiteboard/backend/storage/memory"
	"github.com/davecgh/go-spew/spew"
	"github.com/rs/zerolog"
)

var (
	ErrJoin         = errors.New("unable to join room")
	ErrRoomNotFound = errors.New("room is not found")
)

type (
	Registry interface {
		Join(ses model.Session) (*memory.Room, error)
		Leave(ses model.Session) (released, removed bool)
		Get(roomID string) (*memory.Room, bool)
		Stats() (rooms, sessions int)
	}

	Service struct {
		reg        Registry
		frameLimit int
		logger     zerolog.Logger
	}

	Config struct {
		Registry   Registry
		Logger     *zerolog.Logger
		FrameLimit int
	}

	RoomInfo struct {
		ID       string `json:"room_id"`
		Sessions int    `json:"sessions"`
		Strokes  int    `json:"strokes"`
	}
)

func NewService(cfg Config) *Service {
	svc := &Service{
		reg:        cfg.Registry,
		frameLimit: cfg.FrameLimit,
		logger:     cfg.Logger.With().Str("component", "service").Logger(),
	}
	if svc.frameLimit <= 0 {
		svc.frameLimit = model.DefaultFrameLimit
	}
	return svc
}

// Join attaches the session to its room. The room id is checked before any lookup.
func (svc *Service) Join(ses model.Session) error {
	if !model.ValidRoomID(ses.RoomID()) {
		return model.ErrInvalidRoomID
	}
	room, err := svc.reg.Join(ses)
	if err != nil {
		return errors.Join(ErrJoin, err)
	}
	sessions, strokes := room.Len()
	svc.logger.Debug().
		Str("roomID", ses.RoomID()).
		Str("sessionID", ses.ID()).
		Int("sessions", sessions).
		Int("strokes", strokes).
		Msg("session joined room")
	return nil
}

// HandleFrame processes one inbound frame. Only an oversized frame is reported
// as an error; anything else that cannot be applied is dropped.
func (svc *Service) HandleFrame(ses model.Session, frame []byte) error {
	if len(frame) > svc.frameLimit {
		return model.ErrFrameTooLarge
	}

	logger := svc.logger.With().
		Str("roomID", ses.RoomID()).
		Str("sessionID", ses.ID()).
		Logger()

	msg, err := model.Decode(frame)
	if err != nil {
		logger.Debug().Err(err).Msg("frame dropped")
		return nil
	}
	if e := logger.Trace(); e.Enabled() {
		e.Str("message", spew.Sdump(msg)).Msg("frame decoded")
	}

	room, ok := svc.reg.Get(ses.RoomID())
	if !ok {
		logger.Warn().Str("type", string(msg.Type())).Msg("message for non-existent room")
		return nil
	}

	var n int
	switch m := msg.(type) {
	case model.DrawMessage:
		n, err = room.Draw(ses, m.Stroke)
	case model.ClearMessage:
		n, err = room.Reset(ses)
	}
	if err != nil {
		logger.Warn().Err(err).Str("type", string(msg.Type())).Msg("message dropped")
		return nil
	}
	logger.Trace().Str("type", string(msg.Type())).Int("recipients", n).Msg("message relayed")
	return nil
}

// Leave detaches the session from its room. It is safe to call more than once.
func (svc *Service) Leave(ses model.Session) {
	released, removed := svc.reg.Leave(ses)
	if !released {
		return
	}
	logger := svc.logger.With().
		Str("roomID", ses.RoomID()).
		Str("sessionID", ses.ID()).
		Logger()
	logger.Debug().Msg("session left room")
	if removed {
		logger.Debug().Msg("room deleted as no sessions remain")
	}
}

func (svc *Service) Stats() (rooms, sessions int) {
	return svc.reg.Stats()
}

func (svc *Service) RoomInfo(roomID string) (*RoomInfo, error) {
	if !model.ValidRoomID(roomID) {
		return nil, model.ErrInvalidRoomID
	}
	room, ok := svc.reg.Get(roomID)
	if !ok {
		return nil, ErrRoomNotFound
	}
	info := &RoomInfo{ID: roomID}
	info.Sessions, info.Strokes = room.Len()
	return info, nil
}
