package _switch

import (
	"github.com/adwski/whiteboard/backend/model"
	"github.com/rs/zerolog"
)

// Switch fans out room messages to sessions.
type Switch struct {
	logger zerolog.Logger
}

func NewSwitch(logger *zerolog.Logger) *Switch {
	return &Switch{
		logger: logger.With().Str("component", "switch").Logger(),
	}
}

// Dispatch serializes msg once and queues the same bytes to every ready
// recipient except exclude. It returns the number of sessions the frame was queued for.
func (sw *Switch) Dispatch(recipients []model.Session, msg model.Message, exclude model.Session) int {
	var sent int

	b, err := model.Encode(msg)
	if err != nil {
		sw.logger.Error().Err(err).Str("type", string(msg.Type())).Msg("failed to marshall outgoing message")
		return 0
	}

	for _, ses := range recipients {
		if exclude != nil && ses.ID() == exclude.ID() {
			continue
		}
		if !ses.Ready() {
			sw.logger.Trace().
				Str("dst", ses.ID()).
				Str("type", string(msg.Type())).
				Msg("skipping session that is not ready")
			continue
		}
		if err = ses.Send(b); err != nil {
			sw.logger.Debug().Err(err).
				Str("roomID", ses.RoomID()).
				Str("dst", ses.ID()).
				Str("type", string(msg.Type())).
				Msg("message dropped")
			continue
		}
		sent++
	}

	if sent == 0 && len(recipients) > 0 {
		sw.logger.Trace().
			Str("type", string(msg.Type())).
			Msg("broadcast did not reach anyone")
	}
	return sent
}
