package model

import (
	"errors"
	"regexp"
)

const (
	// DefaultRoomCapacity is the maximum number of concurrent sessions in one room.
	DefaultRoomCapacity = 20
	// DefaultHistoryLimit is the maximum number of strokes kept per room.
	DefaultHistoryLimit = 10000
	// DefaultFrameLimit is the maximum accepted size of one inbound frame in bytes.
	DefaultFrameLimit = 512

	MinPathPoints = 2
	MaxPathPoints = 1000
)

// Websocket close codes and reasons used when a session is terminated by the server.
const (
	CloseNormal          = 1000
	ClosePolicyViolation = 1008
	CloseMessageTooBig   = 1009

	ReasonInvalidRoom     = "Invalid or missing room ID"
	ReasonRoomFull        = "Room is full"
	ReasonMessageTooLarge = "Message too large"
)

var (
	ErrInvalidRoomID = errors.New("invalid or missing room id")
	ErrRoomIsFull    = errors.New("room is full")
	ErrFrameTooLarge = errors.New("frame is too large")
)

// Room ids are case-sensitive.
var roomIDRe = regexp.MustCompile(`^[a-zA-Z0-9]{6}$`)

func ValidRoomID(roomID string) bool {
	return roomIDRe.MatchString(roomID)
}

// Session is a live connection bound to exactly one room for its whole lifetime.
type Session interface {
	ID() string
	RoomID() string
	// Ready reports whether the session is open and may receive frames.
	Ready() bool
	// Send queues an already serialized frame. It must not block.
	Send(frame []byte) error
}
