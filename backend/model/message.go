package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

type MessageType string

const (
	MessageTypeDraw    MessageType = "draw"
	MessageTypeClear   MessageType = "clear"
	MessageTypeHistory MessageType = "history"
)

var (
	ErrMalformedMessage   = errors.New("malformed message")
	ErrUnknownMessageType = errors.New("unknown message type")
)

// Message is one of DrawMessage, ClearMessage or HistoryMessage.
type Message interface {
	Type() MessageType
}

type (
	DrawMessage struct {
		Stroke Stroke
	}

	ClearMessage struct{}

	// HistoryMessage is only ever produced by the server.
	HistoryMessage struct {
		Strokes []Stroke
	}
)

func (DrawMessage) Type() MessageType    { return MessageTypeDraw }
func (ClearMessage) Type() MessageType   { return MessageTypeClear }
func (HistoryMessage) Type() MessageType { return MessageTypeHistory }

type outEnvelope struct {
	Type MessageType `json:"type"`
	Data any         `json:"data,omitempty"`
}

// envelope splits a frame into its type and raw data. Keys are matched exactly:
// struct tags would let encoding/json accept "TYPE" or "Data" as well.
func envelope(frame []byte) (MessageType, json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(frame, &fields); err != nil {
		return "", nil, errors.Join(ErrMalformedMessage, err)
	}
	if fields == nil {
		return "", nil, ErrMalformedMessage
	}
	raw, ok := fields["type"]
	if !ok {
		return "", fields["data"], nil
	}
	var typ MessageType
	if err := json.Unmarshal(raw, &typ); err != nil {
		return "", nil, errors.Join(ErrMalformedMessage, err)
	}
	return typ, fields["data"], nil
}

// Decode parses an inbound client frame. Only draw and clear are accepted from clients;
// everything else yields ErrUnknownMessageType.
func Decode(frame []byte) (Message, error) {
	typ, data, err := envelope(frame)
	if err != nil {
		return nil, err
	}
	switch typ {
	case MessageTypeDraw:
		stroke, err := ParseStroke(data)
		if err != nil {
			return nil, err
		}
		return DrawMessage{Stroke: stroke}, nil
	case MessageTypeClear:
		return ClearMessage{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessageType, typ)
	}
}

// DecodeServer parses a frame sent by the server, including history.
func DecodeServer(frame []byte) (Message, error) {
	typ, data, err := envelope(frame)
	if err != nil {
		return nil, err
	}
	if typ != MessageTypeHistory {
		return Decode(frame)
	}
	var strokes []Stroke
	if err := json.Unmarshal(data, &strokes); err != nil {
		return nil, errors.Join(ErrMalformedMessage, err)
	}
	return HistoryMessage{Strokes: strokes}, nil
}

func Encode(msg Message) ([]byte, error) {
	out := outEnvelope{Type: msg.Type()}
	switch m := msg.(type) {
	case DrawMessage:
		out.Data = m.Stroke
	case *DrawMessage:
		out.Data = m.Stroke
	case HistoryMessage:
		out.Data = m.Strokes
	case *HistoryMessage:
		out.Data = m.Strokes
	}
	b, err := json.Marshal(&out)
	if err != nil {
		return nil, errors.Join(ErrMalformedMessage, err)
	}
	return b, nil
}
