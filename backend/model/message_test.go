package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		want    Message
		wantErr error
	}{
		{
			name:  "draw",
			frame: `{"type":"draw","data":{"color":"#ff0000","width":3,"points":[{"x":1,"y":1},{"x":2,"y":2}]}}`,
			want: DrawMessage{Stroke: Stroke{
				Color:  "#ff0000",
				Width:  3,
				Points: []Point{{X: 1, Y: 1}, {X: 2, Y: 2}},
			}},
		},
		{
			name:  "clear",
			frame: `{"type":"clear"}`,
			want:  ClearMessage{},
		},
		{
			name:    "draw with invalid stroke",
			frame:   `{"type":"draw","data":{"color":"#ff0000","width":3}}`,
			wantErr: ErrInvalidStroke,
		},
		{
			name:    "draw without data",
			frame:   `{"type":"draw"}`,
			wantErr: ErrInvalidStroke,
		},
		{
			name:    "history is server only",
			frame:   `{"type":"history","data":[]}`,
			wantErr: ErrUnknownMessageType,
		},
		{
			name:    "unknown type",
			frame:   `{"type":"cursor","data":{"x":1}}`,
			wantErr: ErrUnknownMessageType,
		},
		{
			name:    "missing type",
			frame:   `{}`,
			wantErr: ErrUnknownMessageType,
		},
		{
			name:    "upper case type key",
			frame:   `{"TYPE":"clear"}`,
			wantErr: ErrUnknownMessageType,
		},
		{
			name:    "mixed case keys",
			frame:   `{"Type":"draw","DATA":{"color":"#ff0000","width":3,"points":[{"x":1,"y":1},{"x":2,"y":2}]}}`,
			wantErr: ErrUnknownMessageType,
		},
		{
			name:    "draw with upper case data key",
			frame:   `{"type":"draw","Data":{"color":"#ff0000","width":3,"points":[{"x":1,"y":1},{"x":2,"y":2}]}}`,
			wantErr: ErrInvalidStroke,
		},
		{
			name:    "not an object",
			frame:   `["clear"]`,
			wantErr: ErrMalformedMessage,
		},
		{
			name:    "null frame",
			frame:   `null`,
			wantErr: ErrMalformedMessage,
		},
		{
			name:    "not json",
			frame:   `not json`,
			wantErr: ErrMalformedMessage,
		},
		{
			name:    "type is not a string",
			frame:   `{"type":5}`,
			wantErr: ErrMalformedMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode([]byte(tt.frame))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, msg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, msg)
		})
	}
}

func TestEncode(t *testing.T) {
	stroke := Stroke{Color: "#ff0000", Width: 3, Points: []Point{{X: 1, Y: 1}, {X: 2, Y: 2}}}

	b, err := Encode(ClearMessage{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"clear"}`, string(b))

	b, err = Encode(DrawMessage{Stroke: stroke})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"draw","data":{"color":"#ff0000","width":3,"points":[{"x":1,"y":1},{"x":2,"y":2}]}}`, string(b))

	b, err = Encode(HistoryMessage{Strokes: []Stroke{stroke}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"history","data":[{"color":"#ff0000","width":3,"points":[{"x":1,"y":1},{"x":2,"y":2}]}]}`, string(b))

	msg, err := DecodeServer(b)
	require.NoError(t, err)
	assert.Equal(t, HistoryMessage{Strokes: []Stroke{stroke}}, msg)
}

func TestDecodeServer_ExactKeys(t *testing.T) {
	_, err := DecodeServer([]byte(`{"Type":"history","data":[]}`))
	assert.ErrorIs(t, err, ErrUnknownMessageType)

	msg, err := DecodeServer([]byte(`{"type":"history","data":[]}`))
	require.NoError(t, err)
	assert.Equal(t, HistoryMessage{Strokes: []Stroke{}}, msg)
}
