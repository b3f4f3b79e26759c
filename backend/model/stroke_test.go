package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pathJSON(n int) string {
	pts := make([]string, 0, n)
	for i := 0; i < n; i++ {
		pts = append(pts, fmt.Sprintf(`{"x":%d,"y":%d}`, i, i))
	}
	return `{"color":"#00ff00","width":2,"points":[` + strings.Join(pts, ",") + `]}`
}

func TestValidStroke(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    bool
	}{
		{name: "path", payload: `{"color":"#ff0000","width":3,"points":[{"x":1,"y":1},{"x":2,"y":2}]}`, want: true},
		{name: "upper case color", payload: `{"color":"#ABCDEF","width":0.5,"points":[{"x":1,"y":1},{"x":2,"y":2}]}`, want: true},
		{name: "legacy segment", payload: `{"color":"#000000","width":1,"x1":0,"y1":0,"x2":10,"y2":-4.5}`, want: true},
		{name: "path wins over segment fields", payload: `{"color":"#000000","width":1,"points":[{"x":1,"y":1},{"x":2,"y":2}],"x1":"a"}`, want: true},
		{name: "non array points falls back to segment", payload: `{"color":"#000000","width":1,"points":"no","x1":0,"y1":0,"x2":1,"y2":1}`, want: true},
		{name: "max points", payload: pathJSON(MaxPathPoints), want: true},

		{name: "not an object", payload: `[1,2]`},
		{name: "null", payload: `null`},
		{name: "string", payload: `"draw"`},
		{name: "missing color", payload: `{"width":3,"points":[{"x":1,"y":1},{"x":2,"y":2}]}`},
		{name: "short color", payload: `{"color":"#fff","width":3,"points":[{"x":1,"y":1},{"x":2,"y":2}]}`},
		{name: "named color", payload: `{"color":"red","width":3,"points":[{"x":1,"y":1},{"x":2,"y":2}]}`},
		{name: "color not string", payload: `{"color":16711680,"width":3,"points":[{"x":1,"y":1},{"x":2,"y":2}]}`},
		{name: "zero width", payload: `{"color":"#ff0000","width":0,"points":[{"x":1,"y":1},{"x":2,"y":2}]}`},
		{name: "negative width", payload: `{"color":"#ff0000","width":-1,"points":[{"x":1,"y":1},{"x":2,"y":2}]}`},
		{name: "string width", payload: `{"color":"#ff0000","width":"3","points":[{"x":1,"y":1},{"x":2,"y":2}]}`},
		{name: "null width", payload: `{"color":"#ff0000","width":null,"points":[{"x":1,"y":1},{"x":2,"y":2}]}`},
		{name: "one point", payload: `{"color":"#ff0000","width":3,"points":[{"x":1,"y":1}]}`},
		{name: "too many points", payload: pathJSON(MaxPathPoints + 1)},
		{name: "point missing y", payload: `{"color":"#ff0000","width":3,"points":[{"x":1,"y":1},{"x":2}]}`},
		{name: "point string coordinate", payload: `{"color":"#ff0000","width":3,"points":[{"x":1,"y":1},{"x":"2","y":2}]}`},
		{name: "point is array", payload: `{"color":"#ff0000","width":3,"points":[{"x":1,"y":1},[2,2]]}`},
		{name: "point is null", payload: `{"color":"#ff0000","width":3,"points":[{"x":1,"y":1},null]}`},
		{name: "segment missing y2", payload: `{"color":"#000000","width":1,"x1":0,"y1":0,"x2":10}`},
		{name: "segment null coordinate", payload: `{"color":"#000000","width":1,"x1":0,"y1":0,"x2":10,"y2":null}`},
		{name: "neither shape", payload: `{"color":"#000000","width":1}`},
		{name: "overflowing coordinate", payload: `{"color":"#000000","width":1,"x1":1e400,"y1":0,"x2":1,"y2":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidStroke(json.RawMessage(tt.payload)))
		})
	}
}

func TestParseStroke_NormalizesSegment(t *testing.T) {
	stroke, err := ParseStroke(json.RawMessage(`{"color":"#0a0B0c","width":4,"x1":1,"y1":2,"x2":3,"y2":4}`))
	require.NoError(t, err)

	assert.Equal(t, Stroke{
		Color:  "#0a0B0c",
		Width:  4,
		Points: []Point{{X: 1, Y: 2}, {X: 3, Y: 4}},
	}, stroke)
}

func TestStroke_ValidRejectsNonFinite(t *testing.T) {
	stroke, err := ParseStroke(json.RawMessage(`{"color":"#ff0000","width":3,"points":[{"x":1,"y":1},{"x":2,"y":2},{"x":3,"y":3}]}`))
	require.NoError(t, err)
	require.True(t, stroke.Valid())

	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		for i := range stroke.Points {
			mutated := Stroke{Color: stroke.Color, Width: stroke.Width, Points: append([]Point(nil), stroke.Points...)}
			mutated.Points[i].Y = bad
			assert.False(t, mutated.Valid(), "point %d set to %v", i, bad)
		}
	}
}

func TestValidRoomID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"abc123", true},
		{"ABC123", true},
		{"aB3dE6", true},
		{"", false},
		{"abc12", false},
		{"abc1234", false},
		{"abc 12", false},
		{"abc-12", false},
		{"\u00e1bc123", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidRoomID(tt.id), "room id %q", tt.id)
	}
}
