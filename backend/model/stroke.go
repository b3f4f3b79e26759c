package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"regexp"
)

var (
	ErrInvalidStroke = errors.New("invalid stroke")

	hexColorRe = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Stroke is the canonical path form of a drawing event.
// Legacy segment strokes are stored as two-point paths.
type Stroke struct {
	Color  string  `json:"color"`
	Width  float64 `json:"width"`
	Points []Point `json:"points"`
}

// ValidStroke reports whether raw is a well-formed drawing event.
func ValidStroke(raw json.RawMessage) bool {
	_, err := ParseStroke(raw)
	return err == nil
}

// ParseStroke validates an arbitrary JSON payload and normalizes it to a path Stroke.
// A payload with a "points" array is checked as a path, otherwise it must carry
// finite x1, y1, x2 and y2 coordinates of a legacy segment.
func ParseStroke(raw json.RawMessage) (Stroke, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return Stroke{}, ErrInvalidStroke
	}

	var stroke Stroke
	if err := json.Unmarshal(fields["color"], &stroke.Color); err != nil ||
		!hexColorRe.MatchString(stroke.Color) {
		return Stroke{}, ErrInvalidStroke
	}
	width, ok := number(fields["width"])
	if !ok || width <= 0 {
		return Stroke{}, ErrInvalidStroke
	}
	stroke.Width = width

	if pts, ok := fields["points"]; ok && isArray(pts) {
		points, err := parsePoints(pts)
		if err != nil {
			return Stroke{}, err
		}
		stroke.Points = points
		return stroke, nil
	}

	var coords [4]float64
	for i, key := range [...]string{"x1", "y1", "x2", "y2"} {
		if coords[i], ok = number(fields[key]); !ok {
			return Stroke{}, ErrInvalidStroke
		}
	}
	stroke.Points = []Point{{X: coords[0], Y: coords[1]}, {X: coords[2], Y: coords[3]}}
	return stroke, nil
}

func parsePoints(raw json.RawMessage) ([]Point, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, ErrInvalidStroke
	}
	if len(items) < MinPathPoints || len(items) > MaxPathPoints {
		return nil, ErrInvalidStroke
	}
	points := make([]Point, 0, len(items))
	for _, item := range items {
		var p map[string]json.RawMessage
		if err := json.Unmarshal(item, &p); err != nil || p == nil {
			return nil, ErrInvalidStroke
		}
		x, okX := number(p["x"])
		y, okY := number(p["y"])
		if !okX || !okY {
			return nil, ErrInvalidStroke
		}
		points = append(points, Point{X: x, Y: y})
	}
	return points, nil
}

// Valid re-checks an already constructed stroke against the same rules ParseStroke applies.
func (s Stroke) Valid() bool {
	if !hexColorRe.MatchString(s.Color) || !finite(s.Width) || s.Width <= 0 {
		return false
	}
	if len(s.Points) < MinPathPoints || len(s.Points) > MaxPathPoints {
		return false
	}
	for _, p := range s.Points {
		if !finite(p.X) || !finite(p.Y) {
			return false
		}
	}
	return true
}

func number(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	return f, finite(f)
}

func isArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
