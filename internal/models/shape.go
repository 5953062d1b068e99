package models

import "strings"

// Shape is one of the five fixed reaction categories.
type Shape string

const (
	ShapeTriangle Shape = "TRIANGLE"
	ShapeCircle   Shape = "CIRCLE"
	ShapeSquare   Shape = "SQUARE"
	ShapeDiamond  Shape = "DIAMOND"
	ShapeHexagon  Shape = "HEXAGON"
)

// Shapes lists every shape in display order.
var Shapes = []Shape{ShapeTriangle, ShapeCircle, ShapeSquare, ShapeDiamond, ShapeHexagon}

// ParseShape converts a raw tag into a Shape. Tags are matched exactly.
func ParseShape(raw string) (Shape, error) {
	s := Shape(strings.TrimSpace(raw))
	if !s.Valid() {
		return "", NewValidationError("Invalid shape: must be one of TRIANGLE, CIRCLE, SQUARE, DIAMOND, HEXAGON")
	}
	return s, nil
}

// Valid reports whether s is a member of the enumeration.
func (s Shape) Valid() bool {
	switch s {
	case ShapeTriangle, ShapeCircle, ShapeSquare, ShapeDiamond, ShapeHexagon:
		return true
	default:
		return false
	}
}

// ShapeCounts is a dense per-shape tally. Every key is always present.
type ShapeCounts struct {
	Triangle int64 `json:"triangle"`
	Circle   int64 `json:"circle"`
	Square   int64 `json:"square"`
	Diamond  int64 `json:"diamond"`
	Hexagon  int64 `json:"hexagon"`
}

// Add increments the tally for shape by n. Unknown shapes are ignored.
func (c *ShapeCounts) Add(shape Shape, n int64) {
	switch shape {
	case ShapeTriangle:
		c.Triangle += n
	case ShapeCircle:
		c.Circle += n
	case ShapeSquare:
		c.Square += n
	case ShapeDiamond:
		c.Diamond += n
	case ShapeHexagon:
		c.Hexagon += n
	}
}

// Get returns the tally for shape.
func (c ShapeCounts) Get(shape Shape) int64 {
	switch shape {
	case ShapeTriangle:
		return c.Triangle
	case ShapeCircle:
		return c.Circle
	case ShapeSquare:
		return c.Square
	case ShapeDiamond:
		return c.Diamond
	case ShapeHexagon:
		return c.Hexagon
	default:
		return 0
	}
}

// Total sums all shapes.
func (c ShapeCounts) Total() int64 {
	var n int64
	for _, s := range Shapes {
		n += c.Get(s)
	}
	return n
}

// ShapeCountRow is one row of the grouped (post_id, shape) count query.
type ShapeCountRow struct {
	PostID uint
	Shape  Shape
	Count  int64
}
