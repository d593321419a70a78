package valueobjects

import (
	"encoding/json"
	"math"

	pkgerrors "canvas-backend/pkg/errors"
)

// Position is a value object representing node coordinates on the canvas
type Position struct {
	x float64
	y float64
}

// NewPosition creates a position with validation
func NewPosition(x, y float64) (Position, error) {
	if !isValidCoordinate(x) || !isValidCoordinate(y) {
		return Position{}, pkgerrors.NewValidation("invalid coordinates: must be finite numbers")
	}
	return Position{x: x, y: y}, nil
}

// X returns the X coordinate
func (p Position) X() float64 {
	return p.x
}

// Y returns the Y coordinate
func (p Position) Y() float64 {
	return p.y
}

// DistanceTo calculates the Euclidean distance to another position
func (p Position) DistanceTo(other Position) float64 {
	dx := p.x - other.x
	dy := p.y - other.y
	return math.Sqrt(dx*dx + dy*dy)
}

// Equals checks if two positions are equal
func (p Position) Equals(other Position) bool {
	const epsilon = 1e-9
	return math.Abs(p.x-other.x) < epsilon &&
		math.Abs(p.y-other.y) < epsilon
}

// Translate moves the position by the given offsets
func (p Position) Translate(dx, dy float64) Position {
	return Position{x: p.x + dx, y: p.y + dy}
}

type positionJSON struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// MarshalJSON implements json.Marshaler
func (p Position) MarshalJSON() ([]byte, error) {
	return json.Marshal(positionJSON{X: p.x, Y: p.y})
}

// UnmarshalJSON implements json.Unmarshaler
func (p *Position) UnmarshalJSON(data []byte) error {
	var raw positionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	pos, err := NewPosition(raw.X, raw.Y)
	if err != nil {
		return err
	}
	*p = pos
	return nil
}

// isValidCoordinate checks if a coordinate is a valid finite number
func isValidCoordinate(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
