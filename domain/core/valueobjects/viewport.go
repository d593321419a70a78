package valueobjects

import pkgerrors "canvas-backend/pkg/errors"

// Viewport is the visible window onto the canvas: pan offset plus zoom.
// It is persisted independently of the node/edge snapshot.
type Viewport struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// DefaultViewport returns the origin viewport at 1:1 zoom.
func DefaultViewport() Viewport {
	return Viewport{X: 0, Y: 0, Zoom: 1}
}

// Validate checks the viewport for usable values.
func (v Viewport) Validate() error {
	if !isValidCoordinate(v.X) || !isValidCoordinate(v.Y) || !isValidCoordinate(v.Zoom) {
		return pkgerrors.NewValidation("viewport values must be finite numbers")
	}
	if v.Zoom <= 0 {
		return pkgerrors.NewValidation("viewport zoom must be positive")
	}
	return nil
}
