package config

import "time"

// CanvasConfig centralizes the business rules of the canvas so they are
// explicit and overridable instead of being scattered as magic numbers.
type CanvasConfig struct {
	// Placement rules
	VideoBoxWidth     float64
	VideoBoxHeight    float64
	DefaultBoxWidth   float64
	DefaultBoxHeight  float64
	PlacementMargin   float64
	PlacementRingStep float64
	PlacementMaxRings int
	FallbackOffsetX   float64
	FallbackOffsetY   float64

	// Graph limits
	MaxNodesPerCanvas int
	MaxEdgesPerCanvas int

	// Persistence cadence
	SnapshotDebounce time.Duration
	ViewportDebounce time.Duration
	PollInterval     time.Duration
}

// DefaultCanvasConfig returns the standard canvas rules.
func DefaultCanvasConfig() *CanvasConfig {
	return &CanvasConfig{
		VideoBoxWidth:     200,
		VideoBoxHeight:    120,
		DefaultBoxWidth:   150,
		DefaultBoxHeight:  50,
		PlacementMargin:   20,
		PlacementRingStep: 30,
		PlacementMaxRings: 9,
		FallbackOffsetX:   200,
		FallbackOffsetY:   100,

		MaxNodesPerCanvas: 500,
		MaxEdgesPerCanvas: 2000,

		SnapshotDebounce: 2000 * time.Millisecond,
		ViewportDebounce: 1000 * time.Millisecond,
		PollInterval:     3 * time.Second,
	}
}
