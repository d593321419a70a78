package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvas-backend/domain/config"
	"canvas-backend/domain/core/valueobjects"
)

func pos(t *testing.T, x, y float64) valueobjects.Position {
	t.Helper()
	p, err := valueobjects.NewPosition(x, y)
	require.NoError(t, err)
	return p
}

func TestPlacementEngine_Place(t *testing.T) {
	engine := NewPlacementEngine(nil)

	t.Run("empty canvas keeps desired position", func(t *testing.T) {
		desired := pos(t, 100, 100)

		got := engine.Place(desired, valueobjects.KindAgent, nil)

		assert.True(t, got.Equals(desired))
	})

	t.Run("far-away nodes do not displace", func(t *testing.T) {
		desired := pos(t, 100, 100)
		existing := []PlacedNode{
			{Position: pos(t, 2000, 2000), Kind: valueobjects.KindVideo},
		}

		got := engine.Place(desired, valueobjects.KindAgent, existing)

		assert.True(t, got.Equals(desired))
	})

	t.Run("occupied desired position moves to a nearby ring slot", func(t *testing.T) {
		desired := pos(t, 100, 100)
		existing := []PlacedNode{
			{Position: desired, Kind: valueobjects.KindAgent},
		}

		got := engine.Place(desired, valueobjects.KindAgent, existing)

		assert.False(t, got.Equals(desired))
		// Within the ring search radius, not the fallback jump.
		assert.LessOrEqual(t, got.DistanceTo(desired), 9*30*1.5)

		// The chosen slot must actually be free.
		box := engine.BoxFor(valueobjects.KindAgent, got)
		occupied := engine.BoxFor(valueobjects.KindAgent, desired)
		assert.False(t, box.Intersects(occupied, 20))
	})

	t.Run("ring search respects the larger video footprint", func(t *testing.T) {
		desired := pos(t, 100, 100)
		existing := []PlacedNode{
			{Position: desired, Kind: valueobjects.KindVideo},
		}

		got := engine.Place(desired, valueobjects.KindVideo, existing)

		videoBox := engine.BoxFor(valueobjects.KindVideo, got)
		occupied := engine.BoxFor(valueobjects.KindVideo, desired)
		assert.False(t, videoBox.Intersects(occupied, 20))
	})

	t.Run("crowded region falls back to fixed offset", func(t *testing.T) {
		desired := pos(t, 0, 0)

		// Tile a region large enough to defeat every ring candidate.
		var existing []PlacedNode
		for x := -600.0; x <= 600; x += 100 {
			for y := -600.0; y <= 600; y += 40 {
				existing = append(existing, PlacedNode{Position: pos(t, x, y), Kind: valueobjects.KindAgent})
			}
		}

		got, fellBack := engine.PlaceTracked(desired, valueobjects.KindAgent, existing)

		assert.True(t, fellBack)
		assert.InDelta(t, 200, got.X(), 1e-9)
		assert.InDelta(t, 100, got.Y(), 1e-9)
	})

	t.Run("deterministic for the same inputs", func(t *testing.T) {
		desired := pos(t, 100, 100)
		existing := []PlacedNode{
			{Position: desired, Kind: valueobjects.KindMoodBoard},
			{Position: pos(t, 250, 100), Kind: valueobjects.KindMoodBoard},
		}

		first := engine.Place(desired, valueobjects.KindMoodBoard, existing)
		second := engine.Place(desired, valueobjects.KindMoodBoard, existing)

		assert.True(t, first.Equals(second))
	})
}

func TestBoundingBox_Intersects(t *testing.T) {
	a := BoundingBox{X: 0, Y: 0, Width: 150, Height: 50}

	tests := []struct {
		name   string
		other  BoundingBox
		margin float64
		want   bool
	}{
		{
			name:  "overlapping boxes",
			other: BoundingBox{X: 100, Y: 25, Width: 150, Height: 50},
			want:  true,
		},
		{
			name:  "touching within margin",
			other: BoundingBox{X: 160, Y: 0, Width: 150, Height: 50},
			// 10px gap, but 20px margin on both sides closes it.
			margin: 20,
			want:   true,
		},
		{
			name:   "clear separation",
			other:  BoundingBox{X: 400, Y: 400, Width: 150, Height: 50},
			margin: 20,
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.Intersects(tt.other, tt.margin))
		})
	}
}

func TestPlacementEngine_BoxFor(t *testing.T) {
	engine := NewPlacementEngine(config.DefaultCanvasConfig())
	p := pos(t, 10, 20)

	video := engine.BoxFor(valueobjects.KindVideo, p)
	assert.Equal(t, 200.0, video.Width)
	assert.Equal(t, 120.0, video.Height)

	agent := engine.BoxFor(valueobjects.KindAgent, p)
	assert.Equal(t, 150.0, agent.Width)
	assert.Equal(t, 50.0, agent.Height)
}
