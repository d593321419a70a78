package services

import (
	"canvas-backend/domain/config"
	"canvas-backend/domain/core/valueobjects"
)

// BoundingBox is an axis-aligned rectangle on the canvas.
type BoundingBox struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Intersects reports whether two boxes overlap after inflating both by margin.
func (b BoundingBox) Intersects(other BoundingBox, margin float64) bool {
	return b.X-margin < other.X+other.Width+margin &&
		b.X+b.Width+margin > other.X-margin &&
		b.Y-margin < other.Y+other.Height+margin &&
		b.Y+b.Height+margin > other.Y-margin
}

// PlacedNode is the footprint of a node already on the canvas, as the
// placement engine sees it.
type PlacedNode struct {
	Position valueobjects.Position
	Kind     valueobjects.NodeKind
}

// PlacementEngine finds non-overlapping positions for new nodes. It is a pure
// domain service: no state beyond configuration, deterministic for a given
// set of occupied footprints.
type PlacementEngine struct {
	config *config.CanvasConfig
}

// NewPlacementEngine creates a placement engine.
func NewPlacementEngine(cfg *config.CanvasConfig) *PlacementEngine {
	if cfg == nil {
		cfg = config.DefaultCanvasConfig()
	}
	return &PlacementEngine{config: cfg}
}

// BoxFor returns the bounding box a node of the given kind occupies at a
// position. Video nodes are larger than every other kind.
func (e *PlacementEngine) BoxFor(kind valueobjects.NodeKind, pos valueobjects.Position) BoundingBox {
	w, h := e.config.DefaultBoxWidth, e.config.DefaultBoxHeight
	if kind == valueobjects.KindVideo {
		w, h = e.config.VideoBoxWidth, e.config.VideoBoxHeight
	}
	return BoundingBox{X: pos.X(), Y: pos.Y(), Width: w, Height: h}
}

// Place returns the desired position if it is free, otherwise searches
// expanding rings of candidate positions around it. Each ring offsets the
// desired position by ring*step in eight compass directions. If every ring is
// exhausted, the fallback offset is applied unconditionally.
func (e *PlacementEngine) Place(desired valueobjects.Position, kind valueobjects.NodeKind, existing []PlacedNode) valueobjects.Position {
	pos, _ := e.place(desired, kind, existing)
	return pos
}

// PlaceTracked is Place plus a flag reporting whether the unconditional
// fallback offset was used, for observability.
func (e *PlacementEngine) PlaceTracked(desired valueobjects.Position, kind valueobjects.NodeKind, existing []PlacedNode) (valueobjects.Position, bool) {
	return e.place(desired, kind, existing)
}

func (e *PlacementEngine) place(desired valueobjects.Position, kind valueobjects.NodeKind, existing []PlacedNode) (valueobjects.Position, bool) {
	occupied := make([]BoundingBox, len(existing))
	for i, n := range existing {
		occupied[i] = e.BoxFor(n.Kind, n.Position)
	}

	if e.isFree(desired, kind, occupied) {
		return desired, false
	}

	// Eight compass directions, clockwise from east.
	directions := [8][2]float64{
		{1, 0}, {1, 1}, {0, 1}, {-1, 1},
		{-1, 0}, {-1, -1}, {0, -1}, {1, -1},
	}

	step := e.config.PlacementRingStep
	for ring := 1; ring <= e.config.PlacementMaxRings; ring++ {
		offset := float64(ring) * step
		for _, dir := range directions {
			candidate := desired.Translate(dir[0]*offset, dir[1]*offset)
			if e.isFree(candidate, kind, occupied) {
				return candidate, false
			}
		}
	}

	return desired.Translate(e.config.FallbackOffsetX, e.config.FallbackOffsetY), true
}

func (e *PlacementEngine) isFree(pos valueobjects.Position, kind valueobjects.NodeKind, occupied []BoundingBox) bool {
	candidate := e.BoxFor(kind, pos)
	for _, box := range occupied {
		if candidate.Intersects(box, e.config.PlacementMargin) {
			return false
		}
	}
	return true
}
