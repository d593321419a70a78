package specifications

import (
	"canvas-backend/domain/core/valueobjects"
)

// ConnectionCandidate describes a proposed edge before it is added to the
// canvas, with the endpoint kinds already resolved.
type ConnectionCandidate struct {
	SourceID   valueobjects.NodeID
	TargetID   valueobjects.NodeID
	SourceKind valueobjects.NodeKind
	TargetKind valueobjects.NodeKind
}

// TargetIsAgent is satisfied when the proposed edge points into an agent
// node. Agents are the only sinks on the canvas.
func TargetIsAgent() Specification[ConnectionCandidate] {
	return NewBaseSpecification(func(c ConnectionCandidate) bool {
		return c.TargetKind == valueobjects.KindAgent
	})
}

// NotSelfLoop is satisfied when source and target differ.
func NotSelfLoop() Specification[ConnectionCandidate] {
	return NewBaseSpecification(func(c ConnectionCandidate) bool {
		return !c.SourceID.Equals(c.TargetID)
	})
}

// SourceIsContent is satisfied when the source can feed a generation:
// any valid node kind qualifies, including other agents.
func SourceIsContent() Specification[ConnectionCandidate] {
	return NewBaseSpecification(func(c ConnectionCandidate) bool {
		return c.SourceKind.IsValid()
	})
}

// ValidConnection composes the full connection rule set.
func ValidConnection() Specification[ConnectionCandidate] {
	return TargetIsAgent().And(NotSelfLoop()).And(SourceIsContent())
}
