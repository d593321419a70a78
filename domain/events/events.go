package events

import (
	"time"

	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"
)

// DomainEvent is the base interface for all domain events.
// Events represent something that has happened in the past.
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
}

// Event type constants. Handlers register against these.
const (
	TypeNodeAdded            = "canvas.node_added"
	TypeNodeUpdated          = "canvas.node_updated"
	TypeNodeMoved            = "canvas.node_moved"
	TypeNodesRemoved         = "canvas.nodes_removed"
	TypeNodeRestored         = "canvas.node_restored"
	TypeEdgeAdded            = "canvas.edge_added"
	TypeEdgesRemoved         = "canvas.edges_removed"
	TypeViewportChanged      = "canvas.viewport_changed"
	TypeAgentStatusChanged   = "agent.status_changed"
	TypeGenerationProgressed = "agent.generation_progressed"
	TypeGenerationWarning    = "agent.generation_warning"
)

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }

func base(aggregateID, eventType string) BaseEvent {
	return BaseEvent{
		AggregateID: aggregateID,
		EventType:   eventType,
		Timestamp:   time.Now(),
	}
}

// NodeAdded is raised when a node enters the canvas through user action.
type NodeAdded struct {
	BaseEvent
	NodeID valueobjects.NodeID   `json:"node_id"`
	Kind   valueobjects.NodeKind `json:"kind"`
}

func NewNodeAdded(projectID valueobjects.ProjectID, nodeID valueobjects.NodeID, kind valueobjects.NodeKind) NodeAdded {
	return NodeAdded{BaseEvent: base(projectID.String(), TypeNodeAdded), NodeID: nodeID, Kind: kind}
}

// NodeUpdated is raised when a node's payload changes.
type NodeUpdated struct {
	BaseEvent
	NodeID valueobjects.NodeID `json:"node_id"`
}

func NewNodeUpdated(projectID valueobjects.ProjectID, nodeID valueobjects.NodeID) NodeUpdated {
	return NodeUpdated{BaseEvent: base(projectID.String(), TypeNodeUpdated), NodeID: nodeID}
}

// NodeMoved is raised when a node is dragged to a new position.
type NodeMoved struct {
	BaseEvent
	NodeID      valueobjects.NodeID   `json:"node_id"`
	NewPosition valueobjects.Position `json:"new_position"`
}

func NewNodeMoved(projectID valueobjects.ProjectID, nodeID valueobjects.NodeID, pos valueobjects.Position) NodeMoved {
	return NodeMoved{BaseEvent: base(projectID.String(), TypeNodeMoved), NodeID: nodeID, NewPosition: pos}
}

// NodesRemoved is raised when nodes leave the canvas.
type NodesRemoved struct {
	BaseEvent
	NodeIDs []valueobjects.NodeID `json:"node_ids"`
}

func NewNodesRemoved(projectID valueobjects.ProjectID, nodeIDs []valueobjects.NodeID) NodesRemoved {
	return NodesRemoved{BaseEvent: base(projectID.String(), TypeNodesRemoved), NodeIDs: nodeIDs}
}

// NodeRestored is raised when a failed deletion rolls a node back in.
type NodeRestored struct {
	BaseEvent
	NodeID valueobjects.NodeID `json:"node_id"`
}

func NewNodeRestored(projectID valueobjects.ProjectID, nodeID valueobjects.NodeID) NodeRestored {
	return NodeRestored{BaseEvent: base(projectID.String(), TypeNodeRestored), NodeID: nodeID}
}

// EdgeAdded is raised when two nodes are connected.
type EdgeAdded struct {
	BaseEvent
	EdgeID   string              `json:"edge_id"`
	SourceID valueobjects.NodeID `json:"source_id"`
	TargetID valueobjects.NodeID `json:"target_id"`
}

func NewEdgeAdded(projectID valueobjects.ProjectID, edgeID string, sourceID, targetID valueobjects.NodeID) EdgeAdded {
	return EdgeAdded{BaseEvent: base(projectID.String(), TypeEdgeAdded), EdgeID: edgeID, SourceID: sourceID, TargetID: targetID}
}

// EdgesRemoved is raised when edges are removed.
type EdgesRemoved struct {
	BaseEvent
	EdgeIDs []string `json:"edge_ids"`
}

func NewEdgesRemoved(projectID valueobjects.ProjectID, edgeIDs []string) EdgesRemoved {
	return EdgesRemoved{BaseEvent: base(projectID.String(), TypeEdgesRemoved), EdgeIDs: edgeIDs}
}

// ViewportChanged is raised when the user pans or zooms.
type ViewportChanged struct {
	BaseEvent
	Viewport valueobjects.Viewport `json:"viewport"`
}

func NewViewportChanged(projectID valueobjects.ProjectID, viewport valueobjects.Viewport) ViewportChanged {
	return ViewportChanged{BaseEvent: base(projectID.String(), TypeViewportChanged), Viewport: viewport}
}

// AgentStatusChanged is raised on every agent state machine transition.
type AgentStatusChanged struct {
	BaseEvent
	NodeID valueobjects.NodeID  `json:"node_id"`
	Status entities.AgentStatus `json:"status"`
}

func NewAgentStatusChanged(projectID valueobjects.ProjectID, nodeID valueobjects.NodeID, status entities.AgentStatus) AgentStatusChanged {
	return AgentStatusChanged{BaseEvent: base(projectID.String(), TypeAgentStatusChanged), NodeID: nodeID, Status: status}
}

// GenerationProgressed is raised at each generation progress checkpoint.
type GenerationProgressed struct {
	BaseEvent
	NodeID   valueobjects.NodeID         `json:"node_id"`
	Progress entities.GenerationProgress `json:"progress"`
}

func NewGenerationProgressed(projectID valueobjects.ProjectID, nodeID valueobjects.NodeID, progress entities.GenerationProgress) GenerationProgressed {
	return GenerationProgressed{BaseEvent: base(projectID.String(), TypeGenerationProgressed), NodeID: nodeID, Progress: progress}
}

// GenerationWarning is raised for non-fatal generation outcomes, such as a
// thumbnail image blocked by the provider's safety filter.
type GenerationWarning struct {
	BaseEvent
	NodeID  valueobjects.NodeID `json:"node_id"`
	Message string              `json:"message"`
}

func NewGenerationWarning(projectID valueobjects.ProjectID, nodeID valueobjects.NodeID, message string) GenerationWarning {
	return GenerationWarning{BaseEvent: base(projectID.String(), TypeGenerationWarning), NodeID: nodeID, Message: message}
}
