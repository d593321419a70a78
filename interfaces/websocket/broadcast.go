package websocket

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	appevents "canvas-backend/application/events"
	"canvas-backend/domain/events"
)

// EventType represents WebSocket event types
type EventType string

const (
	// System events
	EventConnectionEstablished EventType = "CONNECTION_ESTABLISHED"
	EventPing                  EventType = "PING"
	EventPong                  EventType = "PONG"
	EventError                 EventType = "ERROR"

	// Canvas events
	EventNodeAdded       EventType = "NODE_ADDED"
	EventNodeUpdated     EventType = "NODE_UPDATED"
	EventNodeMoved       EventType = "NODE_MOVED"
	EventNodesRemoved    EventType = "NODES_REMOVED"
	EventNodeRestored    EventType = "NODE_RESTORED"
	EventEdgeAdded       EventType = "EDGE_ADDED"
	EventEdgesRemoved    EventType = "EDGES_REMOVED"
	EventViewportChanged EventType = "VIEWPORT_CHANGED"

	// Agent events
	EventAgentStatus        EventType = "AGENT_STATUS_CHANGED"
	EventGenerationProgress EventType = "GENERATION_PROGRESS"
	EventGenerationWarning  EventType = "GENERATION_WARNING"
)

// Broadcaster fans domain events out to the WebSocket clients viewing the
// affected project. It runs as a low-priority event handler so persistence
// handlers see events first.
type Broadcaster struct {
	appevents.BaseEventHandler
	hub    *Hub
	logger *zap.Logger
}

// BroadcastEventTypes lists the domain event types the broadcaster relays.
var BroadcastEventTypes = []string{
	events.TypeNodeAdded,
	events.TypeNodeUpdated,
	events.TypeNodeMoved,
	events.TypeNodesRemoved,
	events.TypeNodeRestored,
	events.TypeEdgeAdded,
	events.TypeEdgesRemoved,
	events.TypeViewportChanged,
	events.TypeAgentStatusChanged,
	events.TypeGenerationProgressed,
	events.TypeGenerationWarning,
}

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(hub *Hub, logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		BaseEventHandler: appevents.NewBaseEventHandler("websocket-broadcast", 50, BroadcastEventTypes),
		hub:              hub,
		logger:           logger,
	}
}

// RegisterWith subscribes the broadcaster to all relayed event types.
func (b *Broadcaster) RegisterWith(registry *appevents.HandlerRegistry) error {
	return registry.Register(BroadcastEventTypes, b)
}

// Handle relays a domain event to the project's WebSocket clients.
func (b *Broadcaster) Handle(ctx context.Context, event events.DomainEvent) error {
	eventType, data := translate(event)
	if eventType == "" {
		b.logger.Debug("Unknown event type, not broadcasting",
			zap.String("eventType", fmt.Sprintf("%T", event)),
		)
		return nil
	}

	b.broadcastToProject(event.GetAggregateID(), eventType, data)
	return nil
}

// translate maps a domain event to its wire type and payload.
func translate(event events.DomainEvent) (EventType, map[string]interface{}) {
	switch e := event.(type) {
	case events.NodeAdded:
		return EventNodeAdded, map[string]interface{}{
			"nodeId":  e.NodeID.String(),
			"kind":    string(e.Kind),
			"addedAt": e.Timestamp.Format(time.RFC3339),
		}
	case events.NodeUpdated:
		return EventNodeUpdated, map[string]interface{}{
			"nodeId":    e.NodeID.String(),
			"updatedAt": e.Timestamp.Format(time.RFC3339),
		}
	case events.NodeMoved:
		return EventNodeMoved, map[string]interface{}{
			"nodeId":   e.NodeID.String(),
			"position": e.NewPosition,
		}
	case events.NodesRemoved:
		ids := make([]string, len(e.NodeIDs))
		for i, id := range e.NodeIDs {
			ids[i] = id.String()
		}
		return EventNodesRemoved, map[string]interface{}{
			"nodeIds":   ids,
			"removedAt": e.Timestamp.Format(time.RFC3339),
		}
	case events.NodeRestored:
		return EventNodeRestored, map[string]interface{}{
			"nodeId": e.NodeID.String(),
		}
	case events.EdgeAdded:
		return EventEdgeAdded, map[string]interface{}{
			"edgeId":   e.EdgeID,
			"sourceId": e.SourceID.String(),
			"targetId": e.TargetID.String(),
		}
	case events.EdgesRemoved:
		return EventEdgesRemoved, map[string]interface{}{
			"edgeIds": e.EdgeIDs,
		}
	case events.ViewportChanged:
		return EventViewportChanged, map[string]interface{}{
			"viewport": e.Viewport,
		}
	case events.AgentStatusChanged:
		return EventAgentStatus, map[string]interface{}{
			"nodeId": e.NodeID.String(),
			"status": string(e.Status),
		}
	case events.GenerationProgressed:
		return EventGenerationProgress, map[string]interface{}{
			"nodeId":  e.NodeID.String(),
			"stage":   e.Progress.Stage,
			"percent": e.Progress.Percent,
		}
	case events.GenerationWarning:
		return EventGenerationWarning, map[string]interface{}{
			"nodeId":  e.NodeID.String(),
			"message": e.Message,
		}
	default:
		return "", nil
	}
}

// broadcastToProject sends a message to all viewers of a project
func (b *Broadcaster) broadcastToProject(projectID string, eventType EventType, data interface{}) {
	if projectID == "" {
		b.logger.Warn("Cannot broadcast to empty project ID",
			zap.String("eventType", string(eventType)),
		)
		return
	}

	err := b.hub.SendToProject(projectID, string(eventType), data)
	if err != nil {
		b.logger.Error("Failed to broadcast event",
			zap.String("projectId", projectID),
			zap.String("eventType", string(eventType)),
			zap.Error(err),
		)
	}
}

// BroadcastError sends an error message to a project's viewers
func (b *Broadcaster) BroadcastError(projectID string, errorMessage string, details map[string]interface{}) {
	data := map[string]interface{}{
		"error":     errorMessage,
		"details":   details,
		"timestamp": time.Now().Unix(),
	}

	b.broadcastToProject(projectID, EventError, data)
}
