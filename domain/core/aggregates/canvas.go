package aggregates

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"canvas-backend/domain/config"
	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"
	"canvas-backend/domain/events"
	pkgerrors "canvas-backend/pkg/errors"
)

// Edge is a directed connection between two canvas nodes.
type Edge struct {
	ID           string
	SourceID     valueobjects.NodeID
	TargetID     valueobjects.NodeID
	SourceHandle string
	TargetHandle string
	CreatedAt    time.Time
}

// NewEdge creates an edge with a fresh id.
func NewEdge(sourceID, targetID valueobjects.NodeID, sourceHandle, targetHandle string) *Edge {
	return &Edge{
		ID:           uuid.New().String(),
		SourceID:     sourceID,
		TargetID:     targetID,
		SourceHandle: sourceHandle,
		TargetHandle: targetHandle,
		CreatedAt:    time.Now(),
	}
}

// RemovedNode captures a node and its incident edges at removal time so a
// failed persisted delete can roll the whole thing back.
type RemovedNode struct {
	Node  *entities.Node
	Edges []*Edge
}

// Canvas is the aggregate root for one project's canvas graph.
// It ensures consistency boundaries for nodes, edges, viewport and the flat
// chat log. All operations are synchronous; persistence happens elsewhere.
type Canvas struct {
	mu sync.RWMutex

	projectID  valueobjects.ProjectID
	nodes      map[valueobjects.NodeID]*entities.Node
	edges      map[string]*Edge
	identities *valueobjects.IdentityMap

	viewport    valueobjects.Viewport
	viewportSet bool
	loaded      bool

	chatLog []entities.ChatMessage

	version int
	events  []events.DomainEvent
	config  *config.CanvasConfig
}

// NewCanvas creates an empty canvas aggregate for a project.
func NewCanvas(projectID valueobjects.ProjectID, cfg *config.CanvasConfig) (*Canvas, error) {
	if projectID.IsZero() {
		return nil, pkgerrors.NewValidation("projectID is required")
	}
	if cfg == nil {
		cfg = config.DefaultCanvasConfig()
	}
	return &Canvas{
		projectID:  projectID,
		nodes:      make(map[valueobjects.NodeID]*entities.Node),
		edges:      make(map[string]*Edge),
		identities: valueobjects.NewIdentityMap(),
		viewport:   valueobjects.DefaultViewport(),
		version:    1,
		config:     cfg,
	}, nil
}

// ProjectID returns the owning project's id
func (c *Canvas) ProjectID() valueobjects.ProjectID {
	return c.projectID
}

// Identities returns the persisted-id to node-id map.
func (c *Canvas) Identities() *valueobjects.IdentityMap {
	return c.identities
}

// Version returns the aggregate version counter
func (c *Canvas) Version() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// AddNode adds a node to the canvas
func (c *Canvas) AddNode(node *entities.Node) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.insertNode(node); err != nil {
		return err
	}

	c.version++
	c.addEvent(events.NewNodeAdded(c.projectID, node.ID(), node.Kind()))
	return nil
}

// LoadNode adds a node during reconstruction from storage.
// Unlike AddNode, this doesn't emit events or bump the version.
func (c *Canvas) LoadNode(node *entities.Node) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.insertNode(node)
}

func (c *Canvas) insertNode(node *entities.Node) error {
	if node == nil {
		return pkgerrors.NewValidation("node cannot be nil")
	}
	if _, exists := c.nodes[node.ID()]; exists {
		return pkgerrors.NewConflict("node already exists on canvas")
	}
	if len(c.nodes) >= c.config.MaxNodesPerCanvas {
		return pkgerrors.NewValidation("maximum nodes reached")
	}

	c.nodes[node.ID()] = node
	if foreign, ok := node.ForeignID(); ok {
		if err := c.identities.Bind(foreign, node.ID()); err != nil {
			delete(c.nodes, node.ID())
			return err
		}
	}
	return nil
}

// RemoveNodes removes the given nodes and their incident edges, returning
// what was removed so callers can roll individual nodes back.
func (c *Canvas) RemoveNodes(ids []valueobjects.NodeID) []RemovedNode {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := make([]RemovedNode, 0, len(ids))
	removedIDs := make([]valueobjects.NodeID, 0, len(ids))

	for _, id := range ids {
		node, exists := c.nodes[id]
		if !exists {
			continue
		}

		var incident []*Edge
		for key, edge := range c.edges {
			if edge.SourceID.Equals(id) || edge.TargetID.Equals(id) {
				incident = append(incident, edge)
				delete(c.edges, key)
			}
		}

		delete(c.nodes, id)
		c.identities.Unbind(id)
		removed = append(removed, RemovedNode{Node: node, Edges: incident})
		removedIDs = append(removedIDs, id)
	}

	if len(removedIDs) > 0 {
		c.version++
		c.addEvent(events.NewNodesRemoved(c.projectID, removedIDs))
	}
	return removed
}

// RestoreNode re-inserts a previously removed node and its edges. Edges whose
// other endpoint is gone are dropped rather than restored dangling.
func (c *Canvas) RestoreNode(removed RemovedNode) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if removed.Node == nil {
		return pkgerrors.NewValidation("nothing to restore")
	}
	if err := c.insertNode(removed.Node); err != nil {
		return err
	}

	for _, edge := range removed.Edges {
		_, sourceOK := c.nodes[edge.SourceID]
		_, targetOK := c.nodes[edge.TargetID]
		if sourceOK && targetOK {
			c.edges[edge.ID] = edge
		}
	}

	c.version++
	c.addEvent(events.NewNodeRestored(c.projectID, removed.Node.ID()))
	return nil
}

// UpdateNode merges a patch into a node's payload. Fields absent from the
// patch are untouched.
func (c *Canvas) UpdateNode(id valueobjects.NodeID, patch entities.NodePatch) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, exists := c.nodes[id]
	if !exists {
		return pkgerrors.NewNotFound("node")
	}

	var oldStatus entities.AgentStatus
	if agent, ok := node.Agent(); ok {
		oldStatus = agent.Status
	}
	oldPosition := node.Position()

	if err := node.ApplyPatch(patch); err != nil {
		return err
	}

	c.version++
	c.addEvent(events.NewNodeUpdated(c.projectID, id))

	if !node.Position().Equals(oldPosition) {
		c.addEvent(events.NewNodeMoved(c.projectID, id, node.Position()))
	}
	if agent, ok := node.Agent(); ok {
		if agent.Status != oldStatus {
			c.addEvent(events.NewAgentStatusChanged(c.projectID, id, agent.Status))
		}
		if patch.Agent != nil && patch.Agent.Progress != nil {
			c.addEvent(events.NewGenerationProgressed(c.projectID, id, *patch.Agent.Progress))
		}
	}
	return nil
}

// AddEdge inserts a user-created edge after checking canvas invariants: both
// endpoints must exist, only agent nodes may be targets, self-loops are
// forbidden.
func (c *Canvas) AddEdge(edge *Edge) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.insertEdge(edge); err != nil {
		return err
	}

	target := c.nodes[edge.TargetID]
	if target.Kind() != valueobjects.KindAgent {
		delete(c.edges, edge.ID)
		return pkgerrors.NewValidation("only agent nodes accept incoming connections")
	}

	c.version++
	c.addEvent(events.NewEdgeAdded(c.projectID, edge.ID, edge.SourceID, edge.TargetID))
	return nil
}

// LoadEdge inserts an edge during reconstruction without emitting events.
// Unlike AddEdge it permits derived video→transcription ownership edges.
func (c *Canvas) LoadEdge(edge *Edge) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.insertEdge(edge)
}

func (c *Canvas) insertEdge(edge *Edge) error {
	if edge == nil {
		return pkgerrors.NewValidation("edge cannot be nil")
	}
	if edge.SourceID.Equals(edge.TargetID) {
		return pkgerrors.NewValidation("cannot connect node to itself")
	}

	_, sourceExists := c.nodes[edge.SourceID]
	_, targetExists := c.nodes[edge.TargetID]
	if !sourceExists || !targetExists {
		return pkgerrors.NewValidation("both nodes must exist on canvas")
	}
	if _, exists := c.edges[edge.ID]; exists {
		return pkgerrors.NewConflict("edge already exists")
	}
	if len(c.edges) >= c.config.MaxEdgesPerCanvas {
		return pkgerrors.NewValidation("maximum edges reached")
	}

	c.edges[edge.ID] = edge
	return nil
}

// RemoveEdges removes edges by id. Unknown ids are ignored.
func (c *Canvas) RemoveEdges(ids []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, exists := c.edges[id]; exists {
			delete(c.edges, id)
			removed = append(removed, id)
		}
	}

	if len(removed) > 0 {
		c.version++
		c.addEvent(events.NewEdgesRemoved(c.projectID, removed))
	}
}

// FindNode retrieves a node by id
func (c *Canvas) FindNode(id valueobjects.NodeID) (*entities.Node, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	node, exists := c.nodes[id]
	if !exists {
		return nil, pkgerrors.NewNotFound("node")
	}
	return node, nil
}

// HasNode checks if a node exists without error
func (c *Canvas) HasNode(id valueobjects.NodeID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, exists := c.nodes[id]
	return exists
}

// Nodes returns all nodes sorted by id for deterministic iteration.
func (c *Canvas) Nodes() []*entities.Node {
	c.mu.RLock()
	defer c.mu.RUnlock()

	nodes := make([]*entities.Node, 0, len(c.nodes))
	for _, node := range c.nodes {
		nodes = append(nodes, node)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID() < nodes[j].ID() })
	return nodes
}

// Edges returns all edges sorted by id for deterministic iteration.
func (c *Canvas) Edges() []*Edge {
	c.mu.RLock()
	defer c.mu.RUnlock()

	edges := make([]*Edge, 0, len(c.edges))
	for _, edge := range c.edges {
		edges = append(edges, edge)
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })
	return edges
}

// EdgesInto returns all edges whose target is the given node.
func (c *Canvas) EdgesInto(id valueobjects.NodeID) []*Edge {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var result []*Edge
	for _, edge := range c.edges {
		if edge.TargetID.Equals(id) {
			result = append(result, edge)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// EdgesFrom returns all edges whose source is the given node.
func (c *Canvas) EdgesFrom(id valueobjects.NodeID) []*Edge {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var result []*Edge
	for _, edge := range c.edges {
		if edge.SourceID.Equals(id) {
			result = append(result, edge)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// ConnectionsFor computes, from graph truth, the persisted foreign ids of all
// nodes with an edge into the given agent node. Used for reconciliation.
func (c *Canvas) ConnectionsFor(agentNodeID valueobjects.NodeID) []valueobjects.ForeignID {
	edges := c.EdgesInto(agentNodeID)

	result := make([]valueobjects.ForeignID, 0, len(edges))
	for _, edge := range edges {
		if foreign, ok := c.identities.ForeignFor(edge.SourceID); ok {
			result = append(result, foreign)
		}
	}
	return result
}

// SetViewport records a pan/zoom change.
func (c *Canvas) SetViewport(v valueobjects.Viewport) error {
	if err := v.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.viewport = v
	c.viewportSet = true
	c.addEvent(events.NewViewportChanged(c.projectID, v))
	return nil
}

// Viewport returns the current viewport and whether it was ever initialized.
func (c *Canvas) Viewport() (valueobjects.Viewport, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.viewport, c.viewportSet
}

// LoadViewport sets the viewport during reconstruction without emitting events.
func (c *Canvas) LoadViewport(v valueobjects.Viewport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.viewport = v
	c.viewportSet = true
}

// MarkLoaded records that reconstruction from storage has completed.
// Reconstruction runs at most once per session.
func (c *Canvas) MarkLoaded() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = true
}

// IsLoaded reports whether reconstruction has completed.
func (c *Canvas) IsLoaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// LoadChatLog replaces the flat chat log during reconstruction.
func (c *Canvas) LoadChatLog(messages []entities.ChatMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.chatLog = make([]entities.ChatMessage, len(messages))
	copy(c.chatLog, messages)
	sort.SliceStable(c.chatLog, func(i, j int) bool {
		return c.chatLog[i].Timestamp.Before(c.chatLog[j].Timestamp)
	})
}

// AppendChat adds a message to the flat chat log.
func (c *Canvas) AppendChat(message entities.ChatMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chatLog = append(c.chatLog, message)
}

// ChatLog returns a copy of the flat, timestamp-sorted chat log.
func (c *Canvas) ChatLog() []entities.ChatMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()

	log := make([]entities.ChatMessage, len(c.chatLog))
	copy(log, c.chatLog)
	return log
}

// Validate ensures canvas invariants: no dangling edges, and every edge
// either targets an agent or is a derived video→transcription ownership link.
func (c *Canvas) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, edge := range c.edges {
		source, ok := c.nodes[edge.SourceID]
		if !ok {
			return pkgerrors.NewValidation("edge references non-existent source node")
		}
		target, ok := c.nodes[edge.TargetID]
		if !ok {
			return pkgerrors.NewValidation("edge references non-existent target node")
		}
		if target.Kind() == valueobjects.KindAgent {
			continue
		}
		if source.Kind() == valueobjects.KindVideo && target.Kind() == valueobjects.KindTranscription {
			continue
		}
		return pkgerrors.NewValidation("edge targets a non-agent node")
	}
	return nil
}

// GetUncommittedEvents returns all uncommitted domain events
func (c *Canvas) GetUncommittedEvents() []events.DomainEvent {
	c.mu.RLock()
	defer c.mu.RUnlock()

	all := make([]events.DomainEvent, len(c.events))
	copy(all, c.events)
	return all
}

// MarkEventsAsCommitted clears the uncommitted events
func (c *Canvas) MarkEventsAsCommitted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}

// DrainEvents atomically returns and clears the uncommitted events.
func (c *Canvas) DrainEvents() []events.DomainEvent {
	c.mu.Lock()
	defer c.mu.Unlock()

	drained := c.events
	c.events = nil
	return drained
}

func (c *Canvas) addEvent(event events.DomainEvent) {
	c.events = append(c.events, event)
}
