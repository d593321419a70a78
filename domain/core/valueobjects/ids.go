package valueobjects

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	pkgerrors "canvas-backend/pkg/errors"
)

// NodeKind identifies the variant of a canvas node.
type NodeKind string

const (
	KindVideo         NodeKind = "video"
	KindTranscription NodeKind = "transcription"
	KindMoodBoard     NodeKind = "moodboard"
	KindAgent         NodeKind = "agent"
)

// IsValid reports whether the kind is one of the known variants.
func (k NodeKind) IsValid() bool {
	switch k {
	case KindVideo, KindTranscription, KindMoodBoard, KindAgent:
		return true
	}
	return false
}

// Prefix returns the id prefix used to derive node ids for this kind.
func (k NodeKind) Prefix() string {
	return string(k) + "-"
}

// tempPrefix marks node ids that exist before a persisted record does.
const tempPrefix = "temp-"

// NodeID is the canvas-local identifier of a node. Ids are derived
// deterministically from the kind prefix and the persisted record id so that
// rehydration from storage is idempotent.
type NodeID string

// DeriveNodeID builds the node id for a persisted record.
func DeriveNodeID(kind NodeKind, persistedID ForeignID) NodeID {
	return NodeID(kind.Prefix() + string(persistedID))
}

// NewTempNodeID creates a node id for a node that has no persisted record yet.
func NewTempNodeID(kind NodeKind) NodeID {
	return NodeID(tempPrefix + string(kind) + "-" + uuid.New().String())
}

// String returns the string representation
func (id NodeID) String() string {
	return string(id)
}

// IsZero checks if the id is empty
func (id NodeID) IsZero() bool {
	return id == ""
}

// IsTemp reports whether the id belongs to a not-yet-persisted node.
func (id NodeID) IsTemp() bool {
	return strings.HasPrefix(string(id), tempPrefix)
}

// Equals checks if two node ids are equal
func (id NodeID) Equals(other NodeID) bool {
	return id == other
}

// ForeignID is the persisted record id a node mirrors (video, agent or
// transcription record id). Agent connection lists hold foreign ids.
type ForeignID string

// String returns the string representation
func (id ForeignID) String() string {
	return string(id)
}

// IsZero checks if the id is empty
func (id ForeignID) IsZero() bool {
	return id == ""
}

// Typed record ids for the three backing collections plus the owning project.

type VideoID string

func NewVideoID() VideoID { return VideoID(uuid.New().String()) }

func (id VideoID) String() string     { return string(id) }
func (id VideoID) IsZero() bool       { return id == "" }
func (id VideoID) Foreign() ForeignID { return ForeignID(id) }

type AgentID string

func NewAgentID() AgentID { return AgentID(uuid.New().String()) }

func (id AgentID) String() string     { return string(id) }
func (id AgentID) IsZero() bool       { return id == "" }
func (id AgentID) Foreign() ForeignID { return ForeignID(id) }

type TranscriptionID string

func NewTranscriptionID() TranscriptionID { return TranscriptionID(uuid.New().String()) }

func (id TranscriptionID) String() string     { return string(id) }
func (id TranscriptionID) IsZero() bool       { return id == "" }
func (id TranscriptionID) Foreign() ForeignID { return ForeignID(id) }

type ProjectID string

func NewProjectID() ProjectID { return ProjectID(uuid.New().String()) }

func (id ProjectID) String() string { return string(id) }
func (id ProjectID) IsZero() bool   { return id == "" }

// IdentityMap is the explicit bidirectional mapping between persisted record
// ids and canvas node ids. It is built once at load and queried afterwards;
// consumers never re-parse id strings to resolve a record.
type IdentityMap struct {
	mu        sync.RWMutex
	byForeign map[ForeignID]NodeID
	byNode    map[NodeID]ForeignID
}

// NewIdentityMap creates an empty identity map
func NewIdentityMap() *IdentityMap {
	return &IdentityMap{
		byForeign: make(map[ForeignID]NodeID),
		byNode:    make(map[NodeID]ForeignID),
	}
}

// Bind records the mapping between a persisted id and a node id.
func (m *IdentityMap) Bind(foreign ForeignID, node NodeID) error {
	if foreign.IsZero() || node.IsZero() {
		return pkgerrors.NewValidation("identity binding requires both ids")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.byForeign[foreign] = node
	m.byNode[node] = foreign
	return nil
}

// NodeFor resolves the node id for a persisted record id.
func (m *IdentityMap) NodeFor(foreign ForeignID) (NodeID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	node, ok := m.byForeign[foreign]
	return node, ok
}

// ForeignFor resolves the persisted record id for a node id.
func (m *IdentityMap) ForeignFor(node NodeID) (ForeignID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	foreign, ok := m.byNode[node]
	return foreign, ok
}

// Unbind removes the mapping for a node, if any.
func (m *IdentityMap) Unbind(node NodeID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if foreign, ok := m.byNode[node]; ok {
		delete(m.byForeign, foreign)
		delete(m.byNode, node)
	}
}

// Len returns the number of bindings
func (m *IdentityMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byNode)
}
