package ports

import (
	"context"
	"time"

	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"
	"canvas-backend/domain/events"
)

// VideoRecord is the persisted shape of a video in the backing store.
type VideoRecord struct {
	ID                 valueobjects.VideoID
	ProjectID          valueobjects.ProjectID
	Title              string
	MediaURL           string
	Duration           float64
	TranscriptionState entities.TranscriptionState
	TranscriptionText  string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// AgentRecord is the persisted shape of an agent in the backing store.
// Position is NOT here: layout belongs to the canvas snapshot.
type AgentRecord struct {
	ID           valueobjects.AgentID
	ProjectID    valueobjects.ProjectID
	Type         entities.AgentType
	Status       entities.AgentStatus
	Draft        string
	ThumbnailURL string
	StorageID    string
	Connections  []valueobjects.ForeignID
	LastPrompt   string
	ChatHistory  []entities.ChatMessage
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TranscriptionRecord is the persisted shape of a manually uploaded transcription.
type TranscriptionRecord struct {
	ID        valueobjects.TranscriptionID
	ProjectID valueobjects.ProjectID
	VideoID   valueobjects.VideoID
	FileName  string
	Format    string
	FullText  string
	Segments  []entities.Segment
	WordCount int
	Duration  float64
	CreatedAt time.Time
}

// SnapshotNode is one node's layout entry in the canvas snapshot. Only mood
// boards carry content here; every other kind is rebuilt from its record.
type SnapshotNode struct {
	ID        valueobjects.NodeID        `json:"id"`
	Kind      valueobjects.NodeKind      `json:"kind"`
	Position  valueobjects.Position      `json:"position"`
	MoodBoard *entities.MoodBoardPayload `json:"mood_board,omitempty"`
}

// SnapshotEdge is one edge entry in the canvas snapshot.
type SnapshotEdge struct {
	ID           string              `json:"id"`
	SourceID     valueobjects.NodeID `json:"source_id"`
	TargetID     valueobjects.NodeID `json:"target_id"`
	SourceHandle string              `json:"source_handle,omitempty"`
	TargetHandle string              `json:"target_handle,omitempty"`
}

// CanvasSnapshot is the persisted layout document for one project's canvas.
type CanvasSnapshot struct {
	ProjectID valueobjects.ProjectID `json:"project_id"`
	Nodes     []SnapshotNode         `json:"nodes"`
	Edges     []SnapshotEdge         `json:"edges"`
	Viewport  *valueobjects.Viewport `json:"viewport,omitempty"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// VideoRepository defines the interface for video record persistence
type VideoRepository interface {
	// ListByProject retrieves all video records for a project
	ListByProject(ctx context.Context, projectID valueobjects.ProjectID) ([]VideoRecord, error)

	// FindByID retrieves a single video record
	FindByID(ctx context.Context, projectID valueobjects.ProjectID, id valueobjects.VideoID) (*VideoRecord, error)

	// Save persists a video record (create or update)
	Save(ctx context.Context, record VideoRecord) error

	// Delete removes a video record
	Delete(ctx context.Context, projectID valueobjects.ProjectID, id valueobjects.VideoID) error
}

// AgentRepository defines the interface for agent record persistence
type AgentRepository interface {
	// ListByProject retrieves all agent records for a project
	ListByProject(ctx context.Context, projectID valueobjects.ProjectID) ([]AgentRecord, error)

	// FindByID retrieves a single agent record
	FindByID(ctx context.Context, projectID valueobjects.ProjectID, id valueobjects.AgentID) (*AgentRecord, error)

	// Save persists an agent record (create or update)
	Save(ctx context.Context, record AgentRecord) error

	// UpdateConnections overwrites only the connections list of an agent record
	UpdateConnections(ctx context.Context, projectID valueobjects.ProjectID, id valueobjects.AgentID, connections []valueobjects.ForeignID) error

	// Delete removes an agent record
	Delete(ctx context.Context, projectID valueobjects.ProjectID, id valueobjects.AgentID) error
}

// TranscriptionRepository defines the interface for transcription record persistence
type TranscriptionRepository interface {
	// ListByProject retrieves all transcription records for a project
	ListByProject(ctx context.Context, projectID valueobjects.ProjectID) ([]TranscriptionRecord, error)

	// FindByID retrieves a single transcription record
	FindByID(ctx context.Context, projectID valueobjects.ProjectID, id valueobjects.TranscriptionID) (*TranscriptionRecord, error)

	// Save persists a transcription record
	Save(ctx context.Context, record TranscriptionRecord) error

	// Delete removes a transcription record
	Delete(ctx context.Context, projectID valueobjects.ProjectID, id valueobjects.TranscriptionID) error
}

// SnapshotRepository defines the interface for canvas snapshot persistence
type SnapshotRepository interface {
	// Load retrieves the snapshot for a project, nil when none was ever saved
	Load(ctx context.Context, projectID valueobjects.ProjectID) (*CanvasSnapshot, error)

	// Save overwrites the snapshot for a project
	Save(ctx context.Context, snapshot CanvasSnapshot) error

	// SaveViewport overwrites only the viewport of a project's snapshot
	SaveViewport(ctx context.Context, projectID valueobjects.ProjectID, viewport valueobjects.Viewport) error
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}
