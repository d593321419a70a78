// Package memory provides in-memory repository implementations, used in
// tests and local development.
package memory

import (
	"context"
	"sync"

	"canvas-backend/application/ports"
	"canvas-backend/domain/core/valueobjects"
	pkgerrors "canvas-backend/pkg/errors"
)

// VideoRepository is an in-memory ports.VideoRepository. FailWith, when set,
// makes every call return that error; tests use it to exercise failure paths.
type VideoRepository struct {
	mu       sync.RWMutex
	records  map[valueobjects.VideoID]ports.VideoRecord
	FailWith error
}

// NewVideoRepository creates an empty in-memory video repository.
func NewVideoRepository() *VideoRepository {
	return &VideoRepository{records: make(map[valueobjects.VideoID]ports.VideoRecord)}
}

func (r *VideoRepository) ListByProject(ctx context.Context, projectID valueobjects.ProjectID) ([]ports.VideoRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.FailWith != nil {
		return nil, r.FailWith
	}

	var out []ports.VideoRecord
	for _, record := range r.records {
		if record.ProjectID == projectID {
			out = append(out, record)
		}
	}
	return out, nil
}

func (r *VideoRepository) FindByID(ctx context.Context, projectID valueobjects.ProjectID, id valueobjects.VideoID) (*ports.VideoRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.FailWith != nil {
		return nil, r.FailWith
	}

	record, ok := r.records[id]
	if !ok || record.ProjectID != projectID {
		return nil, pkgerrors.NewNotFound("video")
	}
	return &record, nil
}

func (r *VideoRepository) Save(ctx context.Context, record ports.VideoRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWith != nil {
		return r.FailWith
	}
	r.records[record.ID] = record
	return nil
}

func (r *VideoRepository) Delete(ctx context.Context, projectID valueobjects.ProjectID, id valueobjects.VideoID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWith != nil {
		return r.FailWith
	}
	delete(r.records, id)
	return nil
}

// AgentRepository is an in-memory ports.AgentRepository.
type AgentRepository struct {
	mu       sync.RWMutex
	records  map[valueobjects.AgentID]ports.AgentRecord
	FailWith error
}

// NewAgentRepository creates an empty in-memory agent repository.
func NewAgentRepository() *AgentRepository {
	return &AgentRepository{records: make(map[valueobjects.AgentID]ports.AgentRecord)}
}

func (r *AgentRepository) ListByProject(ctx context.Context, projectID valueobjects.ProjectID) ([]ports.AgentRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.FailWith != nil {
		return nil, r.FailWith
	}

	var out []ports.AgentRecord
	for _, record := range r.records {
		if record.ProjectID == projectID {
			out = append(out, record)
		}
	}
	return out, nil
}

func (r *AgentRepository) FindByID(ctx context.Context, projectID valueobjects.ProjectID, id valueobjects.AgentID) (*ports.AgentRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.FailWith != nil {
		return nil, r.FailWith
	}

	record, ok := r.records[id]
	if !ok || record.ProjectID != projectID {
		return nil, pkgerrors.NewNotFound("agent")
	}
	return &record, nil
}

func (r *AgentRepository) Save(ctx context.Context, record ports.AgentRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWith != nil {
		return r.FailWith
	}
	r.records[record.ID] = record
	return nil
}

func (r *AgentRepository) UpdateConnections(ctx context.Context, projectID valueobjects.ProjectID, id valueobjects.AgentID, connections []valueobjects.ForeignID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWith != nil {
		return r.FailWith
	}

	record, ok := r.records[id]
	if !ok || record.ProjectID != projectID {
		return pkgerrors.NewNotFound("agent")
	}
	record.Connections = append([]valueobjects.ForeignID(nil), connections...)
	r.records[id] = record
	return nil
}

func (r *AgentRepository) Delete(ctx context.Context, projectID valueobjects.ProjectID, id valueobjects.AgentID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWith != nil {
		return r.FailWith
	}
	delete(r.records, id)
	return nil
}

// TranscriptionRepository is an in-memory ports.TranscriptionRepository.
type TranscriptionRepository struct {
	mu       sync.RWMutex
	records  map[valueobjects.TranscriptionID]ports.TranscriptionRecord
	FailWith error
}

// NewTranscriptionRepository creates an empty in-memory transcription repository.
func NewTranscriptionRepository() *TranscriptionRepository {
	return &TranscriptionRepository{records: make(map[valueobjects.TranscriptionID]ports.TranscriptionRecord)}
}

func (r *TranscriptionRepository) ListByProject(ctx context.Context, projectID valueobjects.ProjectID) ([]ports.TranscriptionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.FailWith != nil {
		return nil, r.FailWith
	}

	var out []ports.TranscriptionRecord
	for _, record := range r.records {
		if record.ProjectID == projectID {
			out = append(out, record)
		}
	}
	return out, nil
}

func (r *TranscriptionRepository) FindByID(ctx context.Context, projectID valueobjects.ProjectID, id valueobjects.TranscriptionID) (*ports.TranscriptionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.FailWith != nil {
		return nil, r.FailWith
	}

	record, ok := r.records[id]
	if !ok || record.ProjectID != projectID {
		return nil, pkgerrors.NewNotFound("transcription")
	}
	return &record, nil
}

func (r *TranscriptionRepository) Save(ctx context.Context, record ports.TranscriptionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWith != nil {
		return r.FailWith
	}
	r.records[record.ID] = record
	return nil
}

func (r *TranscriptionRepository) Delete(ctx context.Context, projectID valueobjects.ProjectID, id valueobjects.TranscriptionID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWith != nil {
		return r.FailWith
	}
	delete(r.records, id)
	return nil
}

// SnapshotRepository is an in-memory ports.SnapshotRepository.
type SnapshotRepository struct {
	mu        sync.RWMutex
	snapshots map[valueobjects.ProjectID]ports.CanvasSnapshot
	FailWith  error

	// SaveCount tracks writes for debounce coalescing assertions.
	SaveCount         int
	ViewportSaveCount int
}

// NewSnapshotRepository creates an empty in-memory snapshot repository.
func NewSnapshotRepository() *SnapshotRepository {
	return &SnapshotRepository{snapshots: make(map[valueobjects.ProjectID]ports.CanvasSnapshot)}
}

func (r *SnapshotRepository) Load(ctx context.Context, projectID valueobjects.ProjectID) (*ports.CanvasSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.FailWith != nil {
		return nil, r.FailWith
	}

	snapshot, ok := r.snapshots[projectID]
	if !ok {
		return nil, nil
	}
	return &snapshot, nil
}

func (r *SnapshotRepository) Save(ctx context.Context, snapshot ports.CanvasSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWith != nil {
		return r.FailWith
	}
	r.SaveCount++
	r.snapshots[snapshot.ProjectID] = snapshot
	return nil
}

func (r *SnapshotRepository) SaveViewport(ctx context.Context, projectID valueobjects.ProjectID, viewport valueobjects.Viewport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWith != nil {
		return r.FailWith
	}

	r.ViewportSaveCount++
	snapshot := r.snapshots[projectID]
	snapshot.ProjectID = projectID
	v := viewport
	snapshot.Viewport = &v
	r.snapshots[projectID] = snapshot
	return nil
}
