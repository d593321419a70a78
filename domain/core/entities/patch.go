package entities

import (
	"canvas-backend/domain/core/valueobjects"
	pkgerrors "canvas-backend/pkg/errors"
)

// NodePatch is a partial update to a node. Nil fields are left untouched,
// which is what preserves an agent's connections across unrelated updates.
type NodePatch struct {
	Position *valueobjects.Position

	Video         *VideoPatch
	Transcription *TranscriptionPatch
	MoodBoard     *MoodBoardPatch
	Agent         *AgentPatch
}

func (p NodePatch) validateFor(kind valueobjects.NodeKind) error {
	mismatch := func(have string) error {
		return pkgerrors.NewValidation("patch carries " + have + " fields for a " + string(kind) + " node")
	}
	if p.Video != nil && kind != valueobjects.KindVideo {
		return mismatch("video")
	}
	if p.Transcription != nil && kind != valueobjects.KindTranscription {
		return mismatch("transcription")
	}
	if p.MoodBoard != nil && kind != valueobjects.KindMoodBoard {
		return mismatch("moodboard")
	}
	if p.Agent != nil && kind != valueobjects.KindAgent {
		return mismatch("agent")
	}
	return nil
}

// VideoPatch updates video payload fields.
type VideoPatch struct {
	Title              *string
	MediaURL           *string
	Duration           *float64
	TranscriptionState *TranscriptionState
	TranscriptionText  *string
}

func (p *VideoPatch) apply(v *VideoPayload) bool {
	changed := false
	if p.Title != nil && *p.Title != v.Title {
		v.Title = *p.Title
		changed = true
	}
	if p.MediaURL != nil && *p.MediaURL != v.MediaURL {
		v.MediaURL = *p.MediaURL
		changed = true
	}
	if p.Duration != nil && *p.Duration != v.Duration {
		v.Duration = *p.Duration
		changed = true
	}
	if p.TranscriptionState != nil && *p.TranscriptionState != v.TranscriptionState {
		v.TranscriptionState = *p.TranscriptionState
		changed = true
	}
	if p.TranscriptionText != nil && *p.TranscriptionText != v.TranscriptionText {
		v.TranscriptionText = *p.TranscriptionText
		changed = true
	}
	return changed
}

// TranscriptionPatch updates transcription payload fields.
type TranscriptionPatch struct {
	InUse *bool
}

func (p *TranscriptionPatch) apply(t *TranscriptionPayload) bool {
	changed := false
	if p.InUse != nil && *p.InUse != t.InUse {
		t.InUse = *p.InUse
		changed = true
	}
	return changed
}

// MoodBoardPatch updates mood board payload fields.
type MoodBoardPatch struct {
	Items *[]MoodItem
	InUse *bool
}

func (p *MoodBoardPatch) apply(m *MoodBoardPayload) bool {
	changed := false
	if p.Items != nil {
		m.Items = cloneMoodItems(*p.Items)
		changed = true
	}
	if p.InUse != nil && *p.InUse != m.InUse {
		m.InUse = *p.InUse
		changed = true
	}
	return changed
}

// AgentPatch updates agent payload fields. ClearProgress distinguishes
// "remove the progress indicator" from "leave it alone".
type AgentPatch struct {
	Draft         *string
	ThumbnailURL  *string
	StorageID     *string
	Status        *AgentStatus
	Connections   *[]valueobjects.ForeignID
	Progress      *GenerationProgress
	ClearProgress bool
	LastPrompt    *string
	AppendChat    []ChatMessage
}

func (p *AgentPatch) apply(a *AgentPayload) bool {
	changed := false
	if p.Draft != nil && *p.Draft != a.Draft {
		a.Draft = *p.Draft
		changed = true
	}
	if p.ThumbnailURL != nil && *p.ThumbnailURL != a.ThumbnailURL {
		a.ThumbnailURL = *p.ThumbnailURL
		changed = true
	}
	if p.StorageID != nil && *p.StorageID != a.StorageID {
		a.StorageID = *p.StorageID
		changed = true
	}
	if p.Status != nil && *p.Status != a.Status {
		a.Status = *p.Status
		changed = true
	}
	if p.Connections != nil {
		a.Connections = cloneConnections(*p.Connections)
		changed = true
	}
	if p.Progress != nil {
		a.Progress = cloneProgress(p.Progress)
		changed = true
	} else if p.ClearProgress && a.Progress != nil {
		a.Progress = nil
		changed = true
	}
	if p.LastPrompt != nil && *p.LastPrompt != a.LastPrompt {
		a.LastPrompt = *p.LastPrompt
		changed = true
	}
	if len(p.AppendChat) > 0 {
		a.ChatHistory = append(a.ChatHistory, p.AppendChat...)
		changed = true
	}
	return changed
}
