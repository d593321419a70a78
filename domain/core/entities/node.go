package entities

import (
	"time"

	"canvas-backend/domain/core/valueobjects"
	pkgerrors "canvas-backend/pkg/errors"
)

// Node is a canvas node: one kind-tagged payload at a position.
// This is a rich domain model with encapsulated business logic; the payload
// is a tagged union and consumers switch exhaustively on Kind.
type Node struct {
	// Private fields ensure encapsulation
	id       valueobjects.NodeID
	kind     valueobjects.NodeKind
	position valueobjects.Position

	// Exactly one of these is non-nil, matching kind.
	video         *VideoPayload
	transcription *TranscriptionPayload
	moodBoard     *MoodBoardPayload
	agent         *AgentPayload

	createdAt time.Time
	updatedAt time.Time
	version   int
}

// NewVideoNode creates a video node for a persisted video record.
func NewVideoNode(payload VideoPayload, position valueobjects.Position) (*Node, error) {
	if payload.VideoID.IsZero() {
		return nil, pkgerrors.NewValidation("video node requires a persisted video id")
	}
	if payload.TranscriptionState == "" {
		payload.TranscriptionState = TranscriptionNone
	}
	return newNode(
		valueobjects.DeriveNodeID(valueobjects.KindVideo, payload.VideoID.Foreign()),
		valueobjects.KindVideo,
		position,
		func(n *Node) { n.video = &payload },
	), nil
}

// NewTranscriptionNode creates a transcription node for a persisted record.
func NewTranscriptionNode(payload TranscriptionPayload, position valueobjects.Position) (*Node, error) {
	if payload.TranscriptionID.IsZero() {
		return nil, pkgerrors.NewValidation("transcription node requires a persisted transcription id")
	}
	payload.Segments = cloneSegments(payload.Segments)
	return newNode(
		valueobjects.DeriveNodeID(valueobjects.KindTranscription, payload.TranscriptionID.Foreign()),
		valueobjects.KindTranscription,
		position,
		func(n *Node) { n.transcription = &payload },
	), nil
}

// NewMoodBoardNode creates a mood board node. Mood boards have no persisted
// record of their own; they live in the canvas snapshot, so the id is temporary.
func NewMoodBoardNode(payload MoodBoardPayload, position valueobjects.Position) *Node {
	payload.Items = cloneMoodItems(payload.Items)
	return newNode(
		valueobjects.NewTempNodeID(valueobjects.KindMoodBoard),
		valueobjects.KindMoodBoard,
		position,
		func(n *Node) { n.moodBoard = &payload },
	)
}

// NewAgentNode creates an agent node for a persisted agent record.
func NewAgentNode(payload AgentPayload, position valueobjects.Position) (*Node, error) {
	if payload.AgentID.IsZero() {
		return nil, pkgerrors.NewValidation("agent node requires a persisted agent id")
	}
	if !payload.Type.IsValid() {
		return nil, pkgerrors.NewValidation("unknown agent type: " + string(payload.Type))
	}
	if payload.Status == "" {
		payload.Status = AgentIdle
	}
	payload.Connections = cloneConnections(payload.Connections)
	payload.ChatHistory = cloneChatHistory(payload.ChatHistory)
	return newNode(
		valueobjects.DeriveNodeID(valueobjects.KindAgent, payload.AgentID.Foreign()),
		valueobjects.KindAgent,
		position,
		func(n *Node) { n.agent = &payload },
	), nil
}

// ReconstructMoodBoardNode rebuilds a mood board node from a snapshot with its
// original id preserved, keeping rehydration idempotent.
func ReconstructMoodBoardNode(id valueobjects.NodeID, payload MoodBoardPayload, position valueobjects.Position) (*Node, error) {
	if id.IsZero() {
		return nil, pkgerrors.NewValidation("node id is required for reconstruction")
	}
	payload.Items = cloneMoodItems(payload.Items)
	payload.InUse = false
	return newNode(id, valueobjects.KindMoodBoard, position, func(n *Node) { n.moodBoard = &payload }), nil
}

func newNode(id valueobjects.NodeID, kind valueobjects.NodeKind, position valueobjects.Position, attach func(*Node)) *Node {
	now := time.Now()
	node := &Node{
		id:        id,
		kind:      kind,
		position:  position,
		createdAt: now,
		updatedAt: now,
		version:   1,
	}
	attach(node)
	return node
}

// ID returns the node's canvas identifier
func (n *Node) ID() valueobjects.NodeID {
	return n.id
}

// Kind returns the node's variant tag
func (n *Node) Kind() valueobjects.NodeKind {
	return n.kind
}

// Position returns the node's position
func (n *Node) Position() valueobjects.Position {
	return n.position
}

// Version returns the node's version counter
func (n *Node) Version() int {
	return n.version
}

// CreatedAt returns when the node was created
func (n *Node) CreatedAt() time.Time {
	return n.createdAt
}

// UpdatedAt returns when the node was last updated
func (n *Node) UpdatedAt() time.Time {
	return n.updatedAt
}

// ForeignID returns the persisted record id behind this node, if it has one.
func (n *Node) ForeignID() (valueobjects.ForeignID, bool) {
	switch n.kind {
	case valueobjects.KindVideo:
		return n.video.VideoID.Foreign(), true
	case valueobjects.KindTranscription:
		return n.transcription.TranscriptionID.Foreign(), true
	case valueobjects.KindAgent:
		return n.agent.AgentID.Foreign(), true
	default:
		return "", false
	}
}

// Video returns a copy of the video payload.
func (n *Node) Video() (VideoPayload, bool) {
	if n.video == nil {
		return VideoPayload{}, false
	}
	return *n.video, true
}

// Transcription returns a copy of the transcription payload.
func (n *Node) Transcription() (TranscriptionPayload, bool) {
	if n.transcription == nil {
		return TranscriptionPayload{}, false
	}
	p := *n.transcription
	p.Segments = cloneSegments(p.Segments)
	return p, true
}

// MoodBoard returns a copy of the mood board payload.
func (n *Node) MoodBoard() (MoodBoardPayload, bool) {
	if n.moodBoard == nil {
		return MoodBoardPayload{}, false
	}
	p := *n.moodBoard
	p.Items = cloneMoodItems(p.Items)
	return p, true
}

// Agent returns a copy of the agent payload.
func (n *Node) Agent() (AgentPayload, bool) {
	if n.agent == nil {
		return AgentPayload{}, false
	}
	p := *n.agent
	p.Connections = cloneConnections(p.Connections)
	p.ChatHistory = cloneChatHistory(p.ChatHistory)
	p.Progress = cloneProgress(p.Progress)
	return p, true
}

// MoveTo moves the node to a new position.
func (n *Node) MoveTo(position valueobjects.Position) bool {
	if position.Equals(n.position) {
		return false
	}
	n.position = position
	n.touch()
	return true
}

// InUse reports whether a transcription or mood board node is currently
// feeding an in-progress generation. Other kinds are never in use.
func (n *Node) InUse() bool {
	switch n.kind {
	case valueobjects.KindTranscription:
		return n.transcription.InUse
	case valueobjects.KindMoodBoard:
		return n.moodBoard.InUse
	default:
		return false
	}
}

// ApplyPatch merges the patch into the node's payload. Fields the caller did
// not set are left untouched; a patch for the wrong kind is rejected.
func (n *Node) ApplyPatch(patch NodePatch) error {
	if err := patch.validateFor(n.kind); err != nil {
		return err
	}

	changed := false

	if patch.Position != nil && n.MoveTo(*patch.Position) {
		changed = true
	}

	switch n.kind {
	case valueobjects.KindVideo:
		if patch.Video != nil {
			changed = patch.Video.apply(n.video) || changed
		}
	case valueobjects.KindTranscription:
		if patch.Transcription != nil {
			changed = patch.Transcription.apply(n.transcription) || changed
		}
	case valueobjects.KindMoodBoard:
		if patch.MoodBoard != nil {
			changed = patch.MoodBoard.apply(n.moodBoard) || changed
		}
	case valueobjects.KindAgent:
		if patch.Agent != nil {
			changed = patch.Agent.apply(n.agent) || changed
		}
	}

	if changed {
		n.touch()
	}
	return nil
}

// Clone returns a deep copy of the node, used for deletion rollback.
func (n *Node) Clone() *Node {
	c := *n
	if n.video != nil {
		v := *n.video
		c.video = &v
	}
	if n.transcription != nil {
		t := *n.transcription
		t.Segments = cloneSegments(t.Segments)
		c.transcription = &t
	}
	if n.moodBoard != nil {
		m := *n.moodBoard
		m.Items = cloneMoodItems(m.Items)
		c.moodBoard = &m
	}
	if n.agent != nil {
		a := *n.agent
		a.Connections = cloneConnections(a.Connections)
		a.ChatHistory = cloneChatHistory(a.ChatHistory)
		a.Progress = cloneProgress(a.Progress)
		c.agent = &a
	}
	return &c
}

func (n *Node) touch() {
	n.updatedAt = time.Now()
	n.version++
}
