package handlers

import (
	"time"

	"canvas-backend/domain/core/aggregates"
	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"
)

// PositionDTO is the wire shape of a canvas position.
type PositionDTO struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeDTO is the wire shape of a canvas node. Exactly one of the payload
// fields is set, matching Kind.
type NodeDTO struct {
	ID       string      `json:"id"`
	Kind     string      `json:"kind"`
	Position PositionDTO `json:"position"`

	Video         *VideoDTO         `json:"video,omitempty"`
	Transcription *TranscriptionDTO `json:"transcription,omitempty"`
	MoodBoard     *MoodBoardDTO     `json:"moodBoard,omitempty"`
	Agent         *AgentDTO         `json:"agent,omitempty"`
}

// VideoDTO is the wire shape of a video node payload.
type VideoDTO struct {
	VideoID            string  `json:"videoId"`
	Title              string  `json:"title"`
	MediaURL           string  `json:"mediaUrl"`
	Duration           float64 `json:"duration"`
	TranscriptionState string  `json:"transcriptionState"`
	TranscriptionText  string  `json:"transcriptionText,omitempty"`
}

// TranscriptionDTO is the wire shape of a transcription node payload.
type TranscriptionDTO struct {
	TranscriptionID string             `json:"transcriptionId"`
	VideoID         string             `json:"videoId,omitempty"`
	FileName        string             `json:"fileName"`
	Format          string             `json:"format"`
	FullText        string             `json:"fullText"`
	Segments        []entities.Segment `json:"segments,omitempty"`
	WordCount       int                `json:"wordCount"`
	Duration        float64            `json:"duration"`
	InUse           bool               `json:"inUse"`
}

// MoodBoardDTO is the wire shape of a mood board node payload.
type MoodBoardDTO struct {
	Items []entities.MoodItem `json:"items"`
	InUse bool                `json:"inUse"`
}

// AgentDTO is the wire shape of an agent node payload.
type AgentDTO struct {
	AgentID      string                       `json:"agentId"`
	Type         string                       `json:"type"`
	Status       string                       `json:"status"`
	Draft        string                       `json:"draft,omitempty"`
	ThumbnailURL string                       `json:"thumbnailUrl,omitempty"`
	Progress     *entities.GenerationProgress `json:"progress,omitempty"`
	Connections  []string                     `json:"connections"`
	ChatHistory  []ChatMessageDTO             `json:"chatHistory"`
}

// EdgeDTO is the wire shape of a canvas edge.
type EdgeDTO struct {
	ID           string `json:"id"`
	SourceID     string `json:"sourceId"`
	TargetID     string `json:"targetId"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

// ChatMessageDTO is the wire shape of one chat log entry.
type ChatMessageDTO struct {
	ID        string    `json:"id"`
	AgentID   string    `json:"agentId,omitempty"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ViewportDTO is the wire shape of the canvas viewport.
type ViewportDTO struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// CanvasStateResponse is the full canvas for initial render.
type CanvasStateResponse struct {
	ProjectID string           `json:"projectId"`
	Nodes     []NodeDTO        `json:"nodes"`
	Edges     []EdgeDTO        `json:"edges"`
	Viewport  *ViewportDTO     `json:"viewport,omitempty"`
	ChatLog   []ChatMessageDTO `json:"chatLog"`
	Version   int              `json:"version"`
}

func toPositionDTO(p valueobjects.Position) PositionDTO {
	return PositionDTO{X: p.X(), Y: p.Y()}
}

func toNodeDTO(node *entities.Node) NodeDTO {
	dto := NodeDTO{
		ID:       node.ID().String(),
		Kind:     string(node.Kind()),
		Position: toPositionDTO(node.Position()),
	}

	switch node.Kind() {
	case valueobjects.KindVideo:
		if v, ok := node.Video(); ok {
			dto.Video = &VideoDTO{
				VideoID:            v.VideoID.String(),
				Title:              v.Title,
				MediaURL:           v.MediaURL,
				Duration:           v.Duration,
				TranscriptionState: string(v.TranscriptionState),
				TranscriptionText:  v.TranscriptionText,
			}
		}
	case valueobjects.KindTranscription:
		if t, ok := node.Transcription(); ok {
			dto.Transcription = &TranscriptionDTO{
				TranscriptionID: t.TranscriptionID.String(),
				VideoID:         t.VideoID.String(),
				FileName:        t.FileName,
				Format:          t.Format,
				FullText:        t.FullText,
				Segments:        t.Segments,
				WordCount:       t.WordCount,
				Duration:        t.Duration,
				InUse:           t.InUse,
			}
		}
	case valueobjects.KindMoodBoard:
		if m, ok := node.MoodBoard(); ok {
			items := m.Items
			if items == nil {
				items = []entities.MoodItem{}
			}
			dto.MoodBoard = &MoodBoardDTO{Items: items, InUse: m.InUse}
		}
	case valueobjects.KindAgent:
		if a, ok := node.Agent(); ok {
			connections := make([]string, len(a.Connections))
			for i, c := range a.Connections {
				connections[i] = c.String()
			}
			dto.Agent = &AgentDTO{
				AgentID:      a.AgentID.String(),
				Type:         string(a.Type),
				Status:       string(a.Status),
				Draft:        a.Draft,
				ThumbnailURL: a.ThumbnailURL,
				Progress:     a.Progress,
				Connections:  connections,
				ChatHistory:  toChatDTOs(a.ChatHistory),
			}
		}
	}
	return dto
}

func toEdgeDTO(edge *aggregates.Edge) EdgeDTO {
	return EdgeDTO{
		ID:           edge.ID,
		SourceID:     edge.SourceID.String(),
		TargetID:     edge.TargetID.String(),
		SourceHandle: edge.SourceHandle,
		TargetHandle: edge.TargetHandle,
	}
}

func toChatDTOs(messages []entities.ChatMessage) []ChatMessageDTO {
	dtos := make([]ChatMessageDTO, len(messages))
	for i, msg := range messages {
		dtos[i] = ChatMessageDTO{
			ID:        msg.ID,
			AgentID:   msg.AgentID.String(),
			Role:      string(msg.Role),
			Text:      msg.Text,
			Timestamp: msg.Timestamp,
		}
	}
	return dtos
}
