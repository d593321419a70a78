package entities

import (
	"strings"
	"time"

	"canvas-backend/domain/core/valueobjects"
)

// TranscriptionState tracks the lifecycle of a video's automatic transcription.
type TranscriptionState string

const (
	TranscriptionNone    TranscriptionState = "none"
	TranscriptionPending TranscriptionState = "pending"
	TranscriptionReady   TranscriptionState = "ready"
	TranscriptionFailed  TranscriptionState = "failed"
)

// AgentType identifies the single artifact an agent node produces.
type AgentType string

const (
	AgentTitle       AgentType = "title"
	AgentDescription AgentType = "description"
	AgentThumbnail   AgentType = "thumbnail"
	AgentTweets      AgentType = "tweets"
)

// IsValid reports whether the agent type is known.
func (t AgentType) IsValid() bool {
	switch t {
	case AgentTitle, AgentDescription, AgentThumbnail, AgentTweets:
		return true
	}
	return false
}

// AgentStatus is the generation state machine position of an agent node.
type AgentStatus string

const (
	AgentIdle       AgentStatus = "idle"
	AgentGenerating AgentStatus = "generating"
	AgentReady      AgentStatus = "ready"
	AgentError      AgentStatus = "error"
)

// MoodItemType classifies a mood board reference by its source.
type MoodItemType string

const (
	MoodYouTube MoodItemType = "youtube"
	MoodMusic   MoodItemType = "music"
	MoodImage   MoodItemType = "image"
	MoodOther   MoodItemType = "other"
)

// DetectMoodItemType classifies a mood board reference by its URL when the
// client did not say what it is.
func DetectMoodItemType(rawURL string) MoodItemType {
	lower := strings.ToLower(rawURL)
	switch {
	case strings.Contains(lower, "youtube.com/") || strings.Contains(lower, "youtu.be/"):
		return MoodYouTube
	case strings.Contains(lower, "spotify.com/") || strings.Contains(lower, "soundcloud.com/"):
		return MoodMusic
	case strings.HasSuffix(lower, ".png") || strings.HasSuffix(lower, ".jpg") ||
		strings.HasSuffix(lower, ".jpeg") || strings.HasSuffix(lower, ".gif") ||
		strings.HasSuffix(lower, ".webp"):
		return MoodImage
	default:
		return MoodOther
	}
}

// VideoPayload is the per-kind data of a video node.
type VideoPayload struct {
	VideoID            valueobjects.VideoID
	Title              string
	MediaURL           string
	Duration           float64 // seconds, 0 when unknown
	TranscriptionState TranscriptionState
	TranscriptionText  string
}

// Segment is one timed span of a manual transcription.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// TranscriptionPayload is the per-kind data of a manually uploaded transcription node.
type TranscriptionPayload struct {
	TranscriptionID valueobjects.TranscriptionID
	VideoID         valueobjects.VideoID // owning video, zero when standalone
	FileName        string
	Format          string
	FullText        string
	Segments        []Segment
	WordCount       int
	Duration        float64

	// InUse highlights the node while it feeds an in-progress generation.
	// Transient: never persisted.
	InUse bool
}

// MoodItem is one external reference on a mood board.
type MoodItem struct {
	ID        string       `json:"id"`
	URL       string       `json:"url"`
	Type      MoodItemType `json:"type"`
	Title     string       `json:"title,omitempty"`
	Thumbnail string       `json:"thumbnail,omitempty"`
	Loading   bool         `json:"loading"`
}

// MoodBoardPayload is the per-kind data of a mood board node.
type MoodBoardPayload struct {
	Items []MoodItem

	// InUse highlights the node while it feeds an in-progress generation.
	// Transient: never persisted.
	InUse bool
}

// GenerationProgress is the transient progress indicator shown on a
// generating agent node.
type GenerationProgress struct {
	Stage   string `json:"stage"`
	Percent int    `json:"percent"`
}

// ChatRole identifies the author of a chat message.
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatMessage is one entry of an agent's refinement conversation.
type ChatMessage struct {
	ID        string               `json:"id"`
	AgentID   valueobjects.AgentID `json:"agent_id,omitempty"` // empty for non-directed entries
	Role      ChatRole             `json:"role"`
	Text      string               `json:"text"`
	Timestamp time.Time            `json:"timestamp"`
}

// AgentPayload is the per-kind data of an agent node.
type AgentPayload struct {
	AgentID      valueobjects.AgentID
	Type         AgentType
	Draft        string
	ThumbnailURL string
	StorageID    string
	Status       AgentStatus

	// Connections mirrors, into the persisted record, the foreign ids of the
	// nodes that have an edge into this agent. Consumed at generation time.
	Connections []valueobjects.ForeignID

	// Progress is transient and only non-nil while Status is generating.
	Progress   *GenerationProgress
	LastPrompt string

	ChatHistory []ChatMessage
}

// cloneConnections copies the connections slice so callers cannot mutate
// payload state through a returned snapshot.
func cloneConnections(in []valueobjects.ForeignID) []valueobjects.ForeignID {
	if in == nil {
		return nil
	}
	out := make([]valueobjects.ForeignID, len(in))
	copy(out, in)
	return out
}

func cloneSegments(in []Segment) []Segment {
	if in == nil {
		return nil
	}
	out := make([]Segment, len(in))
	copy(out, in)
	return out
}

func cloneMoodItems(in []MoodItem) []MoodItem {
	if in == nil {
		return nil
	}
	out := make([]MoodItem, len(in))
	copy(out, in)
	return out
}

func cloneChatHistory(in []ChatMessage) []ChatMessage {
	if in == nil {
		return nil
	}
	out := make([]ChatMessage, len(in))
	copy(out, in)
	return out
}

func cloneProgress(in *GenerationProgress) *GenerationProgress {
	if in == nil {
		return nil
	}
	p := *in
	return &p
}
