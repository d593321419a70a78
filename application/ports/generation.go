package ports

import (
	"context"

	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"
)

// CreatorProfile is the channel-level context every generation receives.
type CreatorProfile struct {
	ChannelName string
	Tone        string
	Audience    string
	Keywords    []string
}

// GenerationContext is everything gathered from the agent's connected nodes
// before a generation call.
type GenerationContext struct {
	VideoTitle        string
	AutoTranscript    string
	ManualTranscripts []string
	MoodURLs          []string
	Profile           CreatorProfile
}

// TextRequest asks the provider for a fresh text artifact.
type TextRequest struct {
	AgentType entities.AgentType
	Context   GenerationContext
}

// RefineTextRequest asks the provider to rework an existing draft from a
// user instruction, with the chat history for conversational continuity.
type RefineTextRequest struct {
	AgentType   entities.AgentType
	Context     GenerationContext
	Draft       string
	Instruction string
	ChatHistory []entities.ChatMessage
}

// TextResult is the provider's text output.
type TextResult struct {
	Draft string
}

// ThumbnailRequest asks the provider for a thumbnail image.
type ThumbnailRequest struct {
	Context GenerationContext
	// Prompt is the image prompt; for refinement it includes the user's
	// instruction merged with the last prompt.
	Prompt string
}

// ThumbnailResult is the provider's image output. An empty ImageURL with a
// nil error means the provider's safety filter blocked the image; callers
// surface that as a warning, not a failure.
type ThumbnailResult struct {
	ImageURL  string
	StorageID string
	Prompt    string
}

// ContentGenerator defines the interface to the AI provider.
type ContentGenerator interface {
	// GenerateText produces a fresh draft for a text-producing agent
	GenerateText(ctx context.Context, req TextRequest) (TextResult, error)

	// RefineText reworks an existing draft per a user instruction
	RefineText(ctx context.Context, req RefineTextRequest) (TextResult, error)

	// GenerateThumbnail produces a thumbnail image
	GenerateThumbnail(ctx context.Context, req ThumbnailRequest) (ThumbnailResult, error)
}

// ProfileProvider resolves the creator profile for a project.
type ProfileProvider interface {
	Profile(ctx context.Context, projectID valueobjects.ProjectID) (CreatorProfile, error)
}
