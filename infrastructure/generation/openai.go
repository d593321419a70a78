// Package generation implements the ContentGenerator port against the
// OpenAI API.
package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"canvas-backend/application/ports"
	"canvas-backend/domain/core/entities"
	pkgerrors "canvas-backend/pkg/errors"
)

// contentPolicyCode is OpenAI's error code for safety-filter rejections.
const contentPolicyCode = "content_policy_violation"

// OpenAIGenerator implements ports.ContentGenerator with chat completions
// for text agents and image generation for thumbnails.
type OpenAIGenerator struct {
	client     *openai.Client
	chatModel  string
	imageModel string
	logger     *zap.Logger
}

var _ ports.ContentGenerator = (*OpenAIGenerator)(nil)

// NewOpenAIGenerator creates a generator. Empty model names fall back to
// sensible defaults.
func NewOpenAIGenerator(apiKey, chatModel, imageModel string, logger *zap.Logger) *OpenAIGenerator {
	if chatModel == "" {
		chatModel = openai.GPT4oMini
	}
	if imageModel == "" {
		imageModel = openai.CreateImageModelDallE3
	}
	return &OpenAIGenerator{
		client:     openai.NewClient(apiKey),
		chatModel:  chatModel,
		imageModel: imageModel,
		logger:     logger,
	}
}

func (g *OpenAIGenerator) GenerateText(ctx context.Context, req ports.TextRequest) (ports.TextResult, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt(req.AgentType, req.Context)},
		{Role: openai.ChatMessageRoleUser, Content: userPrompt(req.AgentType, req.Context)},
	}

	draft, err := g.complete(ctx, messages)
	if err != nil {
		return ports.TextResult{}, err
	}
	return ports.TextResult{Draft: draft}, nil
}

func (g *OpenAIGenerator) RefineText(ctx context.Context, req ports.RefineTextRequest) (ports.TextResult, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt(req.AgentType, req.Context)},
	}

	for _, msg := range req.ChatHistory {
		role := openai.ChatMessageRoleUser
		if msg.Role == entities.ChatRoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: msg.Text})
	}

	messages = append(messages, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		Content: fmt.Sprintf("Current draft:\n%s\n\nRework it per this instruction: %s",
			req.Draft, req.Instruction),
	})

	draft, err := g.complete(ctx, messages)
	if err != nil {
		return ports.TextResult{}, err
	}
	return ports.TextResult{Draft: draft}, nil
}

func (g *OpenAIGenerator) GenerateThumbnail(ctx context.Context, req ports.ThumbnailRequest) (ports.ThumbnailResult, error) {
	resp, err := g.client.CreateImage(ctx, openai.ImageRequest{
		Model:          g.imageModel,
		Prompt:         req.Prompt,
		N:              1,
		Size:           openai.CreateImageSize1792x1024,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	if err != nil {
		if isContentPolicyError(err) {
			// Safety filter rejections are an expected outcome, not a failure.
			g.logger.Info("Thumbnail blocked by safety filter")
			return ports.ThumbnailResult{Prompt: req.Prompt}, nil
		}
		return ports.ThumbnailResult{}, pkgerrors.NewGeneration("image generation failed", err)
	}
	if len(resp.Data) == 0 {
		return ports.ThumbnailResult{Prompt: req.Prompt}, nil
	}

	return ports.ThumbnailResult{
		ImageURL: resp.Data[0].URL,
		Prompt:   req.Prompt,
	}, nil
}

func (g *OpenAIGenerator) complete(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    g.chatModel,
		Messages: messages,
	})
	if err != nil {
		return "", pkgerrors.NewGeneration("chat completion failed", err)
	}
	if len(resp.Choices) == 0 {
		return "", pkgerrors.NewGeneration("provider returned no choices", nil)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func isContentPolicyError(err error) bool {
	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if code, ok := apiErr.Code.(string); ok && code == contentPolicyCode {
		return true
	}
	return strings.Contains(apiErr.Message, "safety system")
}

func systemPrompt(agentType entities.AgentType, gc ports.GenerationContext) string {
	var b strings.Builder
	b.WriteString("You are a content assistant for a video creator")
	if gc.Profile.ChannelName != "" {
		b.WriteString(" running the channel \"" + gc.Profile.ChannelName + "\"")
	}
	b.WriteString(".")
	if gc.Profile.Tone != "" {
		b.WriteString(" Write in a " + gc.Profile.Tone + " tone.")
	}
	if gc.Profile.Audience != "" {
		b.WriteString(" The audience is " + gc.Profile.Audience + ".")
	}
	if len(gc.Profile.Keywords) > 0 {
		b.WriteString(" Work these keywords in naturally: " + strings.Join(gc.Profile.Keywords, ", ") + ".")
	}

	switch agentType {
	case entities.AgentTitle:
		b.WriteString(" Produce a single compelling video title, no quotes, under 70 characters.")
	case entities.AgentDescription:
		b.WriteString(" Produce a video description with a hook, summary and call to action.")
	case entities.AgentTweets:
		b.WriteString(" Produce three tweet variants announcing the video, each under 280 characters, separated by blank lines.")
	}
	return b.String()
}

func userPrompt(agentType entities.AgentType, gc ports.GenerationContext) string {
	var b strings.Builder

	if gc.VideoTitle != "" {
		b.WriteString("Video title: " + gc.VideoTitle + "\n\n")
	}
	if gc.AutoTranscript != "" {
		b.WriteString("Transcript:\n" + gc.AutoTranscript + "\n\n")
	}
	for i, transcript := range gc.ManualTranscripts {
		fmt.Fprintf(&b, "Manual transcript %d:\n%s\n\n", i+1, transcript)
	}
	if len(gc.MoodURLs) > 0 {
		b.WriteString("Style references:\n" + strings.Join(gc.MoodURLs, "\n") + "\n\n")
	}

	switch agentType {
	case entities.AgentTitle:
		b.WriteString("Write the title.")
	case entities.AgentDescription:
		b.WriteString("Write the description.")
	case entities.AgentTweets:
		b.WriteString("Write the tweets.")
	default:
		b.WriteString("Write the content.")
	}
	return b.String()
}
