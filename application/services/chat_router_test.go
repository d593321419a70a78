package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvas-backend/application/ports"
	"canvas-backend/domain/core/entities"
)

func TestHandleChatMessage_Routing(t *testing.T) {
	t.Run("plain message only lands in the chat log", func(t *testing.T) {
		f := newFixture(t)
		f.addAgent(entities.AgentTitle)

		require.NoError(t, f.orchestrator.HandleChatMessage(context.Background(), "looking good so far"))

		chat := f.canvas.ChatLog()
		require.Len(t, chat, 1)
		assert.Equal(t, entities.ChatRoleUser, chat[0].Role)
		assert.Empty(t, f.generator.textRequests)
		assert.Empty(t, f.generator.refineRequests)
	})

	t.Run("empty message is ignored", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.orchestrator.HandleChatMessage(context.Background(), "   "))
		assert.Empty(t, f.canvas.ChatLog())
	})

	t.Run("mention without a matching agent gets a helpful reply", func(t *testing.T) {
		f := newFixture(t)

		require.NoError(t, f.orchestrator.HandleChatMessage(context.Background(), "@tweets write something"))

		chat := f.canvas.ChatLog()
		require.Len(t, chat, 2)
		assert.Equal(t, entities.ChatRoleAssistant, chat[1].Role)
		assert.Contains(t, chat[1].Text, "no tweets agent")
	})

	t.Run("mention at a draftless agent starts a fresh generation", func(t *testing.T) {
		f := newFixture(t)
		agent := f.addAgent(entities.AgentTitle)
		f.generator.textResult = ports.TextResult{Draft: "A Fresh Title"}

		require.NoError(t, f.orchestrator.HandleChatMessage(context.Background(), "@title something catchy please"))

		require.Len(t, f.generator.textRequests, 1)
		assert.Empty(t, f.generator.refineRequests)
		assert.Equal(t, "A Fresh Title", f.agentPayload(agent.ID()).Draft)
	})

	t.Run("refinement keyword routes into refine with the cleaned instruction", func(t *testing.T) {
		f := newFixture(t)
		agent := f.addAgent(entities.AgentTitle)
		f.setDraft(agent.ID(), "Working Title")
		f.generator.refineResult = ports.TextResult{Draft: "Bolder Title"}

		require.NoError(t, f.orchestrator.HandleChatMessage(context.Background(), "@title change the tone, bolder"))

		require.Len(t, f.generator.refineRequests, 1)
		req := f.generator.refineRequests[0]
		assert.Equal(t, "Working Title", req.Draft)
		assert.Equal(t, "change the tone, bolder", req.Instruction)
		assert.NotContains(t, req.Instruction, "@title")
		assert.Equal(t, "Bolder Title", f.agentPayload(agent.ID()).Draft)
	})

	t.Run("conversational message at a drafted agent still refines", func(t *testing.T) {
		f := newFixture(t)
		agent := f.addAgent(entities.AgentDescription)
		f.setDraft(agent.ID(), "A description")
		f.generator.refineResult = ports.TextResult{Draft: "A description, refined"}

		require.NoError(t, f.orchestrator.HandleChatMessage(context.Background(), "@description what do you think about mentioning the giveaway?"))

		assert.Len(t, f.generator.refineRequests, 1)
		assert.Empty(t, f.generator.textRequests)
	})

	t.Run("refine reply is appended to the chat log", func(t *testing.T) {
		f := newFixture(t)
		agent := f.addAgent(entities.AgentTitle)
		f.setDraft(agent.ID(), "Working Title")
		f.generator.refineResult = ports.TextResult{Draft: "Bolder Title"}

		require.NoError(t, f.orchestrator.HandleChatMessage(context.Background(), "@title update it"))

		chat := f.canvas.ChatLog()
		require.NotEmpty(t, chat)
		assert.Equal(t, "Bolder Title", chat[len(chat)-1].Text)
		assert.Equal(t, entities.ChatRoleAssistant, chat[len(chat)-1].Role)
	})
}

func TestHandleChatMessage_Thumbnail(t *testing.T) {
	t.Run("regenerate request re-enters the image-supply flow", func(t *testing.T) {
		f := newFixture(t)
		agent := f.addAgent(entities.AgentThumbnail)
		url := "https://cdn.example.com/old.png"
		thumb := entities.AgentPatch{ThumbnailURL: &url}
		require.NoError(t, f.canvas.UpdateNode(agent.ID(), entities.NodePatch{Agent: &thumb}))
		f.canvas.MarkEventsAsCommitted()

		require.NoError(t, f.orchestrator.HandleChatMessage(context.Background(), "@thumbnail try again with more contrast"))

		assert.Empty(t, f.generator.thumbRequests)
		chat := f.canvas.ChatLog()
		require.NotEmpty(t, chat)
		assert.Contains(t, chat[len(chat)-1].Text, "Upload or connect an image")

		// The instruction carries over as the prompt once an image arrives.
		f.generator.thumbResult = ports.ThumbnailResult{ImageURL: "https://cdn.example.com/new.png", Prompt: "p"}
		require.NoError(t, f.orchestrator.SubmitThumbnailImage(context.Background(), agent.ID(), "https://example.com/upload.png"))
		require.Len(t, f.generator.thumbRequests, 1)
		assert.Equal(t, "try again with more contrast", f.generator.thumbRequests[0].Prompt)
	})

	t.Run("refinement with an existing thumbnail reworks it in place", func(t *testing.T) {
		f := newFixture(t)
		agent := f.addAgent(entities.AgentThumbnail)
		url := "https://cdn.example.com/old.png"
		prompt := "original prompt"
		require.NoError(t, f.canvas.UpdateNode(agent.ID(), entities.NodePatch{Agent: &entities.AgentPatch{
			ThumbnailURL: &url,
			LastPrompt:   &prompt,
		}}))
		f.canvas.MarkEventsAsCommitted()
		f.generator.thumbResult = ports.ThumbnailResult{ImageURL: "https://cdn.example.com/new.png", Prompt: "p"}

		require.NoError(t, f.orchestrator.HandleChatMessage(context.Background(), "@thumbnail change the text to yellow"))

		require.Len(t, f.generator.thumbRequests, 1)
		assert.Equal(t, "original prompt. change the text to yellow", f.generator.thumbRequests[0].Prompt)
	})
}

func TestCleanInstruction(t *testing.T) {
	assert.Equal(t, "make it shorter", cleanInstruction("@title make it shorter"))
	assert.Equal(t, "make it shorter", cleanInstruction("make it @description shorter"))
	assert.Equal(t, "", cleanInstruction("@tweets"))
}

func TestIsRefinementRequest(t *testing.T) {
	tests := []struct {
		instruction string
		want        bool
	}{
		{"regenerate this", true},
		{"please try again", true},
		{"change the tone", true},
		{"make it shorter!", true},
		{"generate", true},
		{"what do you think?", false},
		{"looks great", false},
	}
	for _, tt := range tests {
		t.Run(tt.instruction, func(t *testing.T) {
			assert.Equal(t, tt.want, isRefinementRequest(tt.instruction))
		})
	}
}
