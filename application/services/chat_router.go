package services

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"canvas-backend/application/ports"
	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"
)

// mentionPattern matches an @agent mention anywhere in a chat message.
var mentionPattern = regexp.MustCompile(`@(title|description|thumbnail|tweets)\b`)

// refinementPhrases route a mention at an agent with an existing draft into
// the refinement flow.
var refinementPhrases = []string{
	"regenerate", "generate again", "create new", "make new", "redo",
	"try again", "give me another", "different version", "new version",
}

// refinementWords are single keywords matched on word boundaries.
var refinementWords = map[string]struct{}{
	"change": {}, "make": {}, "create": {}, "modify": {}, "update": {}, "edit": {},
}

// regeneratePhrases single out the "throw it away and start over" intent,
// which for thumbnails re-enters the image-supply flow.
var regeneratePhrases = []string{
	"regenerate", "generate again", "redo", "try again", "give me another",
	"new version", "different version",
}

// HandleChatMessage routes a user chat message. Messages with an @mention are
// directed at that agent; everything else is a plain log entry.
func (o *GenerationOrchestrator) HandleChatMessage(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	mention := mentionPattern.FindStringSubmatch(text)
	if mention == nil {
		userMsg := o.newChatMessage("", entities.ChatRoleUser, text)
		o.canvas.AppendChat(userMsg)
		o.dispatchEvents(ctx)
		return nil
	}

	agentType := entities.AgentType(mention[1])
	nodeID, agent, found := o.findAgentByType(agentType)

	if !found {
		userMsg := o.newChatMessage("", entities.ChatRoleUser, text)
		o.canvas.AppendChat(userMsg)
		reply := o.newChatMessage("", entities.ChatRoleAssistant,
			"There is no "+string(agentType)+" agent on the canvas yet. Add one first.")
		o.canvas.AppendChat(reply)
		o.dispatchEvents(ctx)
		return nil
	}

	userMsg := o.newChatMessage(agent.AgentID, entities.ChatRoleUser, text)
	o.canvas.AppendChat(userMsg)
	o.appendAgentChat(ctx, nodeID, userMsg)

	instruction := cleanInstruction(text)

	// No draft yet: any directed message kicks off a fresh generation.
	if agent.Draft == "" && agent.ThumbnailURL == "" {
		return o.Generate(ctx, nodeID)
	}

	if !isRefinementRequest(instruction) {
		// Conversational messages at an agent with a draft still refine: the
		// provider decides what, if anything, to change.
		return o.refineText(ctx, nodeID, agent, instruction)
	}

	if agent.Type == entities.AgentThumbnail {
		if isRegenerateRequest(instruction) {
			// Back through the image-supply flow, keeping the cleaned
			// instruction as the pending prompt context.
			o.mu.Lock()
			o.pendingThumbnailContext[nodeID] = instruction
			o.mu.Unlock()

			reply := o.newChatMessage(agent.AgentID, entities.ChatRoleAssistant,
				"Upload or connect an image to regenerate the thumbnail.")
			o.canvas.AppendChat(reply)
			o.appendAgentChat(ctx, nodeID, reply)
			o.dispatchEvents(ctx)
			return nil
		}
		if agent.ThumbnailURL != "" {
			return o.refineThumbnail(ctx, nodeID, agent, instruction)
		}
	}

	return o.refineText(ctx, nodeID, agent, instruction)
}

// refineText reworks the agent's draft per the instruction, with the agent's
// own chat history for continuity.
func (o *GenerationOrchestrator) refineText(ctx context.Context, nodeID valueobjects.NodeID, agent entities.AgentPayload, instruction string) error {
	return o.run(ctx, nodeID, agent, func(runCtx context.Context, gc gatheredContext) (resultPatch, error) {
		result, err := o.generator.RefineText(runCtx, ports.RefineTextRequest{
			AgentType:   agent.Type,
			Context:     gc.GenerationContext,
			Draft:       agent.Draft,
			Instruction: instruction,
			ChatHistory: agent.ChatHistory,
		})
		if err != nil {
			return resultPatch{}, err
		}
		return resultPatch{draft: &result.Draft, chatReply: result.Draft}, nil
	})
}

// refineThumbnail reworks the current thumbnail from the instruction merged
// with the prompt that produced it.
func (o *GenerationOrchestrator) refineThumbnail(ctx context.Context, nodeID valueobjects.NodeID, agent entities.AgentPayload, instruction string) error {
	return o.run(ctx, nodeID, agent, func(runCtx context.Context, gc gatheredContext) (resultPatch, error) {
		prompt := agent.LastPrompt
		if prompt == "" {
			prompt = o.buildThumbnailPrompt(gc)
		}
		return o.callThumbnail(runCtx, nodeID, gc, prompt+". "+instruction)
	})
}

func (o *GenerationOrchestrator) findAgentByType(agentType entities.AgentType) (valueobjects.NodeID, entities.AgentPayload, bool) {
	for _, node := range o.canvas.Nodes() {
		if agent, ok := node.Agent(); ok && agent.Type == agentType {
			return node.ID(), agent, true
		}
	}
	return "", entities.AgentPayload{}, false
}

func (o *GenerationOrchestrator) appendAgentChat(ctx context.Context, nodeID valueobjects.NodeID, msg entities.ChatMessage) {
	err := o.canvas.UpdateNode(nodeID, entities.NodePatch{Agent: &entities.AgentPatch{
		AppendChat: []entities.ChatMessage{msg},
	}})
	if err != nil {
		o.logger.Debug("Failed to append agent chat entry",
			zap.String("nodeID", nodeID.String()),
			zap.Error(err),
		)
	}
}

// cleanInstruction strips the @mention from the message.
func cleanInstruction(text string) string {
	cleaned := mentionPattern.ReplaceAllString(text, "")
	return strings.TrimSpace(strings.Join(strings.Fields(cleaned), " "))
}

// isRefinementRequest classifies a directed message at an agent that already
// has a draft. "generate" alone also counts in that situation.
func isRefinementRequest(instruction string) bool {
	lower := strings.ToLower(instruction)

	for _, phrase := range refinementPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	for _, word := range strings.Fields(lower) {
		word = strings.Trim(word, ".,!?:;\"'")
		if _, ok := refinementWords[word]; ok {
			return true
		}
		if word == "generate" {
			return true
		}
	}
	return false
}

func isRegenerateRequest(instruction string) bool {
	lower := strings.ToLower(instruction)
	for _, phrase := range regeneratePhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
