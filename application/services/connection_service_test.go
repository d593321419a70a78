package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"
	pkgerrors "canvas-backend/pkg/errors"
)

func TestConnectionService_Connect(t *testing.T) {
	t.Run("adds edge and mirrors the source id into the agent record", func(t *testing.T) {
		f := newFixture(t)
		video := f.addVideo("clip")
		agent := f.addAgent(entities.AgentTitle)

		edge := f.connect(video, agent)

		require.Len(t, f.canvas.Edges(), 1)
		assert.Equal(t, video.ID(), edge.SourceID)
		assert.Equal(t, agent.ID(), edge.TargetID)

		videoForeign, _ := video.ForeignID()
		payload := f.agentPayload(agent.ID())
		require.Len(t, payload.Connections, 1)
		assert.Equal(t, videoForeign, payload.Connections[0])

		record, err := f.agents.FindByID(context.Background(), f.canvas.ProjectID(), payload.AgentID)
		require.NoError(t, err)
		assert.Equal(t, []valueobjects.ForeignID{videoForeign}, record.Connections)
	})

	t.Run("rejects non-agent targets", func(t *testing.T) {
		f := newFixture(t)
		a := f.addVideo("first")
		b := f.addVideo("second")

		_, err := f.connections.Connect(context.Background(), a.ID(), b.ID(), "output", "input")

		assert.True(t, pkgerrors.IsValidation(err))
		assert.Empty(t, f.canvas.Edges())
	})

	t.Run("rejects missing endpoints", func(t *testing.T) {
		f := newFixture(t)
		agent := f.addAgent(entities.AgentTitle)

		_, err := f.connections.Connect(context.Background(), valueobjects.NodeID("video-missing"), agent.ID(), "", "")

		assert.True(t, pkgerrors.IsValidation(err))
	})

	t.Run("keeps duplicate entries from repeated connects", func(t *testing.T) {
		f := newFixture(t)
		video := f.addVideo("clip")
		agent := f.addAgent(entities.AgentTitle)
		videoForeign, _ := video.ForeignID()

		f.connect(video, agent)
		f.connect(video, agent)

		payload := f.agentPayload(agent.ID())
		assert.Equal(t, []valueobjects.ForeignID{videoForeign, videoForeign}, payload.Connections)
	})

	t.Run("mood board sources are not mirrored", func(t *testing.T) {
		f := newFixture(t)
		mood := f.addMoodBoard()
		agent := f.addAgent(entities.AgentThumbnail)

		f.connect(mood, agent)

		assert.Len(t, f.canvas.Edges(), 1)
		assert.Empty(t, f.agentPayload(agent.ID()).Connections)
	})

	t.Run("keeps the edge when the mirror write fails", func(t *testing.T) {
		f := newFixture(t)
		video := f.addVideo("clip")
		agent := f.addAgent(entities.AgentTitle)
		f.agents.FailWith = errors.New("write throttled")

		edge, err := f.connections.Connect(context.Background(), video.ID(), agent.ID(), "output", "input")

		require.NoError(t, err)
		require.NotNil(t, edge)
		assert.Len(t, f.canvas.Edges(), 1)
	})
}

func TestConnectionService_Disconnect(t *testing.T) {
	t.Run("removes edges and reconciles from graph truth", func(t *testing.T) {
		f := newFixture(t)
		video := f.addVideo("clip")
		transcription := f.addTranscription("clip.srt", valueobjects.VideoID(""))
		agent := f.addAgent(entities.AgentTitle)
		edge1 := f.connect(video, agent)
		f.connect(transcription, agent)

		require.NoError(t, f.connections.Disconnect(context.Background(), []string{edge1.ID}))

		assert.Len(t, f.canvas.Edges(), 1)
		transcriptionForeign, _ := transcription.ForeignID()
		payload := f.agentPayload(agent.ID())
		assert.Equal(t, []valueobjects.ForeignID{transcriptionForeign}, payload.Connections)

		record, err := f.agents.FindByID(context.Background(), f.canvas.ProjectID(), payload.AgentID)
		require.NoError(t, err)
		assert.Equal(t, []valueobjects.ForeignID{transcriptionForeign}, record.Connections)
	})

	t.Run("reconcile collapses duplicates left by repeated connects", func(t *testing.T) {
		f := newFixture(t)
		video := f.addVideo("clip")
		agent := f.addAgent(entities.AgentTitle)
		f.connect(video, agent)
		edge2 := f.connect(video, agent)
		require.Len(t, f.agentPayload(agent.ID()).Connections, 2)

		require.NoError(t, f.connections.Disconnect(context.Background(), []string{edge2.ID}))

		videoForeign, _ := video.ForeignID()
		assert.Equal(t, []valueobjects.ForeignID{videoForeign}, f.agentPayload(agent.ID()).Connections)
	})

	t.Run("unknown edge ids are a no-op", func(t *testing.T) {
		f := newFixture(t)
		video := f.addVideo("clip")
		agent := f.addAgent(entities.AgentTitle)
		f.connect(video, agent)

		require.NoError(t, f.connections.Disconnect(context.Background(), []string{"edge-unknown"}))

		assert.Len(t, f.canvas.Edges(), 1)
	})
}

func TestConnectionService_Reconcile(t *testing.T) {
	t.Run("missing node is not an error", func(t *testing.T) {
		f := newFixture(t)
		assert.NoError(t, f.connections.Reconcile(context.Background(), valueobjects.NodeID("agent-gone")))
	})

	t.Run("non-agent node is rejected", func(t *testing.T) {
		f := newFixture(t)
		video := f.addVideo("clip")
		err := f.connections.Reconcile(context.Background(), video.ID())
		assert.True(t, pkgerrors.IsValidation(err))
	})
}
