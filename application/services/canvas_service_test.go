package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"
	domainevents "canvas-backend/domain/events"
	pkgerrors "canvas-backend/pkg/errors"
)

func TestCanvasService_AddAgentNode(t *testing.T) {
	t.Run("creates the record before placing the node", func(t *testing.T) {
		f := newFixture(t)

		node := f.addAgent(entities.AgentTweets)

		payload, ok := node.Agent()
		require.True(t, ok)
		record, err := f.agents.FindByID(context.Background(), f.canvas.ProjectID(), payload.AgentID)
		require.NoError(t, err)
		assert.Equal(t, entities.AgentTweets, record.Type)
		assert.Equal(t, entities.AgentIdle, record.Status)
		assert.Equal(t, entities.AgentIdle, payload.Status)
	})

	t.Run("rejects unknown agent types", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.canvasService.AddAgentNode(context.Background(), entities.AgentType("poster"), f.pos(0, 0))

		assert.True(t, pkgerrors.IsValidation(err))
		assert.Empty(t, f.canvas.Nodes())
	})

	t.Run("places no node when the record write fails", func(t *testing.T) {
		f := newFixture(t)
		f.agents.FailWith = errors.New("write throttled")

		_, err := f.canvasService.AddAgentNode(context.Background(), entities.AgentTitle, f.pos(0, 0))

		require.Error(t, err)
		assert.Empty(t, f.canvas.Nodes())
	})
}

func TestCanvasService_Placement(t *testing.T) {
	t.Run("second node at the same spot is displaced", func(t *testing.T) {
		f := newFixture(t)
		first := f.addVideo("one")
		second := f.addVideo("two")

		assert.False(t, first.Position().Equals(second.Position()))
	})
}

func TestCanvasService_MoveNode(t *testing.T) {
	t.Run("moves and emits a node_moved event", func(t *testing.T) {
		f := newFixture(t)
		video := f.addVideo("clip")
		recorder := newRecordingHandler(domainevents.TypeNodeMoved)
		require.NoError(t, f.registry.Register([]string{domainevents.TypeNodeMoved}, recorder))

		target := f.pos(640, 480)
		require.NoError(t, f.canvasService.MoveNode(context.Background(), video.ID(), target))

		node, err := f.canvas.FindNode(video.ID())
		require.NoError(t, err)
		assert.True(t, target.Equals(node.Position()))

		moved := recorder.ofType(domainevents.TypeNodeMoved)
		require.Len(t, moved, 1)
		assert.Equal(t, video.ID(), moved[0].(domainevents.NodeMoved).NodeID)
	})

	t.Run("unknown node is not found", func(t *testing.T) {
		f := newFixture(t)
		err := f.canvasService.MoveNode(context.Background(), valueobjects.NodeID("video-missing"), f.pos(0, 0))
		assert.True(t, pkgerrors.IsNotFound(err))
	})
}

func TestCanvasService_UpdateMoodBoard(t *testing.T) {
	f := newFixture(t)
	mood := f.addMoodBoard()

	items := []entities.MoodItem{
		{ID: "m1", URL: "https://youtu.be/abc", Type: entities.MoodYouTube},
		{ID: "m2", URL: "https://example.com/a.png", Type: entities.MoodImage},
	}
	require.NoError(t, f.canvasService.UpdateMoodBoard(context.Background(), mood.ID(), items))

	node, err := f.canvas.FindNode(mood.ID())
	require.NoError(t, err)
	payload, ok := node.MoodBoard()
	require.True(t, ok)
	assert.Equal(t, items, payload.Items)
}

func TestCanvasService_SetViewport(t *testing.T) {
	t.Run("records the viewport and emits the change", func(t *testing.T) {
		f := newFixture(t)
		recorder := newRecordingHandler(domainevents.TypeViewportChanged)
		require.NoError(t, f.registry.Register([]string{domainevents.TypeViewportChanged}, recorder))

		v := valueobjects.Viewport{X: 10, Y: 20, Zoom: 2}
		require.NoError(t, f.canvasService.SetViewport(context.Background(), v))

		got, set := f.canvas.Viewport()
		assert.True(t, set)
		assert.Equal(t, v, got)
		assert.Len(t, recorder.ofType(domainevents.TypeViewportChanged), 1)
	})

	t.Run("rejects non-positive zoom", func(t *testing.T) {
		f := newFixture(t)
		err := f.canvasService.SetViewport(context.Background(), valueobjects.Viewport{Zoom: 0})
		assert.True(t, pkgerrors.IsValidation(err))
	})
}
