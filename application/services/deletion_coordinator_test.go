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

func TestDeletionCoordinator_Request(t *testing.T) {
	t.Run("rejects an empty request", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.deletion.Request(context.Background(), nil)
		assert.True(t, pkgerrors.IsValidation(err))
	})

	t.Run("deletes content-free nodes immediately", func(t *testing.T) {
		f := newFixture(t)
		mood := f.addMoodBoard()
		agent := f.addAgent(entities.AgentTitle)

		confirm, err := f.deletion.Request(context.Background(), []valueobjects.NodeID{mood.ID(), agent.ID()})

		require.NoError(t, err)
		assert.False(t, confirm)
		assert.False(t, f.canvas.HasNode(mood.ID()))
		assert.False(t, f.canvas.HasNode(agent.ID()))
		assert.Equal(t, DeletionIdle, f.deletion.State())
	})

	t.Run("parks video deletions until confirmed", func(t *testing.T) {
		f := newFixture(t)
		video := f.addVideo("clip")

		confirm, err := f.deletion.Request(context.Background(), []valueobjects.NodeID{video.ID()})

		require.NoError(t, err)
		assert.True(t, confirm)
		assert.True(t, f.canvas.HasNode(video.ID()))
		assert.Equal(t, DeletionPending, f.deletion.State())
		assert.Equal(t, []valueobjects.NodeID{video.ID()}, f.deletion.Pending())
	})

	t.Run("agents with a draft require confirmation", func(t *testing.T) {
		f := newFixture(t)
		agent := f.addAgent(entities.AgentTitle)
		f.setDraft(agent.ID(), "Working Title")

		confirm, err := f.deletion.Request(context.Background(), []valueobjects.NodeID{agent.ID()})

		require.NoError(t, err)
		assert.True(t, confirm)
	})

	t.Run("a second request while one is pending conflicts", func(t *testing.T) {
		f := newFixture(t)
		video := f.addVideo("clip")
		mood := f.addMoodBoard()
		_, err := f.deletion.Request(context.Background(), []valueobjects.NodeID{video.ID()})
		require.NoError(t, err)

		_, err = f.deletion.Request(context.Background(), []valueobjects.NodeID{mood.ID()})

		assert.True(t, pkgerrors.IsConflict(err))
		assert.True(t, f.canvas.HasNode(mood.ID()))
	})
}

func TestDeletionCoordinator_ConfirmAndCancel(t *testing.T) {
	t.Run("confirm deletes nodes, records and incident edges", func(t *testing.T) {
		f := newFixture(t)
		video := f.addVideo("clip")
		agent := f.addAgent(entities.AgentTitle)
		f.connect(video, agent)

		confirm, err := f.deletion.Request(context.Background(), []valueobjects.NodeID{video.ID()})
		require.NoError(t, err)
		require.True(t, confirm)

		require.NoError(t, f.deletion.Confirm(context.Background()))

		assert.False(t, f.canvas.HasNode(video.ID()))
		assert.Empty(t, f.canvas.Edges())
		assert.Equal(t, DeletionIdle, f.deletion.State())

		videoPayload, _ := video.Video()
		_, err = f.videos.FindByID(context.Background(), f.canvas.ProjectID(), videoPayload.VideoID)
		assert.True(t, pkgerrors.IsNotFound(err))

		// The agent's mirrored connections list empties with the edge gone.
		assert.Empty(t, f.agentPayload(agent.ID()).Connections)
	})

	t.Run("confirm without a pending request conflicts", func(t *testing.T) {
		f := newFixture(t)
		err := f.deletion.Confirm(context.Background())
		assert.True(t, pkgerrors.IsConflict(err))
	})

	t.Run("cancel abandons the pending request", func(t *testing.T) {
		f := newFixture(t)
		video := f.addVideo("clip")
		_, err := f.deletion.Request(context.Background(), []valueobjects.NodeID{video.ID()})
		require.NoError(t, err)

		f.deletion.Cancel()

		assert.True(t, f.canvas.HasNode(video.ID()))
		assert.Equal(t, DeletionIdle, f.deletion.State())
		assert.Empty(t, f.deletion.Pending())
	})
}

func TestDeletionCoordinator_Rollback(t *testing.T) {
	t.Run("restores node and edges when the persisted delete fails", func(t *testing.T) {
		f := newFixture(t)
		video := f.addVideo("clip")
		agent := f.addAgent(entities.AgentTitle)
		f.connect(video, agent)
		_, err := f.deletion.Request(context.Background(), []valueobjects.NodeID{video.ID()})
		require.NoError(t, err)

		f.videos.FailWith = errors.New("delete throttled")
		err = f.deletion.Confirm(context.Background())

		require.Error(t, err)
		assert.True(t, f.canvas.HasNode(video.ID()))
		require.Len(t, f.canvas.Edges(), 1)
		assert.Equal(t, video.ID(), f.canvas.Edges()[0].SourceID)

		// Reconcile after the rollback re-mirrors the restored edge.
		videoForeign, _ := video.ForeignID()
		assert.Equal(t, []valueobjects.ForeignID{videoForeign}, f.agentPayload(agent.ID()).Connections)
	})

	t.Run("rolls back only the failing node of a batch", func(t *testing.T) {
		f := newFixture(t)
		video := f.addVideo("clip")
		transcription := f.addTranscription("clip.srt", valueobjects.VideoID(""))
		_, err := f.deletion.Request(context.Background(), []valueobjects.NodeID{video.ID(), transcription.ID()})
		require.NoError(t, err)

		f.videos.FailWith = errors.New("delete throttled")
		err = f.deletion.Confirm(context.Background())

		require.Error(t, err)
		assert.True(t, f.canvas.HasNode(video.ID()))
		assert.False(t, f.canvas.HasNode(transcription.ID()))
	})
}
