package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"canvas-backend/application/ports"
	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"
	domainevents "canvas-backend/domain/events"
)

func newPoller(f *fixture) *TranscriptionPoller {
	return NewTranscriptionPoller(f.canvas, f.videos, f.registry, 0, zap.NewNop())
}

func TestTranscriptionPoller_PollOnce(t *testing.T) {
	t.Run("does nothing before the canvas is loaded", func(t *testing.T) {
		f := newFixture(t)
		f.addVideo("clip")
		recorder := newRecordingHandler(domainevents.TypeNodeUpdated)
		require.NoError(t, f.registry.Register([]string{domainevents.TypeNodeUpdated}, recorder))

		newPoller(f).PollOnce(context.Background())

		assert.Empty(t, recorder.ofType(domainevents.TypeNodeUpdated))
	})

	t.Run("folds a completed transcription into the node", func(t *testing.T) {
		f := newFixture(t)
		f.canvas.MarkLoaded()
		video := f.addVideo("clip")
		recorder := newRecordingHandler(domainevents.TypeNodeUpdated)
		require.NoError(t, f.registry.Register([]string{domainevents.TypeNodeUpdated}, recorder))

		payload, _ := video.Video()
		require.NoError(t, f.videos.Save(context.Background(), ports.VideoRecord{
			ID:                 payload.VideoID,
			ProjectID:          f.canvas.ProjectID(),
			Title:              "clip",
			TranscriptionState: entities.TranscriptionReady,
			TranscriptionText:  "finished transcript",
		}))

		newPoller(f).PollOnce(context.Background())

		node, err := f.canvas.FindNode(video.ID())
		require.NoError(t, err)
		got, _ := node.Video()
		assert.Equal(t, entities.TranscriptionReady, got.TranscriptionState)
		assert.Equal(t, "finished transcript", got.TranscriptionText)
		assert.Len(t, recorder.ofType(domainevents.TypeNodeUpdated), 1)
	})

	t.Run("unchanged records emit nothing", func(t *testing.T) {
		f := newFixture(t)
		f.canvas.MarkLoaded()
		f.addVideo("clip")
		versionBefore := f.canvas.Version()
		recorder := newRecordingHandler(domainevents.TypeNodeUpdated)
		require.NoError(t, f.registry.Register([]string{domainevents.TypeNodeUpdated}, recorder))

		newPoller(f).PollOnce(context.Background())

		assert.Equal(t, versionBefore, f.canvas.Version())
		assert.Empty(t, recorder.ofType(domainevents.TypeNodeUpdated))
	})

	t.Run("records without a node on the canvas are skipped", func(t *testing.T) {
		f := newFixture(t)
		f.canvas.MarkLoaded()
		require.NoError(t, f.videos.Save(context.Background(), ports.VideoRecord{
			ID:                 valueobjects.NewVideoID(),
			ProjectID:          f.canvas.ProjectID(),
			TranscriptionState: entities.TranscriptionReady,
		}))

		newPoller(f).PollOnce(context.Background())

		assert.Empty(t, f.canvas.Nodes())
	})

	t.Run("a failed list is retried on the next tick", func(t *testing.T) {
		f := newFixture(t)
		f.canvas.MarkLoaded()
		video := f.addVideo("clip")
		payload, _ := video.Video()

		f.videos.FailWith = errors.New("list throttled")
		poller := newPoller(f)
		poller.PollOnce(context.Background())

		f.videos.FailWith = nil
		require.NoError(t, f.videos.Save(context.Background(), ports.VideoRecord{
			ID:                 payload.VideoID,
			ProjectID:          f.canvas.ProjectID(),
			Title:              "clip",
			TranscriptionState: entities.TranscriptionFailed,
		}))
		poller.PollOnce(context.Background())

		node, err := f.canvas.FindNode(video.ID())
		require.NoError(t, err)
		got, _ := node.Video()
		assert.Equal(t, entities.TranscriptionFailed, got.TranscriptionState)
	})
}

func TestVideoPatchFromRecord(t *testing.T) {
	current := entities.VideoPayload{
		Title:              "clip",
		Duration:           120,
		TranscriptionState: entities.TranscriptionPending,
	}

	t.Run("identical record yields no patch", func(t *testing.T) {
		record := ports.VideoRecord{
			Title:              "clip",
			Duration:           120,
			TranscriptionState: entities.TranscriptionPending,
		}
		assert.Nil(t, videoPatchFromRecord(current, record))
	})

	t.Run("changed fields are patched individually", func(t *testing.T) {
		record := ports.VideoRecord{
			Title:              "clip (final)",
			Duration:           120,
			TranscriptionState: entities.TranscriptionReady,
			TranscriptionText:  "done",
		}
		patch := videoPatchFromRecord(current, record)

		require.NotNil(t, patch)
		require.NotNil(t, patch.Title)
		assert.Equal(t, "clip (final)", *patch.Title)
		require.NotNil(t, patch.TranscriptionState)
		assert.Equal(t, entities.TranscriptionReady, *patch.TranscriptionState)
		require.NotNil(t, patch.TranscriptionText)
		assert.Equal(t, "done", *patch.TranscriptionText)
		assert.Nil(t, patch.Duration)
	})
}
