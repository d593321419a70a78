package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvas-backend/application/ports"
	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"
)

func seedProjectRecords(t *testing.T, f *fixture) (ports.VideoRecord, ports.AgentRecord, ports.TranscriptionRecord) {
	t.Helper()
	ctx := context.Background()
	projectID := f.canvas.ProjectID()

	video := ports.VideoRecord{
		ID:                 valueobjects.NewVideoID(),
		ProjectID:          projectID,
		Title:              "launch recap",
		TranscriptionState: entities.TranscriptionReady,
		TranscriptionText:  "welcome back everyone",
	}
	require.NoError(t, f.videos.Save(ctx, video))

	agent := ports.AgentRecord{
		ID:          valueobjects.NewAgentID(),
		ProjectID:   projectID,
		Type:        entities.AgentTitle,
		Status:      entities.AgentReady,
		Draft:       "Launch Recap: Everything Shipped",
		Connections: []valueobjects.ForeignID{video.ID.Foreign()},
		ChatHistory: []entities.ChatMessage{{
			ID:        "msg-1",
			Role:      entities.ChatRoleUser,
			Text:      "@title make it punchier",
			Timestamp: time.Now(),
		}},
	}
	require.NoError(t, f.agents.Save(ctx, agent))

	transcription := ports.TranscriptionRecord{
		ID:        valueobjects.NewTranscriptionID(),
		ProjectID: projectID,
		VideoID:   video.ID,
		FileName:  "recap.srt",
		Format:    "srt",
		FullText:  "welcome back everyone",
		WordCount: 3,
	}
	require.NoError(t, f.transcriptions.Save(ctx, transcription))

	return video, agent, transcription
}

func TestPersistenceSync_Load(t *testing.T) {
	t.Run("rebuilds nodes, derived edges and chat log", func(t *testing.T) {
		f := newFixture(t)
		video, agent, transcription := seedProjectRecords(t, f)

		videoNodeID := valueobjects.DeriveNodeID(valueobjects.KindVideo, video.ID.Foreign())
		agentNodeID := valueobjects.DeriveNodeID(valueobjects.KindAgent, agent.ID.Foreign())
		savedPos := f.pos(250, 300)
		viewport := valueobjects.Viewport{X: 40, Y: -20, Zoom: 1.5}
		require.NoError(t, f.snapshots.Save(context.Background(), ports.CanvasSnapshot{
			ProjectID: f.canvas.ProjectID(),
			Nodes: []ports.SnapshotNode{
				{ID: videoNodeID, Kind: valueobjects.KindVideo, Position: savedPos},
			},
			Viewport: &viewport,
		}))

		require.NoError(t, f.sync.Load(context.Background()))

		assert.True(t, f.canvas.IsLoaded())
		assert.Len(t, f.canvas.Nodes(), 3)

		videoNode, err := f.canvas.FindNode(videoNodeID)
		require.NoError(t, err)
		assert.Equal(t, savedPos, videoNode.Position())

		got, set := f.canvas.Viewport()
		assert.True(t, set)
		assert.Equal(t, viewport, got)

		// One edge derived from the agent's connections list, one from the
		// transcript's owning video.
		edges := f.canvas.Edges()
		require.Len(t, edges, 2)
		into := f.canvas.EdgesInto(agentNodeID)
		require.Len(t, into, 1)
		assert.Equal(t, videoNodeID, into[0].SourceID)

		transcriptionNodeID := valueobjects.DeriveNodeID(valueobjects.KindTranscription, transcription.ID.Foreign())
		owned := f.canvas.EdgesInto(transcriptionNodeID)
		require.Len(t, owned, 1)
		assert.Equal(t, videoNodeID, owned[0].SourceID)

		chat := f.canvas.ChatLog()
		require.Len(t, chat, 1)
		assert.Equal(t, "@title make it punchier", chat[0].Text)
	})

	t.Run("restores mood boards from the snapshot", func(t *testing.T) {
		f := newFixture(t)
		moodNodeID := valueobjects.NewTempNodeID(valueobjects.KindMoodBoard)
		require.NoError(t, f.snapshots.Save(context.Background(), ports.CanvasSnapshot{
			ProjectID: f.canvas.ProjectID(),
			Nodes: []ports.SnapshotNode{{
				ID:       moodNodeID,
				Kind:     valueobjects.KindMoodBoard,
				Position: f.pos(120, 80),
				MoodBoard: &entities.MoodBoardPayload{
					Items: []entities.MoodItem{{ID: "m1", URL: "https://example.com/a.png", Type: entities.MoodImage}},
				},
			}},
		}))

		require.NoError(t, f.sync.Load(context.Background()))

		node, err := f.canvas.FindNode(moodNodeID)
		require.NoError(t, err)
		payload, ok := node.MoodBoard()
		require.True(t, ok)
		require.Len(t, payload.Items, 1)
		assert.Equal(t, "https://example.com/a.png", payload.Items[0].URL)
		assert.False(t, payload.InUse)
	})

	t.Run("runs at most once per session", func(t *testing.T) {
		f := newFixture(t)
		seedProjectRecords(t, f)
		require.NoError(t, f.sync.Load(context.Background()))
		before := len(f.canvas.Nodes())

		require.NoError(t, f.videos.Save(context.Background(), ports.VideoRecord{
			ID:        valueobjects.NewVideoID(),
			ProjectID: f.canvas.ProjectID(),
			Title:     "late arrival",
		}))
		require.NoError(t, f.sync.Load(context.Background()))

		assert.Equal(t, before, len(f.canvas.Nodes()))
	})

	t.Run("fails without building anything when a collection fails", func(t *testing.T) {
		f := newFixture(t)
		seedProjectRecords(t, f)
		f.transcriptions.FailWith = errors.New("table unavailable")

		err := f.sync.Load(context.Background())

		require.Error(t, err)
		assert.False(t, f.canvas.IsLoaded())
		assert.Empty(t, f.canvas.Nodes())
	})

	t.Run("drops unresolvable connection ids and counts them", func(t *testing.T) {
		f := newFixture(t)
		agent := ports.AgentRecord{
			ID:          valueobjects.NewAgentID(),
			ProjectID:   f.canvas.ProjectID(),
			Type:        entities.AgentDescription,
			Connections: []valueobjects.ForeignID{"gone-video-1", "gone-video-2"},
		}
		require.NoError(t, f.agents.Save(context.Background(), agent))

		require.NoError(t, f.sync.Load(context.Background()))

		assert.Empty(t, f.canvas.Edges())
		assert.Equal(t, float64(2), testutil.ToFloat64(f.metrics.DroppedConnectionIDs))
	})

	t.Run("deduplicates repeated connection ids", func(t *testing.T) {
		f := newFixture(t)
		video := ports.VideoRecord{ID: valueobjects.NewVideoID(), ProjectID: f.canvas.ProjectID(), Title: "v"}
		require.NoError(t, f.videos.Save(context.Background(), video))
		agent := ports.AgentRecord{
			ID:        valueobjects.NewAgentID(),
			ProjectID: f.canvas.ProjectID(),
			Type:      entities.AgentTitle,
			Connections: []valueobjects.ForeignID{
				video.ID.Foreign(), video.ID.Foreign(), video.ID.Foreign(),
			},
		}
		require.NoError(t, f.agents.Save(context.Background(), agent))

		require.NoError(t, f.sync.Load(context.Background()))

		assert.Len(t, f.canvas.Edges(), 1)
	})

	t.Run("restores the persisted agent status", func(t *testing.T) {
		f := newFixture(t)
		agent := ports.AgentRecord{
			ID:        valueobjects.NewAgentID(),
			ProjectID: f.canvas.ProjectID(),
			Type:      entities.AgentTitle,
			Status:    entities.AgentError,
			Draft:     "old draft",
		}
		require.NoError(t, f.agents.Save(context.Background(), agent))

		require.NoError(t, f.sync.Load(context.Background()))

		node, err := f.canvas.FindNode(valueobjects.DeriveNodeID(valueobjects.KindAgent, agent.ID.Foreign()))
		require.NoError(t, err)
		payload, ok := node.Agent()
		require.True(t, ok)
		assert.Equal(t, entities.AgentError, payload.Status)
	})

	t.Run("a record stuck in generating comes back settled", func(t *testing.T) {
		f := newFixture(t)
		drafted := ports.AgentRecord{
			ID:        valueobjects.NewAgentID(),
			ProjectID: f.canvas.ProjectID(),
			Type:      entities.AgentTitle,
			Status:    entities.AgentGenerating,
			Draft:     "finished before the crash",
		}
		empty := ports.AgentRecord{
			ID:        valueobjects.NewAgentID(),
			ProjectID: f.canvas.ProjectID(),
			Type:      entities.AgentDescription,
			Status:    entities.AgentGenerating,
		}
		require.NoError(t, f.agents.Save(context.Background(), drafted))
		require.NoError(t, f.agents.Save(context.Background(), empty))

		require.NoError(t, f.sync.Load(context.Background()))

		draftedNode, err := f.canvas.FindNode(valueobjects.DeriveNodeID(valueobjects.KindAgent, drafted.ID.Foreign()))
		require.NoError(t, err)
		draftedPayload, _ := draftedNode.Agent()
		assert.Equal(t, entities.AgentReady, draftedPayload.Status)

		emptyNode, err := f.canvas.FindNode(valueobjects.DeriveNodeID(valueobjects.KindAgent, empty.ID.Foreign()))
		require.NoError(t, err)
		emptyPayload, _ := emptyNode.Agent()
		assert.Equal(t, entities.AgentIdle, emptyPayload.Status)
	})

	t.Run("places records missing from the layout without overlap", func(t *testing.T) {
		f := newFixture(t)
		for i := 0; i < 3; i++ {
			require.NoError(t, f.videos.Save(context.Background(), ports.VideoRecord{
				ID:        valueobjects.NewVideoID(),
				ProjectID: f.canvas.ProjectID(),
				Title:     "untracked",
			}))
		}

		require.NoError(t, f.sync.Load(context.Background()))

		nodes := f.canvas.Nodes()
		require.Len(t, nodes, 3)
		seen := make(map[[2]float64]bool)
		for _, n := range nodes {
			key := [2]float64{n.Position().X(), n.Position().Y()}
			assert.False(t, seen[key], "two nodes share position %v", key)
			seen[key] = true
		}
	})
}

func TestPersistenceSync_BuildSnapshot(t *testing.T) {
	f := newFixture(t)
	f.canvas.MarkLoaded()
	video := f.addVideo("clip")
	agent := f.addAgent(entities.AgentTitle)
	mood := f.addMoodBoard(entities.MoodItem{ID: "m1", URL: "https://example.com/ref", Type: entities.MoodOther})
	edge := f.connect(video, agent)
	require.NoError(t, f.canvasService.SetViewport(context.Background(), valueobjects.Viewport{X: 1, Y: 2, Zoom: 0.5}))

	snapshot := f.sync.BuildSnapshot()

	assert.Equal(t, f.canvas.ProjectID(), snapshot.ProjectID)
	require.Len(t, snapshot.Nodes, 3)
	require.Len(t, snapshot.Edges, 1)
	assert.Equal(t, edge.ID, snapshot.Edges[0].ID)
	require.NotNil(t, snapshot.Viewport)
	assert.Equal(t, 0.5, snapshot.Viewport.Zoom)

	var moodEntry *ports.SnapshotNode
	for i := range snapshot.Nodes {
		if snapshot.Nodes[i].ID == mood.ID() {
			moodEntry = &snapshot.Nodes[i]
		}
	}
	require.NotNil(t, moodEntry)
	require.NotNil(t, moodEntry.MoodBoard)
	assert.Len(t, moodEntry.MoodBoard.Items, 1)
}

func TestPersistenceSync_Handle(t *testing.T) {
	t.Run("coalesces a burst of mutations into one save", func(t *testing.T) {
		f := newFixture(t)
		f.canvas.MarkLoaded()
		video := f.addVideo("clip")
		require.NoError(t, f.canvasService.SetViewport(context.Background(), valueobjects.DefaultViewport()))
		f.sync.SaveNow()
		f.snapshots.SaveCount = 0

		for i := 0; i < 5; i++ {
			require.NoError(t, f.canvasService.MoveNode(context.Background(), video.ID(), f.pos(float64(200+i*10), 100)))
		}
		f.sync.SaveNow()

		assert.Equal(t, 1, f.snapshots.SaveCount)
	})

	t.Run("viewport changes use the cheaper viewport-only write", func(t *testing.T) {
		f := newFixture(t)
		f.canvas.MarkLoaded()
		require.NoError(t, f.canvasService.SetViewport(context.Background(), valueobjects.Viewport{X: 10, Y: 10, Zoom: 1}))
		require.NoError(t, f.canvasService.SetViewport(context.Background(), valueobjects.Viewport{X: 20, Y: 20, Zoom: 1}))
		f.sync.SaveNow()

		assert.Equal(t, 1, f.snapshots.ViewportSaveCount)
		assert.Equal(t, 0, f.snapshots.SaveCount)
	})

	t.Run("ignores events raised before the first load", func(t *testing.T) {
		f := newFixture(t)
		video := f.addVideo("clip")
		require.NoError(t, f.canvasService.MoveNode(context.Background(), video.ID(), f.pos(300, 300)))
		f.sync.SaveNow()

		assert.Equal(t, 0, f.snapshots.SaveCount)
		assert.Equal(t, 0, f.snapshots.ViewportSaveCount)
	})

	t.Run("defers snapshot writes until the viewport arrives", func(t *testing.T) {
		f := newFixture(t)
		f.canvas.MarkLoaded()
		video := f.addVideo("clip")
		require.NoError(t, f.canvasService.MoveNode(context.Background(), video.ID(), f.pos(300, 300)))
		f.sync.SaveNow()

		assert.Equal(t, 0, f.snapshots.SaveCount)
	})
}
