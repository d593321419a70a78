package aggregates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"
	"canvas-backend/domain/events"
	pkgerrors "canvas-backend/pkg/errors"
)

func newTestCanvas(t *testing.T) *Canvas {
	t.Helper()
	canvas, err := NewCanvas(valueobjects.NewProjectID(), nil)
	require.NoError(t, err)
	return canvas
}

func newTestVideoNode(t *testing.T) *entities.Node {
	t.Helper()
	pos, err := valueobjects.NewPosition(100, 100)
	require.NoError(t, err)
	node, err := entities.NewVideoNode(entities.VideoPayload{
		VideoID: valueobjects.NewVideoID(),
		Title:   "launch video",
	}, pos)
	require.NoError(t, err)
	return node
}

func newTestAgentNode(t *testing.T, agentType entities.AgentType) *entities.Node {
	t.Helper()
	pos, err := valueobjects.NewPosition(400, 100)
	require.NoError(t, err)
	node, err := entities.NewAgentNode(entities.AgentPayload{
		AgentID: valueobjects.NewAgentID(),
		Type:    agentType,
	}, pos)
	require.NoError(t, err)
	return node
}

func TestNewCanvas(t *testing.T) {
	t.Run("creates empty canvas", func(t *testing.T) {
		projectID := valueobjects.NewProjectID()
		canvas, err := NewCanvas(projectID, nil)

		require.NoError(t, err)
		assert.Equal(t, projectID, canvas.ProjectID())
		assert.Empty(t, canvas.Nodes())
		assert.Empty(t, canvas.Edges())
		assert.False(t, canvas.IsLoaded())
	})

	t.Run("rejects empty project id", func(t *testing.T) {
		_, err := NewCanvas(valueobjects.ProjectID(""), nil)
		assert.True(t, pkgerrors.IsValidation(err))
	})
}

func TestCanvas_AddNode(t *testing.T) {
	t.Run("adds node and binds identity", func(t *testing.T) {
		canvas := newTestCanvas(t)
		node := newTestVideoNode(t)

		err := canvas.AddNode(node)

		require.NoError(t, err)
		assert.True(t, canvas.HasNode(node.ID()))

		foreign, ok := node.ForeignID()
		require.True(t, ok)
		resolved, ok := canvas.Identities().NodeFor(foreign)
		require.True(t, ok)
		assert.Equal(t, node.ID(), resolved)
	})

	t.Run("rejects duplicate node", func(t *testing.T) {
		canvas := newTestCanvas(t)
		node := newTestVideoNode(t)

		require.NoError(t, canvas.AddNode(node))
		err := canvas.AddNode(node)

		assert.True(t, pkgerrors.IsConflict(err))
	})

	t.Run("emits node added event", func(t *testing.T) {
		canvas := newTestCanvas(t)
		node := newTestVideoNode(t)

		require.NoError(t, canvas.AddNode(node))

		raised := canvas.GetUncommittedEvents()
		require.Len(t, raised, 1)
		assert.Equal(t, events.TypeNodeAdded, raised[0].GetEventType())
	})

	t.Run("load does not emit events", func(t *testing.T) {
		canvas := newTestCanvas(t)
		node := newTestVideoNode(t)

		require.NoError(t, canvas.LoadNode(node))

		assert.Empty(t, canvas.GetUncommittedEvents())
		assert.True(t, canvas.HasNode(node.ID()))
	})
}

func TestCanvas_AddEdge(t *testing.T) {
	t.Run("connects source to agent", func(t *testing.T) {
		canvas := newTestCanvas(t)
		video := newTestVideoNode(t)
		agent := newTestAgentNode(t, entities.AgentTitle)
		require.NoError(t, canvas.AddNode(video))
		require.NoError(t, canvas.AddNode(agent))

		edge := NewEdge(video.ID(), agent.ID(), "output", "input")
		err := canvas.AddEdge(edge)

		require.NoError(t, err)
		into := canvas.EdgesInto(agent.ID())
		require.Len(t, into, 1)
		assert.Equal(t, video.ID(), into[0].SourceID)
	})

	t.Run("rejects non-agent target", func(t *testing.T) {
		canvas := newTestCanvas(t)
		video := newTestVideoNode(t)
		agent := newTestAgentNode(t, entities.AgentTitle)
		require.NoError(t, canvas.AddNode(video))
		require.NoError(t, canvas.AddNode(agent))

		err := canvas.AddEdge(NewEdge(agent.ID(), video.ID(), "output", "input"))

		assert.True(t, pkgerrors.IsValidation(err))
	})

	t.Run("rejects self loop", func(t *testing.T) {
		canvas := newTestCanvas(t)
		agent := newTestAgentNode(t, entities.AgentTitle)
		require.NoError(t, canvas.AddNode(agent))

		err := canvas.AddEdge(NewEdge(agent.ID(), agent.ID(), "output", "input"))

		assert.True(t, pkgerrors.IsValidation(err))
	})

	t.Run("rejects missing endpoint", func(t *testing.T) {
		canvas := newTestCanvas(t)
		agent := newTestAgentNode(t, entities.AgentTitle)
		require.NoError(t, canvas.AddNode(agent))

		err := canvas.AddEdge(NewEdge(valueobjects.NodeID("video-missing"), agent.ID(), "output", "input"))

		assert.True(t, pkgerrors.IsValidation(err))
	})
}

func TestCanvas_RemoveNodes(t *testing.T) {
	t.Run("removes node with incident edges", func(t *testing.T) {
		canvas := newTestCanvas(t)
		video := newTestVideoNode(t)
		agent := newTestAgentNode(t, entities.AgentTitle)
		require.NoError(t, canvas.AddNode(video))
		require.NoError(t, canvas.AddNode(agent))
		require.NoError(t, canvas.AddEdge(NewEdge(video.ID(), agent.ID(), "output", "input")))

		removed := canvas.RemoveNodes([]valueobjects.NodeID{video.ID()})

		require.Len(t, removed, 1)
		assert.Equal(t, video.ID(), removed[0].Node.ID())
		assert.Len(t, removed[0].Edges, 1)
		assert.False(t, canvas.HasNode(video.ID()))
		assert.Empty(t, canvas.Edges())
		assert.NoError(t, canvas.Validate())
	})

	t.Run("unbinds identity", func(t *testing.T) {
		canvas := newTestCanvas(t)
		video := newTestVideoNode(t)
		require.NoError(t, canvas.AddNode(video))
		foreign, _ := video.ForeignID()

		canvas.RemoveNodes([]valueobjects.NodeID{video.ID()})

		_, ok := canvas.Identities().NodeFor(foreign)
		assert.False(t, ok)
	})

	t.Run("ignores unknown ids", func(t *testing.T) {
		canvas := newTestCanvas(t)

		removed := canvas.RemoveNodes([]valueobjects.NodeID{"video-missing"})

		assert.Empty(t, removed)
		assert.Empty(t, canvas.GetUncommittedEvents())
	})
}

func TestCanvas_RestoreNode(t *testing.T) {
	t.Run("restores node and surviving edges", func(t *testing.T) {
		canvas := newTestCanvas(t)
		video := newTestVideoNode(t)
		agent := newTestAgentNode(t, entities.AgentTitle)
		require.NoError(t, canvas.AddNode(video))
		require.NoError(t, canvas.AddNode(agent))
		require.NoError(t, canvas.AddEdge(NewEdge(video.ID(), agent.ID(), "output", "input")))

		removed := canvas.RemoveNodes([]valueobjects.NodeID{video.ID()})
		require.Len(t, removed, 1)

		require.NoError(t, canvas.RestoreNode(removed[0]))

		assert.True(t, canvas.HasNode(video.ID()))
		assert.Len(t, canvas.EdgesInto(agent.ID()), 1)
		assert.NoError(t, canvas.Validate())
	})

	t.Run("drops edges whose other endpoint is gone", func(t *testing.T) {
		canvas := newTestCanvas(t)
		video := newTestVideoNode(t)
		agent := newTestAgentNode(t, entities.AgentTitle)
		require.NoError(t, canvas.AddNode(video))
		require.NoError(t, canvas.AddNode(agent))
		require.NoError(t, canvas.AddEdge(NewEdge(video.ID(), agent.ID(), "output", "input")))

		removed := canvas.RemoveNodes([]valueobjects.NodeID{video.ID(), agent.ID()})
		require.Len(t, removed, 2)

		// Restore only the video; its edge to the deleted agent must not return.
		var videoRemoved RemovedNode
		for _, r := range removed {
			if r.Node.ID() == video.ID() {
				videoRemoved = r
			}
		}
		require.NoError(t, canvas.RestoreNode(videoRemoved))

		assert.True(t, canvas.HasNode(video.ID()))
		assert.Empty(t, canvas.Edges())
		assert.NoError(t, canvas.Validate())
	})
}

func TestCanvas_UpdateNode(t *testing.T) {
	t.Run("applies payload patch", func(t *testing.T) {
		canvas := newTestCanvas(t)
		video := newTestVideoNode(t)
		require.NoError(t, canvas.AddNode(video))

		title := "renamed"
		err := canvas.UpdateNode(video.ID(), entities.NodePatch{
			Video: &entities.VideoPatch{Title: &title},
		})

		require.NoError(t, err)
		payload, ok := video.Video()
		require.True(t, ok)
		assert.Equal(t, "renamed", payload.Title)
	})

	t.Run("emits move event on position change", func(t *testing.T) {
		canvas := newTestCanvas(t)
		video := newTestVideoNode(t)
		require.NoError(t, canvas.AddNode(video))
		canvas.MarkEventsAsCommitted()

		pos, err := valueobjects.NewPosition(500, 300)
		require.NoError(t, err)
		require.NoError(t, canvas.UpdateNode(video.ID(), entities.NodePatch{Position: &pos}))

		types := eventTypes(canvas.GetUncommittedEvents())
		assert.Contains(t, types, events.TypeNodeMoved)
	})

	t.Run("emits status event on agent transition", func(t *testing.T) {
		canvas := newTestCanvas(t)
		agent := newTestAgentNode(t, entities.AgentTitle)
		require.NoError(t, canvas.AddNode(agent))
		canvas.MarkEventsAsCommitted()

		status := entities.AgentGenerating
		require.NoError(t, canvas.UpdateNode(agent.ID(), entities.NodePatch{
			Agent: &entities.AgentPatch{Status: &status},
		}))

		types := eventTypes(canvas.GetUncommittedEvents())
		assert.Contains(t, types, events.TypeAgentStatusChanged)
	})

	t.Run("preserves connections when patch omits them", func(t *testing.T) {
		canvas := newTestCanvas(t)
		agent := newTestAgentNode(t, entities.AgentTitle)
		require.NoError(t, canvas.AddNode(agent))

		conns := []valueobjects.ForeignID{"video-record-1"}
		require.NoError(t, canvas.UpdateNode(agent.ID(), entities.NodePatch{
			Agent: &entities.AgentPatch{Connections: &conns},
		}))

		draft := "a title"
		require.NoError(t, canvas.UpdateNode(agent.ID(), entities.NodePatch{
			Agent: &entities.AgentPatch{Draft: &draft},
		}))

		payload, ok := agent.Agent()
		require.True(t, ok)
		assert.Equal(t, conns, payload.Connections)
	})

	t.Run("rejects unknown node", func(t *testing.T) {
		canvas := newTestCanvas(t)
		err := canvas.UpdateNode("video-missing", entities.NodePatch{})
		assert.True(t, pkgerrors.IsNotFound(err))
	})
}

func TestCanvas_ConnectionsFor(t *testing.T) {
	canvas := newTestCanvas(t)
	video := newTestVideoNode(t)
	agent := newTestAgentNode(t, entities.AgentDescription)
	mood := entities.NewMoodBoardNode(entities.MoodBoardPayload{}, valueobjects.Position{})
	require.NoError(t, canvas.AddNode(video))
	require.NoError(t, canvas.AddNode(agent))
	require.NoError(t, canvas.AddNode(mood))
	require.NoError(t, canvas.AddEdge(NewEdge(video.ID(), agent.ID(), "output", "input")))
	require.NoError(t, canvas.AddEdge(NewEdge(mood.ID(), agent.ID(), "output", "input")))

	conns := canvas.ConnectionsFor(agent.ID())

	// The mood board has no persisted record, so only the video resolves.
	videoForeign, _ := video.ForeignID()
	assert.Equal(t, []valueobjects.ForeignID{videoForeign}, conns)
}

func TestCanvas_Viewport(t *testing.T) {
	canvas := newTestCanvas(t)

	_, set := canvas.Viewport()
	assert.False(t, set)

	v := valueobjects.Viewport{X: 50, Y: -20, Zoom: 1.5}
	require.NoError(t, canvas.SetViewport(v))

	got, set := canvas.Viewport()
	assert.True(t, set)
	assert.Equal(t, v, got)
}

func TestCanvas_ChatLog(t *testing.T) {
	canvas := newTestCanvas(t)
	earlier := entities.ChatMessage{ID: "1", Role: entities.ChatRoleUser, Text: "first", Timestamp: time.Now().Add(-time.Minute)}
	later := entities.ChatMessage{ID: "2", Role: entities.ChatRoleAssistant, Text: "second", Timestamp: time.Now()}

	canvas.LoadChatLog([]entities.ChatMessage{later, earlier})

	log := canvas.ChatLog()
	require.Len(t, log, 2)
	assert.Equal(t, "first", log[0].Text)
	assert.Equal(t, "second", log[1].Text)
}

func TestCanvas_DrainEvents(t *testing.T) {
	canvas := newTestCanvas(t)
	require.NoError(t, canvas.AddNode(newTestVideoNode(t)))

	drained := canvas.DrainEvents()
	assert.Len(t, drained, 1)
	assert.Empty(t, canvas.GetUncommittedEvents())
}

func eventTypes(evts []events.DomainEvent) []string {
	types := make([]string, 0, len(evts))
	for _, e := range evts {
		types = append(types, e.GetEventType())
	}
	return types
}
