package specifications

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"canvas-backend/domain/core/valueobjects"
)

func TestValidConnection(t *testing.T) {
	tests := []struct {
		name      string
		candidate ConnectionCandidate
		want      bool
	}{
		{
			name: "video into agent",
			candidate: ConnectionCandidate{
				SourceID: "video-1", TargetID: "agent-1",
				SourceKind: valueobjects.KindVideo, TargetKind: valueobjects.KindAgent,
			},
			want: true,
		},
		{
			name: "agent into agent",
			candidate: ConnectionCandidate{
				SourceID: "agent-1", TargetID: "agent-2",
				SourceKind: valueobjects.KindAgent, TargetKind: valueobjects.KindAgent,
			},
			want: true,
		},
		{
			name: "agent into video rejected",
			candidate: ConnectionCandidate{
				SourceID: "agent-1", TargetID: "video-1",
				SourceKind: valueobjects.KindAgent, TargetKind: valueobjects.KindVideo,
			},
			want: false,
		},
		{
			name: "self loop rejected",
			candidate: ConnectionCandidate{
				SourceID: "agent-1", TargetID: "agent-1",
				SourceKind: valueobjects.KindAgent, TargetKind: valueobjects.KindAgent,
			},
			want: false,
		},
	}

	spec := ValidConnection()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, spec.IsSatisfiedBy(tt.candidate))
		})
	}
}
