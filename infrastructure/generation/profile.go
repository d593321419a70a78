package generation

import (
	"context"

	"canvas-backend/application/ports"
	"canvas-backend/domain/core/valueobjects"
)

// StaticProfileProvider serves one configured creator profile for every
// project. Per-project profiles live upstream; the canvas backend only needs
// the active creator's.
type StaticProfileProvider struct {
	profile ports.CreatorProfile
}

var _ ports.ProfileProvider = (*StaticProfileProvider)(nil)

// NewStaticProfileProvider creates a provider around a fixed profile.
func NewStaticProfileProvider(profile ports.CreatorProfile) *StaticProfileProvider {
	return &StaticProfileProvider{profile: profile}
}

func (p *StaticProfileProvider) Profile(ctx context.Context, projectID valueobjects.ProjectID) (ports.CreatorProfile, error) {
	return p.profile, nil
}
