package profileimpl

import (
	"context"

	"github.com/orgball2608/story-engine/internal/domain"
	"github.com/orgball2608/story-engine/internal/profile"
	"github.com/orgball2608/story-engine/pkg/config"
)

// StaticProvider serves the identities configured for this process.
type StaticProvider struct {
	creator domain.Identity
	viewer  domain.Identity
}

var _ profile.Provider = (*StaticProvider)(nil)

func New(cfg *config.Config) *StaticProvider {
	creator := domain.Identity{ID: cfg.Profile.CreatorID, DisplayName: cfg.Profile.CreatorName}
	viewer := domain.Identity{ID: cfg.Profile.ViewerID}
	if viewer.ID == creator.ID {
		viewer.DisplayName = creator.DisplayName
	}
	return &StaticProvider{creator: creator, viewer: viewer}
}

func (p *StaticProvider) Creator(context.Context) (domain.Identity, error) {
	return p.creator, nil
}

func (p *StaticProvider) Viewer(context.Context) (domain.Identity, error) {
	return p.viewer, nil
}
