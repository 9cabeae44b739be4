package profile

import (
	"context"

	"github.com/orgball2608/story-engine/internal/domain"
)

//go:generate go run go.uber.org/mock/mockgen -source=profile.go -destination=mocks/mock.go

// Provider supplies the identity attached to published stories and the
// identity of whoever is watching.
type Provider interface {
	Creator(ctx context.Context) (domain.Identity, error)
	Viewer(ctx context.Context) (domain.Identity, error)
}
