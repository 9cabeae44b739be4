package picker

import (
	"context"

	"github.com/orgball2608/story-engine/internal/domain"
)

//go:generate go run go.uber.org/mock/mockgen -source=picker.go -destination=mocks/mock.go

// Picker returns zero or more media references. An empty result means the
// user picked nothing.
type Picker interface {
	Pick(ctx context.Context) ([]domain.MediaReference, error)
}
