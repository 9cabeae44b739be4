package story

import (
	"context"
	"errors"
	"time"

	"github.com/orgball2608/story-engine/internal/domain"
)

var ErrNotFound = errors.New("story not found")
var ErrCannotCreate = errors.New("error create story")

//go:generate go run go.uber.org/mock/mockgen -source=story.go -destination=mocks/mock.go

// Repository persists published stories. Stories are written once and never
// updated.
type Repository interface {
	Create(ctx context.Context, story domain.Story) error
	GetByID(ctx context.Context, id string) (*domain.Story, error)
	ListActiveByCreator(ctx context.Context, creatorID string, now time.Time) ([]domain.Story, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
