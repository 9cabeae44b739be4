package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jonboulle/clockwork"
	_ "github.com/lib/pq"
	"github.com/orgball2608/story-engine/internal/capture/captureimpl"
	"github.com/orgball2608/story-engine/internal/composition"
	"github.com/orgball2608/story-engine/internal/expiry"
	"github.com/orgball2608/story-engine/internal/haptics"
	"github.com/orgball2608/story-engine/internal/haptics/hapticsimpl"
	"github.com/orgball2608/story-engine/internal/ingest"
	_ "github.com/orgball2608/story-engine/internal/migrations"
	"github.com/orgball2608/story-engine/internal/playback"
	"github.com/orgball2608/story-engine/internal/profile"
	"github.com/orgball2608/story-engine/internal/profile/profileimpl"
	repositories "github.com/orgball2608/story-engine/internal/repositories/fx"
	"github.com/orgball2608/story-engine/internal/storage"
	"github.com/orgball2608/story-engine/internal/storage/minioimpl"
	"github.com/orgball2608/story-engine/internal/transcode/transcodeimpl"
	"github.com/orgball2608/story-engine/pkg/config"
	"github.com/orgball2608/story-engine/pkg/logger"
	"github.com/orgball2608/story-engine/pkg/metrics"
	"github.com/orgball2608/story-engine/pkg/pgx"
	"github.com/pressly/goose/v3"
	"go.uber.org/fx"
)

// Base is configuration, logging, metrics and the clock.
var Base = fx.Options(
	fx.Provide(
		config.New,
		logger.FxOption,
		metrics.New,
		func() clockwork.Clock { return clockwork.NewRealClock() },
	),
)

// Storage is the story store and the media bucket. Migrations run before
// anything else starts.
var Storage = fx.Options(
	fx.Provide(
		pgx.New,
		fx.Annotate(
			minioimpl.New,
			fx.As(new(storage.Uploader)),
		),
	),
	repositories.Module,
	fx.Invoke(migrate),
)

// Engine is capture, transcoding, composition and playback with their
// local collaborators.
var Engine = fx.Options(
	fx.Provide(
		fx.Annotate(
			hapticsimpl.New,
			fx.As(new(haptics.Service)),
		),
		fx.Annotate(
			profileimpl.New,
			fx.As(new(profile.Provider)),
		),
	),
	transcodeimpl.Module,
	captureimpl.Module,
	composition.Module,
	playback.Module,
)

// Server adds the background sweep and the ingestion HTTP API.
var Server = fx.Options(
	expiry.Module,
	ingest.Module,
)

var Module = fx.Options(
	Base,
	Storage,
	Engine,
	Server,
)

func migrate(lc fx.Lifecycle, cfg *config.Config, log logger.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return Migrate(ctx, cfg, log)
		},
	})
}

// Migrate applies every pending migration.
func Migrate(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	if err := goose.UpContext(ctx, db, cfg.Postgres.MigrationsDir); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	log.Info("Migrations applied", "dir", cfg.Postgres.MigrationsDir)
	return nil
}
