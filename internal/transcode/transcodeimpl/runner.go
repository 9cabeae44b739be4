package transcodeimpl

import (
	"context"
	"time"

	"github.com/orgball2608/story-engine/internal/transcode"
	"github.com/orgball2608/story-engine/pkg/config"
	"github.com/orgball2608/story-engine/pkg/errors"
	"github.com/orgball2608/story-engine/pkg/logger"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/fx"
)

type RunnerOpts struct {
	fx.In

	LC       fx.Lifecycle `optional:"true"`
	Pipeline transcode.Pipeline
	Logger   logger.Logger
	Config   *config.Config
}

// PoolRunner bounds concurrent exports with an ants pool.
type PoolRunner struct {
	pool     *ants.Pool
	pipeline transcode.Pipeline
	log      logger.Logger
}

var _ transcode.Runner = (*PoolRunner)(nil)

func NewRunner(opts RunnerOpts) (*PoolRunner, error) {
	workers := 4
	if opts.Config != nil && opts.Config.Transcode.Workers > 0 {
		workers = opts.Config.Transcode.Workers
	}

	pool, err := ants.NewPool(workers, ants.WithPreAlloc(true))
	if err != nil {
		return nil, err
	}

	r := &PoolRunner{
		pool:     pool,
		pipeline: opts.Pipeline,
		log:      opts.Logger,
	}

	if opts.LC != nil {
		opts.LC.Append(fx.Hook{
			OnStop: func(context.Context) error {
				return r.Close()
			},
		})
	}
	return r, nil
}

// PrepareAsync queues the job and returns at once. A full pool makes the job
// wait for a free worker, never the caller.
func (r *PoolRunner) PrepareAsync(ctx context.Context, source string, limits transcode.Limits) <-chan transcode.Result {
	out := make(chan transcode.Result, 1)

	task := func() {
		prepared, err := r.pipeline.Prepare(ctx, source, limits)
		out <- transcode.Result{Prepared: prepared, Err: err}
		close(out)
	}

	go func() {
		if err := r.pool.Submit(task); err != nil {
			r.log.Error("Failed to submit transcode job to ants pool", "source", source, "error", err)
			out <- transcode.Result{Err: errors.WrapWithCode(err, errors.CodeExportFailed, "Video processing is unavailable")}
			close(out)
		}
	}()

	return out
}

// Close waits up to ten seconds for running exports and releases the pool.
func (r *PoolRunner) Close() error {
	return r.pool.ReleaseTimeout(10 * time.Second)
}
