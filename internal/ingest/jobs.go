package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/story-engine/internal/transcode"
	"github.com/orgball2608/story-engine/pkg/errors"
	"github.com/orgball2608/story-engine/pkg/logger"
)

type Status string

const (
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

// Job is one server-side prepare request.
type Job struct {
	ID         string     `json:"id"`
	CreatorID  string     `json:"creator_id"`
	Source     string     `json:"source"`
	Status     Status     `json:"status"`
	Output     string     `json:"output,omitempty"`
	Tier       string     `json:"tier,omitempty"`
	DurationMS int64      `json:"duration_ms,omitempty"`
	SizeBytes  int64      `json:"size_bytes,omitempty"`
	HasAudio   bool       `json:"has_audio,omitempty"`
	ErrorCode  string     `json:"error_code,omitempty"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Jobs tracks prepare requests handed to the transcode runner. Finished jobs
// are forgotten after the retention period.
type Jobs struct {
	runner    transcode.Runner
	limits    transcode.Limits
	log       logger.Logger
	clock     clockwork.Clock
	retention time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewJobs(runner transcode.Runner, limits transcode.Limits, retention time.Duration, log logger.Logger, clock clockwork.Clock) *Jobs {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Jobs{
		runner:    runner,
		limits:    limits,
		log:       log,
		clock:     clock,
		retention: retention,
		ctx:       ctx,
		cancel:    cancel,
		jobs:      make(map[string]*Job),
	}
}

// Submit starts preparing source and returns the new job right away.
func (j *Jobs) Submit(creatorID, source string) Job {
	job := &Job{
		ID:        uuid.NewString(),
		CreatorID: creatorID,
		Source:    source,
		Status:    StatusProcessing,
		CreatedAt: j.clock.Now(),
	}

	j.mu.Lock()
	j.pruneLocked(job.CreatedAt)
	j.jobs[job.ID] = job
	snapshot := *job
	j.mu.Unlock()

	results := j.runner.PrepareAsync(j.ctx, source, j.limits)
	j.wg.Add(1)
	go j.await(job.ID, results)

	j.log.Info("Transcode job accepted", "job_id", job.ID, "creator_id", creatorID, "source", source)
	return snapshot
}

func (j *Jobs) await(id string, results <-chan transcode.Result) {
	defer j.wg.Done()

	var res transcode.Result
	select {
	case r, ok := <-results:
		res = r
		if !ok {
			res.Err = errors.NewWithCode(errors.CodeExportFailed, "The video could not be converted")
		}
	case <-j.ctx.Done():
		res.Err = errors.NewWithCode(errors.CodeCancelled, "The server is shutting down")
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	job, ok := j.jobs[id]
	if !ok {
		return
	}
	now := j.clock.Now()
	job.FinishedAt = &now

	if res.Err != nil {
		job.Status = StatusFailed
		job.ErrorCode = errors.GetCode(res.Err)
		job.Error = errors.GetMessage(res.Err)
		j.log.Warn("Transcode job failed", "job_id", id, "code", job.ErrorCode, "error", res.Err)
		return
	}

	job.Status = StatusDone
	job.Output = res.Prepared.Path
	job.Tier = res.Prepared.Tier
	job.DurationMS = res.Prepared.Duration.Milliseconds()
	job.SizeBytes = res.Prepared.SizeBytes
	job.HasAudio = res.Prepared.HasAudio
	j.log.Info("Transcode job finished", "job_id", id, "tier", job.Tier, "size_bytes", job.SizeBytes)
}

func (j *Jobs) Get(id string) (Job, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	job, ok := j.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// Close cancels running jobs and waits for their results.
func (j *Jobs) Close() {
	j.cancel()
	j.wg.Wait()
}

func (j *Jobs) pruneLocked(now time.Time) {
	if j.retention <= 0 {
		return
	}
	for id, job := range j.jobs {
		if job.FinishedAt != nil && now.Sub(*job.FinishedAt) > j.retention {
			delete(j.jobs, id)
		}
	}
}
