package ingest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/story-engine/internal/ratelimit"
	"github.com/orgball2608/story-engine/internal/transcode"
	mock_transcode "github.com/orgball2608/story-engine/internal/transcode/mocks"
	"github.com/orgball2608/story-engine/pkg/errors"
	"github.com/orgball2608/story-engine/pkg/logger"
	"github.com/orgball2608/story-engine/pkg/metrics"
	"go.uber.org/mock/gomock"
)

var limits = transcode.Limits{MaxDuration: 15 * time.Second, MaxSizeBytes: 50 << 20}

type testServer struct {
	router http.Handler
	runner *mock_transcode.MockRunner
	jobs   *Jobs
}

func newTestServer(t *testing.T, burst int) testServer {
	t.Helper()
	ctrl := gomock.NewController(t)
	clock := clockwork.NewFakeClock()
	runner := mock_transcode.NewMockRunner(ctrl)
	jobs := NewJobs(runner, limits, time.Hour, logger.Nop(), clock)
	t.Cleanup(jobs.Close)

	h := NewHandler(jobs, ratelimit.NewInMemoryLimiter(1, time.Minute, burst, clock), logger.Nop(), metrics.New())
	return testServer{router: h.Routes(), runner: runner, jobs: jobs}
}

func (s testServer) submit(t *testing.T, creator, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/transcode", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if creator != "" {
		req.Header.Set(CreatorHeader, creator)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s testServer) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decodeJob(t *testing.T, rec *httptest.ResponseRecorder) Job {
	t.Helper()
	var job Job
	if err := json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&job); err != nil {
		t.Fatalf("decode job: %v (body %q)", err, rec.Body.String())
	}
	return job
}

func (s testServer) waitStatus(t *testing.T, id string, want Status) Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		job, ok := s.jobs.Get(id)
		if ok && job.Status == want {
			return job
		}
		if time.Now().After(deadline) {
			t.Fatalf("job %s never reached %s (last %+v)", id, want, job)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestHandler_submitAndPoll(t *testing.T) {
	s := newTestServer(t, 3)

	results := make(chan transcode.Result, 1)
	s.runner.EXPECT().PrepareAsync(gomock.Any(), "/uploads/clip.mov", limits).Return((<-chan transcode.Result)(results))

	rec := s.submit(t, "creator-1", `{"source":"/uploads/clip.mov"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	job := decodeJob(t, rec)
	if job.ID == "" || job.Status != StatusProcessing || job.CreatorID != "creator-1" {
		t.Fatalf("job = %+v", job)
	}
	if loc := rec.Header().Get("Location"); loc != "/v1/transcode/"+job.ID {
		t.Errorf("Location = %q", loc)
	}

	results <- transcode.Result{Prepared: transcode.Prepared{
		Path:      "/tmp/out.mp4",
		Duration:  15 * time.Second,
		SizeBytes: 1234,
		Tier:      "hevc_1080p",
		HasAudio:  true,
	}}
	s.waitStatus(t, job.ID, StatusDone)

	rec = s.get(t, "/v1/transcode/"+job.ID)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	got := decodeJob(t, rec)
	if got.Output != "/tmp/out.mp4" || got.DurationMS != 15000 || got.Tier != "hevc_1080p" || got.FinishedAt == nil {
		t.Errorf("finished job = %+v", got)
	}
}

func TestHandler_failedJob(t *testing.T) {
	s := newTestServer(t, 3)

	results := make(chan transcode.Result, 1)
	results <- transcode.Result{Err: errors.NewWithCode(errors.CodeNoVideoTrack, "This file has no video")}
	s.runner.EXPECT().PrepareAsync(gomock.Any(), gomock.Any(), gomock.Any()).Return((<-chan transcode.Result)(results))

	job := decodeJob(t, s.submit(t, "creator-1", `{"source":"/uploads/song.m4a"}`))
	failed := s.waitStatus(t, job.ID, StatusFailed)
	if failed.ErrorCode != errors.CodeNoVideoTrack || failed.Error != "This file has no video" {
		t.Errorf("failed job = %+v", failed)
	}
}

func TestHandler_rejectsBadRequests(t *testing.T) {
	s := newTestServer(t, 3)

	if rec := s.submit(t, "", `{"source":"/a.mov"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("missing creator: expected 400, got %d", rec.Code)
	}
	if rec := s.submit(t, "creator-1", "not json"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad body: expected 400, got %d", rec.Code)
	}
	if rec := s.submit(t, "creator-1", `{}`); rec.Code != http.StatusBadRequest {
		t.Errorf("empty source: expected 400, got %d", rec.Code)
	}
	if rec := s.get(t, "/v1/transcode/nope"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown job: expected 404, got %d", rec.Code)
	}
}

func TestHandler_rateLimitsPerCreator(t *testing.T) {
	s := newTestServer(t, 1)
	s.runner.EXPECT().PrepareAsync(gomock.Any(), gomock.Any(), gomock.Any()).
		Return((<-chan transcode.Result)(make(chan transcode.Result))).Times(2)

	if rec := s.submit(t, "alice", `{"source":"/a.mov"}`); rec.Code != http.StatusAccepted {
		t.Fatalf("first request: expected 202, got %d", rec.Code)
	}
	if rec := s.submit(t, "alice", `{"source":"/b.mov"}`); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", rec.Code)
	}
	if rec := s.submit(t, "bob", `{"source":"/c.mov"}`); rec.Code != http.StatusAccepted {
		t.Fatalf("other creator: expected 202, got %d", rec.Code)
	}
}

func TestHandler_healthAndMetrics(t *testing.T) {
	s := newTestServer(t, 3)

	if rec := s.get(t, "/healthz"); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "ok") {
		t.Errorf("healthz = %d %q", rec.Code, rec.Body.String())
	}

	rec := s.get(t, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "story_ingest_requests_total") {
		t.Error("metrics output should include the ingest request counter")
	}
}
