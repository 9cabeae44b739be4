package ingest

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/orgball2608/story-engine/internal/ratelimit"
	"github.com/orgball2608/story-engine/pkg/logger"
	"github.com/orgball2608/story-engine/pkg/metrics"
)

const CreatorHeader = "X-Creator-ID"

type submitRequest struct {
	Source string `json:"source"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Handler serves the transcode trigger API.
type Handler struct {
	jobs    *Jobs
	limiter ratelimit.Limiter
	log     logger.Logger
	metrics *metrics.Metrics
}

func NewHandler(jobs *Jobs, limiter ratelimit.Limiter, log logger.Logger, m *metrics.Metrics) *Handler {
	return &Handler{jobs: jobs, limiter: limiter, log: log, metrics: m}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(h.observe)

	r.Get("/healthz", h.Health)
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics.Handler())
	}
	r.Post("/v1/transcode", h.Submit)
	r.Get("/v1/transcode/{id}", h.Get)
	return r
}

// Submit handles POST /v1/transcode. Body: {"source": "/uploads/clip.mov"}.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	creator := r.Header.Get(CreatorHeader)
	if creator == "" {
		writeError(w, http.StatusBadRequest, "missing_creator", CreatorHeader+" header is required")
		return
	}
	if !h.limiter.Allow(creator) {
		writeError(w, http.StatusTooManyRequests, "rate_limited", "Too many transcode requests, slow down")
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("Invalid transcode request body", "error", err)
		writeError(w, http.StatusBadRequest, "invalid_input", "Request body must be JSON with a source")
		return
	}
	if req.Source == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "source is required")
		return
	}

	job := h.jobs.Submit(creator, req.Source)
	w.Header().Set("Location", "/v1/transcode/"+job.ID)
	writeJSON(w, http.StatusAccepted, job)
}

// Get handles GET /v1/transcode/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	job, ok := h.jobs.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "No such transcode job")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		h.metrics.IngestRequest(route, strconv.Itoa(status))
		h.log.Info("request",
			"method", r.Method,
			"route", route,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"size", ww.BytesWritten(),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]errorBody{"error": {Code: code, Message: message}})
}
