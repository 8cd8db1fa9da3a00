package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"dubsync/internal/api"
	"dubsync/internal/config"
	"dubsync/internal/dub"
	"dubsync/internal/jobs"
	"dubsync/internal/logging"
	"dubsync/internal/pipeline"
	"dubsync/internal/services"
)

const (
	defaultListLimit = 50
	maxRequestBody   = 64 << 10
)

// servedExtensions lists the job artifacts the media route exposes.
var servedExtensions = map[string]struct{}{
	".mp4": {},
	".srt": {},
}

// jobRunner is the subset of the engine the API drives.
type jobRunner interface {
	Submit(ctx context.Context, req pipeline.Request) (*jobs.Job, error)
	Cancel(ctx context.Context, jobID string) (int, error)
	Retry(ctx context.Context, jobID string, indices ...int) ([]int, error)
	Running(jobID string) bool
}

// statusSource reports daemon health.
type statusSource interface {
	Status(ctx context.Context) Status
}

type apiServer struct {
	bind   string
	cfg    *config.Config
	logger *slog.Logger
	store  *jobs.Store
	runner jobRunner
	status statusSource

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	return buildAPIServer(cfg, d.store, d.engine, d, logger)
}

func buildAPIServer(cfg *config.Config, store *jobs.Store, runner jobRunner, status statusSource, logger *slog.Logger) *apiServer {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}
	srv := &apiServer{
		bind:   bind,
		cfg:    cfg,
		logger: logger,
		store:  store,
		runner: runner,
		status: status,
	}

	token := strings.TrimSpace(cfg.Paths.APIToken)
	mux := http.NewServeMux()
	handle := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, srv.withRequestID(authMiddleware(token, h)))
	}
	handle("GET /api/status", srv.handleStatus)
	handle("GET /api/jobs", srv.handleListJobs)
	handle("POST /api/jobs", srv.handleSubmit)
	handle("GET /api/jobs/{id}", srv.handleGetJob)
	handle("POST /api/jobs/{id}/cancel", srv.handleCancel)
	handle("POST /api/jobs/{id}/retry", srv.handleRetry)
	handle("POST /api/jobs/{id}/segments/{index}/retry", srv.handleRetry)
	handle("GET /media/{id}/{file}", srv.handleMedia)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Clip streaming may outlast a short write deadline.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
}

func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.status.Status(r.Context())
	payload := api.DaemonStatus{
		Running:       status.Running,
		PID:           status.PID,
		LockFilePath:  status.LockFilePath,
		ActiveJobs:    status.ActiveJobs,
		SegmentCounts: api.FromCounts(status.SegmentCounts),
		Dependencies:  api.FromDependencies(status.Dependencies),
		Checks:        api.FromChecks(status.Checks),
	}
	if !status.StartedAt.IsZero() {
		payload.StartedAt = status.StartedAt.UTC().Format(time.RFC3339)
	}
	if status.Database != nil {
		payload.Database = api.FromHealth(*status.Database)
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	list, err := s.store.ListJobs(r.Context(), limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	out := api.JobListResponse{Jobs: make([]api.Job, 0, len(list))}
	for _, job := range list {
		out.Jobs = append(out.Jobs, s.jobDTO(job))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *apiServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req api.SubmitRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	pr, err := s.pipelineRequest(req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	job, err := s.runner.Submit(r.Context(), pr)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.log().Info("job submitted",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("source", job.SourcePath),
		logging.String("mode", job.Mode.String()),
	)
	s.writeJSON(w, http.StatusAccepted, api.SubmitResponse{JobID: job.ID, Job: s.jobDTO(job)})
}

func (s *apiServer) pipelineRequest(req api.SubmitRequest) (pipeline.Request, error) {
	source := strings.TrimSpace(req.SourcePath)
	if source == "" {
		return pipeline.Request{}, services.Wrap(services.ErrValidation, "api", "submit", "source_path is required", nil)
	}
	if !filepath.IsAbs(source) {
		return pipeline.Request{}, services.Wrap(services.ErrValidation, "api", "submit", "source_path must be absolute", nil)
	}
	info, err := os.Stat(source)
	if err != nil {
		return pipeline.Request{}, services.Wrap(services.ErrValidation, "api", "submit", "source_path unreadable", err)
	}
	if info.IsDir() {
		return pipeline.Request{}, services.Wrap(services.ErrValidation, "api", "submit", "source_path is a directory", nil)
	}

	modeName := strings.TrimSpace(req.Mode)
	if modeName == "" {
		modeName = s.cfg.Jobs.DefaultMode
	}
	mode, err := dub.ParseMode(modeName)
	if err != nil {
		return pipeline.Request{}, services.Wrap(services.ErrValidation, "api", "submit", "", err)
	}
	lang := strings.TrimSpace(req.TargetLang)
	if lang == "" {
		lang = s.cfg.Jobs.DefaultTargetLang
	}
	return pipeline.Request{SourcePath: source, Mode: mode, TargetLang: lang}, nil
}

func (s *apiServer) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	job, err := s.store.GetJob(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	segs, err := s.store.Segments(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	dto := s.jobDTO(job)
	dto.Segments = api.FromSegments(segs)
	s.writeJSON(w, http.StatusOK, dto)
}

func (s *apiServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	n, err := s.runner.Cancel(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.CancelResponse{JobID: id, Cancelled: n})
}

// handleRetry serves both the single-segment and the whole-job retry routes.
func (s *apiServer) handleRetry(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var indices []int
	if raw := r.PathValue("index"); raw != "" {
		index, err := strconv.Atoi(raw)
		if err != nil || index < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid segment index")
			return
		}
		indices = append(indices, index)
	}
	reset, err := s.runner.Retry(r.Context(), id, indices...)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.RetryResponse{JobID: id, Segments: reset})
}

func (s *apiServer) handleMedia(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	file := r.PathValue("file")
	if id != filepath.Base(id) || file != filepath.Base(file) || strings.HasPrefix(file, ".") {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	if _, ok := servedExtensions[strings.ToLower(filepath.Ext(file))]; !ok {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	path := filepath.Join(s.cfg.JobDir(id), file)
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	http.ServeFile(w, r, path)
}

func (s *apiServer) jobDTO(job *jobs.Job) api.Job {
	dto := api.FromJob(job, func(file string) string {
		return pipeline.MediaURL(s.cfg.Paths.PublicBaseURL, job.ID, file)
	})
	if s.runner != nil {
		dto.Running = s.runner.Running(job.ID)
	}
	return dto
}

// withRequestID tags each request with a correlation id for logs and echoes
// it back in the response.
func (s *apiServer) withRequestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next(w, r.WithContext(services.WithRequestID(r.Context(), id)))
	}
}

func (s *apiServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, jobs.ErrInvalidTransition), errors.Is(err, pipeline.ErrJobBusy):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		logging.WithContext(r.Context(), s.log()).Error("api request failed",
			logging.String("path", r.URL.Path),
			logging.Error(err),
		)
	}
	s.writeJSON(w, status, api.ErrorResponse{Error: err.Error(), Kind: services.Kind(err)})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}
