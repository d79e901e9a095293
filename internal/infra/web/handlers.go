package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"video-content-factory/internal/domain"
	"video-content-factory/internal/domain/model"
	"video-content-factory/internal/domain/ports/repository"
	"video-content-factory/internal/usecase"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr maps domain sentinels to HTTP status codes.
func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrInvalidArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrJobNotRetryable),
		errors.Is(err, domain.ErrJobNotCancellable),
		errors.Is(err, domain.ErrJobNotApprovable),
		errors.Is(err, domain.ErrAttemptTerminal),
		errors.Is(err, domain.ErrConfirmNotPending),
		errors.Is(err, domain.ErrDuplicateSchedule),
		errors.Is(err, domain.ErrAutomationDisabled):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrRateLimited),
		errors.Is(err, domain.ErrDailyLimitReached):
		http.Error(w, err.Error(), http.StatusTooManyRequests)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// ===== JSON views =====

type jobView struct {
	ID              int64                                  `json:"id"`
	AccountID       int64                                  `json:"account_id"`
	JobType         string                                 `json:"job_type"`
	Status          string                                 `json:"status"`
	Topic           string                                 `json:"topic"`
	TopicSource     string                                 `json:"topic_source"`
	ScriptHook      string                                 `json:"script_hook,omitempty"`
	ScriptText      string                                 `json:"script_text,omitempty"`
	AudioPath       string                                 `json:"audio_path,omitempty"`
	SubtitlePath    string                                 `json:"subtitle_path,omitempty"`
	VideoPath       string                                 `json:"video_path,omitempty"`
	ThumbnailPath   string                                 `json:"thumbnail_path,omitempty"`
	ProgressPercent int                                    `json:"progress_percent"`
	ErrorMessage    string                                 `json:"error_message,omitempty"`
	ScheduledAt     *time.Time                             `json:"scheduled_at,omitempty"`
	Platforms       []model.Platform                       `json:"platforms"`
	PublishResults  map[model.Platform]model.PublishResult `json:"publish_results,omitempty"`
	CreatedAt       time.Time                              `json:"created_at"`
	StartedAt       *time.Time                             `json:"started_at,omitempty"`
	CompletedAt     *time.Time                             `json:"completed_at,omitempty"`
}

func toJobView(j *model.Job) jobView {
	return jobView{
		ID:              j.ID,
		AccountID:       j.AccountID,
		JobType:         string(j.JobType),
		Status:          string(j.Status),
		Topic:           j.Topic,
		TopicSource:     string(j.TopicSource),
		ScriptHook:      j.ScriptHook,
		ScriptText:      j.ScriptText,
		AudioPath:       j.AudioPath,
		SubtitlePath:    j.SubtitlePath,
		VideoPath:       j.VideoPath,
		ThumbnailPath:   j.ThumbnailPath,
		ProgressPercent: j.ProgressPercent,
		ErrorMessage:    j.ErrorMessage,
		ScheduledAt:     j.ScheduledAt,
		Platforms:       j.TargetPlatforms(),
		PublishResults:  j.PublishResults,
		CreatedAt:       j.CreatedAt,
		StartedAt:       j.StartedAt,
		CompletedAt:     j.CompletedAt,
	}
}

func toJobViews(jobs []*model.Job) []jobView {
	out := make([]jobView, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, toJobView(j))
	}
	return out
}

type attemptView struct {
	ID         string                 `json:"id"`
	JobID      int64                  `json:"job_id"`
	Platform   string                 `json:"platform"`
	Strategy   string                 `json:"strategy"`
	Status     string                 `json:"status"`
	ResultID   string                 `json:"result_id,omitempty"`
	ResultURL  string                 `json:"result_url,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Lines      []model.AttemptLogLine `json:"lines"`
	CreatedAt  time.Time              `json:"created_at"`
	FinishedAt *time.Time             `json:"finished_at,omitempty"`
}

func toAttemptView(a *model.PublishAttempt) attemptView {
	return attemptView{
		ID:         a.ID,
		JobID:      a.JobID,
		Platform:   string(a.Platform),
		Strategy:   string(a.Strategy),
		Status:     string(a.Status),
		ResultID:   a.ResultID,
		ResultURL:  a.ResultURL,
		Error:      a.Error,
		Lines:      a.Lines,
		CreatedAt:  a.CreatedAt,
		FinishedAt: a.FinishedAt,
	}
}

// ===== Auth =====

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !credentialsMatch(req.Username, req.Password, s.adminUser, s.adminPass) {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	token, err := s.auth.Mint(w)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"in_flight":   s.work.InFlight(),
		"subscribers": s.hub.Subscribers(),
	})
}

// ===== Jobs =====

func (s *Server) handleJobCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID   int64      `json:"account_id"`
		JobType     string     `json:"job_type"`
		Topic       string     `json:"topic"`
		ScheduledAt *time.Time `json:"scheduled_at"`
		Platforms   []string   `json:"platforms"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	in := usecase.CreateJobInput{
		AccountID:   req.AccountID,
		JobType:     model.JobType(req.JobType),
		Topic:       req.Topic,
		TopicSource: model.TopicSourceManual,
		ScheduledAt: req.ScheduledAt,
	}
	for _, p := range req.Platforms {
		switch model.Platform(p) {
		case model.PlatformYouTube:
			in.PublishYouTube = true
		case model.PlatformTikTok:
			in.PublishTikTok = true
		case model.PlatformInstagram:
			in.PublishInstagram = true
		default:
			http.Error(w, "unknown platform "+p, http.StatusBadRequest)
			return
		}
	}

	job, err := s.jobUC.Create(r.Context(), in)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toJobView(job))
}

func (s *Server) handleJobList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := repository.JobFilter{Status: model.JobStatus(q.Get("status"))}
	f.AccountID, _ = strconv.ParseInt(q.Get("account_id"), 10, 64)
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	f.Offset, _ = strconv.Atoi(q.Get("offset"))

	jobs, err := s.jobUC.List(r.Context(), f)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": toJobViews(jobs)})
}

func (s *Server) handleJobGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	job, err := s.jobUC.Get(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobView(job))
}

func (s *Server) handleJobDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	if err := s.jobUC.Delete(r.Context(), id); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleJobRetry(w http.ResponseWriter, r *http.Request) {
	s.jobAction(w, r, s.jobUC.Retry)
}

func (s *Server) handleJobCancel(w http.ResponseWriter, r *http.Request) {
	s.jobAction(w, r, s.jobUC.Cancel)
}

func (s *Server) handleJobRunNow(w http.ResponseWriter, r *http.Request) {
	s.jobAction(w, r, s.jobUC.RunNow)
}

func (s *Server) jobAction(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id int64) (*model.Job, error)) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	job, err := fn(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobView(job))
}

func (s *Server) handleJobApprove(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	var req struct {
		Publish bool `json:"publish"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	job, err := s.jobUC.Approve(r.Context(), id, req.Publish)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobView(job))
}

func (s *Server) handleJobLogs(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	entries, err := s.jobUC.Logs(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	type logView struct {
		Level     string    `json:"level"`
		Stage     string    `json:"stage,omitempty"`
		Message   string    `json:"message"`
		CreatedAt time.Time `json:"created_at"`
	}
	out := make([]logView, 0, len(entries))
	for _, e := range entries {
		out = append(out, logView{Level: string(e.Level), Stage: e.Stage, Message: e.Message, CreatedAt: e.CreatedAt})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (s *Server) handleJobAttempts(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	attempts, err := s.jobUC.Attempts(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	out := make([]attemptView, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, toAttemptView(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

// ===== Publish attempts =====

func (s *Server) handleAttemptGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	attempt, ok := s.protocol.Waiting(id)
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toAttemptView(attempt))
}

func (s *Server) handleAttemptConfirm(w http.ResponseWriter, r *http.Request) {
	attempt, err := s.protocol.Confirm(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAttemptView(attempt))
}

func (s *Server) handleAttemptCancel(w http.ResponseWriter, r *http.Request) {
	attempt, err := s.protocol.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAttemptView(attempt))
}

// ===== Scheduler =====

func (s *Server) handleTriggers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"items": s.scheduleUC.Triggers()})
}

func (s *Server) handleSchedulerReload(w http.ResponseWriter, r *http.Request) {
	if err := s.scheduleUC.Reload(r.Context()); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": s.scheduleUC.Triggers()})
}

func (s *Server) handleTriggerNow(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID int64  `json:"account_id"`
		Platform  string `json:"platform"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	job, err := s.scheduleUC.TriggerNow(r.Context(), req.AccountID, model.Platform(req.Platform))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toJobView(job))
}

func (s *Server) handlePlanDay(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID int64    `json:"account_id"`
		Date      string   `json:"date"` // YYYY-MM-DD
		Platforms []string `json:"platforms"`
		Topic     string   `json:"topic"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}
	platforms := make([]model.Platform, 0, len(req.Platforms))
	for _, p := range req.Platforms {
		platforms = append(platforms, model.Platform(p))
	}
	jobs, err := s.scheduleUC.PlanDay(r.Context(), req.AccountID, date, platforms, req.Topic)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"items": toJobViews(jobs)})
}
