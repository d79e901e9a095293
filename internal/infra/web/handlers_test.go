package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"video-content-factory/internal/domain/model"
	"video-content-factory/internal/domain/ports/adapter"
	"video-content-factory/internal/infra/adapters/publish"
	"video-content-factory/internal/infra/events"
	"video-content-factory/internal/infra/publisher"
	"video-content-factory/internal/infra/scheduler"
	"video-content-factory/internal/usecase"
)

type webFixture struct {
	jobs     *memJobRepo
	accounts *memAccountRepo
	protocol *publisher.Protocol
	srv      *Server
	handler  http.Handler
	token    string
}

func newWebFixture(t *testing.T) *webFixture {
	t.Helper()
	logger := newTestLogger()

	f := &webFixture{
		jobs:     newMemJobRepo(),
		accounts: newMemAccountRepo(),
	}
	logs := &memJobLogRepo{}
	attempts := &memAttemptRepo{}
	templates := newMemTemplateRepo()
	hub := events.NewHub(nil, "", logger)

	f.accounts.Save(context.Background(), nil, &model.Account{
		ID: 1, Name: "fitness-main", Niche: "fitness", Automated: true,
		PublishMode: model.PublishModeAuto, AutoConfirm: true,
		APIConnected: true,
		CredentialRefs: map[model.Platform]string{
			model.PlatformYouTube: "vault:yt",
		},
	})

	jobUC := usecase.NewJobUseCase(f.jobs, logs, attempts, f.accounts, noTxManager{}, hub, logger)

	recurring := scheduler.NewRecurring(f.accounts, f.jobs, templates, fakeLocker{}, 4*time.Hour, 0.7, time.UTC, logger)
	planner := scheduler.NewPlanner(f.jobs, time.UTC, logger)
	scheduleUC := usecase.NewScheduleUseCase(recurring, planner, logger)

	f.protocol = publisher.NewProtocol(
		f.accounts, attempts, f.jobs, nil,
		[]adapter.PlatformPublisher{publish.NewNoopPublisher(model.PlatformYouTube)},
		nil, nil, hub, logger,
	)

	auth := NewAuthManager("test-secret", false, time.Hour)
	f.srv = NewServer(jobUC, scheduleUC, f.protocol, hub, fakeWork{}, auth, "admin", "s3cret", 0, logger)
	f.handler = f.srv.routes()

	token, err := auth.Mint(httptest.NewRecorder())
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	f.token = token
	return f
}

func (f *webFixture) do(t *testing.T, method, path string, body any, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if authed {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return v
}

func TestHealthzNoAuth(t *testing.T) {
	f := newWebFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode[map[string]any](t, rec)
	if body["status"] != "ok" {
		t.Fatalf("body = %v", body)
	}
}

func TestAuthRequired(t *testing.T) {
	f := newWebFixture(t)
	if rec := f.do(t, http.MethodGet, "/api/v1/jobs/", nil, false); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d, want 401", rec.Code)
	}

	rec := f.do(t, http.MethodPost, "/api/v1/login", map[string]string{"username": "admin", "password": "wrong"}, false)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d, want 401", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/login", map[string]string{"username": "admin", "password": "s3cret"}, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, want 200", rec.Code)
	}
	body := decode[map[string]string](t, rec)
	if body["token"] == "" {
		t.Fatal("login returned no token")
	}
}

func TestJobCreateAndGet(t *testing.T) {
	f := newWebFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/jobs/", map[string]any{
		"account_id": 1,
		"job_type":   "generate_and_publish",
		"topic":      "5 stretches before bed",
		"platforms":  []string{"youtube"},
	}, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	created := decode[jobView](t, rec)
	if created.ID == 0 || created.Status != "pending" {
		t.Fatalf("created = %+v", created)
	}
	if len(created.Platforms) != 1 || created.Platforms[0] != model.PlatformYouTube {
		t.Fatalf("platforms = %v", created.Platforms)
	}

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/jobs/%d", created.ID), nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	got := decode[jobView](t, rec)
	if got.Topic != "5 stretches before bed" {
		t.Fatalf("topic = %q", got.Topic)
	}

	if rec := f.do(t, http.MethodGet, "/api/v1/jobs/999", nil, true); rec.Code != http.StatusNotFound {
		t.Fatalf("missing job status = %d, want 404", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/api/v1/jobs/", map[string]any{
		"account_id": 1, "job_type": "generate_and_publish", "topic": "x", "platforms": []string{"myspace"},
	}, true); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown platform status = %d, want 400", rec.Code)
	}
}

func TestJobApproveEndpoint(t *testing.T) {
	f := newWebFixture(t)
	job := model.NewJob(1, model.JobTypeGenerateOnly, "weekly recap", model.TopicSourceManual)
	job.Status = model.JobStatusReadyForReview
	f.jobs.Save(context.Background(), nil, job)

	rec := f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/jobs/%d/approve", job.ID), map[string]bool{"publish": true}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("approve status = %d: %s", rec.Code, rec.Body.String())
	}
	approved := decode[jobView](t, rec)
	if approved.Status != "approved" || approved.JobType != "publish_existing" {
		t.Fatalf("approved = %+v", approved)
	}

	// Approving twice is a state conflict.
	if rec := f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/jobs/%d/approve", job.ID), nil, true); rec.Code != http.StatusConflict {
		t.Fatalf("double approve status = %d, want 409", rec.Code)
	}
}

func TestJobCancelEndpoint(t *testing.T) {
	f := newWebFixture(t)
	job := model.NewJob(1, model.JobTypeGenerateOnly, "weekly recap", model.TopicSourceManual)
	f.jobs.Save(context.Background(), nil, job)

	rec := f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/jobs/%d/cancel", job.ID), nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel status = %d", rec.Code)
	}
	if got := decode[jobView](t, rec); got.Status != "cancelled" {
		t.Fatalf("status = %s", got.Status)
	}
}

func TestAttemptConfirmEndpoint(t *testing.T) {
	f := newWebFixture(t)

	acc, _ := f.accounts.FindByID(context.Background(), nil, 1)
	acc.AutoConfirm = false
	f.accounts.Save(context.Background(), nil, acc)

	job := model.NewJob(1, model.JobTypeGenerateAndPublish, "weekly recap", model.TopicSourceManual)
	job.PublishYouTube = true
	job.VideoPath = "/media/video.mp4"
	job.Status = model.JobStatusPublishing
	f.jobs.Save(context.Background(), nil, job)

	attempt, err := f.protocol.Execute(context.Background(), job, model.PlatformYouTube)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if attempt.Status != model.AttemptStatusWaitingConfirm {
		t.Fatalf("attempt status = %s, want waiting_confirm", attempt.Status)
	}

	rec := f.do(t, http.MethodGet, "/api/v1/attempts/"+attempt.ID, nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("get attempt status = %d", rec.Code)
	}
	if got := decode[attemptView](t, rec); got.Status != "waiting_confirm" {
		t.Fatalf("attempt view = %+v", got)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/attempts/"+attempt.ID+"/confirm", nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm status = %d: %s", rec.Code, rec.Body.String())
	}
	if got := decode[attemptView](t, rec); got.Status != "posted" {
		t.Fatalf("confirmed = %+v", got)
	}

	if rec := f.do(t, http.MethodPost, "/api/v1/attempts/"+attempt.ID+"/confirm", nil, true); rec.Code != http.StatusConflict {
		t.Fatalf("double confirm status = %d, want 409", rec.Code)
	}

	updated, _ := f.jobs.FindByID(context.Background(), nil, job.ID)
	if updated.Status != model.JobStatusPublished {
		t.Fatalf("job status = %s, want published", updated.Status)
	}
}

func TestSchedulerEndpoints(t *testing.T) {
	f := newWebFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/scheduler/trigger-now", map[string]any{
		"account_id": 1, "platform": "tiktok",
	}, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("trigger-now status = %d: %s", rec.Code, rec.Body.String())
	}
	job := decode[jobView](t, rec)
	if job.Status != "pending" || job.TopicSource != "auto" {
		t.Fatalf("materialized = %+v", job)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/scheduler/plan-day", map[string]any{
		"account_id": 1, "date": "2026-09-02", "platforms": []string{"youtube"}, "topic": "fall shred",
	}, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("plan-day status = %d: %s", rec.Code, rec.Body.String())
	}
	var planned struct {
		Items []jobView `json:"items"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&planned); err != nil {
		t.Fatalf("decode plan-day: %v", err)
	}
	if len(planned.Items) != 1 || planned.Items[0].ScheduledAt == nil {
		t.Fatalf("planned = %+v", planned.Items)
	}

	if rec := f.do(t, http.MethodPost, "/api/v1/scheduler/plan-day", map[string]any{
		"account_id": 1, "date": "not-a-date",
	}, true); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad date status = %d, want 400", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/scheduler/triggers", nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("triggers status = %d", rec.Code)
	}
}
