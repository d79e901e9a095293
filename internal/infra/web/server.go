package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"video-content-factory/internal/infra/events"
	"video-content-factory/internal/infra/publisher"
	"video-content-factory/internal/usecase"
)

// WorkIntrospector exposes what the poller is currently running, for
// the health endpoint.
type WorkIntrospector interface {
	InFlight() []int64
}

type Server struct {
	jobUC      *usecase.JobUseCase
	scheduleUC *usecase.ScheduleUseCase
	protocol   *publisher.Protocol
	hub        *events.Hub
	work       WorkIntrospector

	auth      *AuthManager
	adminUser string
	adminPass string

	httpSrv *http.Server
	log     *zerolog.Logger
}

func NewServer(
	jobUC *usecase.JobUseCase,
	scheduleUC *usecase.ScheduleUseCase,
	protocol *publisher.Protocol,
	hub *events.Hub,
	work WorkIntrospector,
	auth *AuthManager,
	adminUser, adminPass string,
	port int,
	logger *zerolog.Logger,
) *Server {
	webLog := logger.With().Str("component", "WebServer").Logger()
	s := &Server{
		jobUC:      jobUC,
		scheduleUC: scheduleUC,
		protocol:   protocol,
		hub:        hub,
		work:       work,
		auth:       auth,
		adminUser:  adminUser,
		adminPass:  adminPass,
		log:        &webLog,
	}
	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/api/v1/login", s.handleLogin)
	r.Post("/api/v1/logout", s.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Route("/api/v1/jobs", func(r chi.Router) {
			r.Post("/", s.handleJobCreate)
			r.Get("/", s.handleJobList)
			r.Get("/{id}", s.handleJobGet)
			r.Delete("/{id}", s.handleJobDelete)
			r.Post("/{id}/retry", s.handleJobRetry)
			r.Post("/{id}/cancel", s.handleJobCancel)
			r.Post("/{id}/approve", s.handleJobApprove)
			r.Post("/{id}/run-now", s.handleJobRunNow)
			r.Get("/{id}/logs", s.handleJobLogs)
			r.Get("/{id}/attempts", s.handleJobAttempts)
		})

		r.Route("/api/v1/attempts", func(r chi.Router) {
			r.Get("/{id}", s.handleAttemptGet)
			r.Post("/{id}/confirm", s.handleAttemptConfirm)
			r.Post("/{id}/cancel", s.handleAttemptCancel)
		})

		r.Route("/api/v1/scheduler", func(r chi.Router) {
			r.Get("/triggers", s.handleTriggers)
			r.Post("/reload", s.handleSchedulerReload)
			r.Post("/trigger-now", s.handleTriggerNow)
			r.Post("/plan-day", s.handlePlanDay)
		})

		r.Get("/ws", s.handleWS)
	})

	return r
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.auth.ParseFromRequest(r); err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpSrv.Addr).Msg("http server listening")
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}
