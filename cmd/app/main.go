package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"video-content-factory/internal/config"
	"video-content-factory/internal/domain/model"
	"video-content-factory/internal/domain/ports/adapter"
	browserAdapters "video-content-factory/internal/infra/adapters/browser"
	pipelineAdapters "video-content-factory/internal/infra/adapters/pipeline"
	publishAdapters "video-content-factory/internal/infra/adapters/publish"
	pg "video-content-factory/internal/infra/db/postgres"
	"video-content-factory/internal/infra/events"
	"video-content-factory/internal/infra/logging"
	"video-content-factory/internal/infra/metrics"
	"video-content-factory/internal/infra/notify"
	"video-content-factory/internal/infra/publisher"
	red "video-content-factory/internal/infra/redis"
	"video-content-factory/internal/infra/scheduler"
	"video-content-factory/internal/infra/web"
	"video-content-factory/internal/infra/worker"
	"video-content-factory/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop external services)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("dev mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, int32(cfg.Database.PoolSize))
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	rateLimiter := red.NewRateLimiter(redisClient)
	locker := red.NewLocker(redisClient)

	// ---- Repositories ----
	txm := pg.NewTxManager(pool)
	jobRepo := pg.NewJobRepo(pool, txm)
	jobLogRepo := pg.NewJobLogRepo(pool)
	accountRepo := pg.NewAccountRepo(pool)
	templateRepo := pg.NewTemplateRepo(pool)
	attemptRepo := pg.NewPublishAttemptRepo(pool)

	// ---- Event hub ----
	hub := events.NewHub(redisClient, "content_factory:events", logger)
	go hub.RunHeartbeat(ctx, 15*time.Second)

	// ---- Alerts ----
	var notifier adapter.AlertNotifier
	if cfg.Alerts.TelegramToken != "" && !cfg.Runtime.Dev {
		notifier, err = notify.NewTelegramNotifier(cfg.Alerts.TelegramToken, cfg.Alerts.TelegramChatID, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("telegram notifier")
		}
	} else {
		notifier = notify.NewNoopNotifier()
	}

	// ---- Pipeline adapters ----
	var (
		scriptGen adapter.ScriptGenerator
		audioSyn  adapter.AudioSynthesizer
		subTrans  adapter.SubtitleTranscriber
		renderer  adapter.VideoRenderer
	)
	if cfg.Runtime.Dev {
		noop := pipelineAdapters.NewNoopPipeline(cfg.Pipeline.MediaDir)
		scriptGen, audioSyn, subTrans, renderer = noop, noop, noop, noop
	} else {
		switch cfg.Pipeline.ScriptProvider {
		case "gemini":
			scriptGen, err = pipelineAdapters.NewGeminiScriptGenerator(ctx, cfg.Pipeline.GeminiKey, cfg.Pipeline.GeminiURL, cfg.Pipeline.ScriptModel)
		default:
			scriptGen, err = pipelineAdapters.NewOpenAIScriptGenerator(cfg.Pipeline.OpenAIKey, cfg.Pipeline.OpenAIBaseURL, cfg.Pipeline.ScriptModel)
		}
		if err != nil {
			logger.Fatal().Err(err).Msg("script generator")
		}
		audioSyn, err = pipelineAdapters.NewOpenAISpeechSynthesizer(cfg.Pipeline.OpenAIKey, cfg.Pipeline.OpenAIBaseURL, cfg.Pipeline.MediaDir)
		if err != nil {
			logger.Fatal().Err(err).Msg("speech synthesizer")
		}
		subTrans, err = pipelineAdapters.NewWhisperTranscriber(cfg.Pipeline.OpenAIKey, cfg.Pipeline.OpenAIBaseURL, cfg.Pipeline.WhisperModel)
		if err != nil {
			logger.Fatal().Err(err).Msg("subtitle transcriber")
		}
		renderer, err = pipelineAdapters.NewHTTPRenderer(cfg.Pipeline.RendererURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("renderer")
		}
	}

	// ---- Publish adapters ----
	var (
		publishers    []adapter.PlatformPublisher
		browserDriver adapter.BrowserDriver
	)
	if cfg.Runtime.Dev || cfg.Pipeline.UploadURL == "" {
		for _, p := range model.AllPlatforms() {
			publishers = append(publishers, publishAdapters.NewNoopPublisher(p))
		}
	} else {
		yt, err := publishAdapters.NewYouTubePublisher(cfg.Pipeline.UploadURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("youtube publisher")
		}
		tt, err := publishAdapters.NewTikTokPublisher(cfg.Pipeline.UploadURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("tiktok publisher")
		}
		ig, err := publishAdapters.NewInstagramPublisher(cfg.Pipeline.UploadURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("instagram publisher")
		}
		publishers = []adapter.PlatformPublisher{yt, tt, ig}
	}
	if cfg.Runtime.Dev || cfg.Pipeline.BrowserURL == "" {
		browserDriver = browserAdapters.NewNoopDriver()
	} else {
		browserDriver, err = browserAdapters.NewRemoteDriver(cfg.Pipeline.BrowserURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("browser driver")
		}
	}

	// ---- Publish protocol ----
	protocol := publisher.NewProtocol(accountRepo, attemptRepo, jobRepo, rateLimiter, publishers, browserDriver, notifier, hub, logger)

	// ---- Worker pool, runner, poller ----
	wpool := worker.NewPool(cfg.Worker.Concurrency, cfg.Worker.HeavyConcurrency, nil, logger)
	wpool.Start(ctx)
	defer wpool.Stop()

	runner := worker.NewStageRunner(jobRepo, jobLogRepo, scriptGen, audioSyn, subTrans, renderer, protocol, wpool, hub, notifier, cfg.Worker.StageTimeout, logger)
	poller := worker.NewPoller(jobRepo, runner, wpool, cfg.Worker.PollInterval, cfg.Worker.ScheduleInterval, cfg.Worker.Concurrency, logger)
	go poller.Start(ctx)

	// ---- Recurring scheduler + planner ----
	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		logger.Fatal().Err(err).Str("tz", cfg.Scheduler.Timezone).Msg("timezone")
	}
	recurring := scheduler.NewRecurring(accountRepo, jobRepo, templateRepo, locker, cfg.Scheduler.Cooldown, cfg.Scheduler.ProvenRatio, loc, logger)
	if err := recurring.Reload(ctx); err != nil {
		logger.Fatal().Err(err).Msg("scheduler reload")
	}
	recurring.Start()
	defer recurring.Stop()

	planner := scheduler.NewPlanner(jobRepo, loc, logger)

	// ---- Use cases ----
	jobUC := usecase.NewJobUseCase(jobRepo, jobLogRepo, attemptRepo, accountRepo, txm, hub, logger)
	scheduleUC := usecase.NewScheduleUseCase(recurring, planner, logger)

	// ---- DB pool stats sampling ----
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				st := pool.Stat()
				metrics.SetJobStorePoolConns(st.TotalConns(), st.IdleConns(), st.AcquiredConns())
			}
		}
	}()

	// ---- Web server ----
	auth := web.NewAuthManager(cfg.Web.JWTSecret, !cfg.Runtime.Dev, cfg.Web.SessionTTL)
	srv := web.NewServer(jobUC, scheduleUC, protocol, hub, poller, auth, cfg.Web.AdminUser, cfg.Web.AdminPass, cfg.Web.Port, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Error().Err(err).Msg("http server")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
	cancel()
}
