package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"
	"streamcast/internal/core/services"
	httphandlers "streamcast/internal/handlers/http"
	"streamcast/internal/infrastructure/middleware"
	"streamcast/internal/infrastructure/monitoring"
	"streamcast/internal/infrastructure/obsws"
	"streamcast/internal/infrastructure/operator"
	"streamcast/internal/infrastructure/youtube"
	"streamcast/pkg/config"
	"streamcast/pkg/logger"
	"streamcast/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	// Try multiple config paths
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"/etc/streamcast/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error
	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}
	if err != nil {
		cfg = config.DefaultConfig()
	}

	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	if err := cfg.Validate(); err != nil {
		log.Fatalw("invalid configuration", "error", err)
	}

	tracerProvider, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		tracerProvider.Shutdown(ctx)
	}()

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Encoder connection with preflight version query.
	encoder := obsws.NewClient(obsws.Config{
		Address:        cfg.Encoder.Address,
		Password:       cfg.Encoder.Password,
		ConnectTimeout: cfg.Encoder.ConnectTimeout,
		RequestTimeout: cfg.Encoder.RequestTimeout,
		PingInterval:   cfg.Encoder.PingInterval,
	}, log)

	connectCtx, cancelConnect := context.WithTimeout(rootCtx, cfg.Encoder.ConnectTimeout)
	err = encoder.Connect(connectCtx)
	cancelConnect()
	if err != nil {
		log.Fatalw("failed to connect to encoder", "address", cfg.Encoder.Address, "error", err)
	}
	defer encoder.Close()

	platform := youtube.NewClient(youtube.Config{
		BaseURL:           cfg.Platform.BaseURL,
		AccessToken:       cfg.Platform.AccessToken,
		RequestTimeout:    cfg.Platform.RequestTimeout,
		RequestsPerSecond: cfg.Platform.RequestsPerSecond,
		Burst:             cfg.Platform.Burst,
	}, log)

	collector := monitoring.NewCollector(prometheus.DefaultRegisterer)

	monitor := services.NewStatusMonitor(encoder, collector, log)
	go monitor.Run(rootCtx)

	reconciler := services.NewEndpointReconciler(encoder, collector, cfg.Session.SettleDelay, log)

	// Manual live confirmation: resolved over the control API when the server
	// is enabled, on the terminal otherwise.
	var prompt ports.OperatorPrompt
	var gate *operator.Gate
	if cfg.Server.Enabled {
		gate = operator.NewGate(log)
		prompt = gate
	} else {
		prompt = operator.NewStdinPrompt(os.Stdin, os.Stdout, log)
	}

	machine := services.NewBroadcastStateMachine(platform, prompt, collector, services.StateMachineConfig{
		PollCount: cfg.Session.PromotePollCount,
		PollDelay: cfg.Session.PromotePollDelay,
		GraceWait: cfg.Session.PromoteGraceWait,
	}, log)

	var overlay ports.OverlayService
	if cfg.Overlay.Enabled {
		overlay = services.NewOverlayService(encoder, services.OverlayConfig{
			SourceName: cfg.Overlay.SourceName,
			Interval:   cfg.Overlay.Interval,
			TimeFormat: cfg.Overlay.TimeFormat,
		}, log)
	}

	orchestrator := services.NewSessionOrchestrator(
		encoder, platform, monitor, reconciler, machine, overlay, collector,
		services.OrchestratorConfig{
			AwaitActiveTimeout: cfg.Session.AwaitActiveTimeout,
		}, log)

	if !cfg.Server.Enabled {
		runOnce(rootCtx, orchestrator, cfg, log)
		return
	}

	health := monitoring.NewHealthChecker()
	health.AddCheck("encoder", func(ctx context.Context) (bool, error) {
		_, err := encoder.QueryOutputActive(ctx)
		return err == nil, err
	}, 5*time.Second)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.RequestLoggingMiddleware(logger.NewContextLogger(zapLogger)))
	router.Use(middleware.ErrorHandlerMiddleware(log))
	if cfg.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware())
	}
	if cfg.RateLimiting.Enabled {
		router.Use(middleware.RateLimitMiddleware(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.Burst))
	}

	var authMW gin.HandlerFunc
	if cfg.Auth.Enabled {
		tm := middleware.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)
		token, err := tm.Issue("operator")
		if err != nil {
			log.Fatalw("failed to issue operator token", "error", err)
		}
		// Logged once at startup; the control API accepts only this bearer
		// token until it expires.
		log.Infow("operator access token issued", "token", token, "ttl", cfg.Auth.AccessTokenTTL)
		authMW = middleware.AuthMiddleware(tm)
	}

	defaults := domain.StartParams{
		Title:       cfg.Stream.Title,
		Description: cfg.Stream.Description,
		Visibility:  cfg.Stream.Visibility,
		SceneHint:   cfg.Stream.SceneHint,
		StartDelay:  cfg.Stream.StartDelay,
	}
	handler := httphandlers.NewSessionHandler(orchestrator, gate, health, defaults, log)
	handler.SetupRoutes(router, authMW)

	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Infow("control API listening", "address", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("control API failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	log.Infow("shutdown signal received")

	// Stop an active session before the process exits so the encoder and the
	// remote broadcast are not left running headless.
	if orchestrator.Status().Active {
		if result, err := orchestrator.Stop(context.Background()); err != nil {
			log.Errorw("session stop during shutdown incomplete", "error", err, "result", result)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("control API shutdown failed", "error", err)
	}
	log.Infow("shutdown complete")
}

// runOnce drives a single session from the terminal: start, wait for an
// interrupt, stop.
func runOnce(ctx context.Context, orchestrator ports.SessionOrchestrator, cfg *config.Config, log *zap.SugaredLogger) {
	params := domain.StartParams{
		Title:       cfg.Stream.Title,
		Description: cfg.Stream.Description,
		Visibility:  cfg.Stream.Visibility,
		SceneHint:   cfg.Stream.SceneHint,
		StartDelay:  cfg.Stream.StartDelay,
	}

	result, err := orchestrator.Start(ctx, params)
	if err != nil {
		log.Fatalw("session start failed", "error", err)
	}
	log.Infow("session live, interrupt to stop",
		"watch_url", result.WatchURL, "warnings", result.Warnings)

	<-ctx.Done()

	stopResult, err := orchestrator.Stop(context.Background())
	if err != nil {
		log.Errorw("session stop incomplete", "error", err, "result", stopResult)
		os.Exit(1)
	}
	log.Infow("session stopped")
}
