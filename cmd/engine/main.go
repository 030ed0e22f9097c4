package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"playgrid/internal/core/services"
	httphandlers "playgrid/internal/handlers/http"
	"playgrid/internal/infrastructure/bridge"
	"playgrid/internal/infrastructure/events"
	"playgrid/internal/infrastructure/middleware"
	"playgrid/internal/infrastructure/monitoring"
	"playgrid/internal/infrastructure/repositories"
	"playgrid/internal/infrastructure/surfacepool"
	"playgrid/pkg/backoff"
	"playgrid/pkg/config"
	"playgrid/pkg/logger"
	"playgrid/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	startTime := time.Now()

	// Try multiple config paths
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"/etc/playgrid/config.yaml",
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
		// Fallback to defaults if config cannot be loaded
		cfg = config.DefaultConfig()
	}

	// Initialize logger
	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()

	log := zapLogger.Sugar()

	// Initialize tracing
	tracerProvider, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "playgrid",
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	// Initialize repositories
	repos := repositories.New(cfg, log)
	defer repos.Close()

	// Initialize monitoring
	sink := monitoring.NewPrometheusCollector()

	// Initialize event publisher (Redis mirror when available)
	publisher := events.NewPublisher(repos.RedisClient(), log)
	defer publisher.Close()

	// Core components
	embedBuilder := services.NewEmbedBuilder("")
	pool := surfacepool.New(surfacepool.Config{
		Capacity:               cfg.Pool.Capacity,
		MemoryPressureDebounce: cfg.Pool.MemoryPressureDebounce,
	}, embedBuilder, sink, log)

	mixer := services.NewAudioMixerService(services.AudioConfig{
		MasterVolume:          cfg.Audio.MasterVolume,
		FocusBoost:            cfg.Audio.FocusBoost,
		BackgroundAttenuation: cfg.Audio.BackgroundAttenuation,
		DuckingFactor:         cfg.Audio.DuckingFactor,
		VolumeStep:            cfg.Audio.VolumeStep,
	}, sink, log)

	registry := services.NewRegistryService(repos.States, repos.Sessions, pool, mixer, publisher, sink, log)

	strategyTable := services.NewStrategyTable(embedBuilder)
	recovery := services.NewRecoveryCoordinatorService(backoff.Config{
		BaseDelay:      cfg.Recovery.BaseDelay,
		MaxDelay:       cfg.Recovery.MaxDelay,
		MaxRetries:     cfg.Recovery.MaxRetries,
		JitterFraction: cfg.Recovery.JitterFraction,
	}, cfg.Recovery.AttemptTTL, strategyTable, publisher, sink, log)

	manager := services.NewEngineManager(
		services.EngineConfig{
			LoadTimeout:         cfg.Engine.LoadTimeout,
			HealthProbeInterval: cfg.Engine.HealthProbeInterval,
			HealthProbeMisses:   cfg.Engine.HealthProbeMisses,
			QualityCooldown:     cfg.Engine.QualityCooldown,
			MaxRetries:          cfg.Engine.MaxRetries,
			EventBuffer:         cfg.Engine.EventBuffer,
		},
		services.AdaptiveConfig{
			SampleInterval:      cfg.Adaptive.SampleInterval,
			BufferingWindow:     cfg.Adaptive.BufferingWindow,
			ForcedDowngradeHits: cfg.Adaptive.ForcedDowngradeHits,
			UpgradeBufferingMax: cfg.Adaptive.UpgradeBufferingMax,
		},
		registry, pool, mixer, recovery, embedBuilder, publisher, sink, log,
	)

	// Surface bridge
	tokens := bridge.NewTokenIssuer(cfg.Bridge.TokenSecret, cfg.Bridge.TokenTTL)
	bridgeServer := bridge.NewServer(bridge.Config{
		PingInterval:   cfg.Bridge.PingInterval,
		PongTimeout:    cfg.Bridge.PongTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MessagesPerSec: cfg.Bridge.MessagesPerSec,
		MessageBurst:   cfg.Bridge.MessageBurst,
	}, tokens, pool, manager, log)

	// Configure Gin
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware(logger.NewContextLogger(zapLogger)))
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))
	if cfg.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware())
	}
	router.Use(middleware.ErrorHandlerMiddleware(log))

	engineHandler := httphandlers.NewEngineHandler(manager, registry, mixer, manager, publisher, tokens)
	engineHandler.SetupRoutes(router)

	// Rendering surfaces connect here
	router.GET("/ws", gin.WrapF(bridgeServer.HandleWebSocket))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"uptime":    time.Since(startTime).String(),
			"surfaces":  pool.LiveCount(),
		})
	})

	// Prometheus metrics endpoint
	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		log.Info("Prometheus metrics enabled")
	}

	// Create HTTP server with timeouts
	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting PlayGrid engine on %s", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("Server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig)
	}

	log.Info("Shutting down PlayGrid engine...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnw("HTTP server shutdown failed", "error", err)
	}
	if err := manager.Close(shutdownCtx); err != nil {
		log.Warnw("Engine shutdown failed", "error", err)
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Warnw("Tracer shutdown failed", "error", err)
	}

	log.Info("Shutdown complete")
}
