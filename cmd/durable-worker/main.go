package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/kosarica/durable/config"
	"github.com/kosarica/durable/internal/migrate"
	"github.com/kosarica/durable/internal/store"
	"github.com/kosarica/durable/internal/worker"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := initLogger(cfg.Logging)

	logger.Info().Msg("starting durable worker")

	dbURL := config.GetDatabaseURL()
	if dbURL == "" {
		logger.Fatal().Msg("DATABASE_URL not set")
	}

	ctx := context.Background()

	s, err := store.Open(ctx, store.Config{
		URL:             dbURL,
		MaxConns:        cfg.Database.MaxConnections,
		MinConns:        cfg.Database.MinConnections,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer s.Close()

	logger.Info().Msg("database connected")

	migrator, err := migrate.New()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load embedded migrations")
	}
	if cfg.Worker.Migrate {
		if err := migrator.Migrate(ctx, s.Pool(), 0, *logger); err != nil {
			logger.Fatal().Err(err).Msg("failed to apply migrations")
		}
	} else if err := migrate.Validate(ctx, s.Pool(), migrator); err != nil {
		logger.Fatal().Err(err).Msg("schema validation failed")
	}

	w, err := worker.NewBuilder(s, cfg.Worker).WithLogger(*logger).Build(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build worker")
	}

	adminSrv := startAdminServer(s, logger)

	runCtx, cancel := context.WithCancel(ctx)
	runErrCh := make(chan error, 1)
	go func() { runErrCh <- w.Run(runCtx) }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info().Msg("shutdown signal received")
		cancel()
		if err := <-runErrCh; err != nil {
			logger.Error().Err(err).Msg("worker exited with error")
		}
	case err := <-runErrCh:
		cancel()
		if err != nil {
			logger.Error().Err(err).Msg("worker exited with error")
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := adminSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("admin server forced to shutdown")
	}

	logger.Info().Msg("durable worker exited")
}

// startAdminServer serves /health and /metrics alongside the worker loop,
// the same admin-surface shape as the teacher's internal group, minus
// auth/rate-limit middleware that has no analogue for an unattended
// background process.
func startAdminServer(s *store.Store, logger *zerolog.Logger) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/stats", func(c *gin.Context) {
		stat := s.Stats()
		c.JSON(http.StatusOK, gin.H{
			"total_conns":     stat.TotalConns(),
			"idle_conns":      stat.IdleConns(),
			"acquired_conns":  stat.AcquiredConns(),
			"max_conns":       stat.MaxConns(),
			"acquire_count":   stat.AcquireCount(),
			"new_conns_count": stat.NewConnsCount(),
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{Addr: ":9090", Handler: router}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("admin server failed")
		}
	}()
	return srv
}

func initLogger(cfg config.LoggingConfig) *zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var output io.Writer
	if cfg.Format == "json" {
		output = os.Stdout
	} else {
		output = zerolog.ConsoleWriter{Out: os.Stdout, NoColor: cfg.NoColor}
	}

	logger := zerolog.New(output).Level(level).With().Timestamp().Str("service", "durable-worker").Logger()
	return &logger
}
