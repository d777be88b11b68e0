package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"request-profiler/internal/adapters/storage/duckdb"
	"request-profiler/internal/adapters/storage/file"
	"request-profiler/internal/adapters/storage/memory"
	"request-profiler/internal/collectors"
	cfgpkg "request-profiler/internal/infrastructure/config"
	"request-profiler/internal/infrastructure/httpapi"
	obs "request-profiler/internal/infrastructure/observability"
	"request-profiler/internal/usecase"
)

func main() {
	cfg := cfgpkg.FromEnv()

	logger := obs.NewLogger(cfg.LogLevel)
	logger.Info().Str("addr", cfg.Addr).Str("storage", cfg.Storage).Msg("starting request-profiler")

	metrics := obs.NewMetrics()

	var storage usecase.ProfileRepository
	switch cfg.Storage {
	case "file":
		st, err := file.NewStore(cfg.StorageDir)
		if err != nil {
			logger.Error().Err(err).Msg("file storage init failed")
			os.Exit(1)
		}
		storage = st
	case "duckdb":
		st, err := duckdb.NewStore(cfg.StorageDir, *logger)
		if err != nil {
			logger.Error().Err(err).Msg("duckdb storage init failed")
			os.Exit(1)
		}
		defer st.Close()
		storage = st
	default:
		st := memory.NewStore(cfg.MaxMemoryProfiles, cfg.MemoryProfileTTL)
		st.SetEvictionHook(func(n int) {
			metrics.EvictionsTotal.Add(float64(n))
			metrics.StoredProfiles.Sub(float64(n))
		})
		storage = st
	}

	profiler := usecase.New(storage, logger, cfg.ProfilerEnabled)
	profiler.Add(collectors.NewRequestCollector())
	profiler.Add(collectors.NewTimeCollector())
	profiler.Add(collectors.NewMemoryCollector())
	profiler.Add(collectors.NewErrorCollector())

	deps := &httpapi.Deps{
		Cfg:      cfg,
		Logger:   logger,
		Metrics:  metrics,
		Profiler: profiler,
		Monitor:  httpapi.NewMonitorHub(),
	}

	// Follow runtime toggles from the config file, when one is set.
	if cfg.ConfigFile != "" {
		watcher, err := cfgpkg.NewWatcher(cfg, 500*time.Millisecond, logger, func(next cfgpkg.Config) {
			if next.ProfilerEnabled {
				profiler.Enable()
			} else {
				profiler.Disable()
			}
			logger.Info().Bool("enabled", next.ProfilerEnabled).Msg("profiler state updated")
		})
		if err != nil {
			logger.Error().Err(err).Msg("config watcher init failed")
		} else {
			watcher.Start()
			defer watcher.Stop()
		}
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewRouterWithDeps(deps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server error")
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server shutdown error")
	}
	logger.Info().Msg("request-profiler stopped")
}
