package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/podcall/internal/adapters/auth"
	"github.com/dkeye/podcall/internal/adapters/catalog"
	"github.com/dkeye/podcall/internal/adapters/files"
	router "github.com/dkeye/podcall/internal/adapters/http"
	"github.com/dkeye/podcall/internal/adapters/media"
	wssignal "github.com/dkeye/podcall/internal/adapters/signal"
	"github.com/dkeye/podcall/internal/app"
	"github.com/dkeye/podcall/internal/app/guard"
	"github.com/dkeye/podcall/internal/app/orch"
	"github.com/dkeye/podcall/internal/app/recording"
	"github.com/dkeye/podcall/internal/config"
	"github.com/dkeye/podcall/internal/logging"
	"github.com/dkeye/podcall/internal/metrics"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logFile := logging.Setup(cfg.Mode, cfg.Log)
	defer logFile.Close()

	if dir := filepath.Dir(cfg.Catalog.DSN); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatal().Err(err).Str("dir", dir).Msg("catalog dir")
		}
	}
	cat, err := catalog.Open(cfg.Catalog.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open catalog")
	}
	defer cat.Close()

	m := metrics.New()
	store := app.NewStore()
	reg := app.NewRegistry()
	mediaClient := media.NewClient(cfg.Media.BaseURL, cfg.Media.CallbackSecret, cfg.Media.Timeout)
	verifier := auth.NewJWTVerifier(cfg.Auth.JWTSecret)
	bans := guard.NewBanTracker(cfg.Guard.Ban)
	limiter := guard.NewRateLimiter(cfg.Guard.RateLimit, cfg.Guard.RateInterval, cfg.Guard.RateMaxKeys)

	rec := &recording.Coordinator{
		Sessions:       store,
		Out:            reg,
		Media:          mediaClient,
		Quota:          cat,
		Access:         cat,
		Segments:       cat,
		Paths:          files.Local{},
		Files:          files.Local{},
		Metrics:        m,
		CallbackSecret: cfg.Media.CallbackSecret,
		RecordingsDir:  cfg.Media.RecordingsDir,
		StorageDir:     cfg.Media.StorageDir,
	}

	o := &orch.Orchestrator{
		Sessions:     store,
		Registry:     reg,
		Recorder:     rec,
		Media:        mediaClient,
		Metrics:      m,
		MediaURL:     cfg.Media.PublicURL,
		ICEServers:   cfg.Media.ICEServers,
		RemountGrace: cfg.Call.RemountGrace,
		ChatMaxLen:   cfg.Call.ChatMaxLen,
	}

	ctl := wssignal.NewSignalWSController(o, verifier, bans, m)
	ctl.ReadLimit = cfg.ReadLimit
	ctl.PingPeriod = cfg.PingPeriod

	sweeper, err := orch.NewSweeper(o, cfg.Call.SweepSchedule, cfg.Call.HostIdleTimeout)
	if err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.Call.SweepSchedule).Msg("invalid sweep schedule")
	}
	sweeper.Start()
	defer sweeper.Stop()

	r := router.SetupRouter(ctx, cfg, &router.Server{
		Orch:           o,
		Signal:         ctl,
		Recorder:       rec,
		Catalog:        cat,
		Access:         cat,
		Identity:       verifier,
		Failures:       bans,
		Limiter:        limiter,
		Metrics:        m,
		PublicURL:      cfg.PublicURL,
		CallbackSecret: cfg.Media.CallbackSecret,
	})
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Bool("media", mediaClient.Configured()).Msg("podcall server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
