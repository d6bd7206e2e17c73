package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/lawran/lawran-downloader/internal/config"
	"github.com/lawran/lawran-downloader/internal/events"
	"github.com/lawran/lawran-downloader/internal/httpapi"
	"github.com/lawran/lawran-downloader/internal/job"
	"github.com/lawran/lawran-downloader/internal/media"
	"github.com/lawran/lawran-downloader/internal/platform"
	"github.com/lawran/lawran-downloader/internal/resolver"
	"github.com/lawran/lawran-downloader/internal/transfer"
)

func main() {
	// Missing .env is fine, the environment may be set directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		errLog := zerolog.New(os.Stderr)
		errLog.Fatal().Err(err).Msg("loading configuration")
	}

	log := newLogger(cfg)

	if err := platform.CreateDirectoryIfNotExists(cfg.DownloadDir); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.DownloadDir).Msg("creating download directory")
	}

	// A missing ffmpeg is not fatal here. Progressive and playlist-of-
	// progressive jobs work without it; jobs that need it fail up front
	// with a clear message.
	if bin, err := media.Locate(cfg.FFmpegPath); err != nil {
		log.Warn().Err(err).Msg("ffmpeg not found, merge and audio jobs will fail")
	} else {
		log.Info().Str("ffmpeg", bin).Msg("media tool located")
	}

	hub := events.NewHub(log)
	yt := resolver.NewYouTube(log)
	exec := transfer.NewExecutor(yt, log)
	newProc := func() (job.MediaProcessor, error) {
		bin, err := media.Locate(cfg.FFmpegPath)
		if err != nil {
			return nil, err
		}
		return media.NewProcessor(bin, log), nil
	}
	ctrl := job.NewController(yt, exec, newProc, hub, log)
	mgr := job.NewManager(ctrl, hub, log, cfg.MaxConcurrentJobs)

	srv := httpapi.NewServer(mgr, hub, cfg.DownloadDir, log)
	httpServer := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     srv.Router(),
		ReadTimeout: cfg.ReadTimeout,
		// WriteTimeout stays at the configured value; zero keeps the
		// event stream open indefinitely.
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		log.Info().Str("addr", httpServer.Addr).Str("downloads", cfg.DownloadDir).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	mgr.Shutdown()
	log.Info().Msg("stopped")
}

func newLogger(cfg *config.Config) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.IsProduction() {
		return zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
	writer := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	return zerolog.New(writer).With().Timestamp().Logger().Level(zerolog.DebugLevel)
}
