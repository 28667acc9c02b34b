package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/user/quakebot/internal/config"
	"github.com/user/quakebot/internal/ingest"
	"github.com/user/quakebot/internal/notifier"
	"github.com/user/quakebot/internal/storage"
	"github.com/user/quakebot/internal/telegram"
	"github.com/user/quakebot/internal/usgs"
	"github.com/user/quakebot/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// Try to initialize basic logger for error output
		logger.Init("info", "")
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.File); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	logger.Info().Msg("Starting earthquake notification bot")

	db, err := storage.NewDatabase(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	store := storage.NewStore(db)
	logger.Info().Str("path", cfg.Database.Path).Msg("Database initialized")

	feed := usgs.NewClient(cfg.Feed.BaseURL, usgs.Query{
		Latitude:     cfg.Feed.Latitude,
		Longitude:    cfg.Feed.Longitude,
		MaxRadiusKM:  cfg.Feed.MaxRadiusKM,
		MinMagnitude: cfg.Feed.MinMagnitude,
	})

	bot, err := telegram.NewBot(cfg.Telegram.Token, cfg.Telegram.Debug, store)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize Telegram bot")
	}

	// The two loops run independently and share only the store.
	ing := ingest.NewIngestor(feed, store, cfg.Poll.Interval, cfg.Poll.RetryInterval)
	ing.Start()

	notif := notifier.NewNotifier(store, bot, cfg.Poll.Interval, cfg.Poll.RetryInterval)
	notif.Start()

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    cfg.ServerAddress(),
		Handler: r,
	}

	go func() {
		logger.Info().Str("address", cfg.ServerAddress()).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	bot.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ing.Stop()
	notif.Stop()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	bot.Stop()

	logger.Info().Msg("Shutdown complete")
}
