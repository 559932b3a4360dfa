package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/greenstevester/llm-council/internal/config"
	"github.com/greenstevester/llm-council/internal/council"
	"github.com/greenstevester/llm-council/internal/openrouter"
	"github.com/greenstevester/llm-council/internal/server"
	"github.com/greenstevester/llm-council/internal/storage"
	"github.com/greenstevester/llm-council/internal/webfetch"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("config.load.failed")
	}
	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("storage.open.failed")
	}
	defer store.Close()

	// Per-call deadlines come from the gateway, not the HTTP client.
	client := openrouter.NewClient(cfg.OpenRouterAPIURL, cfg.OpenRouterAPIKey, &http.Client{})
	c := council.New(council.NewGateway(client, log), council.Settings{
		CouncilModels: cfg.CouncilModels,
		ChairmanModel: cfg.ChairmanModel,
		TitleModel:    cfg.TitleModel,
		ModelTimeout:  cfg.ModelTimeout,
		TitleTimeout:  cfg.TitleTimeout,
	}, log)

	fetcher := webfetch.New(webfetch.Options{
		CacheSize: cfg.FetchCacheSize,
		CacheTTL:  cfg.FetchCacheTTL,
		Log:       log,
	})

	log.WithFields(logrus.Fields{
		"council":  cfg.CouncilModels,
		"chairman": cfg.ChairmanModel,
		"titler":   cfg.TitleModel,
	}).Info("council.ready")

	if err := server.New(cfg, c, store, fetcher, log).Run(ctx); err != nil {
		log.WithError(err).Fatal("api.server.failed")
	}
}

func newLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("config.log_level.invalid")
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	if cfg.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}
