package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/sorenmh/gendesk/internal/deskd/api"
	"github.com/sorenmh/gendesk/internal/deskd/completion"
	"github.com/sorenmh/gendesk/internal/deskd/config"
	"github.com/sorenmh/gendesk/internal/deskd/db"
	"github.com/sorenmh/gendesk/internal/deskd/logging"
	"github.com/sorenmh/gendesk/internal/deskd/storage"
	"github.com/sorenmh/gendesk/internal/deskd/store"
	"github.com/sorenmh/gendesk/internal/deskd/workflow"
)

func main() {
	configPath := flag.String("config", "/etc/gendesk/config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Ensure database directory exists
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.WithError(err).Fatal("Failed to create database directory")
	}

	database, err := db.Open(cfg.Database.Driver, cfg.Database.Path)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}
	defer database.Close()

	logger.WithField("path", cfg.Database.Path).Info("Database initialized")

	st, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize storage")
	}

	logger.WithField("type", st.Type()).Info("Storage initialized")

	completer, err := completion.New(cfg.Completion, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize completion provider")
	}

	engine := workflow.NewEngine(ctx,
		store.NewAppStore(database.DB),
		store.NewVersionStore(database.DB),
		st,
		completer,
		workflow.Options{
			DefaultModel:        cfg.Completion.DefaultModel,
			SystemPrompt:        cfg.Generation.SystemPrompt,
			MetadataTemperature: cfg.Generation.MetadataTemperature,
			CodeTemperature:     cfg.Generation.CodeTemperature,
			MetadataMaxTokens:   cfg.Generation.MetadataMaxTokens,
			CodeMaxTokens:       cfg.Generation.CodeMaxTokens,
		},
		logger,
	)

	server := api.NewServer(cfg, database, st, engine, logger)

	logger.WithFields(logrus.Fields{
		"version":  api.Version,
		"provider": cfg.Completion.Provider,
		"model":    cfg.Completion.DefaultModel,
	}).Info("Starting deskd")

	if err := server.Run(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}
}
