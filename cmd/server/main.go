// Package main initializes and starts the otpvault HTTP server,
// wiring configuration, logging, the durable store, the secret store,
// the backup engine and the API routes.
package main

import (
	"cmp"
	"fmt"

	nethttp "net/http"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mkarpov/otpvault/internal/backup"
	"github.com/mkarpov/otpvault/internal/config"
	"github.com/mkarpov/otpvault/internal/db"
	"github.com/mkarpov/otpvault/internal/envelope"
	"github.com/mkarpov/otpvault/internal/logger"
	"github.com/mkarpov/otpvault/internal/repository"
	"github.com/mkarpov/otpvault/internal/server/handler/http"
	"github.com/mkarpov/otpvault/internal/store"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	// Parse command-line and environment configuration.
	options := config.Parse()

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	if err := log.Init(options.LogLevel); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}
	defer func() { _ = log.Log.Sync() }()
	zapLogger := log.Log

	// Choose the durable store backend: PostgreSQL when a DSN is
	// given, the embedded database file otherwise.
	var kv repository.KV
	if options.DatabaseDSN != "" {
		postgresDB, err := db.InitPostgres(options.DatabaseDSN)
		if err != nil {
			zapLogger.Fatal("cannot init database", zap.Error(err))
		}
		kv = repository.NewPostgresKV(postgresDB)
		zapLogger.Info("using postgres backend")
	} else {
		boltKV, err := repository.OpenBolt(options.DataFile)
		if err != nil {
			zapLogger.Fatal("cannot open data file", zap.Error(err))
		}
		defer boltKV.Close()
		kv = boltKV
		zapLogger.Info("using embedded backend", zap.String("file", options.DataFile))
	}

	// Initialize the envelope codec from the configured key.
	codec, err := envelope.New(envelope.DeriveKey(options.EncryptionKey), zapLogger)
	if err != nil {
		zapLogger.Fatal("cannot init encryption", zap.Error(err))
	}
	if !codec.Enabled() {
		zapLogger.Warn("no encryption key configured, secrets will be stored in plaintext")
	}

	// Wire the secret store, backup repository, scheduler and pipeline.
	secretStore := store.New(kv, codec, zapLogger)
	backupRepo := backup.NewRepository(kv, codec, zapLogger)
	scheduler := backup.NewScheduler(backupRepo, codec, zapLogger, backup.Config{
		MaxBackups:  options.MaxBackups,
		AutoCleanup: options.AutoCleanup,
	})
	secretStore.SetNotifier(scheduler)
	pipeline := backup.NewPipeline(backupRepo, secretStore, zapLogger)

	// Create HTTP handlers and the shared token bucket.
	secretsHandler := &http.SecretsHandler{Store: secretStore}
	backupsHandler := &http.BackupsHandler{
		Backups:   backupRepo,
		Pipeline:  pipeline,
		Scheduler: scheduler,
		Store:     secretStore,
	}
	limiter := rate.NewLimiter(rate.Limit(options.RateLimit), int(options.RateLimit)+1)

	router := http.NewRouter(secretsHandler, backupsHandler, zapLogger, limiter)

	zapLogger.Info("starting HTTP server", zap.String("addr", options.Addr))
	if err := nethttp.ListenAndServe(options.Addr, router); err != nil {
		zapLogger.Fatal("failed to start HTTP server", zap.Error(err))
	}
}
