// Command server runs the gestionqr HTTP API.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/gestionqr/gestionqr/internal/api"
	"github.com/gestionqr/gestionqr/internal/attachments"
	"github.com/gestionqr/gestionqr/internal/auth"
	"github.com/gestionqr/gestionqr/internal/bootstrap"
	"github.com/gestionqr/gestionqr/internal/config"
	"github.com/gestionqr/gestionqr/internal/ingest"
	"github.com/gestionqr/gestionqr/internal/logging"
	"github.com/gestionqr/gestionqr/internal/qr"
	"github.com/gestionqr/gestionqr/internal/queue"
	"github.com/gestionqr/gestionqr/internal/records"
	"github.com/gestionqr/gestionqr/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.LogFatal(logging.New("info", "text"), "load config", err)
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.RequireJWT(); err != nil {
		logging.LogFatal(log, "invalid config", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := bootstrap.OpenRecordStore(ctx, cfg, true, log)
	if err != nil {
		logging.LogFatal(log, "open record store", err)
	}
	defer closeStore()
	blobs, err := bootstrap.OpenBlobStore(ctx, cfg, log)
	if err != nil {
		logging.LogFatal(log, "open blob store", err)
	}

	recs := records.NewService(store)
	deps := api.Deps{
		Records:     recs,
		Importer:    ingest.NewImporter(store, log),
		Attachments: attachments.NewService(blobs, recs, cfg.MaxFileSize, cfg.SignedURLTTL, log),
		Blobs:       blobs,
		Verifier:    auth.NewVerifier(cfg.JWTSecret),
		QR:          qr.Builder{BaseURL: cfg.PublicAppURL},
		MaxFileSize: cfg.MaxFileSize,
		Log:         log,
	}
	if cfg.RedisAddr != "" {
		redis := asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}
		client := queue.NewClient(asynq.NewClient(redis), asynq.NewInspector(redis))
		defer client.Close()
		deps.Labels = client
	}

	srv := server.New(cfg.Address, api.New(deps).Handler(), log)
	if err := srv.Serve(ctx); err != nil {
		logging.LogFatal(log, "server stopped", err)
	}
}
