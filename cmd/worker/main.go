// Command worker renders QR labels queued by the API.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/gestionqr/gestionqr/internal/bootstrap"
	"github.com/gestionqr/gestionqr/internal/config"
	"github.com/gestionqr/gestionqr/internal/logging"
	"github.com/gestionqr/gestionqr/internal/qr"
	"github.com/gestionqr/gestionqr/internal/records"
	"github.com/gestionqr/gestionqr/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logging.LogFatal(logging.New("info", "text"), "load config", err)
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	store, closeStore, err := bootstrap.OpenRecordStore(ctx, cfg, false, log)
	if err != nil {
		logging.LogFatal(log, "open record store", err)
	}
	defer closeStore()
	blobs, err := bootstrap.OpenBlobStore(ctx, cfg, log)
	if err != nil {
		logging.LogFatal(log, "open blob store", err)
	}

	server := asynq.NewServer(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, asynq.Config{
		Concurrency: cfg.LabelWorkers,
		Logger:      log,
	})
	processor := worker.NewProcessor(records.NewService(store), blobs, qr.Builder{BaseURL: cfg.PublicAppURL}, log)
	mux := processor.Handler()

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	log.WithField("concurrency", cfg.LabelWorkers).Info("label worker started")
	if err := server.Run(mux); err != nil {
		logging.LogError(log, "worker stopped", err)
	}
}
