// Package bootstrap opens the stores selected by configuration so the server,
// the worker and the CLI wire dependencies the same way.
package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/gestionqr/gestionqr/internal/awsstorage"
	"github.com/gestionqr/gestionqr/internal/config"
	"github.com/gestionqr/gestionqr/internal/database"
	"github.com/gestionqr/gestionqr/internal/ingest"
	"github.com/gestionqr/gestionqr/internal/records"
	"github.com/gestionqr/gestionqr/internal/repository"
	"github.com/gestionqr/gestionqr/internal/s3storage"
	"github.com/gestionqr/gestionqr/internal/signing"
	"github.com/gestionqr/gestionqr/internal/sqlitestore"
	"github.com/gestionqr/gestionqr/internal/storage"
)

// DownloadPath is the API route serving links presigned by the memory store.
const DownloadPath = "/download"

// RecordStore is implemented by both record store drivers.
type RecordStore interface {
	ingest.Store
	records.Store
}

// OpenRecordStore opens the configured record store. For postgres the
// migrations are applied first when migrate is set. The returned func
// releases the store.
func OpenRecordStore(ctx context.Context, cfg *config.Config, migrate bool, log logrus.FieldLogger) (RecordStore, func(), error) {
	if err := cfg.RequireDatabase(); err != nil {
		return nil, nil, err
	}
	switch cfg.StoreDriver {
	case config.StoreSQLite:
		st, err := sqlitestore.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		log.WithField("path", cfg.SQLitePath).Info("sqlite store opened")
		return st, func() { _ = st.Close() }, nil
	default:
		if migrate {
			if err := database.Migrate(cfg.DatabaseURL, log); err != nil {
				return nil, nil, err
			}
		}
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewRecordRepository(pool), pool.Close, nil
	}
}

// OpenBlobStore opens the configured object store. The memory driver signs
// its links with cfg.SigningSecret and is returned as *storage.MemoryStore
// so the API can serve DownloadPath.
func OpenBlobStore(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (storage.Store, error) {
	switch cfg.BlobDriver {
	case storage.DriverMemory:
		log.Warn("memory blob store: attachments are lost on restart")
		return storage.NewMemoryStore(cfg.Bucket, signing.NewSigner(cfg.SigningSecret), DownloadPath), nil
	case storage.DriverS3:
		st, err := awsstorage.New(ctx, awsstorage.Config{
			Region:          cfg.S3Region,
			Bucket:          cfg.Bucket,
			Endpoint:        endpointURL(cfg),
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			PathStyle:       cfg.S3PathStyle,
			Public:          cfg.BucketPublic,
			PublicBaseURL:   cfg.PublicBucketURL,
		})
		if err != nil {
			return nil, err
		}
		return st, nil
	case storage.DriverMinio:
		st, err := s3storage.New(s3storage.Options{
			Endpoint:      cfg.S3Endpoint,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			Region:        cfg.S3Region,
			UseSSL:        cfg.S3UseSSL,
			Bucket:        cfg.Bucket,
			Public:        cfg.BucketPublic,
			PublicBaseURL: cfg.PublicBucketURL,
		})
		if err != nil {
			return nil, err
		}
		if err := st.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.BlobDriver)
	}
}

// endpointURL turns the minio-style host:port endpoint into the URL the AWS
// SDK expects. An empty endpoint means AWS itself.
func endpointURL(cfg *config.Config) string {
	ep := cfg.S3Endpoint
	if ep == "" || strings.HasPrefix(ep, "http://") || strings.HasPrefix(ep, "https://") {
		return ep
	}
	if cfg.S3UseSSL {
		return "https://" + ep
	}
	return "http://" + ep
}
