// Command gestionqr is the operator CLI: migrations, spreadsheet imports,
// lookups, QR payloads and attachments against the configured stores.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gestionqr/gestionqr/internal/attachments"
	"github.com/gestionqr/gestionqr/internal/bootstrap"
	"github.com/gestionqr/gestionqr/internal/config"
	"github.com/gestionqr/gestionqr/internal/ingest"
	"github.com/gestionqr/gestionqr/internal/logging"
	"github.com/gestionqr/gestionqr/internal/qr"
	"github.com/gestionqr/gestionqr/internal/records"
	"github.com/gestionqr/gestionqr/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "gestionqr: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gestionqr",
		Short: "Traceability records, imports and QR codes",
		Long: `gestionqr manages concrete-pour (hormigones) and pipe-segment (canerias) records:
it imports spreadsheets, looks records up, builds QR payloads and attaches documentation.
Settings come from GESTIONQR_* environment variables or the file named by GESTIONQR_CONFIG.`,
		SilenceUsage: true,
	}
	cmd.AddCommand(
		newMigrateCmd(),
		newImportCmd(),
		newShowCmd(),
		newSearchCmd(),
		newQRCmd(),
		newAttachCmd(),
		newLinkCmd(),
		newCountsCmd(),
		newTokenCmd(),
	)
	return cmd
}

// app holds what a command needs; blobs is only opened on request.
type app struct {
	cfg      *config.Config
	log      *logrus.Logger
	store    bootstrap.RecordStore
	records  *records.Service
	importer *ingest.Importer
	blobs    storage.Store
	closers  []func()
}

func loadConfig() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	// Logs go to stderr so command output can be piped.
	return cfg, logging.New(cfg.LogLevel, cfg.LogFormat), nil
}

func openApp(ctx context.Context, withBlobs bool) (*app, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}
	store, closeStore, err := bootstrap.OpenRecordStore(ctx, cfg, false, log)
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:      cfg,
		log:      log,
		store:    store,
		records:  records.NewService(store),
		importer: ingest.NewImporter(store, log),
		closers:  []func(){closeStore},
	}
	if withBlobs {
		blobs, err := bootstrap.OpenBlobStore(ctx, cfg, log)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.blobs = blobs
	}
	return a, nil
}

func (a *app) attachments() *attachments.Service {
	return attachments.NewService(a.blobs, a.records, a.cfg.MaxFileSize, a.cfg.SignedURLTTL, a.log)
}

func (a *app) qrBuilder() qr.Builder {
	return qr.Builder{BaseURL: a.cfg.PublicAppURL}
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
