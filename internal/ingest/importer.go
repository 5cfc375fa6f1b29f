package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/gestionqr/gestionqr/internal/metrics"
	"github.com/gestionqr/gestionqr/internal/model"
	"github.com/gestionqr/gestionqr/internal/spreadsheet"
)

// Layout selects how a workbook is turned into raw rows.
type Layout string

const (
	// LayoutHeaders reads the first non-empty row as column headers.
	LayoutHeaders Layout = "headers"
	// LayoutFixed reads the positional concrete-pour layout.
	LayoutFixed Layout = "fixed"
)

var (
	// ErrInvalidTipo is returned when an import names no known record kind.
	ErrInvalidTipo = errors.New("tipo must be hormigones or canerias")
	// ErrInvalidLayout is returned for unknown layouts and for the fixed
	// layout on pipe segments.
	ErrInvalidLayout = errors.New("invalid spreadsheet layout")
)

// Request describes one import run.
type Request struct {
	Tipo     model.Tipo
	Layout   Layout
	FileName string
	DryRun   bool
}

// Report is what an import run tells the user.
type Report struct {
	Tipo       model.Tipo         `json:"tipo"`
	DryRun     bool               `json:"dry_run"`
	RawRows    int                `json:"raw_rows"`
	Normalized int                `json:"normalized"`
	Aggregated int                `json:"aggregated"`
	Result     model.ImportResult `json:"result"`
}

// Importer runs parse, normalize, aggregate and reconcile in sequence.
type Importer struct {
	reconciler *Reconciler
	log        logrus.FieldLogger
}

// NewImporter wires an importer over a store.
func NewImporter(store Store, log logrus.FieldLogger) *Importer {
	return &Importer{reconciler: NewReconciler(store), log: log}
}

// Import reads a workbook from r and reconciles it into the store.
func (im *Importer) Import(ctx context.Context, req Request, r io.Reader) (Report, error) {
	if !req.Tipo.Valid() {
		return Report{}, ErrInvalidTipo
	}
	if req.Layout == "" {
		req.Layout = LayoutHeaders
	}
	if req.FileName != "" && !spreadsheet.IsSpreadsheet(req.FileName) {
		return Report{}, spreadsheet.ErrUnsupportedFile
	}

	var (
		rows []model.RawRow
		err  error
	)
	switch {
	case req.Layout == LayoutHeaders:
		rows, err = spreadsheet.ReadRows(r)
	case req.Layout == LayoutFixed && req.Tipo == model.TipoHormigones:
		rows, err = spreadsheet.ReadHormigonesFixed(r)
	default:
		return Report{}, fmt.Errorf("%w: %q for %s", ErrInvalidLayout, req.Layout, req.Tipo)
	}
	if err != nil {
		metrics.ImportFailures.WithLabelValues(string(req.Tipo)).Inc()
		return Report{}, fmt.Errorf("read %s: %w", req.FileName, err)
	}
	return im.ImportRows(ctx, req.Tipo, rows, req.DryRun)
}

// ImportRows runs the pipeline on rows that were already parsed.
func (im *Importer) ImportRows(ctx context.Context, tipo model.Tipo, rows []model.RawRow, dryRun bool) (Report, error) {
	report := Report{Tipo: tipo, DryRun: dryRun, RawRows: len(rows)}
	var err error
	switch tipo {
	case model.TipoHormigones:
		err = im.hormigones(ctx, rows, &report)
	case model.TipoCanerias:
		err = im.canerias(ctx, rows, &report)
	default:
		return Report{}, ErrInvalidTipo
	}

	entry := im.log.WithFields(logrus.Fields{
		"tipo":       tipo,
		"dry_run":    dryRun,
		"raw":        report.RawRows,
		"normalized": report.Normalized,
		"aggregated": report.Aggregated,
	})
	if err != nil {
		metrics.ImportFailures.WithLabelValues(string(tipo)).Inc()
		entry.WithError(err).Error("import failed")
		return report, err
	}

	stage := metrics.ImportRows.MustCurryWith(map[string]string{"tipo": string(tipo)})
	stage.WithLabelValues("raw").Add(float64(report.RawRows))
	stage.WithLabelValues("normalized").Add(float64(report.Normalized))
	stage.WithLabelValues("aggregated").Add(float64(report.Aggregated))
	if !dryRun {
		metrics.ImportResults.WithLabelValues(string(tipo), "inserted").Add(float64(report.Result.Inserted))
		metrics.ImportResults.WithLabelValues(string(tipo), "updated").Add(float64(report.Result.Updated))
	}

	entry.WithFields(logrus.Fields{
		"inserted": report.Result.Inserted,
		"updated":  report.Result.Updated,
		"total":    report.Result.Total,
	}).Info("import finished")
	return report, nil
}

func (im *Importer) hormigones(ctx context.Context, rows []model.RawRow, report *Report) error {
	normalized := make([]model.HormigonRow, 0, len(rows))
	for _, raw := range rows {
		if row, ok := NormalizeHormigon(raw); ok {
			normalized = append(normalized, row)
		}
	}
	batch := AggregateHormigones(normalized)
	report.Normalized = len(normalized)
	report.Aggregated = len(batch)
	if len(batch) == 0 && len(rows) > 0 {
		return fmt.Errorf("%w: no row has an internal number (is the sheet in the fixed layout?)", spreadsheet.ErrNoRows)
	}

	var err error
	if report.DryRun {
		report.Result, err = im.reconciler.PreviewHormigones(ctx, batch)
	} else {
		report.Result, err = im.reconciler.UpsertHormigones(ctx, batch)
	}
	return err
}

func (im *Importer) canerias(ctx context.Context, rows []model.RawRow, report *Report) error {
	normalized := make([]model.CaneriaRow, 0, len(rows))
	for _, raw := range rows {
		if row, ok := NormalizeCaneria(raw); ok {
			normalized = append(normalized, row)
		}
	}
	batch := AggregateCanerias(normalized)
	report.Normalized = len(normalized)
	report.Aggregated = len(batch)
	if len(batch) == 0 && len(rows) > 0 {
		return fmt.Errorf("%w: no row has both an ISO number and a satellite", spreadsheet.ErrNoRows)
	}

	var err error
	if report.DryRun {
		report.Result, err = im.reconciler.PreviewCanerias(ctx, batch)
	} else {
		report.Result, err = im.reconciler.UpsertCanerias(ctx, batch)
	}
	return err
}
