package ingest

import (
	"context"
	"fmt"

	"github.com/gestionqr/gestionqr/internal/model"
)

// Store is the slice of the record store the reconciler needs.
//
// Correctness of the upserts depends on the store enforcing a uniqueness
// constraint that exactly matches the conflict target:
//
//	hormigones: UNIQUE (nro_interno)
//	canerias:   UNIQUE NULLS NOT DISTINCT (nro_iso, nro_linea, satelite)
//
// Both store implementations ship that schema and share a contract test.
type Store interface {
	// ExistingHormigonKeys returns the subset of nros already stored.
	ExistingHormigonKeys(ctx context.Context, nros []string) ([]string, error)
	// ExistingCaneriaKeys returns the subset of keys already stored, matched
	// on all three key columns.
	ExistingCaneriaKeys(ctx context.Context, keys []model.CaneriaKey) ([]model.CaneriaKey, error)
	// UpsertHormigones inserts or merges rows on nro_interno; nil fields keep
	// the stored value. It returns the ids of the affected rows, or nil when
	// the store does not echo them.
	UpsertHormigones(ctx context.Context, rows []model.HormigonRow) ([]string, error)
	// UpsertCanerias inserts or overwrites rows on the composite key.
	UpsertCanerias(ctx context.Context, rows []model.CaneriaRow) ([]string, error)
}

// Reconciler classifies an aggregated batch into new and pre-existing rows
// and writes it with a single upsert.
type Reconciler struct {
	store Store
}

// NewReconciler constructs a Reconciler.
func NewReconciler(store Store) *Reconciler {
	return &Reconciler{store: store}
}

// UpsertHormigones reconciles a batch of concrete-pour rows. The batch must
// already be aggregated (no repeated internal numbers).
func (r *Reconciler) UpsertHormigones(ctx context.Context, batch []model.HormigonRow) (model.ImportResult, error) {
	if len(batch) == 0 {
		return model.ImportResult{}, nil
	}
	existing, err := r.existingHormigones(ctx, batch)
	if err != nil {
		return model.ImportResult{}, err
	}
	ids, err := r.store.UpsertHormigones(ctx, batch)
	if err != nil {
		return model.ImportResult{}, fmt.Errorf("upsert hormigones: %w", err)
	}
	return summarize(ids, len(batch), existing), nil
}

// UpsertCanerias reconciles a batch of pipe-segment rows. The batch must
// already be aggregated. Stored quantities are overwritten, not accumulated.
func (r *Reconciler) UpsertCanerias(ctx context.Context, batch []model.CaneriaRow) (model.ImportResult, error) {
	if len(batch) == 0 {
		return model.ImportResult{}, nil
	}
	existing, err := r.existingCanerias(ctx, batch)
	if err != nil {
		return model.ImportResult{}, err
	}
	ids, err := r.store.UpsertCanerias(ctx, batch)
	if err != nil {
		return model.ImportResult{}, fmt.Errorf("upsert canerias: %w", err)
	}
	return summarize(ids, len(batch), existing), nil
}

// PreviewHormigones computes the counts an upsert would report without
// writing anything.
func (r *Reconciler) PreviewHormigones(ctx context.Context, batch []model.HormigonRow) (model.ImportResult, error) {
	if len(batch) == 0 {
		return model.ImportResult{}, nil
	}
	existing, err := r.existingHormigones(ctx, batch)
	if err != nil {
		return model.ImportResult{}, err
	}
	return summarize(nil, len(batch), existing), nil
}

// PreviewCanerias is the pipe-segment counterpart of PreviewHormigones.
func (r *Reconciler) PreviewCanerias(ctx context.Context, batch []model.CaneriaRow) (model.ImportResult, error) {
	if len(batch) == 0 {
		return model.ImportResult{}, nil
	}
	existing, err := r.existingCanerias(ctx, batch)
	if err != nil {
		return model.ImportResult{}, err
	}
	return summarize(nil, len(batch), existing), nil
}

func (r *Reconciler) existingHormigones(ctx context.Context, batch []model.HormigonRow) (int, error) {
	wanted := make(map[string]struct{}, len(batch))
	nros := make([]string, 0, len(batch))
	for _, row := range batch {
		if _, dup := wanted[row.NroInterno]; dup {
			continue
		}
		wanted[row.NroInterno] = struct{}{}
		nros = append(nros, row.NroInterno)
	}
	found, err := r.store.ExistingHormigonKeys(ctx, nros)
	if err != nil {
		return 0, fmt.Errorf("lookup existing hormigones: %w", err)
	}
	count := 0
	for _, nro := range found {
		if _, ok := wanted[nro]; ok {
			count++
			delete(wanted, nro)
		}
	}
	return count, nil
}

func (r *Reconciler) existingCanerias(ctx context.Context, batch []model.CaneriaRow) (int, error) {
	wanted := make(map[model.CaneriaKey]struct{}, len(batch))
	keys := make([]model.CaneriaKey, 0, len(batch))
	for _, row := range batch {
		k := row.Key()
		if _, dup := wanted[k]; dup {
			continue
		}
		wanted[k] = struct{}{}
		keys = append(keys, k)
	}
	found, err := r.store.ExistingCaneriaKeys(ctx, keys)
	if err != nil {
		return 0, fmt.Errorf("lookup existing canerias: %w", err)
	}
	count := 0
	for _, k := range found {
		if _, ok := wanted[k]; ok {
			count++
			delete(wanted, k)
		}
	}
	return count, nil
}

// summarize derives the user-facing counts. total is the number of rows the
// store echoed, or the batch size when it echoed nothing.
func summarize(ids []string, batchLen, existing int) model.ImportResult {
	total := batchLen
	if ids != nil {
		total = len(ids)
	}
	updated := existing
	if updated > total {
		updated = total
	}
	inserted := total - updated
	if inserted < 0 {
		inserted = 0
	}
	return model.ImportResult{Inserted: inserted, Updated: updated, Total: total}
}
