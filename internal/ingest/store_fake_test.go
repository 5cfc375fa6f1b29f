package ingest

import (
	"context"
	"strconv"

	"github.com/gestionqr/gestionqr/internal/model"
)

// fakeStore keeps rows in maps and mimics the upsert semantics of the real
// stores: hormigones merge non-nil fields, canerias overwrite cantidad.
type fakeStore struct {
	hormigones map[string]model.HormigonRow
	canerias   map[model.CaneriaKey]model.CaneriaRow
	ids        map[string]string

	noEcho    bool
	lookupErr error
	upsertErr error

	lookups int
	upserts int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		hormigones: map[string]model.HormigonRow{},
		canerias:   map[model.CaneriaKey]model.CaneriaRow{},
		ids:        map[string]string{},
	}
}

func (f *fakeStore) id(key string) string {
	if id, ok := f.ids[key]; ok {
		return id
	}
	id := "id-" + strconv.Itoa(len(f.ids)+1)
	f.ids[key] = id
	return id
}

func (f *fakeStore) ExistingHormigonKeys(_ context.Context, nros []string) ([]string, error) {
	f.lookups++
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	var out []string
	for _, nro := range nros {
		if _, ok := f.hormigones[nro]; ok {
			out = append(out, nro)
		}
	}
	return out, nil
}

func (f *fakeStore) ExistingCaneriaKeys(_ context.Context, keys []model.CaneriaKey) ([]model.CaneriaKey, error) {
	f.lookups++
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	var out []model.CaneriaKey
	for _, k := range keys {
		if _, ok := f.canerias[k]; ok {
			out = append(out, k)
		}
	}
	return out, nil
}

func (f *fakeStore) UpsertHormigones(_ context.Context, rows []model.HormigonRow) ([]string, error) {
	f.upserts++
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		stored, ok := f.hormigones[r.NroInterno]
		if ok {
			if r.Titulo != nil {
				stored.Titulo = r.Titulo
			}
			if r.Satelite != nil {
				stored.Satelite = r.Satelite
			}
			if r.PesoTotalBaseKg != nil {
				stored.PesoTotalBaseKg = r.PesoTotalBaseKg
			}
		} else {
			stored = r
		}
		f.hormigones[r.NroInterno] = stored
		ids = append(ids, f.id("h:"+r.NroInterno))
	}
	if f.noEcho {
		return nil, nil
	}
	return ids, nil
}

func (f *fakeStore) UpsertCanerias(_ context.Context, rows []model.CaneriaRow) ([]string, error) {
	f.upserts++
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		f.canerias[r.Key()] = r
		ids = append(ids, f.id("c:"+r.Key().String()))
	}
	if f.noEcho {
		return nil, nil
	}
	return ids, nil
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }
