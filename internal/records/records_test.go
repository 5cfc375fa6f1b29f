package records

import (
	"context"
	"errors"
	"testing"

	"github.com/gestionqr/gestionqr/internal/model"
)

type memStore struct {
	hormigones map[string]*model.Hormigon
	canerias   map[string]*model.Caneria
	lastLimit  int
	err        error
	calls      []model.Tipo
}

func (m *memStore) GetHormigon(_ context.Context, id string) (*model.Hormigon, error) {
	m.calls = append(m.calls, model.TipoHormigones)
	if m.err != nil {
		return nil, m.err
	}
	if h, ok := m.hormigones[id]; ok {
		return h, nil
	}
	return nil, ErrNotFound
}

func (m *memStore) GetCaneria(_ context.Context, id string) (*model.Caneria, error) {
	m.calls = append(m.calls, model.TipoCanerias)
	if m.err != nil {
		return nil, m.err
	}
	if c, ok := m.canerias[id]; ok {
		return c, nil
	}
	return nil, ErrNotFound
}

func (m *memStore) SearchHormigones(_ context.Context, q HormigonQuery) ([]model.Hormigon, error) {
	m.lastLimit = q.Limit
	return nil, m.err
}

func (m *memStore) SearchCanerias(_ context.Context, q CaneriaQuery) ([]model.Caneria, error) {
	m.lastLimit = q.Limit
	return nil, m.err
}

func (m *memStore) UpdateArchivoURL(_ context.Context, tipo model.Tipo, id, url string) error {
	if m.err != nil {
		return m.err
	}
	if tipo == model.TipoHormigones {
		h, ok := m.hormigones[id]
		if !ok {
			return ErrNotFound
		}
		h.ArchivoURL = &url
	}
	return nil
}

func (m *memStore) UpdateQRCodeURL(_ context.Context, tipo model.Tipo, id, payload string) error {
	if m.err != nil {
		return m.err
	}
	if tipo == model.TipoCanerias {
		c, ok := m.canerias[id]
		if !ok {
			return ErrNotFound
		}
		c.QRCodeURL = &payload
	}
	return nil
}

func (m *memStore) Count(_ context.Context, tipo model.Tipo) (int, error) {
	if tipo == model.TipoHormigones {
		return len(m.hormigones), m.err
	}
	return len(m.canerias), m.err
}

func newMemStore() *memStore {
	return &memStore{
		hormigones: map[string]*model.Hormigon{"h1": {IDHormigon: "h1", NroInterno: "5"}},
		canerias:   map[string]*model.Caneria{"c1": {IDCaneria: "c1", NroISO: "X1", Satelite: "S1", Cantidad: 1}},
	}
}

func TestGetByIDProbesBothTables(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := NewService(store)

	rec, err := svc.GetByID(ctx, "c1", model.TipoUnknown)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Tipo != model.TipoCanerias || rec.ID() != "c1" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if len(store.calls) != 2 || store.calls[0] != model.TipoHormigones {
		t.Fatalf("expected hormigones to be probed first, got %v", store.calls)
	}

	store.calls = nil
	if _, err := svc.GetByID(ctx, "c1", model.TipoHormigones); !errors.Is(err, ErrNotFound) {
		t.Fatalf("typed lookup should not fall back, got %v", err)
	}
	if len(store.calls) != 1 {
		t.Fatalf("typed lookup queried %d tables", len(store.calls))
	}

	if _, err := svc.GetByID(ctx, "nope", model.TipoUnknown); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetByIDStopsOnStoreError(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("timeout")
	_, err := NewService(store).GetByID(context.Background(), "h1", model.TipoUnknown)
	if !errors.Is(err, store.err) {
		t.Fatalf("expected store error, got %v", err)
	}
	if len(store.calls) != 1 {
		t.Fatalf("probing continued after a store error: %v", store.calls)
	}
}

func TestSearchLimit(t *testing.T) {
	store := newMemStore()
	svc := NewService(store)
	for in, want := range map[int]int{0: DefaultLimit, -3: DefaultLimit, 50: 50, 10000: MaxLimit} {
		if _, err := svc.SearchHormigones(context.Background(), HormigonQuery{Limit: in}); err != nil {
			t.Fatalf("search: %v", err)
		}
		if store.lastLimit != want {
			t.Errorf("limit %d became %d, want %d", in, store.lastLimit, want)
		}
	}
}

func TestSaveFields(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := NewService(store)
	if err := svc.SaveArchivoURL(ctx, model.TipoHormigones, "h1", "hormigones/h1/1-a.pdf"); err != nil {
		t.Fatalf("save archivo: %v", err)
	}
	if got := *store.hormigones["h1"].ArchivoURL; got != "hormigones/h1/1-a.pdf" {
		t.Fatalf("archivo_url = %q", got)
	}
	if err := svc.SaveQRPayload(ctx, model.TipoCanerias, "c1", "https://x/detalle/c1?t=canerias"); err != nil {
		t.Fatalf("save qr: %v", err)
	}
	if err := svc.SaveQRPayload(ctx, model.TipoUnknown, "c1", "x"); !errors.Is(err, ErrInvalidTipo) {
		t.Fatalf("expected ErrInvalidTipo, got %v", err)
	}
	if err := svc.SaveArchivoURL(ctx, model.TipoHormigones, "missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCounts(t *testing.T) {
	got, err := NewService(newMemStore()).Counts(context.Background())
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if got != (Counts{Hormigones: 1, Canerias: 1}) {
		t.Fatalf("unexpected counts %+v", got)
	}
}

func TestEscapeLike(t *testing.T) {
	if got := EscapeLike(`50%_a\b`); got != `50\%\_a\\b` {
		t.Fatalf("EscapeLike = %q", got)
	}
}
