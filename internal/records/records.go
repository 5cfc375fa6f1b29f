// Package records is the thin access layer over the record store: lookups by
// id, partial-field search and the two mutable columns (attached file and QR
// payload).
package records

import (
	"context"
	"errors"
	"fmt"

	"github.com/gestionqr/gestionqr/internal/model"
)

// ErrNotFound is returned when no record matches the requested id.
var ErrNotFound = errors.New("record not found")

// ErrInvalidTipo is returned when an operation needs a known record kind.
var ErrInvalidTipo = errors.New("tipo must be hormigones or canerias")

const (
	DefaultLimit = 20
	// MaxLimit bounds listing queries; the traceability view asks for this many.
	MaxLimit = 200
)

// HormigonQuery filters concrete pours by case-insensitive substring. Empty
// fields do not filter.
type HormigonQuery struct {
	Titulo     string
	NroInterno string
	Limit      int
}

// CaneriaQuery filters pipe segments by case-insensitive substring.
type CaneriaQuery struct {
	NroLinea string
	NroISO   string
	Limit    int
}

// Counts holds the number of stored rows per kind.
type Counts struct {
	Hormigones int `json:"hormigones"`
	Canerias   int `json:"canerias"`
}

// Store is implemented by the Postgres repository and the SQLite store. Get
// methods return ErrNotFound when the id is unknown; Update methods return
// ErrNotFound when no row was touched.
type Store interface {
	GetHormigon(ctx context.Context, id string) (*model.Hormigon, error)
	GetCaneria(ctx context.Context, id string) (*model.Caneria, error)
	SearchHormigones(ctx context.Context, q HormigonQuery) ([]model.Hormigon, error)
	SearchCanerias(ctx context.Context, q CaneriaQuery) ([]model.Caneria, error)
	UpdateArchivoURL(ctx context.Context, tipo model.Tipo, id, url string) error
	UpdateQRCodeURL(ctx context.Context, tipo model.Tipo, id, payload string) error
	Count(ctx context.Context, tipo model.Tipo) (int, error)
}

// Service wraps a Store with defaults and the type-probing lookup.
type Service struct {
	store Store
}

// NewService constructs a Service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// GetByID fetches a record. With a known tipo only that table is queried;
// otherwise hormigones is probed first, then canerias, so a QR code that
// carries only an id still resolves.
func (s *Service) GetByID(ctx context.Context, id string, tipo model.Tipo) (*model.Record, error) {
	if tipo.Valid() {
		return s.get(ctx, id, tipo)
	}
	for _, t := range []model.Tipo{model.TipoHormigones, model.TipoCanerias} {
		rec, err := s.get(ctx, id, t)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		return rec, err
	}
	return nil, ErrNotFound
}

func (s *Service) get(ctx context.Context, id string, tipo model.Tipo) (*model.Record, error) {
	switch tipo {
	case model.TipoHormigones:
		h, err := s.store.GetHormigon(ctx, id)
		if err != nil {
			return nil, err
		}
		return &model.Record{Tipo: tipo, Hormigon: h}, nil
	case model.TipoCanerias:
		c, err := s.store.GetCaneria(ctx, id)
		if err != nil {
			return nil, err
		}
		return &model.Record{Tipo: tipo, Caneria: c}, nil
	default:
		return nil, ErrInvalidTipo
	}
}

// SearchHormigones runs a filtered search ordered by titulo.
func (s *Service) SearchHormigones(ctx context.Context, q HormigonQuery) ([]model.Hormigon, error) {
	q.Limit = clampLimit(q.Limit)
	out, err := s.store.SearchHormigones(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search hormigones: %w", err)
	}
	return out, nil
}

// SearchCanerias runs a filtered search ordered by nro_iso.
func (s *Service) SearchCanerias(ctx context.Context, q CaneriaQuery) ([]model.Caneria, error) {
	q.Limit = clampLimit(q.Limit)
	out, err := s.store.SearchCanerias(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search canerias: %w", err)
	}
	return out, nil
}

// SaveArchivoURL stores the attached-file reference (public URL or storage
// path) on a record.
func (s *Service) SaveArchivoURL(ctx context.Context, tipo model.Tipo, id, url string) error {
	if !tipo.Valid() {
		return ErrInvalidTipo
	}
	if err := s.store.UpdateArchivoURL(ctx, tipo, id, url); err != nil {
		return fmt.Errorf("save archivo_url: %w", err)
	}
	return nil
}

// SaveQRPayload stores the deep link encoded in the record's QR code.
func (s *Service) SaveQRPayload(ctx context.Context, tipo model.Tipo, id, payload string) error {
	if !tipo.Valid() {
		return ErrInvalidTipo
	}
	if err := s.store.UpdateQRCodeURL(ctx, tipo, id, payload); err != nil {
		return fmt.Errorf("save qr_code_url: %w", err)
	}
	return nil
}

// Counts returns the number of rows per kind.
func (s *Service) Counts(ctx context.Context) (Counts, error) {
	h, err := s.store.Count(ctx, model.TipoHormigones)
	if err != nil {
		return Counts{}, fmt.Errorf("count hormigones: %w", err)
	}
	c, err := s.store.Count(ctx, model.TipoCanerias)
	if err != nil {
		return Counts{}, fmt.Errorf("count canerias: %w", err)
	}
	return Counts{Hormigones: h, Canerias: c}, nil
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultLimit
	case n > MaxLimit:
		return MaxLimit
	default:
		return n
	}
}

// EscapeLike escapes LIKE wildcards so user input matches literally. The
// stores use '\' as the escape character.
func EscapeLike(s string) string {
	r := make([]rune, 0, len(s))
	for _, c := range s {
		if c == '\\' || c == '%' || c == '_' {
			r = append(r, '\\')
		}
		r = append(r, c)
	}
	return string(r)
}
