package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/gestionqr/gestionqr/internal/model"
	"github.com/gestionqr/gestionqr/internal/records"
)

var (
	// ErrConflict wraps unique violations that the upsert did not absorb.
	ErrConflict = errors.New("natural key conflict")
	// ErrDuplicateInBatch is returned when one upsert carries the same key
	// twice; batches must be aggregated first.
	ErrDuplicateInBatch = errors.New("batch repeats a natural key")
	// ErrPermission wraps insufficient_privilege errors.
	ErrPermission = errors.New("permission denied by the record store")
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// RecordRepository wraps all SQL used by the ingestion pipeline and the
// record access layer.
type RecordRepository struct {
	db DBTX
}

// NewRecordRepository constructs a repository.
func NewRecordRepository(db DBTX) *RecordRepository {
	return &RecordRepository{db: db}
}

const (
	hormigonColumns = `id_hormigon::text AS id_hormigon, nro_interno, titulo, satelite, peso_total_base_kg, archivo_url, qr_code_url`
	caneriaColumns  = `id_caneria::text AS id_caneria, nro_iso, nro_linea, satelite, cantidad, archivo_url, qr_code_url`
)

// ExistingHormigonKeys returns the internal numbers already stored.
func (r *RecordRepository) ExistingHormigonKeys(ctx context.Context, nros []string) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT nro_interno FROM hormigones WHERE nro_interno = ANY($1::text[])`, nros)
	if err != nil {
		return nil, fmt.Errorf("select hormigon keys: %w", classify(err))
	}
	out, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan hormigon keys: %w", classify(err))
	}
	return out, nil
}

// ExistingCaneriaKeys returns the stored keys among keys, matching all three
// columns. An empty line number in a key matches a NULL nro_linea.
func (r *RecordRepository) ExistingCaneriaKeys(ctx context.Context, keys []model.CaneriaKey) ([]model.CaneriaKey, error) {
	isos := make([]string, len(keys))
	lines := make([]string, len(keys))
	sats := make([]string, len(keys))
	for i, k := range keys {
		isos[i], lines[i], sats[i] = k.NroISO, k.NroLinea, k.Satelite
	}
	rows, err := r.db.Query(ctx, `
		SELECT c.nro_iso, COALESCE(c.nro_linea, ''), c.satelite
		FROM canerias c
		JOIN unnest($1::text[], $2::text[], $3::text[]) AS k(nro_iso, nro_linea, satelite)
		  ON c.nro_iso = k.nro_iso
		 AND c.satelite = k.satelite
		 AND c.nro_linea IS NOT DISTINCT FROM NULLIF(k.nro_linea, '')
	`, isos, lines, sats)
	if err != nil {
		return nil, fmt.Errorf("select caneria keys: %w", classify(err))
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.CaneriaKey, error) {
		var k model.CaneriaKey
		err := row.Scan(&k.NroISO, &k.NroLinea, &k.Satelite)
		return k, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan caneria keys: %w", classify(err))
	}
	return out, nil
}

// UpsertHormigones inserts new rows and merges existing ones field by field:
// a NULL in the incoming row keeps the stored value.
func (r *RecordRepository) UpsertHormigones(ctx context.Context, batch []model.HormigonRow) ([]string, error) {
	nros := make([]string, len(batch))
	titulos := make([]*string, len(batch))
	sats := make([]*string, len(batch))
	pesos := make([]*float64, len(batch))
	for i, row := range batch {
		nros[i], titulos[i], sats[i], pesos[i] = row.NroInterno, row.Titulo, row.Satelite, row.PesoTotalBaseKg
	}
	rows, err := r.db.Query(ctx, `
		INSERT INTO hormigones AS t (nro_interno, titulo, satelite, peso_total_base_kg)
		SELECT * FROM unnest($1::text[], $2::text[], $3::text[], $4::float8[])
		ON CONFLICT (nro_interno) DO UPDATE SET
			titulo             = COALESCE(EXCLUDED.titulo, t.titulo),
			satelite           = COALESCE(EXCLUDED.satelite, t.satelite),
			peso_total_base_kg = COALESCE(EXCLUDED.peso_total_base_kg, t.peso_total_base_kg),
			updated_at         = now()
		RETURNING id_hormigon::text
	`, nros, titulos, sats, pesos)
	if err != nil {
		return nil, fmt.Errorf("upsert hormigones: %w", classify(err))
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("upsert hormigones: %w", classify(err))
	}
	return ids, nil
}

// UpsertCanerias inserts new rows and overwrites cantidad on existing ones.
func (r *RecordRepository) UpsertCanerias(ctx context.Context, batch []model.CaneriaRow) ([]string, error) {
	isos := make([]string, len(batch))
	lines := make([]*string, len(batch))
	sats := make([]string, len(batch))
	cants := make([]int32, len(batch))
	// Quantities are capped at MaxInt32 during normalization.
	for i, row := range batch {
		isos[i], lines[i], sats[i], cants[i] = row.NroISO, row.NroLinea, row.Satelite, int32(row.Cantidad)
	}
	rows, err := r.db.Query(ctx, `
		INSERT INTO canerias AS t (nro_iso, nro_linea, satelite, cantidad)
		SELECT * FROM unnest($1::text[], $2::text[], $3::text[], $4::int4[])
		ON CONFLICT (nro_iso, nro_linea, satelite) DO UPDATE SET
			cantidad   = EXCLUDED.cantidad,
			updated_at = now()
		RETURNING id_caneria::text
	`, isos, lines, sats, cants)
	if err != nil {
		return nil, fmt.Errorf("upsert canerias: %w", classify(err))
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("upsert canerias: %w", classify(err))
	}
	return ids, nil
}

// GetHormigon returns a concrete pour by primary key.
func (r *RecordRepository) GetHormigon(ctx context.Context, id string) (*model.Hormigon, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, records.ErrNotFound
	}
	rows, err := r.db.Query(ctx, `SELECT `+hormigonColumns+` FROM hormigones WHERE id_hormigon = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("select hormigon: %w", classify(err))
	}
	h, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[model.Hormigon])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, records.ErrNotFound
		}
		return nil, fmt.Errorf("select hormigon: %w", classify(err))
	}
	return h, nil
}

// GetCaneria returns a pipe segment by primary key.
func (r *RecordRepository) GetCaneria(ctx context.Context, id string) (*model.Caneria, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, records.ErrNotFound
	}
	rows, err := r.db.Query(ctx, `SELECT `+caneriaColumns+` FROM canerias WHERE id_caneria = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("select caneria: %w", classify(err))
	}
	c, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[model.Caneria])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, records.ErrNotFound
		}
		return nil, fmt.Errorf("select caneria: %w", classify(err))
	}
	return c, nil
}

// SearchHormigones matches titulo and nro_interno by case-insensitive
// substring, ordered by titulo.
func (r *RecordRepository) SearchHormigones(ctx context.Context, q records.HormigonQuery) ([]model.Hormigon, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+hormigonColumns+`
		FROM hormigones
		WHERE ($1::text = '' OR titulo ILIKE '%' || $1 || '%' ESCAPE '\')
		  AND ($2::text = '' OR nro_interno ILIKE '%' || $2 || '%' ESCAPE '\')
		ORDER BY titulo ASC, nro_interno ASC
		LIMIT $3
	`, records.EscapeLike(q.Titulo), records.EscapeLike(q.NroInterno), q.Limit)
	if err != nil {
		return nil, fmt.Errorf("search hormigones: %w", classify(err))
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.Hormigon])
	if err != nil {
		return nil, fmt.Errorf("scan hormigones: %w", classify(err))
	}
	return out, nil
}

// SearchCanerias matches nro_linea and nro_iso by case-insensitive
// substring, ordered by nro_iso.
func (r *RecordRepository) SearchCanerias(ctx context.Context, q records.CaneriaQuery) ([]model.Caneria, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+caneriaColumns+`
		FROM canerias
		WHERE ($1::text = '' OR nro_linea ILIKE '%' || $1 || '%' ESCAPE '\')
		  AND ($2::text = '' OR nro_iso ILIKE '%' || $2 || '%' ESCAPE '\')
		ORDER BY nro_iso ASC, nro_linea ASC NULLS FIRST, satelite ASC
		LIMIT $3
	`, records.EscapeLike(q.NroLinea), records.EscapeLike(q.NroISO), q.Limit)
	if err != nil {
		return nil, fmt.Errorf("search canerias: %w", classify(err))
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.Caneria])
	if err != nil {
		return nil, fmt.Errorf("scan canerias: %w", classify(err))
	}
	return out, nil
}

// UpdateArchivoURL sets archivo_url on one record.
func (r *RecordRepository) UpdateArchivoURL(ctx context.Context, tipo model.Tipo, id, url string) error {
	return r.updateColumn(ctx, tipo, "archivo_url", id, url)
}

// UpdateQRCodeURL sets qr_code_url on one record.
func (r *RecordRepository) UpdateQRCodeURL(ctx context.Context, tipo model.Tipo, id, payload string) error {
	return r.updateColumn(ctx, tipo, "qr_code_url", id, payload)
}

// updateColumn only ever receives column names from this file; tipo picks
// the table through a switch, never through string interpolation of input.
func (r *RecordRepository) updateColumn(ctx context.Context, tipo model.Tipo, column, id, value string) error {
	var table string
	switch tipo {
	case model.TipoHormigones, model.TipoCanerias:
		table = string(tipo)
	default:
		return records.ErrInvalidTipo
	}
	if _, err := uuid.Parse(id); err != nil {
		return records.ErrNotFound
	}
	tag, err := r.db.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET %s = $1, updated_at = now() WHERE %s = $2`, table, column, tipo.IDColumn()),
		value, id)
	if err != nil {
		return fmt.Errorf("update %s.%s: %w", table, column, classify(err))
	}
	if tag.RowsAffected() == 0 {
		return records.ErrNotFound
	}
	return nil
}

// Count returns the number of rows of one kind.
func (r *RecordRepository) Count(ctx context.Context, tipo model.Tipo) (int, error) {
	var query string
	switch tipo {
	case model.TipoHormigones:
		query = `SELECT count(*) FROM hormigones`
	case model.TipoCanerias:
		query = `SELECT count(*) FROM canerias`
	default:
		return 0, records.ErrInvalidTipo
	}
	var n int
	if err := r.db.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", tipo, classify(err))
	}
	return n, nil
}

// classify tags well-known Postgres errors with a sentinel while keeping the
// original message and error chain.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505": // unique_violation
		return fmt.Errorf("%w: %w", ErrConflict, err)
	case "21000": // cardinality_violation: ON CONFLICT hit the same row twice
		return fmt.Errorf("%w: %w", ErrDuplicateInBatch, err)
	case "42501": // insufficient_privilege
		return fmt.Errorf("%w: %w", ErrPermission, err)
	default:
		return err
	}
}
