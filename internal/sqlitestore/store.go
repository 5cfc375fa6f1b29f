// Package sqlitestore is the embedded record store used for local work and
// as the always-on backend of the store contract tests. It implements the
// same interfaces as the Postgres repository.
package sqlitestore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/gestionqr/gestionqr/internal/model"
	"github.com/gestionqr/gestionqr/internal/records"
)

//go:embed schema.sql
var schema string

// chunkSize keeps IN lists well below SQLite's bound-parameter limit.
const chunkSize = 300

const (
	hormigonColumns = `id_hormigon, nro_interno, titulo, satelite, peso_total_base_kg, archivo_url, qr_code_url`
	caneriaColumns  = `id_caneria, nro_iso, NULLIF(nro_linea, '') AS nro_linea, satelite, cantidad, archivo_url, qr_code_url`
)

// Store is a SQLite-backed record store.
type Store struct {
	db *sqlx.DB
}

// Open opens (or creates) the database at path and applies the schema. Use
// ":memory:" only in tests; every connection would get its own database, so
// the pool is limited to one connection.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// ExistingHormigonKeys returns the internal numbers already stored.
func (s *Store) ExistingHormigonKeys(ctx context.Context, nros []string) ([]string, error) {
	var out []string
	for start := 0; start < len(nros); start += chunkSize {
		end := min(start+chunkSize, len(nros))
		query, args, err := sqlx.In(`SELECT nro_interno FROM hormigones WHERE nro_interno IN (?)`, nros[start:end])
		if err != nil {
			return nil, fmt.Errorf("build hormigon key query: %w", err)
		}
		var found []string
		if err := s.db.SelectContext(ctx, &found, s.db.Rebind(query), args...); err != nil {
			return nil, fmt.Errorf("select hormigon keys: %w", err)
		}
		out = append(out, found...)
	}
	return out, nil
}

// ExistingCaneriaKeys returns the stored keys among keys using row-value
// comparison on all three columns.
func (s *Store) ExistingCaneriaKeys(ctx context.Context, keys []model.CaneriaKey) ([]model.CaneriaKey, error) {
	var out []model.CaneriaKey
	for start := 0; start < len(keys); start += chunkSize {
		chunk := keys[start:min(start+chunkSize, len(keys))]
		tuples := make([]string, len(chunk))
		args := make([]any, 0, len(chunk)*3)
		for i, k := range chunk {
			tuples[i] = "(?, ?, ?)"
			args = append(args, k.NroISO, k.NroLinea, k.Satelite)
		}
		query := `SELECT nro_iso, nro_linea, satelite FROM canerias
			WHERE (nro_iso, nro_linea, satelite) IN (VALUES ` + strings.Join(tuples, ", ") + `)`
		rows, err := s.db.QueryxContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("select caneria keys: %w", err)
		}
		for rows.Next() {
			var k model.CaneriaKey
			if err := rows.Scan(&k.NroISO, &k.NroLinea, &k.Satelite); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan caneria key: %w", err)
			}
			out = append(out, k)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("iterate caneria keys: %w", err)
		}
		rows.Close()
	}
	return out, nil
}

// UpsertHormigones writes the batch in one transaction, merging non-NULL
// fields into existing rows.
func (s *Store) UpsertHormigones(ctx context.Context, batch []model.HormigonRow) ([]string, error) {
	const q = `
		INSERT INTO hormigones (id_hormigon, nro_interno, titulo, satelite, peso_total_base_kg)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(nro_interno) DO UPDATE SET
			titulo             = COALESCE(excluded.titulo, hormigones.titulo),
			satelite           = COALESCE(excluded.satelite, hormigones.satelite),
			peso_total_base_kg = COALESCE(excluded.peso_total_base_kg, hormigones.peso_total_base_kg),
			updated_at         = CURRENT_TIMESTAMP
		RETURNING id_hormigon`
	return s.upsert(ctx, "hormigones", q, len(batch), func(i int) []any {
		row := batch[i]
		return []any{uuid.NewString(), row.NroInterno, row.Titulo, row.Satelite, row.PesoTotalBaseKg}
	})
}

// UpsertCanerias writes the batch in one transaction, overwriting cantidad.
func (s *Store) UpsertCanerias(ctx context.Context, batch []model.CaneriaRow) ([]string, error) {
	const q = `
		INSERT INTO canerias (id_caneria, nro_iso, nro_linea, satelite, cantidad)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(nro_iso, nro_linea, satelite) DO UPDATE SET
			cantidad   = excluded.cantidad,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id_caneria`
	return s.upsert(ctx, "canerias", q, len(batch), func(i int) []any {
		row := batch[i]
		k := row.Key()
		return []any{uuid.NewString(), k.NroISO, k.NroLinea, k.Satelite, row.Cantidad}
	})
}

func (s *Store) upsert(ctx context.Context, table, query string, n int, args func(int) []any) ([]string, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin %s upsert: %w", table, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("prepare %s upsert: %w", table, err)
	}
	defer stmt.Close()

	ids := make([]string, 0, n)
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		var id string
		if err := stmt.QueryRowxContext(ctx, args(i)...).Scan(&id); err != nil {
			return nil, fmt.Errorf("upsert %s: %w", table, err)
		}
		// Mirrors Postgres, which refuses to touch one row twice per statement.
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("upsert %s: row %s affected twice in one batch", table, id)
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit %s upsert: %w", table, err)
	}
	return ids, nil
}

// GetHormigon returns a concrete pour by primary key.
func (s *Store) GetHormigon(ctx context.Context, id string) (*model.Hormigon, error) {
	var h model.Hormigon
	err := s.db.GetContext(ctx, &h, `SELECT `+hormigonColumns+` FROM hormigones WHERE id_hormigon = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, records.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select hormigon: %w", err)
	}
	return &h, nil
}

// GetCaneria returns a pipe segment by primary key.
func (s *Store) GetCaneria(ctx context.Context, id string) (*model.Caneria, error) {
	var c model.Caneria
	err := s.db.GetContext(ctx, &c, `SELECT `+caneriaColumns+` FROM canerias WHERE id_caneria = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, records.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select caneria: %w", err)
	}
	return &c, nil
}

// SearchHormigones filters by substring; SQLite's LIKE folds ASCII case only.
func (s *Store) SearchHormigones(ctx context.Context, q records.HormigonQuery) ([]model.Hormigon, error) {
	out := []model.Hormigon{}
	err := s.db.SelectContext(ctx, &out, `
		SELECT `+hormigonColumns+`
		FROM hormigones
		WHERE (? = '' OR titulo LIKE '%' || ? || '%' ESCAPE '\')
		  AND (? = '' OR nro_interno LIKE '%' || ? || '%' ESCAPE '\')
		ORDER BY titulo IS NULL, titulo, nro_interno
		LIMIT ?`,
		q.Titulo, records.EscapeLike(q.Titulo),
		q.NroInterno, records.EscapeLike(q.NroInterno),
		q.Limit)
	if err != nil {
		return nil, fmt.Errorf("search hormigones: %w", err)
	}
	return out, nil
}

// SearchCanerias filters by substring, ordered by nro_iso.
func (s *Store) SearchCanerias(ctx context.Context, q records.CaneriaQuery) ([]model.Caneria, error) {
	out := []model.Caneria{}
	err := s.db.SelectContext(ctx, &out, `
		SELECT `+caneriaColumns+`
		FROM canerias
		WHERE (? = '' OR nro_linea LIKE '%' || ? || '%' ESCAPE '\')
		  AND (? = '' OR nro_iso LIKE '%' || ? || '%' ESCAPE '\')
		ORDER BY nro_iso, nro_linea, satelite
		LIMIT ?`,
		q.NroLinea, records.EscapeLike(q.NroLinea),
		q.NroISO, records.EscapeLike(q.NroISO),
		q.Limit)
	if err != nil {
		return nil, fmt.Errorf("search canerias: %w", err)
	}
	return out, nil
}

// UpdateArchivoURL sets archivo_url on one record.
func (s *Store) UpdateArchivoURL(ctx context.Context, tipo model.Tipo, id, url string) error {
	return s.updateColumn(ctx, tipo, "archivo_url", id, url)
}

// UpdateQRCodeURL sets qr_code_url on one record.
func (s *Store) UpdateQRCodeURL(ctx context.Context, tipo model.Tipo, id, payload string) error {
	return s.updateColumn(ctx, tipo, "qr_code_url", id, payload)
}

func (s *Store) updateColumn(ctx context.Context, tipo model.Tipo, column, id, value string) error {
	if !tipo.Valid() {
		return records.ErrInvalidTipo
	}
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET %s = ?, updated_at = CURRENT_TIMESTAMP WHERE %s = ?`, tipo, column, tipo.IDColumn()),
		value, id)
	if err != nil {
		return fmt.Errorf("update %s.%s: %w", tipo, column, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s.%s: %w", tipo, column, err)
	}
	if n == 0 {
		return records.ErrNotFound
	}
	return nil
}

// Count returns the number of rows of one kind.
func (s *Store) Count(ctx context.Context, tipo model.Tipo) (int, error) {
	if !tipo.Valid() {
		return 0, records.ErrInvalidTipo
	}
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT count(*) FROM `+string(tipo)); err != nil {
		return 0, fmt.Errorf("count %s: %w", tipo, err)
	}
	return n, nil
}
