package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/gestionqr/gestionqr/internal/database"
	"github.com/gestionqr/gestionqr/internal/ingest"
	"github.com/gestionqr/gestionqr/internal/logging"
	"github.com/gestionqr/gestionqr/internal/model"
	"github.com/gestionqr/gestionqr/internal/records"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		code string
		want error
	}{
		{"23505", ErrConflict},
		{"21000", ErrDuplicateInBatch},
		{"42501", ErrPermission},
	}
	for _, tt := range tests {
		pgErr := &pgconn.PgError{Code: tt.code, Message: "boom"}
		got := classify(pgErr)
		if !errors.Is(got, tt.want) {
			t.Errorf("code %s: %v is not %v", tt.code, got, tt.want)
		}
		var back *pgconn.PgError
		if !errors.As(got, &back) || back.Message != "boom" {
			t.Errorf("code %s: original error lost", tt.code)
		}
	}
	plain := errors.New("plain")
	if classify(plain) != plain {
		t.Fatal("non-postgres errors must pass through")
	}
}

// setupTestDB starts Postgres in a container and applies the migrations.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION not set")
	}
	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("gestionqr_test"),
		postgres.WithUsername("gestionqr"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})
	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	if err := database.Migrate(dsn, logging.Discard()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	pool, err := database.Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func TestNaturalKeyContract(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewRecordRepository(pool)
	rec := ingest.NewReconciler(repo)

	titulo := "Muro A"
	peso := 12.5
	res, err := rec.UpsertHormigones(ctx, []model.HormigonRow{{NroInterno: "5", Titulo: &titulo}, {NroInterno: "6"}})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if res != (model.ImportResult{Inserted: 2, Total: 2}) {
		t.Fatalf("first upsert result %+v", res)
	}
	res, err = rec.UpsertHormigones(ctx, []model.HormigonRow{{NroInterno: "5", PesoTotalBaseKg: &peso}})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if res != (model.ImportResult{Updated: 1, Total: 1}) {
		t.Fatalf("second upsert result %+v", res)
	}
	found, err := repo.SearchHormigones(ctx, records.HormigonQuery{NroInterno: "5", Limit: 20})
	if err != nil || len(found) != 1 {
		t.Fatalf("search: %v %v", found, err)
	}
	if found[0].Titulo == nil || *found[0].Titulo != "Muro A" || found[0].PesoTotalBaseKg == nil || *found[0].PesoTotalBaseKg != 12.5 {
		t.Fatalf("merge lost a field: %+v", found[0])
	}

	// A NULL line number is part of the identity: re-ingesting it updates.
	batch := []model.CaneriaRow{{NroISO: "X1", Satelite: "S1", Cantidad: 5}}
	if _, err := rec.UpsertCanerias(ctx, batch); err != nil {
		t.Fatalf("caneria upsert: %v", err)
	}
	batch[0].Cantidad = 2
	res, err = rec.UpsertCanerias(ctx, batch)
	if err != nil {
		t.Fatalf("caneria re-upsert: %v", err)
	}
	if res != (model.ImportResult{Updated: 1, Total: 1}) {
		t.Fatalf("caneria re-upsert result %+v", res)
	}
	segs, err := repo.SearchCanerias(ctx, records.CaneriaQuery{NroISO: "x1", Limit: 20})
	if err != nil || len(segs) != 1 {
		t.Fatalf("search canerias: %v %v", segs, err)
	}
	if segs[0].Cantidad != 2 {
		t.Fatalf("cantidad = %d, want overwrite to 2", segs[0].Cantidad)
	}

	if err := repo.UpdateQRCodeURL(ctx, model.TipoCanerias, segs[0].IDCaneria, "https://example.com/detalle/x?t=canerias"); err != nil {
		t.Fatalf("update qr: %v", err)
	}
	got, err := repo.GetCaneria(ctx, segs[0].IDCaneria)
	if err != nil || got.QRCodeURL == nil {
		t.Fatalf("get caneria: %+v %v", got, err)
	}
	if _, err := repo.GetHormigon(ctx, segs[0].IDCaneria); !errors.Is(err, records.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := repo.GetHormigon(ctx, "not-a-uuid"); !errors.Is(err, records.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for malformed id, got %v", err)
	}

	n, err := repo.Count(ctx, model.TipoHormigones)
	if err != nil || n != 2 {
		t.Fatalf("count = %d, %v", n, err)
	}
}

func TestDuplicateKeyInOneBatch(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewRecordRepository(pool)
	_, err := repo.UpsertHormigones(context.Background(), []model.HormigonRow{{NroInterno: "1"}, {NroInterno: "1"}})
	if !errors.Is(err, ErrDuplicateInBatch) {
		t.Fatalf("expected ErrDuplicateInBatch, got %v", err)
	}
}
