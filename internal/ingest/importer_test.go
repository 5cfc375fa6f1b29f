package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/gestionqr/gestionqr/internal/logging"
	"github.com/gestionqr/gestionqr/internal/model"
	"github.com/gestionqr/gestionqr/internal/spreadsheet"
)

func workbook(t *testing.T, rows [][]any) *bytes.Reader {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		r := row
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return bytes.NewReader(buf.Bytes())
}

func TestImportCaneriasFromHeaders(t *testing.T) {
	store := newFakeStore()
	im := NewImporter(store, logging.Discard())
	file := workbook(t, [][]any{
		{"Nro ISO", "Nro Línea", "Satélite", "Cantidad"},
		{"X1", "", "S1", 2},
		{"X1", "", "S1", 3},
		{"X2", "L1", "", 1},
		{"", "L1", "S1", 1},
	})
	report, err := im.Import(context.Background(), Request{Tipo: model.TipoCanerias, FileName: "lote.xlsx"}, file)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if report.RawRows != 4 || report.Normalized != 3 || report.Aggregated != 1 {
		t.Fatalf("unexpected stage counts %+v", report)
	}
	if report.Result != (model.ImportResult{Inserted: 1, Total: 1}) {
		t.Fatalf("unexpected result %+v", report.Result)
	}
	if got := store.canerias[model.CaneriaKey{NroISO: "X1", Satelite: "S1"}].Cantidad; got != 5 {
		t.Fatalf("cantidad = %d, want 5", got)
	}
}

func TestImportHormigonesFixedLayout(t *testing.T) {
	store := newFakeStore()
	im := NewImporter(store, logging.Discard())
	file := workbook(t, [][]any{
		{"Planilla de hormigonado"},
		{"SAT", "", "TITULO", "", "NRO", "", "", "", "PESO"},
		{"S1", "", "Muro A", "", "100", "", "", "", "12,5"},
		{"S1", "", "Losa", "", "", "", "", "", "3"},
		{"S2", "", "Muro B", "", 101, "", "", "", 8},
	})
	report, err := im.Import(context.Background(), Request{Tipo: model.TipoHormigones, Layout: LayoutFixed}, file)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if report.Result.Total != 2 || report.Result.Inserted != 2 {
		t.Fatalf("unexpected result %+v", report.Result)
	}
	row, ok := store.hormigones["100"]
	if !ok {
		t.Fatalf("row 100 missing: %+v", store.hormigones)
	}
	if !equalFloat(row.PesoTotalBaseKg, floatPtr(12.5)) || !equalStr(row.Satelite, strPtr("S1")) || !equalStr(row.Titulo, strPtr("Muro A")) {
		t.Fatalf("unexpected row %+v", row)
	}
	if _, ok := store.hormigones["101"]; !ok {
		t.Fatal("numeric internal number not imported")
	}
}

func TestImportDryRun(t *testing.T) {
	store := newFakeStore()
	store.hormigones["1"] = model.HormigonRow{NroInterno: "1"}
	im := NewImporter(store, logging.Discard())
	rows := []model.RawRow{{"nro_interno": "1"}, {"nro_interno": "2"}}
	report, err := im.ImportRows(context.Background(), model.TipoHormigones, rows, true)
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if report.Result != (model.ImportResult{Inserted: 1, Updated: 1, Total: 2}) {
		t.Fatalf("unexpected preview %+v", report.Result)
	}
	if store.upserts != 0 {
		t.Fatal("dry run wrote to the store")
	}
}

func TestImportRejects(t *testing.T) {
	im := NewImporter(newFakeStore(), logging.Discard())
	ctx := context.Background()
	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"unknown tipo", Request{Tipo: model.TipoUnknown}, ErrInvalidTipo},
		{"legacy xls", Request{Tipo: model.TipoCanerias, FileName: "viejo.xls"}, spreadsheet.ErrUnsupportedFile},
		{"fixed canerias", Request{Tipo: model.TipoCanerias, Layout: LayoutFixed}, ErrInvalidLayout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := im.Import(ctx, tt.req, bytes.NewReader(nil))
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestImportEmptySheet(t *testing.T) {
	im := NewImporter(newFakeStore(), logging.Discard())
	file := workbook(t, [][]any{{"nro_interno", "titulo"}})
	_, err := im.Import(context.Background(), Request{Tipo: model.TipoHormigones}, file)
	if !errors.Is(err, spreadsheet.ErrNoRows) {
		t.Fatalf("expected ErrNoRows, got %v", err)
	}
}

func TestImportRejectsSheetWithNoUsableRows(t *testing.T) {
	tests := []struct {
		name string
		tipo model.Tipo
		rows [][]any
	}{
		{
			name: "fixed hormigon sheet read by headers",
			tipo: model.TipoHormigones,
			rows: [][]any{
				{"Planilla de hormigonado"},
				{"SAT", "", "TITULO", "", "NRO", "", "", "", "PESO"},
				{"S1", "", "Muro A", "", "100", "", "", "", "12,5"},
			},
		},
		{
			name: "canerias without satellite",
			tipo: model.TipoCanerias,
			rows: [][]any{
				{"Nro ISO", "Cantidad"},
				{"X1", 2},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			im := NewImporter(store, logging.Discard())
			_, err := im.Import(context.Background(), Request{Tipo: tt.tipo, FileName: "lote.xlsx"}, workbook(t, tt.rows))
			if !errors.Is(err, spreadsheet.ErrNoRows) {
				t.Fatalf("expected ErrNoRows, got %v", err)
			}
			if store.upserts != 0 {
				t.Fatal("store written for an unusable sheet")
			}
		})
	}
}

func TestImportStoreFailure(t *testing.T) {
	store := newFakeStore()
	store.upsertErr = fmt.Errorf("connection reset")
	im := NewImporter(store, logging.Discard())
	_, err := im.ImportRows(context.Background(), model.TipoHormigones, []model.RawRow{{"nro_interno": "1"}}, false)
	if !errors.Is(err, store.upsertErr) {
		t.Fatalf("expected store error, got %v", err)
	}
}
