package ingest

import (
	"testing"

	"github.com/gestionqr/gestionqr/internal/model"
)

func TestFoldKey(t *testing.T) {
	cases := map[string]string{
		"nro_interno":      "nro interno",
		"NRO_INTERNO":      "nro interno",
		"Nro Interno":      "nro interno",
		"  nro   interno ": "nro interno",
		"Nro Línea":        "nro linea",
		"Nro-Línea":        "nro linea",
		"SATÉLITE":         "satelite",
		"Nro\u00a0ISO":     "nro iso",
		"Nº Interno":       "n interno",
		"N° Línea":         "n linea",
		"N.º ISO":          "n. iso",
	}
	for in, want := range cases {
		if got := foldKey(in); got != want {
			t.Errorf("foldKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeHormigon(t *testing.T) {
	tests := []struct {
		name   string
		raw    model.RawRow
		ok     bool
		nro    string
		titulo *string
		peso   *float64
	}{
		{
			name:   "upper snake headers",
			raw:    model.RawRow{"NRO_INTERNO": " 5 ", "TITULO": "Muro A"},
			ok:     true,
			nro:    "5",
			titulo: strPtr("Muro A"),
		},
		{
			name: "ordinal sign header",
			raw:  model.RawRow{"Nº Interno": "7"},
			ok:   true,
			nro:  "7",
		},
		{
			name: "comma decimal weight",
			raw:  model.RawRow{"nro interno": "5", "peso_total_base_kg": "12,5"},
			ok:   true,
			nro:  "5",
			peso: floatPtr(12.5),
		},
		{
			name: "numeric weight and internal number",
			raw:  model.RawRow{"Nro Interno": 42.0, "Peso": 7},
			ok:   true,
			nro:  "42",
			peso: floatPtr(7),
		},
		{
			name: "weight with unit suffix",
			raw:  model.RawRow{"nro_interno": "A1", "peso kg": "1.200,5 kg"},
			ok:   true,
			nro:  "A1",
			peso: floatPtr(1.2),
		},
		{
			name: "unparsable weight is absent",
			raw:  model.RawRow{"nro_interno": "A1", "peso_total_base_kg": "n/a"},
			ok:   true,
			nro:  "A1",
		},
		{
			name: "blank title is absent",
			raw:  model.RawRow{"nro_interno": "A1", "titulo": "   "},
			ok:   true,
			nro:  "A1",
		},
		{
			name: "missing internal number",
			raw:  model.RawRow{"titulo": "Muro"},
		},
		{
			name: "whitespace internal number",
			raw:  model.RawRow{"nro_interno": "  \t"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row, ok := NormalizeHormigon(tt.raw)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if row.NroInterno != tt.nro {
				t.Errorf("nro_interno = %q, want %q", row.NroInterno, tt.nro)
			}
			if !equalStr(row.Titulo, tt.titulo) {
				t.Errorf("titulo = %v, want %v", row.Titulo, tt.titulo)
			}
			if !equalFloat(row.PesoTotalBaseKg, tt.peso) {
				t.Errorf("peso = %v, want %v", row.PesoTotalBaseKg, tt.peso)
			}
		})
	}
}

func TestNormalizeCaneria(t *testing.T) {
	tests := []struct {
		name     string
		raw      model.RawRow
		ok       bool
		iso      string
		linea    *string
		satelite string
		cantidad int
	}{
		{
			name:     "defaults quantity to one",
			raw:      model.RawRow{"nro_iso": "X1", "satelite": "S1"},
			ok:       true,
			iso:      "X1",
			satelite: "S1",
			cantidad: 1,
		},
		{
			name:     "accented line header",
			raw:      model.RawRow{"Nro ISO": "X1", "Nro Línea": "L-7", "Satélite": "S1", "Cantidad": 3.0},
			ok:       true,
			iso:      "X1",
			linea:    strPtr("L-7"),
			satelite: "S1",
			cantidad: 3,
		},
		{
			name:     "fractional string truncates",
			raw:      model.RawRow{"nro_iso": "X1", "cantidad": "3.7"},
			ok:       true,
			iso:      "X1",
			cantidad: 3,
		},
		{
			name:     "negative clamps to one",
			raw:      model.RawRow{"nro_iso": "X1", "cantidad": -4},
			ok:       true,
			iso:      "X1",
			cantidad: 1,
		},
		{
			name:     "fraction below one clamps",
			raw:      model.RawRow{"nro_iso": "X1", "cantidad": 0.4},
			ok:       true,
			iso:      "X1",
			cantidad: 1,
		},
		{
			name:     "degree sign headers",
			raw:      model.RawRow{"N° ISO": "X1", "Nº Línea": "L-2", "Satélite": "S1"},
			ok:       true,
			iso:      "X1",
			linea:    strPtr("L-2"),
			satelite: "S1",
			cantidad: 1,
		},
		{
			name:     "huge string saturates",
			raw:      model.RawRow{"nro_iso": "X1", "cantidad": "3000000000"},
			ok:       true,
			iso:      "X1",
			cantidad: MaxQuantity,
		},
		{
			name:     "overflowing string saturates",
			raw:      model.RawRow{"nro_iso": "X1", "cantidad": "99999999999999999999999"},
			ok:       true,
			iso:      "X1",
			cantidad: MaxQuantity,
		},
		{
			name:     "huge float saturates",
			raw:      model.RawRow{"nro_iso": "X1", "cantidad": 1e300},
			ok:       true,
			iso:      "X1",
			cantidad: MaxQuantity,
		},
		{
			name:     "garbage quantity defaults",
			raw:      model.RawRow{"nro_iso": "X1", "cant": "muchos"},
			ok:       true,
			iso:      "X1",
			cantidad: 1,
		},
		{
			name: "missing iso",
			raw:  model.RawRow{"satelite": "S1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row, ok := NormalizeCaneria(tt.raw)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if row.NroISO != tt.iso || row.Satelite != tt.satelite || row.Cantidad != tt.cantidad {
				t.Errorf("got %+v, want iso=%q satelite=%q cantidad=%d", row, tt.iso, tt.satelite, tt.cantidad)
			}
			if !equalStr(row.NroLinea, tt.linea) {
				t.Errorf("nro_linea = %v, want %v", row.NroLinea, tt.linea)
			}
		})
	}
}

func TestAliasOrderWins(t *testing.T) {
	row, ok := NormalizeHormigon(model.RawRow{"nro_interno": "1", "peso": "1", "peso_total_base_kg": "2"})
	if !ok {
		t.Fatal("row rejected")
	}
	if row.PesoTotalBaseKg == nil || *row.PesoTotalBaseKg != 2 {
		t.Fatalf("expected the most specific alias to win, got %v", row.PesoTotalBaseKg)
	}
}

func equalStr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
