package ingest

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/gestionqr/gestionqr/internal/model"
)

// Canonical field names. They match the table columns.
const (
	FieldTitulo          = "titulo"
	FieldNroInterno      = "nro_interno"
	FieldSatelite        = "satelite"
	FieldPesoTotalBaseKg = "peso_total_base_kg"
	FieldNroISO          = "nro_iso"
	FieldNroLinea        = "nro_linea"
	FieldCantidad        = "cantidad"
)

// aliases lists, per canonical field, the accepted header spellings in folded
// form. Lookup walks the list in order and the first present, non-nil value
// wins.
var aliases = map[string][]string{
	FieldTitulo:          {"titulo", "descripcion"},
	FieldNroInterno:      {"nro interno", "numero interno", "n interno", "nro. interno", "n. interno"},
	FieldSatelite:        {"satelite", "sat"},
	FieldPesoTotalBaseKg: {"peso total base kg", "peso total base", "peso base kg", "peso base", "peso kg", "peso"},
	FieldNroISO:          {"nro iso", "numero iso", "n iso", "nro. iso", "n. iso", "iso"},
	FieldNroLinea:        {"nro linea", "numero linea", "n linea", "nro. linea", "n. linea", "linea"},
	FieldCantidad:        {"cantidad", "cant", "cant."},
}

// foldKey normalizes a header so that case, accents, underscores, dashes and
// repeated whitespace do not matter: "Nro_Línea" and "nro  linea" both fold
// to "nro linea". Ordinal marks are dropped, so "Nº Interno" folds to
// "n interno".
func foldKey(key string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, key)
	if err != nil {
		folded = key
	}
	folded = strings.ToLower(folded)
	folded = strings.NewReplacer("_", " ", "-", " ", "\u00a0", " ", "º", "", "°", "", "ª", "").Replace(folded)
	return strings.Join(strings.Fields(folded), " ")
}

// foldedRow indexes a raw row by folded header. When two headers fold to the
// same key the first non-nil value in sorted header order is kept, so the
// result does not depend on map iteration order.
type foldedRow map[string]any

func foldRow(raw model.RawRow) foldedRow {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(foldedRow, len(raw))
	for _, k := range keys {
		fk := foldKey(k)
		if prev, ok := out[fk]; ok && prev != nil {
			continue
		}
		out[fk] = raw[k]
	}
	return out
}

// lookup resolves a canonical field through its alias list.
func (r foldedRow) lookup(field string) any {
	for _, alias := range aliases[field] {
		if v, ok := r[alias]; ok && v != nil {
			return v
		}
	}
	return nil
}
