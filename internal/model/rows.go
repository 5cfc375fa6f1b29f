package model

// RawRow is one spreadsheet-derived row before normalization: arbitrary
// header names mapped to scalar cell values (string, number, bool or nil).
type RawRow map[string]any

// HormigonRow is a normalized concrete-pour row. Nil pointers mean "absent in
// this row" and must never overwrite stored values.
type HormigonRow struct {
	NroInterno      string
	Titulo          *string
	Satelite        *string
	PesoTotalBaseKg *float64
}

// CaneriaRow is a normalized pipe-segment row. An empty Satelite means the
// row cannot take part in the composite key.
type CaneriaRow struct {
	NroISO   string
	NroLinea *string
	Satelite string
	Cantidad int
}

// Key returns the composite natural key of the row.
func (r CaneriaRow) Key() CaneriaKey {
	return CaneriaKey{NroISO: r.NroISO, NroLinea: deref(r.NroLinea), Satelite: r.Satelite}
}

// CaneriaKey is the (nro_iso, nro_linea, satelite) natural key. A NULL line
// number is represented by the empty string so keys compare by value.
type CaneriaKey struct {
	NroISO   string
	NroLinea string
	Satelite string
}

// String renders the key in the canonical `iso||linea||sat` form.
func (k CaneriaKey) String() string {
	return k.NroISO + "||" + k.NroLinea + "||" + k.Satelite
}
