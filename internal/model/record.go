// Package model contains the record types shared by the ingestion pipeline,
// the stores and the HTTP layer. JSON tags mirror the table column names so
// API payloads match what the stores persist.
package model

import "strings"

// Tipo identifies one of the two record kinds. The string value doubles as the
// table name and as the `t` query parameter of QR deep links.
type Tipo string

const (
	TipoHormigones Tipo = "hormigones"
	TipoCanerias   Tipo = "canerias"
	// TipoUnknown is used when a scan or link carries no usable type.
	TipoUnknown Tipo = ""
)

// ParseTipo maps user input onto a Tipo, returning TipoUnknown for anything
// that is not an exact (case-insensitive) table name.
func ParseTipo(s string) Tipo {
	switch Tipo(strings.ToLower(strings.TrimSpace(s))) {
	case TipoHormigones:
		return TipoHormigones
	case TipoCanerias:
		return TipoCanerias
	default:
		return TipoUnknown
	}
}

// Valid reports whether t names a known record kind.
func (t Tipo) Valid() bool {
	return t == TipoHormigones || t == TipoCanerias
}

// IDColumn is the primary key column of the table backing t.
func (t Tipo) IDColumn() string {
	if t == TipoCanerias {
		return "id_caneria"
	}
	return "id_hormigon"
}

// Label is the human readable name used in logs and CLI output.
func (t Tipo) Label() string {
	switch t {
	case TipoCanerias:
		return "Cañería"
	case TipoHormigones:
		return "Hormigón"
	default:
		return "desconocido"
	}
}

// Hormigon is a concrete-pour record as stored.
type Hormigon struct {
	IDHormigon      string   `json:"id_hormigon" db:"id_hormigon"`
	NroInterno      string   `json:"nro_interno" db:"nro_interno"`
	Titulo          *string  `json:"titulo" db:"titulo"`
	Satelite        *string  `json:"satelite" db:"satelite"`
	PesoTotalBaseKg *float64 `json:"peso_total_base_kg" db:"peso_total_base_kg"`
	ArchivoURL      *string  `json:"archivo_url" db:"archivo_url"`
	QRCodeURL       *string  `json:"qr_code_url" db:"qr_code_url"`
}

// Caneria is a pipe-segment record as stored. NroLinea is nullable but is
// still part of the natural key.
type Caneria struct {
	IDCaneria  string  `json:"id_caneria" db:"id_caneria"`
	NroISO     string  `json:"nro_iso" db:"nro_iso"`
	NroLinea   *string `json:"nro_linea" db:"nro_linea"`
	Satelite   string  `json:"satelite" db:"satelite"`
	Cantidad   int     `json:"cantidad" db:"cantidad"`
	ArchivoURL *string `json:"archivo_url" db:"archivo_url"`
	QRCodeURL  *string `json:"qr_code_url" db:"qr_code_url"`
}

// Key returns the natural key of the stored record.
func (c Caneria) Key() CaneriaKey {
	return CaneriaKey{NroISO: c.NroISO, NroLinea: deref(c.NroLinea), Satelite: c.Satelite}
}

// Record wraps either kind for lookups that do not know the type up front.
type Record struct {
	Tipo     Tipo      `json:"tipo"`
	Hormigon *Hormigon `json:"hormigon,omitempty"`
	Caneria  *Caneria  `json:"caneria,omitempty"`
}

// ID returns the primary key of whichever record is set.
func (r *Record) ID() string {
	switch {
	case r.Hormigon != nil:
		return r.Hormigon.IDHormigon
	case r.Caneria != nil:
		return r.Caneria.IDCaneria
	default:
		return ""
	}
}

// ArchivoURL returns the attached-file reference, empty when unset.
func (r *Record) ArchivoURL() string {
	switch {
	case r.Hormigon != nil:
		return deref(r.Hormigon.ArchivoURL)
	case r.Caneria != nil:
		return deref(r.Caneria.ArchivoURL)
	default:
		return ""
	}
}

// ImportResult is the feedback returned after reconciling one batch.
type ImportResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Total    int `json:"total"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
