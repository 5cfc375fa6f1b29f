package ingest

import "github.com/gestionqr/gestionqr/internal/model"

// AggregateHormigones collapses rows sharing an internal number into one row.
// Later rows overwrite earlier values only with non-nil fields, so a field
// missing from a repeated row keeps the value seen before. Output order is the
// order in which each internal number first appeared.
func AggregateHormigones(rows []model.HormigonRow) []model.HormigonRow {
	index := make(map[string]int, len(rows))
	out := make([]model.HormigonRow, 0, len(rows))
	for _, r := range rows {
		if r.NroInterno == "" {
			continue
		}
		i, seen := index[r.NroInterno]
		if !seen {
			index[r.NroInterno] = len(out)
			out = append(out, r)
			continue
		}
		merged := &out[i]
		if r.Titulo != nil {
			merged.Titulo = r.Titulo
		}
		if r.Satelite != nil {
			merged.Satelite = r.Satelite
		}
		if r.PesoTotalBaseKg != nil {
			merged.PesoTotalBaseKg = r.PesoTotalBaseKg
		}
	}
	return out
}

// AggregateCanerias collapses rows sharing (nro_iso, nro_linea, satelite)
// into one row whose quantity is the sum of the group. Rows without ISO
// number or satellite are dropped.
func AggregateCanerias(rows []model.CaneriaRow) []model.CaneriaRow {
	index := make(map[model.CaneriaKey]int, len(rows))
	out := make([]model.CaneriaRow, 0, len(rows))
	for _, r := range rows {
		if r.NroISO == "" || r.Satelite == "" {
			continue
		}
		key := r.Key()
		if i, seen := index[key]; seen {
			out[i].Cantidad += r.Cantidad
			continue
		}
		if r.NroLinea != nil && *r.NroLinea == "" {
			r.NroLinea = nil
		}
		index[key] = len(out)
		out = append(out, r)
	}
	for i := range out {
		out[i].Cantidad = clampQuantity(out[i].Cantidad)
	}
	return out
}
