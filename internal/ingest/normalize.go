package ingest

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/gestionqr/gestionqr/internal/model"
)

var (
	leadingFloat = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)
	leadingInt   = regexp.MustCompile(`^[+-]?\d+`)
)

// NormalizeHormigon extracts the concrete-pour fields from a raw row. The
// second return value is false when the row has no internal number.
func NormalizeHormigon(raw model.RawRow) (model.HormigonRow, bool) {
	row := foldRow(raw)
	nro := cellString(row.lookup(FieldNroInterno))
	if nro == nil {
		return model.HormigonRow{}, false
	}
	return model.HormigonRow{
		NroInterno:      *nro,
		Titulo:          cellString(row.lookup(FieldTitulo)),
		Satelite:        cellString(row.lookup(FieldSatelite)),
		PesoTotalBaseKg: cellWeight(row.lookup(FieldPesoTotalBaseKg)),
	}, true
}

// NormalizeCaneria extracts the pipe-segment fields from a raw row. The
// second return value is false when the row has no ISO number. Rows without a
// satellite are kept here and dropped during aggregation.
func NormalizeCaneria(raw model.RawRow) (model.CaneriaRow, bool) {
	row := foldRow(raw)
	iso := cellString(row.lookup(FieldNroISO))
	if iso == nil {
		return model.CaneriaRow{}, false
	}
	out := model.CaneriaRow{
		NroISO:   *iso,
		NroLinea: cellString(row.lookup(FieldNroLinea)),
		Cantidad: cellQuantity(row.lookup(FieldCantidad)),
	}
	if sat := cellString(row.lookup(FieldSatelite)); sat != nil {
		out.Satelite = *sat
	}
	return out, true
}

// cellString renders a scalar cell as trimmed text; nil and blank cells are
// absent.
func cellString(v any) *string {
	var s string
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		s = x
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		s = strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		s = strconv.Itoa(x)
	case int64:
		s = strconv.FormatInt(x, 10)
	case bool:
		s = strconv.FormatBool(x)
	default:
		s = fmt.Sprint(x)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// cellWeight parses a weight in kilograms. Strings use a comma as decimal
// separator ("12,5"); trailing text after the number is ignored. Anything
// unparsable is absent, never zero.
func cellWeight(v any) *float64 {
	var f float64
	switch x := v.(type) {
	case nil:
		return nil
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return nil
		}
		s = strings.Replace(s, ",", ".", 1)
		m := leadingFloat.FindString(s)
		if m == "" {
			return nil
		}
		parsed, err := strconv.ParseFloat(m, 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// cellQuantity parses a repetition count: truncated to an integer, defaulting
// to 1 when absent or unparsable and never below 1.
func cellQuantity(v any) int {
	n := 1
	switch x := v.(type) {
	case float64:
		n = floatQuantity(x)
	case float32:
		n = floatQuantity(float64(x))
	case int:
		n = x
	case int64:
		n = int(max(min(x, MaxQuantity), 0))
	case string:
		if m := leadingInt.FindString(strings.TrimSpace(x)); m != "" {
			// Atoi saturates on overflow and reports ErrRange.
			if parsed, err := strconv.Atoi(m); (err == nil || errors.Is(err, strconv.ErrRange)) && parsed != 0 {
				n = parsed
			}
		}
	}
	return clampQuantity(n)
}

func floatQuantity(f float64) int {
	switch {
	case math.IsNaN(f):
		return 1
	case f >= MaxQuantity:
		return MaxQuantity
	case f < 1:
		return 1
	default:
		return int(math.Trunc(f))
	}
}

// MaxQuantity is the largest quantity stored; the column is a 32-bit integer.
const MaxQuantity = math.MaxInt32

func clampQuantity(n int) int {
	switch {
	case n < 1:
		return 1
	case n > MaxQuantity:
		return MaxQuantity
	default:
		return n
	}
}
