// Package spreadsheet turns the first sheet of an uploaded workbook into raw
// rows for the ingestion pipeline.
package spreadsheet

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/gestionqr/gestionqr/internal/model"
)

var (
	// ErrNoRows is returned when the first sheet holds no data rows.
	ErrNoRows = errors.New("no rows detected in the first sheet")
	// ErrUnsupportedFile is returned for names that are not Open XML workbooks.
	ErrUnsupportedFile = errors.New("file must be an .xlsx or .xlsm workbook")
	// ErrUnreadable is returned when the bytes are not a workbook at all.
	ErrUnreadable = errors.New("file is not a readable workbook")
)

// Fixed layout for concrete pours: data starts on row 3 and the fields live in
// columns A, C, E and I.
const (
	FixedFirstRow   = 3
	fixedColSatelite = 0 // A
	fixedColTitulo   = 2 // C
	fixedColNro      = 4 // E
	fixedColPeso     = 8 // I
)

// IsSpreadsheet reports whether name looks like a workbook this package can
// read. Legacy binary .xls files are not supported by the parser.
func IsSpreadsheet(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return true
	default:
		return false
	}
}

// ReadRows reads the first sheet using its first non-empty row as header.
// Each following non-empty row becomes a RawRow keyed by header text; blank
// cells are nil. A repeated header gets a numeric suffix ("satelite_1") so the
// first column with that name keeps its value.
func ReadRows(r io.Reader) ([]model.RawRow, error) {
	grid, err := firstSheet(r)
	if err != nil {
		return nil, err
	}
	headerAt := -1
	for i, cells := range grid {
		if !blank(cells) {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		return nil, ErrNoRows
	}
	header := headerNames(grid[headerAt])
	var out []model.RawRow
	for _, cells := range grid[headerAt+1:] {
		if blank(cells) {
			continue
		}
		row := make(model.RawRow, len(header))
		for col, name := range header {
			if name == "" {
				continue
			}
			row[name] = cellAt(cells, col)
		}
		out = append(out, row)
	}
	if len(out) == 0 {
		return nil, ErrNoRows
	}
	return out, nil
}

func headerNames(cells []string) []string {
	names := make([]string, len(cells))
	taken := make(map[string]bool, len(cells))
	for i, c := range cells {
		name := strings.TrimSpace(c)
		if name == "" {
			continue
		}
		base := name
		for n := 1; taken[name]; n++ {
			name = fmt.Sprintf("%s_%d", base, n)
		}
		taken[name] = true
		names[i] = name
	}
	return names
}

// ReadHormigonesFixed reads the fixed concrete-pour layout. Rows without an
// internal number in column E are skipped. Returned rows use canonical field
// names so they go through the same normalizer as header-based rows.
func ReadHormigonesFixed(r io.Reader) ([]model.RawRow, error) {
	grid, err := firstSheet(r)
	if err != nil {
		return nil, err
	}
	var out []model.RawRow
	for i := FixedFirstRow - 1; i < len(grid); i++ {
		cells := grid[i]
		nro := cellAt(cells, fixedColNro)
		if nro == nil {
			continue
		}
		out = append(out, model.RawRow{
			"satelite":           cellAt(cells, fixedColSatelite),
			"titulo":             cellAt(cells, fixedColTitulo),
			"nro_interno":        nro,
			"peso_total_base_kg": cellAt(cells, fixedColPeso),
		})
	}
	if len(out) == 0 {
		return nil, ErrNoRows
	}
	return out, nil
}

func firstSheet(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoRows
	}
	// Raw values keep numbers unformatted ("12.5" rather than "12,50 kg").
	grid, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return grid, nil
}

func cellAt(cells []string, col int) any {
	if col >= len(cells) {
		return nil
	}
	v := strings.TrimSpace(cells[col])
	if v == "" {
		return nil
	}
	return v
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
