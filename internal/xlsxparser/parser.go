// =============================================================================
// NaPTAN Import - Request Workbook Parser
// =============================================================================
//
// This module reads request workbooks into ordered records, one per row.
//
// WORKBOOK STRUCTURE:
//   Each sheet is a table whose first row holds field names. Every following
//   non-blank row becomes one record keyed by those names.
//
//   | AtcoCode  | StopType | CommonName  | CreationDateTime | ...
//   |-----------|----------|-------------|------------------|
//   | 9100ABC   | RLY      | Abbey Wood  | 2020-01-01       |
//   | 9100ABD   | RLY      |             | 43831            |  <- empty cell, date serial
//
// CELL CONVERSION:
//   - Empty or absent cells become the missing sentinel ("nan").
//   - Cells are read raw, so numbers keep their literal digits.
//   - Numeric cells in fields whose name contains "Date" are Excel date
//     serials and are converted to ISO text.
//
// SHEETS:
//   Sheet names per entity kind come from configuration. A workbook that
//   lacks a sheet contributes no rows of that kind.
//
// =============================================================================

package xlsxparser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ginjaninja78/naptan-xml-import/internal/config"
	"github.com/ginjaninja78/naptan-xml-import/internal/types"
	"github.com/xuri/excelize/v2"
)

// serialLayout is the text form written for converted date serials.
const serialLayout = "2006-01-02T15:04:05"

// =============================================================================
// WORKBOOK
// =============================================================================

// Workbook is an open request workbook.
type Workbook struct {
	path string
	f    *excelize.File
}

// Open opens the workbook at path. The caller must Close it.
func Open(path string) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	return &Workbook{path: path, f: f}, nil
}

// Close releases the workbook.
func (w *Workbook) Close() error {
	return w.f.Close()
}

// Path returns the file the workbook was opened from.
func (w *Workbook) Path() string {
	return w.path
}

// HasSheet reports whether the workbook contains the named sheet.
func (w *Workbook) HasSheet(name string) bool {
	idx, err := w.f.GetSheetIndex(name)
	return err == nil && idx >= 0
}

// Sheets returns the sheet names in workbook order.
func (w *Workbook) Sheets() []string {
	return w.f.GetSheetList()
}

// ReadSheet returns the records of a sheet, in row order.
//
// PARAMETERS:
//   - name: The sheet name.
//
// RETURNS:
//   - One record per non-blank data row. A sheet with only a header row
//     returns an empty slice.
//   - An error if the sheet does not exist or cannot be read.
func (w *Workbook) ReadSheet(name string) ([]types.Record, error) {
	if !w.HasSheet(name) {
		return nil, fmt.Errorf("workbook %s has no sheet %q", w.path, name)
	}

	rows, err := w.f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", name, err)
	}
	if len(rows) == 0 {
		return []types.Record{}, nil
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
	}

	records := make([]types.Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if isRowEmpty(row) {
			continue
		}
		records = append(records, w.toRecord(headers, row))
	}
	return records, nil
}

// toRecord maps one row onto the header names.
func (w *Workbook) toRecord(headers, row []string) types.Record {
	rec := make(types.Record, len(headers))
	for i, field := range headers {
		if field == "" {
			continue
		}

		value := types.MissingValue
		if i < len(row) {
			if cell := strings.TrimSpace(row[i]); cell != "" {
				value = cell
			}
		}
		if value != types.MissingValue && types.IsDateField(field) {
			value = w.fromSerial(value)
		}
		rec[field] = value
	}
	return rec
}

// fromSerial converts an Excel date serial to ISO text. Values that are not
// numeric are returned unchanged.
func (w *Workbook) fromSerial(value string) string {
	serial, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return value
	}

	date1904 := false
	if props, err := w.f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}

	t, err := excelize.ExcelDateToTime(serial, date1904)
	if err != nil {
		return value
	}
	return t.Format(serialLayout)
}

// isRowEmpty checks if all cells in a row are empty.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// =============================================================================
// BATCH
// =============================================================================

// ReadBatch reads the stop, stop area and locality sheets of a workbook.
//
// PARAMETERS:
//   - path: The workbook path.
//   - sheets: The sheet name for each entity kind.
//
// RETURNS:
//   - The batch. Sheets missing from the workbook contribute no rows.
//   - An error if the workbook or a present sheet cannot be read.
func ReadBatch(path string, sheets config.Sheets) (types.Batch, error) {
	w, err := Open(path)
	if err != nil {
		return types.Batch{}, err
	}
	defer w.Close()

	batch := types.Batch{Source: path}

	read := func(sheet string) ([]types.Record, error) {
		if sheet == "" || !w.HasSheet(sheet) {
			return nil, nil
		}
		return w.ReadSheet(sheet)
	}

	if batch.Localities, err = read(sheets.Localities); err != nil {
		return types.Batch{}, err
	}
	if batch.Stops, err = read(sheets.Stops); err != nil {
		return types.Batch{}, err
	}
	if batch.StopAreas, err = read(sheets.StopAreas); err != nil {
		return types.Batch{}, err
	}
	return batch, nil
}
