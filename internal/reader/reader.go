// Package reader parses uploaded tabular files (CSV, XLSX, XLS) into the raw
// table shape the ingestion pipeline consumes. It knows nothing about column
// semantics; header names pass through untouched for the field detector to
// resolve.
package reader

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"github.com/smefin/finhealth/internal/ingest"
)

// ReadTable parses the file into headers plus data rows, dispatching on the
// filename extension. Supported: .csv, .xlsx, .xls.
func ReadTable(filename string, r io.ReadSeeker) (ingest.RawTable, error) {
	var records [][]string
	var err error

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		records, err = readCSV(r)
	case ".xlsx":
		records, err = readXLSX(r)
	case ".xls":
		records, err = readXLS(r)
	default:
		return ingest.RawTable{}, fmt.Errorf("unsupported file type %q: upload CSV, XLSX or XLS", filepath.Ext(filename))
	}
	if err != nil {
		return ingest.RawTable{}, fmt.Errorf("reading %s: %w", filename, err)
	}

	if len(records) == 0 {
		return ingest.RawTable{}, fmt.Errorf("%s is empty", filename)
	}

	return ingest.RawTable{Headers: records[0], Rows: records[1:]}, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // tolerate ragged rows, the normalizer handles short ones
	cr.LazyQuotes = true
	return cr.ReadAll()
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	return f.GetRows(sheet)
}

func readXLS(r io.ReadSeeker) ([][]string, error) {
	wb, err := xls.OpenReader(r, "utf-8")
	if err != nil {
		return nil, err
	}

	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	var records [][]string
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			continue
		}
		records = append(records, xlsRecord(row))
	}
	return records, nil
}

// xlsRow is the slice of *xls.Row that record extraction needs.
type xlsRow interface {
	FirstCol() int
	LastCol() int
	Col(int) string
}

// xlsRecord flattens a row into a string slice. Col is indexed by absolute
// column position, so iteration must start at column 0: starting at
// FirstCol() would shift every value left on rows whose leading cells are
// empty. Col returns "" for cells before FirstCol().
func xlsRecord(row xlsRow) []string {
	record := make([]string, 0, row.LastCol())
	for j := 0; j < row.LastCol(); j++ {
		record = append(record, row.Col(j))
	}
	return record
}
