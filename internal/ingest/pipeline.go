package ingest

import (
	"errors"
	"fmt"
	"time"

	"github.com/smefin/finhealth/internal/canonical"
	"github.com/smefin/finhealth/internal/textparse"
)

// ErrNoParseableRows signals that every row of the dataset failed row-level
// normalization. Fatal for the whole dataset.
var ErrNoParseableRows = errors.New("no parseable rows in dataset")

// RawTable is a parsed tabular upload: a header row plus data rows. Column
// names are business data, not schema; no fixed header set is assumed.
type RawTable struct {
	Headers []string
	Rows    [][]string
}

// Result is the outcome of one ingestion call: the canonical batch, how many
// rows survived normalization, and the field mapping that was resolved for
// the dataset. The pipeline persists nothing; committing the batch is the
// caller's job.
type Result struct {
	Batch    []canonical.Transaction
	RowCount int
	Mapping  FieldMapping
}

// IngestTable normalizes a whole tabular dataset. Field detection runs once;
// every row goes through the row normalizer. Rows that fail with data
// defects are dropped silently (partial success is acceptable for bulk
// imports), but an unparseable date or a dataset where every row fails
// aborts the ingestion.
func IngestTable(table RawTable) (*Result, error) {
	mapping, err := DetectFields(table.Headers)
	if err != nil {
		return nil, err
	}

	batch := make([]canonical.Transaction, 0, len(table.Rows))
	for i, row := range table.Rows {
		if emptyRow(row) {
			continue
		}
		tx, err := normalizeRow(row, mapping)
		if err != nil {
			if isFatal(err) {
				return nil, fmt.Errorf("row %d: %w", i+1, err)
			}
			continue
		}
		batch = append(batch, tx)
	}

	if len(batch) == 0 && len(table.Rows) > 0 {
		return nil, ErrNoParseableRows
	}

	return &Result{Batch: batch, RowCount: len(batch), Mapping: mapping}, nil
}

// IngestStatementText normalizes bank-statement-shaped text (PDF text layer
// or OCR output) into a canonical batch. Text with no transaction-shaped
// lines yields an empty result, not an error. The caller decides how to
// report "no data".
func IngestStatementText(lines []string) *Result {
	batch := textparse.ParseStatementText(lines)
	return &Result{Batch: batch, RowCount: len(batch)}
}

// InvoiceTransaction converts an extracted invoice into the single expense
// transaction it implies. Invoices without a detected total produce nothing.
// today is the fallback date when the document carries no recognizable date;
// it is the one place ingestion output depends on the clock, so callers pass
// it in explicitly.
func InvoiceTransaction(inv textparse.Invoice, today time.Time) (canonical.Transaction, bool) {
	if inv.NoData() {
		return canonical.Transaction{}, false
	}
	date := inv.Date
	if date.IsZero() {
		date = today
	}
	desc := "Invoice " + inv.Number
	if inv.Number == "" {
		desc = "Invoice"
	}
	if inv.VendorName != "" {
		desc += " " + inv.VendorName
	}
	return canonical.Transaction{
		Date:        date,
		Description: canonical.ClampDescription(desc),
		Category:    canonical.CategoryExpense,
		Direction:   canonical.Debit,
		Amount:      inv.Total.Abs(),
	}, true
}

func emptyRow(row []string) bool {
	for _, v := range row {
		if v != "" {
			return false
		}
	}
	return true
}
