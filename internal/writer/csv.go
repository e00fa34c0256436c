package writer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/smefin/finhealth/internal/canonical"
	"github.com/smefin/finhealth/internal/metrics"
)

// CSVWriter writes canonical transactions to CSV format.
type CSVWriter struct {
	// IncludeSummary appends inflow/outflow/net totals after the rows.
	IncludeSummary bool
}

// WriteToFile writes transactions to a CSV file at the given path.
func (w *CSVWriter) WriteToFile(path string, txns []canonical.Transaction) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %q: %w", path, err)
	}
	defer f.Close()

	return w.Write(f, txns)
}

// Write writes transactions in CSV format to the given writer.
func (w *CSVWriter) Write(out io.Writer, txns []canonical.Transaction) error {
	writer := csv.NewWriter(out)
	defer writer.Flush()

	header := []string{"Date", "Description", "Category", "Direction", "Amount"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, txn := range txns {
		row := []string{
			txn.Date.Format("2006-01-02"),
			txn.Description,
			txn.Category,
			string(txn.Direction),
			txn.Amount.StringFixed(2),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	if w.IncludeSummary && len(txns) > 0 {
		kpis := metrics.ComputeKPIs(txns, metrics.ExpenseAllDebits)
		writer.Write([]string{})
		writer.Write([]string{"# Total Inflow", "", "", "", kpis.Inflow.StringFixed(2)})
		writer.Write([]string{"# Total Outflow", "", "", "", kpis.Outflow.StringFixed(2)})
		writer.Write([]string{"# Net Cashflow", "", "", "", kpis.NetCashflow.StringFixed(2)})
	}

	return nil
}
