package ingest

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/smefin/finhealth/internal/canonical"
)

// ErrNoInvoices signals an import payload with an empty invoice list.
var ErrNoInvoices = errors.New("no invoices provided")

// GSTInvoice is one entry of a GST JSON import. Date is strict ISO
// (yyyy-mm-dd); Type is "sale" or "purchase" and defaults to sale.
type GSTInvoice struct {
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type"`
}

// IngestGST converts a GST invoice payload into a canonical batch. Sales
// become revenue credits, everything else becomes expense debits. Unlike
// tabular ingestion there is no partial success: GST entries are hand-made
// accounting records, so any defective entry rejects the whole payload.
func IngestGST(invoices []GSTInvoice) (*Result, error) {
	if len(invoices) == 0 {
		return nil, ErrNoInvoices
	}

	batch := make([]canonical.Transaction, 0, len(invoices))
	for i, inv := range invoices {
		date, err := time.Parse("2006-01-02", strings.TrimSpace(inv.Date))
		if err != nil {
			return nil, fmt.Errorf("invoice %d: unrecognized date %q", i+1, inv.Date)
		}

		desc := strings.TrimSpace(inv.Description)
		if desc == "" {
			desc = "GST Entry"
		}

		direction := canonical.Debit
		category := canonical.CategoryExpense
		if t := strings.ToLower(strings.TrimSpace(inv.Type)); t == "sale" || t == "" {
			direction = canonical.Credit
			category = canonical.CategoryRevenue
		}

		batch = append(batch, canonical.Transaction{
			Date:        date,
			Description: canonical.ClampDescription(desc),
			Category:    category,
			Direction:   direction,
			Amount:      inv.Amount.Abs(),
		})
	}

	return &Result{Batch: batch, RowCount: len(batch)}, nil
}
