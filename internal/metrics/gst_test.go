package metrics

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/smefin/finhealth/internal/canonical"
)

func gstTxn(date, desc string, direction canonical.Direction, category, amount string) canonical.Transaction {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return canonical.Transaction{
		Date:        d,
		Description: desc,
		Category:    category,
		Direction:   direction,
		Amount:      decimal.RequireFromString(amount),
	}
}

func TestGSTMonthlySummary(t *testing.T) {
	txns := []canonical.Transaction{
		gstTxn("2026-02-03", "GST Sale - Invoice 7", canonical.Credit, "sales", "5000"),
		gstTxn("2026-01-10", "invoice payment", canonical.Credit, "revenue", "25000"),
		gstTxn("2026-01-12", "GST Purchase - supplier", canonical.Debit, "cogs", "8000"),
		gstTxn("2026-01-20", "office chair", canonical.Debit, "expense", "1500"),
		gstTxn("2026-01-25", "rent", canonical.Debit, "rent", "4000"), // neither rule matches
	}

	summary := GSTMonthlySummary(txns)
	if len(summary) != 2 {
		t.Fatalf("got %d months, want 2", len(summary))
	}
	if summary[0].Month != "2026-01" || summary[1].Month != "2026-02" {
		t.Fatalf("months out of order: %s, %s", summary[0].Month, summary[1].Month)
	}

	jan := summary[0]
	if !jan.Sales.Equal(decimal.RequireFromString("25000")) {
		t.Errorf("got january sales %s, want 25000", jan.Sales)
	}
	if !jan.Purchases.Equal(decimal.RequireFromString("9500")) {
		t.Errorf("got january purchases %s, want 9500 (gst purchase + expense category)", jan.Purchases)
	}

	// A "gst sale" description qualifies a credit even outside the revenue
	// category.
	feb := summary[1]
	if !feb.Sales.Equal(decimal.RequireFromString("5000")) {
		t.Errorf("got february sales %s, want 5000", feb.Sales)
	}
}

func TestGSTMonthlySummaryDirectionGates(t *testing.T) {
	// A debit never counts as a sale, no matter its description or category.
	txns := []canonical.Transaction{
		gstTxn("2026-01-05", "GST Sale refund", canonical.Debit, "revenue", "300"),
		gstTxn("2026-01-06", "GST Purchase reversal", canonical.Credit, "expense", "200"),
	}
	summary := GSTMonthlySummary(txns)
	if len(summary) != 1 {
		t.Fatalf("got %d months, want 1", len(summary))
	}
	if !summary[0].Sales.IsZero() || !summary[0].Purchases.IsZero() {
		t.Errorf("got sales %s purchases %s, want both zero", summary[0].Sales, summary[0].Purchases)
	}
}

func TestGSTMonthlySummaryEmpty(t *testing.T) {
	if got := GSTMonthlySummary(nil); len(got) != 0 {
		t.Errorf("empty batch must produce no months, got %+v", got)
	}
}
