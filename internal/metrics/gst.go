package metrics

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/smefin/finhealth/internal/canonical"
)

// GSTMonthlyBucket is one calendar month of GST-relevant activity.
type GSTMonthlyBucket struct {
	Month     string
	Sales     decimal.Decimal
	Purchases decimal.Decimal
}

// GSTMonthlySummary buckets a batch into monthly GST sales and purchases.
// A credit is a GST sale when its description mentions "gst sale" or its
// category is exactly "revenue"; a debit is a GST purchase when its
// description mentions "gst purchase" or its category is exactly "expense".
// Emitted in ascending month order; months with no transactions are never
// synthesized.
func GSTMonthlySummary(txns []canonical.Transaction) []GSTMonthlyBucket {
	buckets := make(map[string]*GSTMonthlyBucket)

	for _, t := range txns {
		key := t.Date.Format("2006-01")
		b, ok := buckets[key]
		if !ok {
			b = &GSTMonthlyBucket{
				Month:     key,
				Sales:     decimal.Zero,
				Purchases: decimal.Zero,
			}
			buckets[key] = b
		}

		desc := strings.ToLower(t.Description)
		if t.Direction == canonical.Credit &&
			(strings.Contains(desc, "gst sale") || t.Category == canonical.CategoryRevenue) {
			b.Sales = b.Sales.Add(t.Amount)
		}
		if t.Direction == canonical.Debit &&
			(strings.Contains(desc, "gst purchase") || t.Category == canonical.CategoryExpense) {
			b.Purchases = b.Purchases.Add(t.Amount)
		}
	}

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]GSTMonthlyBucket, 0, len(keys))
	for _, k := range keys {
		out = append(out, *buckets[k])
	}
	return out
}
