// Package metrics derives read-only financial views from a canonical
// transaction batch: aggregate KPIs, monthly series, a health score, risk
// flags, recommendations and a flat-average forecast. Every function is pure
// over its inputs and recomputed from scratch on each call.
package metrics

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/smefin/finhealth/internal/canonical"
)

// ExpensePolicy controls what counts as "expenses" in the KPI formulas.
type ExpensePolicy int

const (
	// ExpenseAllDebits counts every debit as an expense, even though
	// revenue stays category-filtered. The default.
	ExpenseAllDebits ExpensePolicy = iota
	// ExpenseCategoryFiltered counts only debits whose category falls in
	// the expense bucket.
	ExpenseCategoryFiltered
)

// KPISummary is the aggregate view over a whole batch.
type KPISummary struct {
	TotalTransactions int
	Inflow            decimal.Decimal
	Outflow           decimal.Decimal
	Revenue           decimal.Decimal
	Expenses          decimal.Decimal
	NetCashflow       decimal.Decimal
	ProfitSimple      decimal.Decimal
	ExpenseRatio      *decimal.Decimal // percent; nil when revenue is zero
}

// ComputeKPIs aggregates a batch:
//
//	inflow   = sum of credit amounts
//	outflow  = sum of debit amounts
//	revenue  = sum of credit amounts whose category is exactly "revenue"
//	expenses = per ExpensePolicy
func ComputeKPIs(txns []canonical.Transaction, policy ExpensePolicy) KPISummary {
	k := KPISummary{
		TotalTransactions: len(txns),
		Inflow:            decimal.Zero,
		Outflow:           decimal.Zero,
		Revenue:           decimal.Zero,
		Expenses:          decimal.Zero,
	}

	for _, t := range txns {
		switch t.Direction {
		case canonical.Credit:
			k.Inflow = k.Inflow.Add(t.Amount)
			if t.Category == canonical.CategoryRevenue {
				k.Revenue = k.Revenue.Add(t.Amount)
			}
		case canonical.Debit:
			k.Outflow = k.Outflow.Add(t.Amount)
			if policy == ExpenseAllDebits || canonical.IsExpense(t.Category) {
				k.Expenses = k.Expenses.Add(t.Amount)
			}
		}
	}

	k.NetCashflow = k.Inflow.Sub(k.Outflow)
	k.ProfitSimple = k.Revenue.Sub(k.Expenses)

	if k.Revenue.IsPositive() {
		ratio := k.Expenses.Div(k.Revenue).Mul(decimal.NewFromInt(100)).Round(2)
		k.ExpenseRatio = &ratio
	}

	return k
}

// MonthlyBucket is one calendar month of activity, keyed "YYYY-MM". Months
// with no transactions are never synthesized.
type MonthlyBucket struct {
	Month        string
	Revenue      decimal.Decimal
	Expenses     decimal.Decimal
	ProfitSimple decimal.Decimal
}

// MonthlySeries buckets a batch by calendar year-month, applying the same
// revenue/expense formulas per bucket, emitted in ascending key order.
func MonthlySeries(txns []canonical.Transaction, policy ExpensePolicy) []MonthlyBucket {
	buckets := make(map[string]*MonthlyBucket)

	for _, t := range txns {
		key := t.Date.Format("2006-01")
		b, ok := buckets[key]
		if !ok {
			b = &MonthlyBucket{
				Month:    key,
				Revenue:  decimal.Zero,
				Expenses: decimal.Zero,
			}
			buckets[key] = b
		}
		if t.Direction == canonical.Credit && t.Category == canonical.CategoryRevenue {
			b.Revenue = b.Revenue.Add(t.Amount)
		}
		if t.Direction == canonical.Debit &&
			(policy == ExpenseAllDebits || canonical.IsExpense(t.Category)) {
			b.Expenses = b.Expenses.Add(t.Amount)
		}
	}

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	series := make([]MonthlyBucket, 0, len(keys))
	for _, k := range keys {
		b := buckets[k]
		b.ProfitSimple = b.Revenue.Sub(b.Expenses)
		series = append(series, *b)
	}
	return series
}
