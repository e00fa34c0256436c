package metrics

import (
	"github.com/shopspring/decimal"

	"github.com/smefin/finhealth/internal/canonical"
)

// ScoreResult is the 0-100 health score and its rating band.
type ScoreResult struct {
	Score  int
	Rating string
}

// HealthScore builds the score additively from four independent boolean
// components, then maps it to a band. Each predicate contributes its high
// value when true and its low value when false, so the score is monotonic
// non-decreasing in every predicate. An empty batch short-circuits to
// 0/"No Data" without evaluating the formula.
func HealthScore(txns []canonical.Transaction, policy ExpensePolicy) ScoreResult {
	if len(txns) == 0 {
		return ScoreResult{Score: 0, Rating: "No Data"}
	}

	k := ComputeKPIs(txns, policy)

	s := 0
	s += pick(k.NetCashflow.IsPositive(), 30, 10)
	s += pick(k.ProfitSimple.IsPositive(), 30, 10)
	s += pick(k.TotalTransactions >= 20, 20, 10)
	s += pick(k.Revenue.IsPositive(), 20, 5)

	switch {
	case s >= 80:
		return ScoreResult{Score: s, Rating: "Excellent"}
	case s >= 60:
		return ScoreResult{Score: s, Rating: "Good"}
	case s >= 40:
		return ScoreResult{Score: s, Rating: "Average"}
	default:
		return ScoreResult{Score: s, Rating: "Poor"}
	}
}

func pick(cond bool, high, low int) int {
	if cond {
		return high
	}
	return low
}

// RiskFlag is one detected risk condition.
type RiskFlag struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// riskExpenseThreshold: expenses above 80% of revenue flag a medium risk.
var riskExpenseThreshold = decimal.NewFromFloat(0.8)

// DetectRisks evaluates the independent risk conditions in fixed priority
// order and emits one flag per triggered condition. No triggers means a
// single informational flag; an empty batch short-circuits to a single
// high-severity "no data" flag.
func DetectRisks(txns []canonical.Transaction, policy ExpensePolicy) []RiskFlag {
	if len(txns) == 0 {
		return []RiskFlag{{
			Type: "no_data", Severity: "high",
			Message: "No transactions uploaded",
		}}
	}

	k := ComputeKPIs(txns, policy)
	var flags []RiskFlag

	if k.NetCashflow.IsNegative() {
		flags = append(flags, RiskFlag{
			Type: "cashflow_risk", Severity: "high",
			Message: "Negative cashflow detected",
		})
	}
	if k.Revenue.IsPositive() && k.Expenses.GreaterThan(k.Revenue.Mul(riskExpenseThreshold)) {
		flags = append(flags, RiskFlag{
			Type: "high_expense", Severity: "medium",
			Message: "Expenses are > 80% of revenue",
		})
	}
	if k.TotalTransactions < 10 {
		flags = append(flags, RiskFlag{
			Type: "low_data", Severity: "low",
			Message: "Few transactions; insights may be weak",
		})
	}

	if len(flags) == 0 {
		flags = append(flags, RiskFlag{
			Type: "no_major_risks", Severity: "info",
			Message: "No major risks detected",
		})
	}
	return flags
}

// recommendExpenseThreshold: expenses above 70% of revenue trigger a
// cost-control recommendation.
var recommendExpenseThreshold = decimal.NewFromFloat(0.7)

// Recommendations produces plain-text guidance from the same aggregates.
func Recommendations(txns []canonical.Transaction, policy ExpensePolicy) []string {
	if len(txns) == 0 {
		return []string{"Upload transactions to get recommendations"}
	}

	k := ComputeKPIs(txns, policy)
	var recs []string

	if k.Inflow.LessThan(k.Outflow) {
		recs = append(recs, "Reduce expenses or improve collections to fix negative cashflow")
	}
	if k.Revenue.IsPositive() && k.Expenses.GreaterThan(k.Revenue.Mul(recommendExpenseThreshold)) {
		recs = append(recs, "Control operating expenses (rent, salary, utilities, marketing)")
	}
	if k.Revenue.IsPositive() && k.Inflow.LessThan(k.Revenue) {
		recs = append(recs, "Speed up customer payments (reminders, shorter credit terms)")
	}

	if len(recs) == 0 {
		recs = append(recs, "Business looks stable. Track KPIs monthly and keep emergency cash reserves")
	}
	return recs
}
