// Package canonical defines the transaction schema every ingestion source is
// mapped into, together with the single normalization policy (direction
// tokens, date formats, amount cleaning, category defaults) shared by all
// ingestion paths.
package canonical

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Direction marks a transaction as money in or money out. It is the sole
// carrier of sign: Amount is always the absolute value.
type Direction string

const (
	Credit Direction = "credit"
	Debit  Direction = "debit"
)

// Recognized category buckets. Category is an open vocabulary; these are the
// values the metrics engine gives special meaning to.
const (
	CategoryRevenue       = "revenue"
	CategoryExpense       = "expense"
	CategoryCOGS          = "cogs"
	CategoryUncategorized = "uncategorized"
)

const (
	MaxDescriptionLen = 255
	MaxCategoryLen    = 64
)

// Transaction is one normalized financial record. Once produced by the
// ingestion pipeline it is immutable; corrections are appended as new
// transactions, never edits.
type Transaction struct {
	Date        time.Time
	Description string
	Category    string
	Direction   Direction
	Amount      decimal.Decimal
}

// revenueCategories, cogsCategories and expenseCategories are the keyword
// buckets used to classify free-label categories.
var revenueCategories = map[string]bool{
	"revenue": true, "sales": true, "income": true, "turnover": true,
}

var cogsCategories = map[string]bool{
	"cogs": true, "cost_of_goods_sold": true, "inventory": true,
	"purchases": true, "purchase": true,
}

var expenseCategories = map[string]bool{
	"expense": true, "expenses": true,
	"rent": true, "salary": true, "utilities": true, "admin": true,
	"marketing": true, "transport": true, "logistics": true,
	"repair": true, "maintenance": true, "office": true,
}

// IsRevenue reports whether a category label belongs to the revenue bucket.
func IsRevenue(category string) bool {
	return revenueCategories[cleanLabel(category)]
}

// IsCOGS reports whether a category label belongs to the cost-of-goods bucket.
func IsCOGS(category string) bool {
	return cogsCategories[cleanLabel(category)]
}

// IsExpense reports whether a category label belongs to the expense bucket.
func IsExpense(category string) bool {
	return expenseCategories[cleanLabel(category)]
}

func cleanLabel(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ClampDescription trims and truncates free text to the schema limit.
func ClampDescription(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > MaxDescriptionLen {
		s = s[:MaxDescriptionLen]
	}
	return s
}

// ClampCategory lower-cases, trims and truncates a category label.
func ClampCategory(s string) string {
	s = cleanLabel(s)
	if len(s) > MaxCategoryLen {
		s = s[:MaxCategoryLen]
	}
	return s
}
