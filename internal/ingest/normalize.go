package ingest

import (
	"github.com/shopspring/decimal"

	"github.com/smefin/finhealth/internal/canonical"
)

// rowError is a per-row normalization failure. Fatal errors (a date that
// does not parse) abort the whole dataset, because a bad date column means
// the detector matched the wrong column, not that one row is dirty.
// Non-fatal errors drop just the offending row.
type rowError struct {
	reason string
	fatal  bool
}

func (e *rowError) Error() string { return e.reason }

// cell returns the row value for a resolved role, or "" when the role is
// unresolved or the row is short.
func cell(row []string, m FieldMapping, role Role) string {
	col, ok := m[role]
	if !ok || col.Index >= len(row) {
		return ""
	}
	return row[col.Index]
}

// normalizeRow maps one raw row through the field mapping into a canonical
// transaction.
//
// Amount and direction resolution, in precedence order:
//  1. Explicit direction column: the token decides direction (unrecognized
//     tokens default to debit) and the amount column is taken as an
//     absolute value regardless of its own sign.
//  2. Single signed amount column: sign >= 0 is credit, < 0 is debit, and
//     the absolute value is stored.
//  3. Separate debit/credit columns: the larger magnitude decides direction
//     and the amount is |credit - debit|.
func normalizeRow(row []string, m FieldMapping) (canonical.Transaction, error) {
	dateRaw := cell(row, m, RoleDate)
	date, err := canonical.ParseDate(dateRaw)
	if err != nil {
		return canonical.Transaction{}, &rowError{reason: err.Error(), fatal: true}
	}

	var amount decimal.Decimal
	var direction canonical.Direction

	switch {
	case m.Has(RoleDirection) && m.Has(RoleAmount):
		direction = canonical.NormalizeDirection(cell(row, m, RoleDirection))
		amount, err = canonical.ParseAmount(cell(row, m, RoleAmount))
		if err != nil {
			return canonical.Transaction{}, &rowError{reason: err.Error()}
		}
		amount = amount.Abs()

	case m.Has(RoleAmount):
		amount, err = canonical.ParseAmount(cell(row, m, RoleAmount))
		if err != nil {
			return canonical.Transaction{}, &rowError{reason: err.Error()}
		}
		direction = canonical.DirectionFromSign(amount)
		amount = amount.Abs()

	default:
		debit, derr := canonical.ParseAmount(cell(row, m, RoleDebit))
		if derr != nil {
			return canonical.Transaction{}, &rowError{reason: derr.Error()}
		}
		credit, cerr := canonical.ParseAmount(cell(row, m, RoleCredit))
		if cerr != nil {
			return canonical.Transaction{}, &rowError{reason: cerr.Error()}
		}
		if credit.Abs().GreaterThan(debit.Abs()) {
			direction = canonical.Credit
		} else {
			direction = canonical.Debit
		}
		amount = credit.Sub(debit).Abs()
	}

	category := canonical.ClampCategory(cell(row, m, RoleCategory))
	if category == "" {
		category = canonical.DefaultCategory(direction)
	}

	return canonical.Transaction{
		Date:        date,
		Description: canonical.ClampDescription(cell(row, m, RoleDescription)),
		Category:    category,
		Direction:   direction,
		Amount:      amount,
	}, nil
}

// isFatal reports whether a row error must abort the dataset.
func isFatal(err error) bool {
	re, ok := err.(*rowError)
	return ok && re.fatal
}
