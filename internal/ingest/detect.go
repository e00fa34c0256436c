// Package ingest turns raw tabular datasets into canonical transaction
// batches: it detects which source columns carry which semantic roles, then
// normalizes every row through the shared canonical policy.
package ingest

import (
	"errors"
	"fmt"
	"strings"
)

// Role is a semantic column role the detector can resolve.
type Role string

const (
	RoleDate        Role = "date"
	RoleDescription Role = "description"
	RoleAmount      Role = "amount"
	RoleDebit       Role = "debit"
	RoleCredit      Role = "credit"
	RoleCategory    Role = "category"
	RoleDirection   Role = "direction"
)

// ErrMissingRequiredField signals that the dataset has no detectable date
// column or no amount representation at all. Fatal for the whole dataset.
var ErrMissingRequiredField = errors.New("missing required field")

// fieldAliases maps each role to its accepted header names in priority
// order. The table is plain data: extending detection means editing this
// list, not the matching code.
var fieldAliases = map[Role][]string{
	RoleDate:        {"date", "txn_date", "transaction_date", "value_date", "posting_date"},
	RoleDescription: {"description", "narration", "particulars", "details", "remark", "remarks"},
	RoleAmount:      {"amount", "amt", "value", "transaction_amount"},
	RoleDebit:       {"debit", "dr", "withdrawal", "withdrawals", "paid out", "money out", "debit amount"},
	RoleCredit:      {"credit", "cr", "deposit", "deposits", "paid in", "money in", "credit amount"},
	RoleCategory:    {"category", "cat", "type", "expense_category", "ledger", "account", "head"},
	RoleDirection:   {"direction", "drcr", "dr_cr", "credit_debit"},
}

// detectionOrder fixes the iteration order so detection is deterministic.
var detectionOrder = []Role{
	RoleDate, RoleDescription, RoleAmount, RoleDebit, RoleCredit,
	RoleCategory, RoleDirection,
}

// Column identifies a resolved source column.
type Column struct {
	Header string
	Index  int
}

// FieldMapping associates semantic roles with concrete source columns. It is
// built once per dataset and discarded after the batch is normalized.
type FieldMapping map[Role]Column

// Has reports whether a role was resolved.
func (m FieldMapping) Has(role Role) bool {
	_, ok := m[role]
	return ok
}

// DetectFields resolves semantic roles against the dataset's header row.
// Matching is case-insensitive and exact-token: "Txn_Date" matches the
// alias "txn_date", but "my date column" matches nothing. For each role the
// first alias in priority order that matches any column wins, independent of
// column order. Unresolved optional roles are simply absent from the mapping;
// a missing date or missing amount representation is ErrMissingRequiredField.
func DetectFields(headers []string) (FieldMapping, error) {
	normalized := make(map[string]Column, len(headers))
	for i, h := range headers {
		key := strings.ToLower(strings.TrimSpace(h))
		if key == "" {
			continue
		}
		// First occurrence wins when headers repeat.
		if _, seen := normalized[key]; !seen {
			normalized[key] = Column{Header: h, Index: i}
		}
	}

	mapping := make(FieldMapping)
	for _, role := range detectionOrder {
		for _, alias := range fieldAliases[role] {
			if col, ok := normalized[alias]; ok {
				mapping[role] = col
				break
			}
		}
	}

	if !mapping.Has(RoleDate) {
		return nil, fmt.Errorf("%w: no date column detected (accepted: %s)",
			ErrMissingRequiredField, strings.Join(fieldAliases[RoleDate], ", "))
	}
	if !mapping.Has(RoleAmount) && !mapping.Has(RoleDebit) && !mapping.Has(RoleCredit) {
		return nil, fmt.Errorf("%w: no amount, debit or credit column detected",
			ErrMissingRequiredField)
	}

	return mapping, nil
}
