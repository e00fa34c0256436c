package textparse

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/smefin/finhealth/internal/canonical"
)

// Invoice holds the fields extracted from a single invoice-style document
// (as opposed to line-oriented bank statement text).
type Invoice struct {
	VendorName string
	GSTIN      string
	Number     string
	Date       time.Time // zero when no date-shaped token was found
	Total      decimal.Decimal
	HasTotal   bool
}

// NoData reports whether extraction found nothing usable: without a total an
// invoice implies no transaction.
func (inv Invoice) NoData() bool { return !inv.HasTotal }

var (
	// GSTIN: 2 digits, 5 letters, 4 digits, 1 letter, 3 alphanumerics.
	gstinPattern = regexp.MustCompile(`\b([0-9]{2}[A-Z]{5}[0-9]{4}[A-Z][A-Z0-9]{3})\b`)

	invoiceNumberPattern = regexp.MustCompile(`(?i)(?:invoice\s*no\.?|inv\s*no\.?|invoice\s*#)\s*[:\-]?\s*([A-Za-z0-9\-/]+)`)

	// Labeled total, preferred over any positional guess. "grand total"
	// must be listed before the bare "total" so the more specific label wins.
	labeledTotalPattern = regexp.MustCompile(`(?i)(?:grand\s*total|total\s*amount|total)\s*[:\-]?\s*[£$€₹]?\s*([0-9][0-9,]*(?:\.[0-9]{1,2})?)`)

	// Fallback: any number with at least three digits.
	bigNumberPattern = regexp.MustCompile(`\b[0-9]{3,}(?:\.[0-9]{1,2})?\b`)

	invoiceDatePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\d{4}-\d{2}-\d{2}`),
		regexp.MustCompile(`\d{2}/\d{2}/\d{4}`),
		regexp.MustCompile(`\d{2}-\d{2}-\d{4}`),
	}
)

// ParseInvoiceText extracts invoice metadata from a whole document string.
// The heuristics, in order:
//   - vendor name: first non-blank line
//   - GSTIN: first 15-character GSTIN-shaped token
//   - invoice number: alphanumeric token after an "invoice no"-style label
//   - date: first date-shaped token anywhere in the document
//   - total: amount after a "total"-style label, else the largest numeric
//     token with at least three digits anywhere in the document
//
// A document with no detectable total returns Invoice.NoData() == true, an
// empty result rather than an error.
func ParseInvoiceText(doc string) Invoice {
	inv := Invoice{}

	inv.VendorName = firstNonBlankLine(doc)
	if m := gstinPattern.FindStringSubmatch(strings.ToUpper(doc)); m != nil {
		inv.GSTIN = m[1]
	}
	if m := invoiceNumberPattern.FindStringSubmatch(doc); m != nil {
		inv.Number = clampLen(m[1], 64)
	}
	inv.Date = findInvoiceDate(doc)
	inv.Total, inv.HasTotal = findInvoiceTotal(doc)

	return inv
}

func firstNonBlankLine(doc string) string {
	for _, line := range strings.Split(doc, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return canonical.ClampDescription(line)
		}
	}
	return ""
}

func findInvoiceDate(doc string) time.Time {
	for _, p := range invoiceDatePatterns {
		if m := p.FindString(doc); m != "" {
			if t, err := canonical.ParseDate(m); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}

func findInvoiceTotal(doc string) (decimal.Decimal, bool) {
	if m := labeledTotalPattern.FindStringSubmatch(doc); m != nil {
		if d, err := canonical.ParseAmount(m[1]); err == nil {
			return d, true
		}
	}

	// Thousands separators would split tokens in the fallback scan.
	cleaned := strings.ReplaceAll(doc, ",", "")

	best := decimal.Zero
	found := false
	for _, tok := range bigNumberPattern.FindAllString(cleaned, -1) {
		d, err := canonical.ParseAmount(tok)
		if err != nil {
			continue
		}
		if !found || d.GreaterThan(best) {
			best = d
			found = true
		}
	}
	return best, found
}

func clampLen(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
