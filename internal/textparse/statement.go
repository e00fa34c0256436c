// Package textparse extracts transaction and invoice data from unstructured
// financial text: PDF text layers and OCR output. The parsers are ordered
// regular expressions over lines, and they degrade to empty results rather
// than errors when a document contains nothing transaction-shaped.
package textparse

import (
	"regexp"
	"strings"

	"github.com/smefin/finhealth/internal/canonical"
)

// A line is a transaction candidate only if it begins with a date in one of
// these shapes, tried in order: ISO, day-first slash, day-first dash.
var statementDatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`),
	regexp.MustCompile(`^\d{2}/\d{2}/\d{4}`),
	regexp.MustCompile(`^\d{2}-\d{2}-\d{4}`),
}

// numberPattern matches numeric tokens with optional sign, thousands
// separators and decimals.
var numberPattern = regexp.MustCompile(`-?\d[\d,]*\.?\d*`)

// debitToken matches "DR" as a separate word. Known limitation: a
// description containing the title "DR." also matches and flips the line to
// debit. Documented, not silently fixed.
var debitToken = regexp.MustCompile(`\bDR\b`)

// ParseStatementText scans bank-statement-shaped text line by line. Each
// line that starts with a recognized date becomes at most one transaction:
// the rightmost numeric token is taken as the amount (bank statement text is
// assumed to list the amount column last), and a DR/DEBIT marker anywhere on
// the line means debit, otherwise credit. Lines without a leading date are
// skipped. No matching lines means an empty slice, not an error.
func ParseStatementText(lines []string) []canonical.Transaction {
	var batch []canonical.Transaction

	for _, raw := range lines {
		line := SanitizeOCRLine(strings.TrimSpace(raw))
		if line == "" || !startsWithStatementDate(line) {
			continue
		}

		fields := strings.Fields(line)
		date, err := canonical.ParseDate(fields[0])
		if err != nil {
			continue
		}

		nums := numberPattern.FindAllString(line, -1)
		if len(nums) == 0 {
			continue
		}
		amount, err := canonical.ParseAmount(nums[len(nums)-1])
		if err != nil {
			continue
		}

		upper := strings.ToUpper(line)
		direction := canonical.Credit
		if debitToken.MatchString(upper) || strings.Contains(upper, "DEBIT") {
			direction = canonical.Debit
		}

		batch = append(batch, canonical.Transaction{
			Date:        date,
			Description: canonical.ClampDescription(strings.TrimSpace(strings.TrimPrefix(line, fields[0]))),
			Category:    canonical.DefaultCategory(direction),
			Direction:   direction,
			Amount:      amount.Abs(),
		})
	}

	return batch
}

func startsWithStatementDate(line string) bool {
	for _, p := range statementDatePatterns {
		if p.MatchString(line) {
			return true
		}
	}
	return false
}

// SanitizeOCRLine fixes common OCR misreads in amounts before parsing.
// Tesseract tends to read decimal points as semicolons or colons.
var (
	ocrSemicolonDecimal = regexp.MustCompile(`(\d);\s*(\d)`)
	ocrColonDecimal     = regexp.MustCompile(`(\d):(\d)`)
	ocrTrailingColon    = regexp.MustCompile(`(\d):(\s|$)`)
)

func SanitizeOCRLine(line string) string {
	line = ocrSemicolonDecimal.ReplaceAllString(line, "$1.$2")
	line = ocrColonDecimal.ReplaceAllString(line, "$1.$2")
	line = ocrTrailingColon.ReplaceAllString(line, "$1$2")
	return line
}
