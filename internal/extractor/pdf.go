// Package extractor pulls the text layer out of PDF documents (bank
// statements, invoices) so the text parsers can work on plain lines. It
// tries several extraction methods and gates each result on readability,
// so garbage from custom font encodings is never returned as text. Scanned
// image-only PDFs have no text layer; their text must be produced upstream
// by OCR and handed over as pre-extracted text.
package extractor

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
)

// ExtractText reads a PDF file and returns the text content of each page.
func ExtractText(filePath string) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("PDF library crashed: %v", r)
		}
	}()

	f, r, openErr := pdf.Open(filePath)
	if openErr != nil {
		return nil, fmt.Errorf("opening PDF: %w", openErr)
	}
	defer f.Close()

	numPages := r.NumPage()
	if numPages == 0 {
		return nil, fmt.Errorf("PDF has no pages")
	}

	// Method 1: row-based extraction, best layout preservation.
	pages = extractByRow(r, numPages)
	if isReadableText(pages) {
		return pages, nil
	}

	// Method 2: raw text objects, rows reconstructed from coordinates.
	pages = extractByContent(r, numPages)
	if isReadableText(pages) {
		return pages, nil
	}

	// Method 3: plain-text extraction with page font maps.
	pages = extractByPagePlainText(r, numPages)
	if isReadableText(pages) {
		return pages, nil
	}

	// Method 4: whole-document plain text.
	plain := extractByReaderPlainText(r)
	if isReadableText([]string{plain}) {
		return []string{plain}, nil
	}

	return nil, fmt.Errorf("no readable text in PDF: the file may be a scanned image (needs OCR) or use font encodings that cannot be decoded")
}

// Lines flattens extracted pages into trimmed, non-empty lines, the shape
// the statement text parser expects.
func Lines(pages []string) []string {
	var lines []string
	for _, page := range pages {
		for _, line := range strings.Split(page, "\n") {
			line = strings.TrimSpace(line)
			if line != "" {
				lines = append(lines, line)
			}
		}
	}
	return lines
}

// Combined joins all pages into a single document string, for invoice-style
// parsing that is not line-oriented.
func Combined(pages []string) string {
	return strings.Join(pages, "\n")
}

// financeWords are terms that appear in virtually every bank statement or
// invoice. Extracted text containing none of them is treated as garbage.
var financeWords = []string{
	"bank", "account", "balance", "date", "payment", "statement",
	"total", "amount", "credit", "debit", "transaction", "invoice",
	"gst", "tax", "vendor", "paid", "opening", "closing", "transfer",
	"number", "page", "period",
}

// isReadableText requires enough text (>50 chars), a high share of plain
// ASCII (>60%; unicode.IsLetter is too lenient and matches the accented
// garbage produced by identity-encoded fonts), and at least one recognizable
// finance word.
func isReadableText(pages []string) bool {
	total := 0
	readable := 0
	for _, page := range pages {
		for _, r := range page {
			total++
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
				(r >= '0' && r <= '9') || unicode.IsSpace(r) ||
				strings.ContainsRune(".,-/:;()'\"£$€₹%&@#!?+=*", r) {
				readable++
			}
		}
	}
	if total <= 50 || float64(readable)/float64(total) <= 0.6 {
		return false
	}

	combined := strings.ToLower(Combined(pages))
	for _, word := range financeWords {
		if strings.Contains(combined, word) {
			return true
		}
	}
	return false
}

func extractByRow(r *pdf.Reader, numPages int) []string {
	var pages []string
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			continue
		}
		var lines []string
		for _, row := range rows {
			var parts []string
			for _, word := range row.Content {
				parts = append(parts, word.S)
			}
			if line := strings.TrimSpace(strings.Join(parts, " ")); line != "" {
				lines = append(lines, line)
			}
		}
		pages = append(pages, strings.Join(lines, "\n"))
	}
	return pages
}

// extractByContent groups text pieces by Y coordinate to reconstruct rows,
// then sorts each row by X. PDF Y runs bottom-to-top, so rows sort descending.
func extractByContent(r *pdf.Reader, numPages int) []string {
	var pages []string
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content := page.Content()
		if len(content.Text) == 0 {
			continue
		}

		type textItem struct {
			x float64
			s string
		}
		rowMap := make(map[int][]textItem)
		for _, t := range content.Text {
			if strings.TrimSpace(t.S) == "" {
				continue
			}
			yKey := int(math.Round(t.Y))
			rowMap[yKey] = append(rowMap[yKey], textItem{x: t.X, s: t.S})
		}

		yKeys := make([]int, 0, len(rowMap))
		for y := range rowMap {
			yKeys = append(yKeys, y)
		}
		sort.Sort(sort.Reverse(sort.IntSlice(yKeys)))

		var lines []string
		for _, y := range yKeys {
			items := rowMap[y]
			sort.Slice(items, func(a, b int) bool { return items[a].x < items[b].x })

			var parts []string
			var prevX float64
			for j, item := range items {
				if j > 0 && item.x-prevX > 15 {
					// A large X gap is a column boundary.
					parts = append(parts, "  ")
				}
				parts = append(parts, item.s)
				prevX = item.x
			}
			if line := strings.TrimSpace(strings.Join(parts, "")); line != "" {
				lines = append(lines, line)
			}
		}
		pages = append(pages, strings.Join(lines, "\n"))
	}
	return pages
}

func extractByPagePlainText(r *pdf.Reader, numPages int) []string {
	var pages []string
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		fonts := make(map[string]*pdf.Font)
		for _, name := range page.Fonts() {
			f := page.Font(name)
			fonts[name] = &f
		}

		text, err := page.GetPlainText(fonts)
		if err != nil {
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}
	return pages
}

func extractByReaderPlainText(r *pdf.Reader) string {
	reader, err := r.GetPlainText()
	if err != nil {
		return ""
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
