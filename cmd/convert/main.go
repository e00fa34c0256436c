package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/smefin/finhealth/internal/extractor"
	"github.com/smefin/finhealth/internal/ingest"
	"github.com/smefin/finhealth/internal/reader"
	"github.com/smefin/finhealth/internal/writer"
)

const version = "1.0.0"

func main() {
	outputFlag := flag.String("output", "", "Output CSV file path (defaults to input filename with .csv extension)")
	summaryFlag := flag.Bool("summary", false, "Append inflow/outflow/net totals after the rows")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	helpFlag := flag.Bool("help", false, "Show usage help")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Financial Data Converter

Normalizes transaction exports (CSV, XLSX, XLS) and bank statement PDFs
into a canonical CSV: Date, Description, Category, Direction, Amount.

Usage:
  finhealth-convert [flags] <input> [input2 ...]

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Normalize a spreadsheet export
  finhealth-convert transactions.xlsx

  # Convert a statement PDF with totals appended
  finhealth-convert --summary statement.pdf

  # Custom output path
  finhealth-convert --output=clean.csv export.csv
`)
	}

	flag.Parse()

	if *versionFlag {
		fmt.Printf("finhealth-convert v%s\n", version)
		os.Exit(0)
	}

	if *helpFlag || flag.NArg() == 0 {
		flag.Usage()
		os.Exit(0)
	}

	for _, inputPath := range flag.Args() {
		if err := processFile(inputPath, *outputFlag, *summaryFlag); err != nil {
			fmt.Fprintf(os.Stderr, "Error processing %s: %v\n", inputPath, err)
			os.Exit(1)
		}
	}
}

func processFile(inputPath, outputPath string, includeSummary bool) error {
	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		return fmt.Errorf("input file not found: %s", inputPath)
	}

	fmt.Printf("Processing: %s\n", inputPath)

	result, err := ingestFile(inputPath)
	if err != nil {
		return err
	}

	fmt.Printf("  Found %d transaction(s)\n", result.RowCount)
	if result.RowCount == 0 {
		fmt.Println("  Warning: No transactions found. The file format may not match expected patterns.")
	}

	outPath := outputPath
	if outPath == "" {
		base := strings.TrimSuffix(inputPath, filepath.Ext(inputPath))
		outPath = base + ".out.csv"
	}

	w := &writer.CSVWriter{IncludeSummary: includeSummary}
	if err := w.WriteToFile(outPath, result.Batch); err != nil {
		return fmt.Errorf("CSV write failed: %w", err)
	}

	fmt.Printf("  Output: %s\n", outPath)
	fmt.Println("  Done.")
	return nil
}

func ingestFile(inputPath string) (*ingest.Result, error) {
	ext := strings.ToLower(filepath.Ext(inputPath))
	switch ext {
	case ".pdf":
		pages, err := extractor.ExtractText(inputPath)
		if err != nil {
			return nil, fmt.Errorf("PDF extraction failed: %w", err)
		}
		fmt.Printf("  Extracted text from %d page(s)\n", len(pages))
		return ingest.IngestStatementText(extractor.Lines(pages)), nil

	case ".csv", ".xlsx", ".xls":
		f, err := os.Open(inputPath)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		table, err := reader.ReadTable(inputPath, f)
		if err != nil {
			return nil, err
		}
		return ingest.IngestTable(table)

	default:
		return nil, fmt.Errorf("unsupported file type %q: expected .csv, .xlsx, .xls or .pdf", ext)
	}
}
