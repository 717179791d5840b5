package outfmt

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/scriptrack/scriptrack/portfolio"
)

// CSVWriter writes each table to its own file in OutDir.
type CSVWriter struct {
	OutDir string
}

var fileNameReplacer = strings.NewReplacer("/", "_", "\\", "_", " ", "_", ":", "_")

func csvFileName(outType OutputType, name string) (string, error) {
	switch outType {
	case Portfolio:
		return "portfolio.csv", nil
	case Report:
		return "report.csv", nil
	case Transactions:
		return fileNameReplacer.Replace(name) + ".csv", nil
	case AggregateGains:
		return "aggregate-gains.csv", nil
	}
	return "", fmt.Errorf("OutputType %v not implemented", outType)
}

// csvRecords flattens a table. Errors and notes become single-field records,
// errors before the table and notes after it.
func csvRecords(tableModel *portfolio.RenderTable) [][]string {
	records := make([][]string, 0, len(tableModel.Rows)+len(tableModel.Notes)+2)
	for _, err := range tableModel.Errors {
		records = append(records, []string{fmt.Sprintf("[!] %v", err)})
	}
	records = append(records, tableModel.Header)
	records = append(records, tableModel.Rows...)
	if len(tableModel.Footer) > 0 {
		records = append(records, tableModel.Footer)
	}
	for _, note := range tableModel.Notes {
		if note != "" {
			records = append(records, []string{note})
		}
	}
	return records
}

// PrintRenderTable implements ReportWriter.
func (w *CSVWriter) PrintRenderTable(outType OutputType, name string, tableModel *portfolio.RenderTable) error {
	fn, err := csvFileName(outType, name)
	if err != nil {
		return err
	}

	fp, err := os.Create(filepath.Join(w.OutDir, fn))
	if err != nil {
		return fmt.Errorf("Create file %q: %w", fn, err)
	}
	defer fp.Close()

	csvWriter := csv.NewWriter(fp)
	if err := csvWriter.WriteAll(csvRecords(tableModel)); err != nil {
		return fmt.Errorf("write %q: %w", fn, err)
	}
	return nil
}

func NewCSVWriter(outDir string) (*CSVWriter, error) {
	if outDir == "" {
		outDir = "."
	}
	if err := os.MkdirAll(outDir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("Creating CSV output directory: %w", err)
	}
	return &CSVWriter{OutDir: outDir}, nil
}
