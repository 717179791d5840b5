package outfmt

import (
	"fmt"
	"io"

	"github.com/scriptrack/scriptrack/portfolio"
)

type OutputType int

const (
	Portfolio OutputType = iota
	Report
	Transactions
	AggregateGains
)

type ReportWriter interface {
	PrintRenderTable(outType OutputType, name string, tableModel *portfolio.RenderTable) error
}

func title(outType OutputType, name string) string {
	switch outType {
	case Portfolio:
		return "Portfolio"
	case Report:
		return "Report"
	case Transactions:
		return fmt.Sprintf("Transactions for %s", name)
	case AggregateGains:
		return "Aggregate Gains"
	}
	panic(fmt.Sprint("OutputType ", outType, " is not implemented"))
}

const (
	FormatStd      = "std"
	FormatCsv      = "csv"
	FormatMarkdown = "markdown"
	FormatJson     = "json"
)

// NewWriter returns the table writer for format. json output is not table
// based, and has no writer.
func NewWriter(format string, w io.Writer, outDir string) (ReportWriter, error) {
	switch format {
	case FormatStd, "":
		return NewSTDWriter(w), nil
	case FormatCsv:
		return NewCSVWriter(outDir)
	case FormatMarkdown:
		return NewMarkdownWriter(w), nil
	}
	return nil, fmt.Errorf("Unsupported output format %q", format)
}
