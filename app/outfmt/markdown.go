package outfmt

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/scriptrack/scriptrack/portfolio"
)

// MarkdownWriter prints each table as a markdown section. Unless Raw, the
// markdown is rendered for the terminal.
type MarkdownWriter struct {
	w     io.Writer
	Raw   bool
	Style string
}

func NewMarkdownWriter(w io.Writer) *MarkdownWriter {
	return &MarkdownWriter{w: w, Style: "dark"}
}

func mdEscape(cell string) string {
	return strings.ReplaceAll(cell, "|", `\|`)
}

func mdRow(sb *strings.Builder, cells []string) {
	sb.WriteString("|")
	for _, c := range cells {
		sb.WriteString(" ")
		sb.WriteString(mdEscape(c))
		sb.WriteString(" |")
	}
	sb.WriteString("\n")
}

// TableMarkdown renders tableModel as a markdown section titled title.
func TableMarkdown(title string, tableModel *portfolio.RenderTable) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## %s\n\n", title)
	for _, err := range tableModel.Errors {
		fmt.Fprintf(&sb, "> **[!]** %v\n\n", err)
	}

	mdRow(&sb, tableModel.Header)
	sep := make([]string, len(tableModel.Header))
	for i := range sep {
		sep[i] = "---"
	}
	mdRow(&sb, sep)
	for _, row := range tableModel.Rows {
		mdRow(&sb, row)
	}
	if len(tableModel.Footer) > 0 {
		bold := make([]string, len(tableModel.Footer))
		for i, c := range tableModel.Footer {
			if c != "" {
				bold[i] = "**" + c + "**"
			}
		}
		mdRow(&sb, bold)
	}

	if len(tableModel.Notes) > 0 {
		sb.WriteString("\n")
		for _, note := range tableModel.Notes {
			if note == "" {
				continue
			}
			fmt.Fprintf(&sb, "* %s\n", note)
		}
	}
	sb.WriteString("\n")
	return sb.String()
}

// PrintRenderTable implements ReportWriter.
func (w *MarkdownWriter) PrintRenderTable(outType OutputType, name string, tableModel *portfolio.RenderTable) error {
	md := TableMarkdown(title(outType, name), tableModel)
	if w.Raw {
		_, err := io.WriteString(w.w, md)
		return err
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(w.Style),
		glamour.WithWordWrap(0),
	)
	if err != nil {
		return fmt.Errorf("markdown renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return fmt.Errorf("render markdown: %w", err)
	}
	_, err = io.WriteString(w.w, out)
	return err
}
