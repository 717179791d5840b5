package outfmt

import (
	"fmt"
	"io"

	"github.com/scriptrack/scriptrack/portfolio"
)

type STDWriter struct {
	w io.Writer
}

func NewSTDWriter(w io.Writer) *STDWriter {
	return &STDWriter{
		w: w,
	}
}

// PrintRenderTable implements ReportWriter.
func (w *STDWriter) PrintRenderTable(outType OutputType, name string, tableModel *portfolio.RenderTable) error {
	portfolio.PrintRenderTable(title(outType, name), tableModel, w.w)
	_, err := fmt.Fprintln(w.w, "")
	return err
}
