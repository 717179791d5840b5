package market

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"

	"github.com/scriptrack/scriptrack/date"
	"github.com/scriptrack/scriptrack/portfolio"
)

var errNoCachedQuotes = errors.New("no cached quotes")

type MemQuotesCacheAccessor struct {
	// Keyed by the day's string (YYYY-MM-DD).
	QuotesByDay map[string][]SymbolQuote
}

func NewMemQuotesCacheAccessor() *MemQuotesCacheAccessor {
	return &MemQuotesCacheAccessor{QuotesByDay: make(map[string][]SymbolQuote)}
}

func (c *MemQuotesCacheAccessor) WriteQuotes(day date.Date, quotes []SymbolQuote) error {
	c.QuotesByDay[day.String()] = quotes
	return nil
}

func (c *MemQuotesCacheAccessor) GetQuotes(day date.Date) ([]SymbolQuote, error) {
	quotes, ok := c.QuotesByDay[day.String()]
	if !ok {
		return nil, fmt.Errorf("%w for %s", errNoCachedQuotes, day)
	}
	return quotes, nil
}

// CsvQuotesCacheAccessor keeps one csv file of quotes per day in Dir.
type CsvQuotesCacheAccessor struct {
	Dir string
}

func (c *CsvQuotesCacheAccessor) fileName(day date.Date) string {
	return filepath.Join(c.Dir, fmt.Sprintf("quotes-%s.csv", day))
}

func (c *CsvQuotesCacheAccessor) WriteQuotes(day date.Date, quotes []SymbolQuote) (err error) {
	if err = os.MkdirAll(c.Dir, 0700); err != nil {
		return err
	}
	file, err := os.OpenFile(c.fileName(day), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer func() {
		cerr := file.Close()
		if err == nil {
			err = cerr
		}
	}()
	return WriteQuotesCsv(file, quotes)
}

func (c *CsvQuotesCacheAccessor) GetQuotes(day date.Date) ([]SymbolQuote, error) {
	file, err := os.Open(c.fileName(day))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w for %s", errNoCachedQuotes, day)
		}
		return nil, err
	}
	defer file.Close()
	return ReadQuotesCsv(file)
}

// WriteQuotesCsv writes rows of symbol, rate, change, change pct.
func WriteQuotesCsv(w io.Writer, quotes []SymbolQuote) error {
	csvW := csv.NewWriter(w)
	for _, q := range quotes {
		row := []string{q.Symbol, q.Rate.String(), q.Change.String(), q.ChangePct.String()}
		if err := csvW.Write(row); err != nil {
			return err
		}
	}
	csvW.Flush()
	return csvW.Error()
}

type decimalField struct {
	dst  *decimal.Decimal
	name string
}

// ReadQuotesCsv reads rows written by WriteQuotesCsv. The change columns may
// be omitted.
func ReadQuotesCsv(r io.Reader) ([]SymbolQuote, error) {
	csvR := csv.NewReader(r)
	csvR.FieldsPerRecord = -1
	csvR.TrimLeadingSpace = true
	records, err := csvR.ReadAll()
	if err != nil {
		return nil, err
	}

	quotes := make([]SymbolQuote, 0, len(records))
	for i, record := range records {
		if len(record) < 2 || len(record) > 4 {
			return nil, fmt.Errorf("Invalid quote at line %d: expected 2 to 4 fields", i+1)
		}
		q := SymbolQuote{Symbol: record[0]}
		vals := []*decimalField{{&q.Rate, "rate"}, {&q.Change, "change"}, {&q.ChangePct, "change pct"}}
		for j, col := range record[1:] {
			d, err := portfolio.ParseAmount(col)
			if err != nil {
				return nil, fmt.Errorf("Invalid %s at line %d: %w", vals[j].name, i+1, err)
			}
			*vals[j].dst = d
		}
		quotes = append(quotes, q)
	}
	return quotes, nil
}

// FileQuoteLoader serves quotes from a static csv file, for offline runs.
type FileQuoteLoader struct {
	Path string
}

func (l *FileQuoteLoader) GetRemoteQuotes(ctx context.Context, symbols []string) ([]SymbolQuote, error) {
	file, err := os.Open(l.Path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	quotes, err := ReadQuotesCsv(file)
	if err != nil {
		return nil, fmt.Errorf("Error reading quotes file %s: %w", filepath.Base(l.Path), err)
	}
	return quotes, nil
}
