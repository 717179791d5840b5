package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Column order of the broker's html ledger table.
var HTMLColumns = []string{"Date", "Voucher", "Bank Code", "Cheque", "Description", "Debit", "Credit", "Balance"}

const htmlTableSelector = "table#GenTableBy tr"

func cleanCell(s string) string {
	s = strings.Map(func(r rune) rune {
		if strings.ContainsRune("*[]~", r) || r > 127 {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

// ParseHTML reads the ledger table of a broker html statement. Rows without
// a full set of cells (headers, spacers) are skipped.
func ParseHTML(r io.Reader, name string) ([]*Entry, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("Failed to parse HTML %s: %w", name, err)
	}
	rows := doc.Find(htmlTableSelector)
	if rows.Length() == 0 {
		return nil, fmt.Errorf("No ledger table found in %s", name)
	}

	var entries []*Entry
	var rowErr error
	rows.EachWithBreak(func(i int, row *goquery.Selection) bool {
		cells := row.Find("td").Map(func(_ int, cell *goquery.Selection) string {
			return cleanCell(cell.Text())
		})
		if len(cells) < len(HTMLColumns)-1 {
			return true
		}
		raw := rawEntry{Date: cells[0], Description: cells[4], Debit: cells[5], Credit: cells[6]}
		if strings.EqualFold(raw.Description, "description") {
			return true
		}
		entry, err := newEntry(raw, name)
		if err != nil {
			rowErr = fmt.Errorf("Error parsing %s at row %d: %w", name, i+1, err)
			return false
		}
		if entry != nil {
			entries = append(entries, entry)
		}
		return true
	})
	if rowErr != nil {
		return nil, rowErr
	}
	return entries, nil
}

type colSetter func(string, *rawEntry)

var csvColMap = map[string]colSetter{
	"date":        func(s string, r *rawEntry) { r.Date = s },
	"description": func(s string, r *rawEntry) { r.Description = s },
	"debit":       func(s string, r *rawEntry) { r.Debit = s },
	"credit":      func(s string, r *rawEntry) { r.Credit = s },
}

// ParseCSV reads a ledger exported as csv with (at least) date, description,
// debit and credit columns.
func ParseCSV(r io.Reader, name string) ([]*Entry, error) {
	csvR := csv.NewReader(r)
	csvR.TrimLeadingSpace = true
	records, err := csvR.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("Failed to parse CSV %s: %w", name, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("No rows found in %s", name)
	}

	setters := make([]colSetter, len(records[0]))
	found := 0
	for i, col := range records[0] {
		if s, ok := csvColMap[strings.ToLower(strings.TrimSpace(col))]; ok {
			setters[i] = s
			found++
		}
	}
	if found < len(csvColMap) {
		return nil, fmt.Errorf("%s is missing ledger columns (need %s)", name,
			"date, description, debit, credit")
	}

	entries := make([]*Entry, 0, len(records)-1)
	for i, record := range records[1:] {
		raw := rawEntry{}
		for j, col := range record {
			if setters[j] != nil {
				setters[j](strings.TrimSpace(col), &raw)
			}
		}
		entry, err := newEntry(raw, name)
		if err != nil {
			return nil, fmt.Errorf("Error parsing %s at line %d: %w", name, i+2, err)
		}
		if entry != nil {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// ParseFile picks the parser by extension (.htm, .html or .csv).
func ParseFile(path string) ([]*Entry, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fp.Close()

	name := filepath.Base(path)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".htm", ".html":
		return ParseHTML(fp, name)
	case ".csv":
		return ParseCSV(fp, name)
	}
	return nil, fmt.Errorf("Unsupported ledger file %s", name)
}
