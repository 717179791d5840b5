// Package ledger reads the broker's account ledger, and totals it into the
// buckets the portfolio report needs.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/scriptrack/scriptrack/date"
	"github.com/scriptrack/scriptrack/portfolio"
)

var ErrUnknownCategory = errors.New("unknown ledger category")

type Category int

const (
	NoCategory Category = iota
	Buy
	Sell
	Transfer
	Withdrawal
	Maintenance
	Late
	Dividend
	ChargesReversed
	ServiceTax
)

var categoryNames = map[Category]string{
	Buy:             "Buy",
	Sell:            "Sell",
	Transfer:        "Transfer",
	Withdrawal:      "Withdrawal",
	Maintenance:     "Maintenance Charges",
	Late:            "Late Charges",
	Dividend:        "Dividend",
	ChargesReversed: "Charges Reversed",
	ServiceTax:      "Service Tax",
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "invalid"
}

func ParseCategory(s string) (Category, error) {
	for c, name := range categoryNames {
		if strings.EqualFold(name, s) {
			return c, nil
		}
	}
	return NoCategory, fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

func (c Category) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Category) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	cat, err := ParseCategory(s)
	if err != nil {
		return err
	}
	*c = cat
	return nil
}

// Description fragments, in match order. Reversals come first, since they
// also name the charge which was reversed.
var descriptionRules = []struct {
	Fragment string
	Category Category
}{
	{"reversed", ChargesReversed},
	{"refunded", ChargesReversed},
	{"to bill", Buy},
	{"by bill", Sell},
	{"direct credit", Transfer},
	{"bank payment", Withdrawal},
	{"amc", Maintenance},
	{"delayed", Late},
	{"dividend", Dividend},
	{"service tax", ServiceTax},
}

const openingBalance = "opening balance"

// Categorize maps a ledger description to its category. skip is true for
// rows which carry no movement (the opening balance).
func Categorize(description string) (cat Category, skip bool, err error) {
	lower := strings.ToLower(description)
	if strings.Contains(lower, openingBalance) {
		return NoCategory, true, nil
	}
	for _, rule := range descriptionRules {
		if strings.Contains(lower, rule.Fragment) {
			return rule.Category, false, nil
		}
	}
	return NoCategory, false, fmt.Errorf("%w: %q", ErrUnknownCategory, description)
}

type Entry struct {
	Date        date.Date       `json:"date"`
	Description string          `json:"description"`
	Category    Category        `json:"category"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Source      string          `json:"source,omitempty"`
}

// Amount is the entry's signed effect on the account: debits are positive.
func (e *Entry) Amount() decimal.Decimal {
	return e.Debit.Sub(e.Credit)
}

var DateFormats = []string{"2006-01-02", "02/01/2006", "02-01-2006", "02-Jan-2006", "02 Jan 2006"}

func parseDate(s string) (date.Date, error) {
	var firstErr error
	for _, f := range DateFormats {
		d, err := date.Parse(f, s)
		if err == nil {
			return d, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return date.Date{}, firstErr
}

// rawEntry is one ledger row, as text.
type rawEntry struct {
	Date, Description, Debit, Credit string
}

// newEntry returns nil (and no error) for rows which should be skipped.
func newEntry(raw rawEntry, source string) (*Entry, error) {
	cat, skip, err := Categorize(raw.Description)
	if err != nil || skip {
		return nil, err
	}
	d, err := parseDate(strings.TrimSpace(raw.Date))
	if err != nil {
		return nil, fmt.Errorf("invalid date %q", raw.Date)
	}
	debit, err := portfolio.ParseAmount(raw.Debit)
	if err != nil {
		return nil, fmt.Errorf("invalid debit %q", raw.Debit)
	}
	credit, err := portfolio.ParseAmount(raw.Credit)
	if err != nil {
		return nil, fmt.Errorf("invalid credit %q", raw.Credit)
	}
	return &Entry{
		Date:        d,
		Description: strings.TrimSpace(raw.Description),
		Category:    cat,
		Debit:       debit,
		Credit:      credit,
		Source:      source,
	}, nil
}

type Totals map[Category]decimal.Decimal

// Total sums debit - credit per category.
func Total(entries []*Entry) Totals {
	totals := make(Totals)
	for _, e := range entries {
		totals[e.Category] = totals[e.Category].Add(e.Amount())
	}
	return totals
}

func (t Totals) Get(c Category) decimal.Decimal {
	if v, ok := t[c]; ok {
		return v
	}
	return decimal.Zero
}

// PortfolioTotals converts ledger totals to the report's buckets. Transfers
// in are credits, so funds transferred is their negation.
func (t Totals) PortfolioTotals() portfolio.LedgerTotals {
	return portfolio.LedgerTotals{
		FundsTransferred: t.Get(Transfer).Neg().Sub(t.Get(Withdrawal)),
		Maintenance:      t.Get(Maintenance),
		Late:             t.Get(Late),
		Reversed:         t.Get(ChargesReversed).Neg(),
		ServiceTax:       t.Get(ServiceTax),
	}
}
