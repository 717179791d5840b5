package portfolio

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/Rhymond/go-money"
	tw "github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"

	decimal_opt "github.com/scriptrack/scriptrack/decimal_value"
	"github.com/scriptrack/scriptrack/util"
)

const (
	ZeroCell        = "_._"
	UnavailableCell = "-"
)

type RenderOptions struct {
	Currency     string
	FullDecimals bool
	// One of the SortKey* constants. Unknown keys sort by security.
	SortKey string
	Reverse bool
	// Put securities which are no longer held after the held ones.
	BlankAtEnd bool
}

func DefaultRenderOptions() RenderOptions {
	return RenderOptions{Currency: money.INR, SortKey: SortKeySecurity, BlankAtEnd: true}
}

type _PrintHelper struct {
	PrintAllDecimals bool
	Currency         string
}

func newPrintHelper(opts RenderOptions) _PrintHelper {
	return _PrintHelper{PrintAllDecimals: opts.FullDecimals, Currency: opts.Currency}
}

func (h _PrintHelper) CurrStr(val decimal.Decimal) string {
	if h.PrintAllDecimals {
		return val.String()
	}
	return val.StringFixed(2)
}

// MoneyStr formats val in the configured currency, eg. ₹1,234.50.
func (h _PrintHelper) MoneyStr(val decimal.Decimal) string {
	cur := money.GetCurrency(h.Currency)
	if h.PrintAllDecimals || cur == nil {
		return h.CurrStr(val)
	}
	factor := decimal.New(1, int32(cur.Fraction))
	minor := val.Round(int32(cur.Fraction)).Mul(factor).IntPart()
	return money.New(minor, cur.Code).Display()
}

// Cell renders a value for a table cell. Zero is rendered as ZeroCell and
// null as UnavailableCell.
func (h _PrintHelper) Cell(val decimal_opt.DecimalOpt) string {
	if val.IsNull {
		return UnavailableCell
	}
	if val.IsZero() {
		return ZeroCell
	}
	return h.MoneyStr(val.Decimal)
}

func (h _PrintHelper) PctStr(val decimal_opt.DecimalOpt) string {
	if val.IsNull {
		return UnavailableCell
	}
	return val.Decimal.StringFixed(2) + "%"
}

func (h _PrintHelper) CellWithPct(val decimal_opt.DecimalOpt, pct decimal_opt.DecimalOpt) string {
	if val.IsNull || val.IsZero() {
		return h.Cell(val)
	}
	return fmt.Sprintf("%s (%s)", h.MoneyStr(val.Decimal), h.PctStr(pct))
}

func (h _PrintHelper) PlusMinus(val decimal.Decimal) string {
	if val.IsPositive() {
		return "+" + h.MoneyStr(val)
	}
	return h.MoneyStr(val)
}

func strOrDash(useStr bool, str string) string {
	if useStr {
		return str
	}
	return "-"
}

type RenderTable struct {
	Header []string
	Rows   [][]string
	Footer []string
	Notes  []string
	Errors []error
}

const (
	SortKeySecurity  = "security"
	SortKeyQuantity  = "quantity"
	SortKeyBuyValue  = "buy_value"
	SortKeyNewValue  = "new_value"
	SortKeyProfit    = "profit"
	SortKeyProfitPct = "profit_pct"
	SortKeyCleared   = "cleared"
	SortKeyIntraday  = "intraday"
	SortKeyDividend  = "dividend"
)

var sortKeyFuncs = map[string]func(e *PortfolioEntry) decimal.Decimal{
	SortKeyQuantity:  func(e *PortfolioEntry) decimal.Decimal { return e.LongQuantity.Sub(e.ShortQuantity) },
	SortKeyBuyValue:  func(e *PortfolioEntry) decimal.Decimal { return e.LongCostValue },
	SortKeyNewValue:  func(e *PortfolioEntry) decimal.Decimal { return e.CurrentValue.OrZero() },
	SortKeyProfit:    func(e *PortfolioEntry) decimal.Decimal { return e.ProfitLoss.OrZero() },
	SortKeyProfitPct: func(e *PortfolioEntry) decimal.Decimal { return e.ProfitLossPct.OrZero() },
	SortKeyCleared:   func(e *PortfolioEntry) decimal.Decimal { return e.Cleared },
	SortKeyIntraday:  func(e *PortfolioEntry) decimal.Decimal { return e.IntradayCleared },
	SortKeyDividend:  func(e *PortfolioEntry) decimal.Decimal { return e.Dividend.OrZero() },
}

func SortKeys() []string {
	return append([]string{SortKeySecurity}, util.SortedKeys(sortKeyFuncs)...)
}

// SortEntries returns a sorted copy of entries.
func SortEntries(entries []*PortfolioEntry, opts RenderOptions) []*PortfolioEntry {
	sorted := make([]*PortfolioEntry, len(entries))
	copy(sorted, entries)

	keyFn, byKey := sortKeyFuncs[opts.SortKey]
	less := func(a, b *PortfolioEntry) bool {
		if byKey {
			ka, kb := keyFn(a), keyFn(b)
			if !ka.Equal(kb) {
				return ka.LessThan(kb) != opts.Reverse
			}
			return a.Title < b.Title
		}
		return (a.Title < b.Title) != opts.Reverse
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if opts.BlankAtEnd {
			aHeld := a.IsLong() || a.IsShort()
			bHeld := b.IsLong() || b.IsShort()
			if aHeld != bHeld {
				return aHeld
			}
		}
		return less(a, b)
	})
	return sorted
}

func quantityStr(p *Position) string {
	switch {
	case p.IsLong():
		return p.LongQuantity.String()
	case p.IsShort():
		return "-" + p.ShortQuantity.String()
	}
	return ZeroCell
}

func RenderPortfolioTable(val *Valuation, opts RenderOptions) *RenderTable {
	table := &RenderTable{}
	table.Header = []string{"Security", "Quantity", "Buy Value", "Rate", "New Rate",
		"Rate Change", "New Value", "Profit/Loss", "Cleared", "Intraday", "Dividend"}

	ph := newPrintHelper(opts)

	for _, e := range SortEntries(val.Entries, opts) {
		buyValue, rate := e.LongCostValue, e.AverageRate
		if e.IsShort() {
			buyValue, rate = e.ShortValue, e.ShortRate
		}
		rateChange := UnavailableCell
		if !e.MarketChange.IsNull {
			rateChange = ph.CellWithPct(e.MarketChange, e.MarketChangePct)
		}
		row := []string{
			e.Title,
			quantityStr(&e.Position),
			ph.Cell(decimal_opt.New(buyValue)),
			ph.Cell(decimal_opt.New(rate)),
			ph.Cell(e.MarketRate),
			rateChange,
			ph.Cell(e.CurrentValue),
			ph.CellWithPct(e.ProfitLoss, e.ProfitLossPct),
			ph.CellWithPct(decimal_opt.New(e.Cleared), decimal_opt.New(e.ClearedPct)),
			ph.CellWithPct(decimal_opt.New(e.IntradayCleared), decimal_opt.New(e.IntradayClearedPct)),
			ph.Cell(e.Dividend),
		}
		table.Rows = append(table.Rows, row)
	}

	r := &val.Report
	profit := r.UnrealizedProfit.Add(r.ExitLoad)
	table.Footer = []string{"Total", "",
		ph.Cell(decimal_opt.New(r.TotalInvestment)), "", "", "",
		ph.Cell(decimal_opt.New(r.CurrentValue)),
		ph.Cell(decimal_opt.New(profit)),
		ph.Cell(decimal_opt.New(r.GrossCleared)),
		ph.Cell(decimal_opt.New(r.IntradayCleared)),
		ph.Cell(decimal_opt.New(r.Dividend)),
	}

	for _, w := range r.Warnings {
		table.Notes = append(table.Notes, "[!] "+w)
	}
	return table
}

type reportLine struct {
	Label string
	Value func(r *Report) decimal.Decimal
	Pct   func(r *Report) decimal_opt.DecimalOpt
}

var reportLines = []reportLine{
	{"A. TOTAL INVESTMENT", func(r *Report) decimal.Decimal { return r.TotalInvestment }, nil},
	{"B. CURRENT VALUE", func(r *Report) decimal.Decimal { return r.CurrentValue }, nil},
	{"C. CHARGES (ACTUAL)", func(r *Report) decimal.Decimal { return r.Charges }, nil},
	{"C1. ANNUAL CHARGES", func(r *Report) decimal.Decimal { return r.MaintenanceCharge }, nil},
	{"C2. LATE PAYMENT CHARGES", func(r *Report) decimal.Decimal { return r.LateCharges }, nil},
	{"C3. CHARGES REFUND", func(r *Report) decimal.Decimal { return r.ChargesReversed }, nil},
	{"C4. SERVICE TAX", func(r *Report) decimal.Decimal { return r.ServiceTax }, nil},
	{"D. EXIT LOAD (APPROX)", func(r *Report) decimal.Decimal { return r.ExitLoad }, nil},
	{"E. PROFIT/LOSS [- EXIT LOAD]", func(r *Report) decimal.Decimal { return r.UnrealizedProfit },
		func(r *Report) decimal_opt.DecimalOpt { return r.ProfitPct }},
	{"F. CLEARED [- CHARGES]", func(r *Report) decimal.Decimal { return r.Cleared }, nil},
	{"G. INTRADAY", func(r *Report) decimal.Decimal { return r.IntradayCleared }, nil},
	{"H. PREVIOUS BALANCE", func(r *Report) decimal.Decimal { return r.PreviousBalance }, nil},
	{"I. DIVIDEND", func(r *Report) decimal.Decimal { return r.Dividend }, nil},
	{"J. CAPITAL GAIN TAX (APPROX)", func(r *Report) decimal.Decimal { return r.CapitalGainTax }, nil},
	{"K. BALANCE (F + G + H + I - J)", func(r *Report) decimal.Decimal { return r.Balance }, nil},
	{"L. TOTAL TRADE VOLUME", func(r *Report) decimal.Decimal { return r.TotalTradeVolume }, nil},
	{"M. TOTAL BROKERAGE", func(r *Report) decimal.Decimal { return r.TotalBrokerage }, nil},
	{"N. TOTAL IPO", func(r *Report) decimal.Decimal { return r.IPOInvestment }, nil},
	{"O. TOTAL FUNDS TRANSFERRED", func(r *Report) decimal.Decimal { return r.TotalFundsTransferred }, nil},
	{"P. SO WHAT IS THE VERDICT??", func(r *Report) decimal.Decimal { return r.Verdict },
		func(r *Report) decimal_opt.DecimalOpt { return r.VerdictPct }},
}

/*
Generates a RenderTable that will render out to this:
| Item                 | Value             | Change    |
+----------------------+-------------------+-----------+
| A. TOTAL INVESTMENT  | ₹xx,xxx.xx        | +₹xxx.xx  |
| ...                  |                   |           |
| P. SO WHAT IS ...    | ₹x,xxx.xx (x.xx%) |           |

prev is the report of the previous run, and may be nil.
*/
func RenderReportTable(report *Report, prev *Report, opts RenderOptions) *RenderTable {
	table := &RenderTable{}
	table.Header = []string{"Item", "Value", "Change"}

	ph := newPrintHelper(opts)

	for _, line := range reportLines {
		val := line.Value(report)
		valStr := ph.MoneyStr(val)
		if line.Pct != nil {
			valStr = fmt.Sprintf("%s (%s)", valStr, ph.PctStr(line.Pct(report)))
		}
		change := ""
		if prev != nil {
			if diff := val.Sub(line.Value(prev)); !diff.IsZero() {
				change = ph.PlusMinus(diff)
			}
		}
		table.Rows = append(table.Rows, []string{line.Label, valStr, change})
	}

	if len(report.Recommendations) > 0 {
		table.Notes = append(table.Notes, "RECOMMENDATIONS:")
		for _, rec := range report.Recommendations {
			table.Notes = append(table.Notes, " "+rec.String())
		}
	}
	for _, w := range report.Warnings {
		table.Notes = append(table.Notes, "[!] "+w)
	}
	return table
}

func RenderTxTableModel(deltas []*TxDelta, gains *CumulativeGains, opts RenderOptions) *RenderTable {
	table := &RenderTable{}
	table.Header = []string{"Security", "Trade Date", "Time", "TX", "Quantity", "Gross Total",
		"Rate", "Brokerage", "Realized", "Long", "Short", "Avg. Rate", "Notes",
	}

	ph := newPrintHelper(opts)

	for _, d := range deltas {
		tx := d.Tx
		post := &d.PostPosition
		txStr := tx.Action.String() + util.Tern(tx.Intraday, "\n(intraday)", "")
		row := []string{tx.Security, tx.TradeDate.String(), tx.TradeTime.String(), txStr,
			tx.Quantity.String(),
			ph.MoneyStr(tx.GrossTotal),
			ph.MoneyStr(tx.Rate()),
			strOrDash(!tx.Brokerage.IsZero(), ph.MoneyStr(tx.Brokerage.Mul(tx.Quantity))),
			strOrDash(!d.Realized.IsZero(), ph.PlusMinus(d.Realized)),
			post.LongQuantity.String(),
			post.ShortQuantity.String(),
			strOrDash(post.IsLong(), ph.MoneyStr(post.AverageRate)),
			tx.Notes,
		}
		table.Rows = append(table.Rows, row)
	}

	// Footer
	years := gains.GainsYearTotalsKeysSorted()
	yearStrs := []string{}
	yearValsStrs := []string{}
	for _, year := range years {
		yearStrs = append(yearStrs, fmt.Sprintf("%d", year))
		yearValsStrs = append(yearValsStrs, ph.PlusMinus(gains.GainsYearTotals[year]))
	}
	totalFooterLabel := "Total"
	totalFooterValsStr := ph.PlusMinus(gains.GainsTotal)
	if len(years) > 0 {
		totalFooterLabel += "\n" + strings.Join(yearStrs, "\n")
		totalFooterValsStr += "\n" + strings.Join(yearValsStrs, "\n")
	}

	table.Footer = []string{"", "", "", "", "", "", "",
		totalFooterLabel, totalFooterValsStr, "", "", "", ""}

	return table
}

/*
Generates a RenderTable that will render out to this:
| Year             | Realized Gains |
+------------------+----------------+
| 2000             | xxxx.xx        |
| 2001             | xxxx.xx        |
| Since inception  | xxxx.xx        |
*/
func RenderAggregateGains(gains *CumulativeGains, opts RenderOptions) *RenderTable {
	table := &RenderTable{}
	table.Header = []string{"Year", "Realized Gains"}

	ph := newPrintHelper(opts)

	years := gains.GainsYearTotalsKeysSorted()
	for _, year := range years {
		table.Rows = append(
			table.Rows,
			[]string{fmt.Sprintf("%d", year), ph.PlusMinus(gains.GainsYearTotals[year])})
	}
	table.Rows = append(
		table.Rows,
		[]string{"Since inception", ph.PlusMinus(gains.GainsTotal)})

	return table
}

func PrintRenderTable(title string, tableModel *RenderTable, writer io.Writer) {
	for _, err := range tableModel.Errors {
		fmt.Fprintf(writer, "[!] %v. Printing parsed information state:\n", err)
	}
	fmt.Fprintf(writer, "%s\n", title)

	table := tw.NewWriter(writer)
	table.SetHeader(tableModel.Header)
	table.SetBorder(false)
	table.SetRowLine(true)

	for _, row := range tableModel.Rows {
		table.Append(row)
	}

	if len(tableModel.Footer) > 0 {
		table.SetFooter(tableModel.Footer)
	}

	table.Render()

	for _, note := range tableModel.Notes {
		fmt.Fprintln(writer, note)
	}
}
