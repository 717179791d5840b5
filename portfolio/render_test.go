package portfolio

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleValuation(t *testing.T) *Valuation {
	val, err := Value(context.Background(), sampleBook(t),
		mapQuotes{"A": DInt(12)}, sampleDividends(), sampleLedger, DefaultPolicy())
	require.Nil(t, err)
	return val
}

func TestMoneyStr(t *testing.T) {
	rq := require.New(t)

	ph := newPrintHelper(DefaultRenderOptions())
	rq.Contains(ph.MoneyStr(DStr("1234.505")), "1,234.51")
	rq.Contains(ph.MoneyStr(DStr("-1234.5")), "-")
	rq.Contains(ph.PlusMinus(DInt(5)), "+")
	rq.Equal(ZeroCell, ph.Cell(DOInt(0)))
	rq.Equal(UnavailableCell, ph.PctStr(DONull))

	ph = newPrintHelper(RenderOptions{FullDecimals: true})
	rq.Equal("1234.505", ph.MoneyStr(DStr("1234.505")))

	ph = newPrintHelper(RenderOptions{Currency: "NOPE"})
	rq.Equal("1234.50", ph.MoneyStr(DStr("1234.5")))
}

func TestRenderPortfolioTable(t *testing.T) {
	rq := require.New(t)

	table := RenderPortfolioTable(sampleValuation(t), DefaultRenderOptions())
	rq.Len(table.Header, 11)
	rq.Len(table.Rows, 4)

	// Held securities first.
	titles := []string{}
	for _, row := range table.Rows {
		titles = append(titles, row[0])
	}
	rq.Equal([]string{"A", "C", "B", "D"}, titles)

	a := table.Rows[0]
	rq.Equal("100", a[1])
	rq.Contains(a[2], "1,000.00")
	rq.Contains(a[6], "1,200.00")
	rq.Contains(a[7], "(20.00%)")

	c := table.Rows[1]
	rq.Equal(UnavailableCell, c[4])
	rq.Equal(UnavailableCell, c[6])
	rq.Equal(UnavailableCell, c[7])

	b := table.Rows[2]
	rq.Equal(ZeroCell, b[1])
	rq.Equal(ZeroCell, b[2])
	rq.Contains(b[8], "(20.00%)")

	rq.Len(table.Footer, 11)
	rq.Len(table.Notes, 1)
}

func TestSortEntries(t *testing.T) {
	rq := require.New(t)
	val := sampleValuation(t)

	titlesOf := func(entries []*PortfolioEntry) []string {
		titles := []string{}
		for _, e := range entries {
			titles = append(titles, e.Title)
		}
		return titles
	}

	opts := RenderOptions{SortKey: SortKeySecurity, Reverse: true}
	rq.Equal([]string{"D", "C", "B", "A"}, titlesOf(SortEntries(val.Entries, opts)))

	opts = RenderOptions{SortKey: SortKeyBuyValue, Reverse: true}
	rq.Equal([]string{"A", "C", "B", "D"}, titlesOf(SortEntries(val.Entries, opts)))

	opts = RenderOptions{SortKey: SortKeyCleared, BlankAtEnd: true}
	rq.Equal([]string{"A", "C", "D", "B"}, titlesOf(SortEntries(val.Entries, opts)))

	// The input is not reordered.
	rq.Equal([]string{"A", "B", "C", "D"}, titlesOf(val.Entries))
	rq.Contains(SortKeys(), SortKeyProfitPct)
}

func TestRenderReportTable(t *testing.T) {
	rq := require.New(t)
	val := sampleValuation(t)

	prev := val.Report
	prev.Verdict = DStr("91.8")

	table := RenderReportTable(&val.Report, &prev, DefaultRenderOptions())
	rq.Len(table.Rows, 20)
	rq.Equal("A. TOTAL INVESTMENT", table.Rows[0][0])
	rq.Contains(table.Rows[0][1], "1,500.00")
	rq.Equal("", table.Rows[0][2])

	verdict := table.Rows[19]
	rq.Equal("P. SO WHAT IS THE VERDICT??", verdict[0])
	rq.Contains(verdict[1], "(5.84%)")
	rq.Contains(verdict[2], "+")
	rq.Contains(verdict[2], "200.00")

	rq.Equal([]string{"RECOMMENDATIONS:", " Sell A at 10.58.", "[!] C: market rate unavailable; excluded from current value"},
		table.Notes)

	noPrev := RenderReportTable(&val.Report, nil, DefaultRenderOptions())
	rq.Equal("", noPrev.Rows[19][2])
}

func TestRenderTxTableAndGains(t *testing.T) {
	rq := require.New(t)
	book := sampleBook(t)
	secGains, total := CalcBookCumulativeGains(book)

	table := RenderTxTableModel(book.Deltas["D"], secGains["D"], DefaultRenderOptions())
	rq.Len(table.Rows, 2)
	rq.Equal("Buy\n(intraday)", table.Rows[0][3])
	rq.Contains(table.Rows[1][8], "+")
	rq.Len(table.Footer, len(table.Header))
	rq.Contains(table.Footer[7], "2017")

	agg := RenderAggregateGains(total, RenderOptions{FullDecimals: true})
	rq.Equal([][]string{{"2017", "+130"}, {"Since inception", "+130"}}, agg.Rows)

	var buf bytes.Buffer
	PrintRenderTable("Aggregate Gains", agg, &buf)
	rq.Contains(buf.String(), "Aggregate Gains\n")
	rq.Contains(buf.String(), "Since inception")
	rq.Contains(buf.String(), "REALIZED GAINS")
}
