package portfolio

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/scriptrack/scriptrack/util"
)

type CumulativeGains struct {
	GainsTotal      decimal.Decimal
	GainsYearTotals map[int]decimal.Decimal
}

func (g *CumulativeGains) GainsYearTotalsKeysSorted() []int {
	years := util.MapKeys(g.GainsYearTotals)
	sort.Ints(years)
	return years
}

func CalcSecurityCumulativeGains(deltas []*TxDelta) *CumulativeGains {
	gainsTotal := decimal.Zero
	gainsYearTotals := map[int]decimal.Decimal{}

	for _, d := range deltas {
		if d.Realized.IsZero() {
			continue
		}
		gainsTotal = gainsTotal.Add(d.Realized)
		year := d.Tx.TradeDate.Year()
		gainsYearTotals[year] = gainsYearTotals[year].Add(d.Realized)
	}

	return &CumulativeGains{gainsTotal, gainsYearTotals}
}

func CalcCumulativeGains(secGains map[string]*CumulativeGains) *CumulativeGains {
	gainsTotal := decimal.Zero
	gainsYearTotals := map[int]decimal.Decimal{}

	for _, gains := range secGains {
		gainsTotal = gainsTotal.Add(gains.GainsTotal)
		for year, yearGains := range gains.GainsYearTotals {
			gainsYearTotals[year] = gainsYearTotals[year].Add(yearGains)
		}
	}

	return &CumulativeGains{gainsTotal, gainsYearTotals}
}

// CalcBookCumulativeGains returns the gains of every security in the book,
// and their aggregate.
func CalcBookCumulativeGains(book *Book) (map[string]*CumulativeGains, *CumulativeGains) {
	secGains := make(map[string]*CumulativeGains, len(book.Deltas))
	for sec, deltas := range book.Deltas {
		secGains[sec] = CalcSecurityCumulativeGains(deltas)
	}
	return secGains, CalcCumulativeGains(secGains)
}
