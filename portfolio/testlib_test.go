package portfolio

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/scriptrack/scriptrack/date"
	decimal_opt "github.com/scriptrack/scriptrack/decimal_value"
)

var DInt = decimal.NewFromInt
var DStr = decimal.RequireFromString

const DefaultTestSecurity string = "FOO"

func mkDateYD(year uint32, day int) date.Date {
	tm := date.New(year, time.January, 1)
	return tm.AddDays(day)
}

func mkDate(day int) date.Date {
	return mkDateYD(2017, day)
}

// Test Tx
type TTx struct {
	Sec      string
	TDay     int       // An abitrarily offset day. Convenience for TDate
	TDate    date.Date // Used when TDay is 0
	Time     string
	Act      TxAction
	Qty      decimal.Decimal
	Total    decimal.Decimal
	Brok     decimal.Decimal
	Intraday bool
	Notes    string
	RI       uint32
}

// eXpand to full type.
func (t TTx) X() *Tx {
	tradeDate := t.TDate
	if t.TDay != 0 || tradeDate.IsZero() {
		tradeDate = mkDate(t.TDay)
	}
	tod, err := date.ParseTimeOfDay(t.Time)
	if err != nil {
		panic(err)
	}
	sec := t.Sec
	if sec == "" {
		sec = DefaultTestSecurity
	}
	return &Tx{
		Security:   sec,
		TradeDate:  tradeDate,
		TradeTime:  tod,
		Action:     t.Act,
		Quantity:   t.Qty,
		GrossTotal: t.Total,
		Brokerage:  t.Brok,
		Intraday:   t.Intraday,
		Notes:      t.Notes,
		ReadIndex:  t.RI,
	}
}

func xTxs(ttxs ...TTx) []*Tx {
	txs := make([]*Tx, 0, len(ttxs))
	for i, t := range ttxs {
		if t.RI == 0 {
			t.RI = uint32(i)
		}
		txs = append(txs, t.X())
	}
	return txs
}

// Test Position. Unset fields are expected to be zero.
type TPos struct {
	Long, LongCost, AvgRate      decimal.Decimal
	Short, ShortValue, ShortRate decimal.Decimal
	RealBuy, RealSell            decimal.Decimal
	IntraBuy, IntraSell          decimal.Decimal
}

func requireDecEq(t *testing.T, exp, act decimal.Decimal, field string) {
	t.Helper()
	require.Truef(t, exp.Equal(act), "%s: expected %s, got %s", field, exp, act)
}

func requirePos(t *testing.T, exp TPos, p *Position) {
	t.Helper()
	require.NotNil(t, p)
	requireDecEq(t, exp.Long, p.LongQuantity, "LongQuantity")
	requireDecEq(t, exp.LongCost, p.LongCostValue, "LongCostValue")
	requireDecEq(t, exp.AvgRate, p.AverageRate, "AverageRate")
	requireDecEq(t, exp.Short, p.ShortQuantity, "ShortQuantity")
	requireDecEq(t, exp.ShortValue, p.ShortValue, "ShortValue")
	requireDecEq(t, exp.ShortRate, p.ShortRate, "ShortRate")
	requireDecEq(t, exp.RealBuy, p.RealizedBuyValue, "RealizedBuyValue")
	requireDecEq(t, exp.RealSell, p.RealizedSellValue, "RealizedSellValue")
	requireDecEq(t, exp.IntraBuy, p.IntradayBuyValue, "IntradayBuyValue")
	requireDecEq(t, exp.IntraSell, p.IntradaySellValue, "IntradaySellValue")
}

func reduceOk(t *testing.T, txs []*Tx) *Book {
	t.Helper()
	book, err := Reduce(txs, nil, MiscAccount{})
	require.Nil(t, err)
	return book
}

// Compares decimals by value, so 1.0 and 1 are the same.
var decimalComparer = cmp.Comparer(func(a, b decimal.Decimal) bool {
	return a.Equal(b)
})

var dateComparer = cmp.Comparer(func(a, b date.Date) bool {
	return a.Equal(b)
})

var timeOfDayComparer = cmp.Comparer(func(a, b date.TimeOfDay) bool {
	return a.Compare(b) == 0
})

type CustomRequire struct {
	*require.Assertions
	t *testing.T
}

func NewCustomRequire(t *testing.T) *CustomRequire {
	return &CustomRequire{require.New(t), t}
}

func (rq *CustomRequire) CmpEqual(exp, act interface{}, opts ...cmp.Option) {
	rq.t.Helper()
	opts = append(opts, decimalComparer, dateComparer, timeOfDayComparer)
	if diff := cmp.Diff(exp, act, opts...); diff != "" {
		rq.FailNow(fmt.Sprintf("(-want +got):\n%s", diff))
	}
}

// Quote source backed by a map. Missing securities fail.
type mapQuotes map[string]decimal.Decimal

func (m mapQuotes) Quote(ctx context.Context, security string) (Quote, error) {
	rate, ok := m[security]
	if !ok {
		return Quote{}, fmt.Errorf("%w: %s", ErrQuoteUnavailable, security)
	}
	return Quote{Security: security, Rate: rate}, nil
}

type failingDividends struct{}

func (failingDividends) Dividend(security string) (decimal.Decimal, error) {
	return decimal.Zero, fmt.Errorf("dividend store offline")
}

var DOInt = decimal_opt.NewFromInt
var DONull = decimal_opt.Null
