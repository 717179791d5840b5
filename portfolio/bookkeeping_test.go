package portfolio

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestWeightedAverage(t *testing.T) {
	book := reduceOk(t, xTxs(
		TTx{TDay: 1, Act: BUY, Qty: DInt(100), Total: DInt(1000)},
		TTx{TDay: 2, Act: BUY, Qty: DInt(50), Total: DInt(650)},
	))
	requirePos(t, TPos{Long: DInt(150), LongCost: DInt(1650), AvgRate: DInt(11)},
		book.Positions[DefaultTestSecurity])
}

func TestPartialSellConservesCost(t *testing.T) {
	rq := require.New(t)
	book := reduceOk(t, xTxs(
		TTx{TDay: 1, Act: BUY, Qty: DInt(100), Total: DInt(1000)},
		TTx{TDay: 2, Act: SELL, Qty: DInt(40), Total: DInt(480)},
	))
	p := book.Positions[DefaultTestSecurity]
	requirePos(t, TPos{Long: DInt(60), LongCost: DInt(600), AvgRate: DInt(10),
		RealBuy: DInt(400), RealSell: DInt(480)}, p)
	requireDecEq(t, DInt(1000), p.RealizedBuyValue.Add(p.LongCostValue), "conserved cost")
	requireDecEq(t, DInt(80), p.Cleared, "Cleared")
	requireDecEq(t, DInt(20), p.ClearedPct, "ClearedPct")

	deltas := book.Deltas[DefaultTestSecurity]
	rq.Len(deltas, 2)
	requireDecEq(t, decimal.Zero, deltas[0].Realized, "first realized")
	requireDecEq(t, DInt(80), deltas[1].Realized, "second realized")
	requireDecEq(t, DInt(100), deltas[1].PrePosition.LongQuantity, "pre long")
}

func TestFullLongRoundTrip(t *testing.T) {
	book := reduceOk(t, xTxs(
		TTx{TDay: 1, Act: BUY, Qty: DInt(100), Total: DInt(1000)},
		TTx{TDay: 2, Act: SELL, Qty: DInt(100), Total: DInt(1200)},
	))
	p := book.Positions[DefaultTestSecurity]
	requirePos(t, TPos{RealBuy: DInt(1000), RealSell: DInt(1200)}, p)
	requireDecEq(t, DInt(200), p.Cleared, "Cleared")
}

func TestShortRoundTrip(t *testing.T) {
	book := reduceOk(t, xTxs(
		TTx{TDay: 1, Act: SELL, Qty: DInt(50), Total: DInt(1000)},
		TTx{TDay: 2, Act: BUY, Qty: DInt(50), Total: DInt(900)},
	))
	p := book.Positions[DefaultTestSecurity]
	requirePos(t, TPos{RealBuy: DInt(900), RealSell: DInt(1000)}, p)
	requireDecEq(t, DInt(100), p.Cleared, "Cleared")
	requireDecEq(t, DInt(100).Div(DInt(900)).Mul(DInt(100)), p.ClearedPct, "ClearedPct")
}

func TestOpenShort(t *testing.T) {
	book := reduceOk(t, xTxs(
		TTx{TDay: 1, Act: SELL, Qty: DInt(20), Total: DInt(300)},
		TTx{TDay: 2, Act: SELL, Qty: DInt(10), Total: DInt(120)},
	))
	// Still open, so kept despite nothing being realized.
	requirePos(t, TPos{Short: DInt(30), ShortValue: DInt(420), ShortRate: DInt(14)},
		book.Positions[DefaultTestSecurity])
}

func TestPartialCover(t *testing.T) {
	book := reduceOk(t, xTxs(
		TTx{TDay: 1, Act: SELL, Qty: DInt(80), Total: DInt(1200)},
		TTx{TDay: 2, Act: BUY, Qty: DInt(50), Total: DInt(700)},
	))
	requirePos(t, TPos{Short: DInt(30), ShortValue: DInt(450), ShortRate: DInt(15),
		RealBuy: DInt(700), RealSell: DInt(750)},
		book.Positions[DefaultTestSecurity])
}

func TestLongToShortFlip(t *testing.T) {
	book := reduceOk(t, xTxs(
		TTx{TDay: 1, Act: BUY, Qty: DInt(40), Total: DInt(400)},
		TTx{TDay: 2, Act: SELL, Qty: DInt(60), Total: DInt(720)},
	))
	p := book.Positions[DefaultTestSecurity]
	requirePos(t, TPos{Short: DInt(20), ShortValue: DInt(240), ShortRate: DInt(12),
		RealBuy: DInt(400), RealSell: DInt(480)}, p)
	requireDecEq(t, DInt(80), p.Cleared, "Cleared")
}

func TestShortToLongFlip(t *testing.T) {
	book := reduceOk(t, xTxs(
		TTx{TDay: 1, Act: SELL, Qty: DInt(20), Total: DInt(240)},
		TTx{TDay: 2, Act: BUY, Qty: DInt(50), Total: DInt(600)},
	))
	requirePos(t, TPos{Long: DInt(30), LongCost: DInt(360), AvgRate: DInt(12),
		RealBuy: DInt(240), RealSell: DInt(240)},
		book.Positions[DefaultTestSecurity])
}

func TestIntradayIsolation(t *testing.T) {
	book := reduceOk(t, xTxs(
		TTx{TDay: 1, Time: "09:30", Act: BUY, Qty: DInt(5), Total: DInt(50)},
		TTx{TDay: 2, Time: "10:00", Act: BUY, Qty: DInt(10), Total: DInt(100), Intraday: true},
		TTx{TDay: 2, Time: "14:00", Act: SELL, Qty: DInt(10), Total: DInt(110), Intraday: true},
	))
	p := book.Positions[DefaultTestSecurity]
	requirePos(t, TPos{Long: DInt(5), LongCost: DInt(50), AvgRate: DInt(10),
		IntraBuy: DInt(100), IntraSell: DInt(110)}, p)
	requireDecEq(t, decimal.Zero, p.Cleared, "Cleared")
	requireDecEq(t, DInt(10), p.IntradayCleared, "IntradayCleared")
	requireDecEq(t, DInt(10), p.IntradayClearedPct, "IntradayClearedPct")
	requireDecEq(t, DInt(260), p.TotalTradeVolume, "TotalTradeVolume")

	deltas := book.Deltas[DefaultTestSecurity]
	requireDecEq(t, DInt(-100), deltas[1].Realized, "intraday buy leg")
	requireDecEq(t, DInt(110), deltas[2].Realized, "intraday sell leg")
}

func TestBrokerageIsPerUnit(t *testing.T) {
	book := reduceOk(t, xTxs(
		TTx{TDay: 1, Act: BUY, Qty: DInt(100), Total: DInt(1000), Brok: DStr("0.02")},
		TTx{TDay: 2, Act: SELL, Qty: DInt(50), Total: DInt(600), Brok: DStr("0.03")},
	))
	requireDecEq(t, DStr("3.5"), book.Positions[DefaultTestSecurity].TotalBrokerage, "TotalBrokerage")
}

func TestRetention(t *testing.T) {
	rq := require.New(t)
	book := reduceOk(t, xTxs(
		// Break-even round trip
		TTx{Sec: "EVEN", TDay: 1, Act: BUY, Qty: DInt(10), Total: DInt(100)},
		TTx{Sec: "EVEN", TDay: 2, Act: SELL, Qty: DInt(10), Total: DInt(100)},
		// Break-even intraday only
		TTx{Sec: "FLAT", TDay: 1, Act: BUY, Qty: DInt(10), Total: DInt(100), Intraday: true},
		TTx{Sec: "FLAT", TDay: 1, Act: SELL, Qty: DInt(10), Total: DInt(100), Intraday: true},
		// Closed with a gain
		TTx{Sec: "GAIN", TDay: 1, Act: BUY, Qty: DInt(10), Total: DInt(100)},
		TTx{Sec: "GAIN", TDay: 2, Act: SELL, Qty: DInt(10), Total: DInt(120)},
		// Intraday loss only
		TTx{Sec: "INTRA", TDay: 1, Act: BUY, Qty: DInt(10), Total: DInt(100), Intraday: true},
		TTx{Sec: "INTRA", TDay: 1, Act: SELL, Qty: DInt(10), Total: DInt(90), Intraday: true},
		// Open
		TTx{Sec: "OPEN", TDay: 1, Act: BUY, Qty: DInt(10), Total: DInt(100)},
		// Break-even where the rate does not divide evenly, sold in parts
		TTx{Sec: "THIRDS", TDay: 1, Act: BUY, Qty: DInt(3), Total: DInt(100)},
		TTx{Sec: "THIRDS", TDay: 2, Act: SELL, Qty: DInt(1), Total: DStr("33.3333333333333333")},
		TTx{Sec: "THIRDS", TDay: 3, Act: SELL, Qty: DInt(2), Total: DStr("66.6666666666666667")},
		// Same for a short, covered at once
		TTx{Sec: "THIRDSHORT", TDay: 1, Act: SELL, Qty: DInt(3), Total: DInt(100)},
		TTx{Sec: "THIRDSHORT", TDay: 2, Act: BUY, Qty: DInt(3), Total: DInt(100)},
	))
	rq.Equal([]string{"GAIN", "INTRA", "OPEN"}, book.Securities())
	// History is kept for everything.
	rq.Len(book.Deltas, 7)
	last := book.Deltas["THIRDS"][2].PostPosition
	rq.True(last.RealizedBuyValue.Equal(DInt(100)), last.RealizedBuyValue.String())
	rq.True(last.LongCostValue.IsZero())
	rq.Len(book.Deltas["EVEN"], 2)
}

func TestReduceIsIdempotent(t *testing.T) {
	rq := NewCustomRequire(t)
	txs := xTxs(
		TTx{Sec: "A", TDay: 1, Act: BUY, Qty: DInt(3), Total: DInt(100)},
		TTx{Sec: "A", TDay: 2, Act: SELL, Qty: DInt(1), Total: DInt(40)},
		TTx{Sec: "B", TDay: 1, Act: SELL, Qty: DInt(7), Total: DInt(91)},
		TTx{Sec: "B", TDay: 3, Act: BUY, Qty: DInt(9), Total: DInt(99), Notes: IPONote},
	)
	charges := []*Charge{{Date: mkDate(1), Description: "stamp", Amount: DStr("1.5")}}

	book1, err := Reduce(txs, charges, MiscAccount{})
	rq.Nil(err)
	book2, err := Reduce(txs, charges, MiscAccount{})
	rq.Nil(err)
	rq.CmpEqual(book1, book2)

	// Inputs are untouched.
	rq.True(DInt(3).Equal(txs[0].Quantity))
	rq.Equal("A", txs[0].Security)
}

func TestOrderingRejected(t *testing.T) {
	rq := require.New(t)

	_, err := Reduce(xTxs(
		TTx{TDay: 5, Act: BUY, Qty: DInt(1), Total: DInt(10)},
		TTx{TDay: 3, Act: SELL, Qty: DInt(1), Total: DInt(10)},
	), nil, MiscAccount{})
	rq.ErrorIs(err, ErrOutOfOrder)
	rq.ErrorContains(err, DefaultTestSecurity)

	_, err = Reduce(xTxs(
		TTx{TDay: 1, Time: "15:00", Act: BUY, Qty: DInt(1), Total: DInt(10)},
		TTx{TDay: 1, Time: "09:15", Act: SELL, Qty: DInt(1), Total: DInt(10)},
	), nil, MiscAccount{})
	rq.ErrorIs(err, ErrOutOfOrder)

	interleaved := xTxs(
		TTx{Sec: "A", TDay: 1, Act: BUY, Qty: DInt(1), Total: DInt(10)},
		TTx{Sec: "B", TDay: 1, Act: BUY, Qty: DInt(1), Total: DInt(10)},
		TTx{Sec: "A", TDay: 2, Act: SELL, Qty: DInt(1), Total: DInt(12)},
	)
	_, err = Reduce(interleaved, nil, MiscAccount{})
	rq.ErrorIs(err, ErrOutOfOrder)

	SortTxs(interleaved)
	rq.Equal("A", interleaved[1].Security)
	book, err := Reduce(interleaved, nil, MiscAccount{})
	rq.Nil(err)
	rq.True(DInt(2).Equal(book.Positions["A"].Cleared))
}

func TestSortTxsTieBreaks(t *testing.T) {
	rq := require.New(t)
	txs := xTxs(
		TTx{TDay: 2, Time: "10:00", Act: BUY, Qty: DInt(1), Total: DInt(1), RI: 4},
		TTx{TDay: 2, Time: "10:00", Act: BUY, Qty: DInt(2), Total: DInt(1), RI: 3},
		TTx{TDay: 2, Time: "09:00", Act: BUY, Qty: DInt(3), Total: DInt(1), RI: 2},
		TTx{TDay: 1, Time: "16:00", Act: BUY, Qty: DInt(4), Total: DInt(1), RI: 1},
	)
	SortTxs(txs)
	order := []uint32{}
	for _, tx := range txs {
		order = append(order, tx.ReadIndex)
	}
	rq.Equal([]uint32{1, 2, 3, 4}, order)
}

func TestInvalidTxRejected(t *testing.T) {
	rq := require.New(t)

	for _, tt := range []TTx{
		{TDay: 1, Act: BUY, Qty: DInt(0), Total: DInt(10)},
		{TDay: 1, Act: BUY, Qty: DInt(1), Total: DInt(0)},
		{TDay: 1, Act: NO_ACTION, Qty: DInt(1), Total: DInt(10)},
		{TDay: 1, Act: SELL, Qty: DInt(1), Total: DInt(10), Brok: DInt(-1)},
	} {
		_, err := Reduce([]*Tx{tt.X()}, nil, MiscAccount{})
		rq.ErrorIs(err, ErrInvalidTx)
		rq.ErrorContains(err, DefaultTestSecurity)
	}
}

func TestMiscAndIPO(t *testing.T) {
	rq := require.New(t)
	txs := xTxs(
		TTx{Sec: "A", TDay: 1, Act: BUY, Qty: DInt(10), Total: DInt(1500), Notes: IPONote},
		TTx{Sec: "A", TDay: 9, Act: BUY, Qty: DInt(10), Total: DInt(1700)},
	)
	book, err := Reduce(txs, []*Charge{
		{Date: mkDate(1), Description: "stamp duty", Amount: DInt(10)},
		{Date: mkDate(2), Description: "txn charges", Amount: DStr("5.5")},
	}, MiscAccount{Total: DInt(1)})
	rq.Nil(err)
	requireDecEq(t, DStr("16.5"), book.Misc.Total, "misc")
	requireDecEq(t, DInt(1500), book.IPOInvestment, "ipo")
	requireDecEq(t, DInt(1500), IPOInvestment(txs), "ipo")
}

func TestCumulativeGains(t *testing.T) {
	rq := require.New(t)
	book := reduceOk(t, xTxs(
		TTx{Sec: "A", TDate: mkDateYD(2017, 10), Act: BUY, Qty: DInt(10), Total: DInt(100)},
		TTx{Sec: "A", TDate: mkDateYD(2017, 20), Act: SELL, Qty: DInt(5), Total: DInt(70)},
		TTx{Sec: "A", TDate: mkDateYD(2018, 20), Act: SELL, Qty: DInt(5), Total: DInt(40)},
		TTx{Sec: "B", TDate: mkDateYD(2018, 3), Act: BUY, Qty: DInt(1), Total: DInt(10), Intraday: true},
		TTx{Sec: "B", TDate: mkDateYD(2018, 3), Act: SELL, Qty: DInt(1), Total: DInt(15), Intraday: true},
	))

	secGains, total := CalcBookCumulativeGains(book)
	rq.Equal([]int{2017, 2018}, secGains["A"].GainsYearTotalsKeysSorted())
	requireDecEq(t, DInt(20), secGains["A"].GainsYearTotals[2017], "A 2017")
	requireDecEq(t, DInt(-10), secGains["A"].GainsYearTotals[2018], "A 2018")
	requireDecEq(t, DInt(5), secGains["B"].GainsTotal, "B")

	rq.Equal([]int{2017, 2018}, total.GainsYearTotalsKeysSorted())
	requireDecEq(t, DInt(-5), total.GainsYearTotals[2018], "2018")
	requireDecEq(t, DInt(15), total.GainsTotal, "total")
}

func TestTxActionJSON(t *testing.T) {
	rq := require.New(t)
	var a TxAction
	rq.Nil(a.UnmarshalJSON([]byte(`"Sell"`)))
	rq.Equal(SELL, a)
	b, err := BUY.MarshalJSON()
	rq.Nil(err)
	rq.Equal(`"Buy"`, string(b))
	_, err = NO_ACTION.MarshalJSON()
	rq.NotNil(err)
	rq.NotNil(a.UnmarshalJSON([]byte(`"hold"`)))
}
