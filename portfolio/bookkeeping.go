package portfolio

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/scriptrack/scriptrack/log"
	"github.com/scriptrack/scriptrack/util"
)

var (
	ErrOutOfOrder = errors.New("transactions out of order")
	ErrInvalidTx  = errors.New("invalid transaction")
)

// Book is the result of reducing a full transaction history.
type Book struct {
	// Only positions which are still open or realized something.
	Positions map[string]*Position
	// Every security's tx history, including those of dropped positions.
	Deltas        map[string][]*TxDelta
	Misc          MiscAccount
	IPOInvestment decimal.Decimal
}

func (b *Book) Securities() []string {
	return util.SortedKeys(b.Positions)
}

func checkTxSanity(idx int, tx *Tx) error {
	var problem string
	switch {
	case tx.Security == "":
		problem = "no security"
	case tx.Action == NO_ACTION:
		problem = "no action"
	case !tx.Quantity.IsPositive():
		problem = fmt.Sprintf("quantity %s is not positive", tx.Quantity)
	case !tx.GrossTotal.IsPositive():
		problem = fmt.Sprintf("gross total %s is not positive", tx.GrossTotal)
	case tx.Brokerage.IsNegative():
		problem = fmt.Sprintf("brokerage %s is negative", tx.Brokerage)
	case tx.TradeDate.IsZero():
		problem = "no trade date"
	default:
		return nil
	}
	return fmt.Errorf("%w: tx %d (%s): %s", ErrInvalidTx, idx, tx.Security, problem)
}

// AddTx applies tx to pre, returning the resulting delta. pre is not modified.
func AddTx(tx *Tx, pre Position) (*TxDelta, error) {
	post := pre
	q := tx.Quantity
	g := tx.GrossTotal

	switch {
	case tx.Intraday && tx.Action == BUY:
		post.IntradayBuyValue = post.IntradayBuyValue.Add(g)
	case tx.Intraday && tx.Action == SELL:
		post.IntradaySellValue = post.IntradaySellValue.Add(g)
	case tx.Action == BUY:
		buy(&post, q, g)
	case tx.Action == SELL:
		sell(&post, q, g)
	default:
		return nil, fmt.Errorf("%w: %s has no action", ErrInvalidTx, tx.Security)
	}

	post.TotalTradeVolume = post.TotalTradeVolume.Add(g)
	post.TotalBrokerage = post.TotalBrokerage.Add(tx.Brokerage.Mul(q))

	if post.LongQuantity.IsZero() {
		post.AverageRate = decimal.Zero
	}
	if post.ShortQuantity.IsZero() {
		post.ShortRate = decimal.Zero
	}
	util.Assertf(!(post.IsLong() && post.IsShort()),
		"%s is both long (%s) and short (%s)",
		post.Security, post.LongQuantity, post.ShortQuantity)

	realized := post.RealizedSellValue.Sub(pre.RealizedSellValue).
		Sub(post.RealizedBuyValue.Sub(pre.RealizedBuyValue)).
		Add(post.IntradaySellValue.Sub(pre.IntradaySellValue)).
		Sub(post.IntradayBuyValue.Sub(pre.IntradayBuyValue))

	return &TxDelta{
		Tx:           tx,
		PrePosition:  pre,
		PostPosition: post,
		Realized:     realized,
	}, nil
}

func addLong(p *Position, q, g decimal.Decimal) {
	p.LongQuantity = p.LongQuantity.Add(q)
	p.LongCostValue = p.LongCostValue.Add(g)
	p.AverageRate = p.LongCostValue.Div(p.LongQuantity)
}

func addShort(p *Position, q, g decimal.Decimal) {
	p.ShortQuantity = p.ShortQuantity.Add(q)
	p.ShortValue = p.ShortValue.Add(g)
	p.ShortRate = p.ShortValue.Div(p.ShortQuantity)
}

func buy(p *Position, q, g decimal.Decimal) {
	short := p.ShortQuantity
	switch {
	case !short.IsPositive():
		addLong(p, q, g)
	case short.Equal(q):
		// Exact cover realizes the whole short value.
		p.RealizedBuyValue = p.RealizedBuyValue.Add(g)
		p.RealizedSellValue = p.RealizedSellValue.Add(p.ShortValue)
		p.ShortQuantity = decimal.Zero
		p.ShortValue = decimal.Zero
	case short.GreaterThan(q):
		coveredValue := q.Mul(p.ShortRate)
		p.RealizedBuyValue = p.RealizedBuyValue.Add(g)
		p.RealizedSellValue = p.RealizedSellValue.Add(coveredValue)
		p.ShortQuantity = short.Sub(q)
		p.ShortValue = p.ShortValue.Sub(coveredValue)
	default:
		// Cover the whole short, and go long with the remainder.
		coverValue := g.Mul(short).Div(q)
		p.RealizedBuyValue = p.RealizedBuyValue.Add(coverValue)
		p.RealizedSellValue = p.RealizedSellValue.Add(short.Mul(p.ShortRate))
		p.ShortQuantity = decimal.Zero
		p.ShortValue = decimal.Zero
		addLong(p, q.Sub(short), g.Sub(coverValue))
	}
}

func sell(p *Position, q, g decimal.Decimal) {
	long := p.LongQuantity
	switch {
	case !long.IsPositive():
		addShort(p, q, g)
	case long.Equal(q):
		p.RealizedBuyValue = p.RealizedBuyValue.Add(p.LongCostValue)
		p.RealizedSellValue = p.RealizedSellValue.Add(g)
		p.LongQuantity = decimal.Zero
		p.LongCostValue = decimal.Zero
	case long.GreaterThan(q):
		// The cost taken out is subtracted rather than recomputed from the
		// rate, so the full cost is realized once the holding is sold.
		soldCost := q.Mul(p.AverageRate)
		p.RealizedBuyValue = p.RealizedBuyValue.Add(soldCost)
		p.RealizedSellValue = p.RealizedSellValue.Add(g)
		p.LongQuantity = long.Sub(q)
		p.LongCostValue = p.LongCostValue.Sub(soldCost)
	default:
		// Sell the whole holding, and go short with the remainder.
		clearedValue := g.Mul(long).Div(q)
		p.RealizedBuyValue = p.RealizedBuyValue.Add(p.LongCostValue)
		p.RealizedSellValue = p.RealizedSellValue.Add(clearedValue)
		p.LongQuantity = decimal.Zero
		p.LongCostValue = decimal.Zero
		addShort(p, q.Sub(long), g.Sub(clearedValue))
	}
}

// checkOrder requires that each security's txs are contiguous and ordered by
// trade date and time.
func checkOrder(txs []*Tx) error {
	seen := util.NewSet[string]()
	for i, tx := range txs {
		if i > 0 && txs[i-1].Security == tx.Security {
			prev := txs[i-1]
			c := prev.TradeDate.Compare(tx.TradeDate)
			if c == 0 {
				c = prev.TradeTime.Compare(tx.TradeTime)
			}
			if c > 0 {
				return fmt.Errorf("%w: %s tx %d (%s %s) precedes tx %d (%s %s)",
					ErrOutOfOrder, tx.Security, i, tx.TradeDate, tx.TradeTime,
					i-1, prev.TradeDate, prev.TradeTime)
			}
			continue
		}
		if seen.Has(tx.Security) {
			return fmt.Errorf("%w: %s tx %d is separated from the security's earlier txs",
				ErrOutOfOrder, tx.Security, i)
		}
		seen.Add(tx.Security)
	}
	return nil
}

// Reduce replays txs (grouped by security and in trade order, see SortTxs)
// into positions. charges are added to misc. Reduce does not modify its
// inputs, and gives the same result for the same inputs.
func Reduce(txs []*Tx, charges []*Charge, misc MiscAccount) (*Book, error) {
	for i, tx := range txs {
		if err := checkTxSanity(i, tx); err != nil {
			return nil, err
		}
	}
	if err := checkOrder(txs); err != nil {
		return nil, err
	}

	book := &Book{
		Positions:     make(map[string]*Position),
		Deltas:        make(map[string][]*TxDelta),
		Misc:          misc.Add(charges...),
		IPOInvestment: IPOInvestment(txs),
	}

	current := util.NewDefaultMap(NewEmptyPosition)
	for _, tx := range txs {
		delta, err := AddTx(tx, *current.Get(tx.Security))
		if err != nil {
			return nil, err
		}
		log.Tracef("reduce", "%s %s %s x %s -> long %s short %s",
			tx.Security, tx.Action, tx.Quantity, tx.Rate(),
			delta.PostPosition.LongQuantity, delta.PostPosition.ShortQuantity)
		book.Deltas[tx.Security] = append(book.Deltas[tx.Security], delta)
		post := delta.PostPosition
		current.Set(tx.Security, &post)
	}

	current.ForEach(func(sec string, pos *Position) bool {
		pos.derive()
		if pos.Retained() {
			book.Positions[sec] = pos
		} else {
			log.Tracef("reduce", "dropping flat position %s", sec)
		}
		return true
	})
	return book, nil
}

const IPONote = "IPO"

// IPOInvestment is the total paid for IPO allotments.
func IPOInvestment(txs []*Tx) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		if tx.Action == BUY && tx.Notes == IPONote {
			total = total.Add(tx.GrossTotal)
		}
	}
	return total
}
