package portfolio

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/scriptrack/scriptrack/date"
)

type TxAction int

const (
	NO_ACTION TxAction = iota
	BUY
	SELL
)

func (a TxAction) String() string {
	var ret string = "invalid"
	switch a {
	case BUY:
		ret = "Buy"
	case SELL:
		ret = "Sell"
	default:
	}
	return ret
}

func ParseTxAction(s string) (TxAction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy", "b":
		return BUY, nil
	case "sell", "s":
		return SELL, nil
	}
	return NO_ACTION, fmt.Errorf("invalid action '%s'", s)
}

func (a TxAction) MarshalJSON() ([]byte, error) {
	if a == NO_ACTION {
		return nil, fmt.Errorf("cannot marshal tx with no action")
	}
	return json.Marshal(a.String())
}

func (a *TxAction) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	action, err := ParseTxAction(s)
	if err != nil {
		return err
	}
	*a = action
	return nil
}

// Tx is a single trade execution. GrossTotal is always a positive magnitude;
// the direction is carried by Action. Brokerage is per unit of quantity.
type Tx struct {
	Security   string          `json:"security"`
	TradeDate  date.Date       `json:"trade_date"`
	TradeTime  date.TimeOfDay  `json:"trade_time"`
	Action     TxAction        `json:"action"`
	Quantity   decimal.Decimal `json:"quantity"`
	GrossTotal decimal.Decimal `json:"gross_total"`
	Brokerage  decimal.Decimal `json:"brokerage"`
	Intraday   bool            `json:"intraday"`
	Notes      string          `json:"notes,omitempty"`

	// The order in which this tx was read. Breaks ties in date and time.
	ReadIndex uint32 `json:"read_index"`
	Source    string `json:"source,omitempty"`
}

func (t *Tx) Rate() decimal.Decimal {
	if t.Quantity.IsZero() {
		return decimal.Zero
	}
	return t.GrossTotal.Div(t.Quantity)
}

// Charge is a non-trade line of a contract note (stamp duty, transaction
// charges and so on). A positive amount is a cost.
type Charge struct {
	Date        date.Date       `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Source      string          `json:"source,omitempty"`
}

// MiscAccount accumulates charges which belong to no security.
type MiscAccount struct {
	Total decimal.Decimal `json:"total"`
}

func (m MiscAccount) Add(charges ...*Charge) MiscAccount {
	total := m.Total
	for _, c := range charges {
		total = total.Add(c.Amount)
	}
	return MiscAccount{Total: total}
}

// Position is the running state of one security. At most one of
// LongQuantity and ShortQuantity is non-zero. Intraday flows never affect
// either quantity.
type Position struct {
	Security string `json:"security"`

	LongQuantity  decimal.Decimal `json:"long_quantity"`
	LongCostValue decimal.Decimal `json:"long_cost_value"`
	AverageRate   decimal.Decimal `json:"average_rate"`

	ShortQuantity decimal.Decimal `json:"short_quantity"`
	ShortValue    decimal.Decimal `json:"short_value"`
	ShortRate     decimal.Decimal `json:"short_rate"`

	RealizedBuyValue  decimal.Decimal `json:"realized_buy_value"`
	RealizedSellValue decimal.Decimal `json:"realized_sell_value"`

	IntradayBuyValue  decimal.Decimal `json:"intraday_buy_value"`
	IntradaySellValue decimal.Decimal `json:"intraday_sell_value"`

	TotalTradeVolume decimal.Decimal `json:"total_trade_volume"`
	TotalBrokerage   decimal.Decimal `json:"total_brokerage"`

	// Derived once the reduction pass completes.
	Cleared            decimal.Decimal `json:"cleared"`
	ClearedPct         decimal.Decimal `json:"cleared_pct"`
	IntradayCleared    decimal.Decimal `json:"intraday_cleared"`
	IntradayClearedPct decimal.Decimal `json:"intraday_cleared_pct"`
}

func NewEmptyPosition(security string) *Position {
	return &Position{Security: security}
}

func (p *Position) IsLong() bool {
	return p.LongQuantity.IsPositive()
}

func (p *Position) IsShort() bool {
	return p.ShortQuantity.IsPositive()
}

// derive fills in the realized profit fields. Percentages are 0 when nothing
// was bought.
func (p *Position) derive() {
	p.Cleared = p.RealizedSellValue.Sub(p.RealizedBuyValue)
	p.ClearedPct = pctOrZero(p.Cleared, p.RealizedBuyValue)
	p.IntradayCleared = p.IntradaySellValue.Sub(p.IntradayBuyValue)
	p.IntradayClearedPct = pctOrZero(p.IntradayCleared, p.IntradayBuyValue)
}

// Retained reports whether a position is worth keeping after the pass.
// Securities which ended flat with nothing realized are dropped.
func (p *Position) Retained() bool {
	return p.IsLong() || p.IsShort() ||
		!p.Cleared.IsZero() || !p.IntradayCleared.IsZero()
}

var hundred = decimal.NewFromInt(100)

func pctOrZero(num, den decimal.Decimal) decimal.Decimal {
	if den.IsZero() {
		return decimal.Zero
	}
	return num.Div(den).Mul(hundred)
}

type TxDelta struct {
	Tx           *Tx
	PrePosition  Position
	PostPosition Position
	// Realized profit (or loss) produced by this tx, intraday legs included.
	Realized decimal.Decimal
}

func txLess(a, b *Tx) bool {
	if a.Security != b.Security {
		return a.Security < b.Security
	}
	if c := a.TradeDate.Compare(b.TradeDate); c != 0 {
		return c < 0
	}
	if c := a.TradeTime.Compare(b.TradeTime); c != 0 {
		return c < 0
	}
	return a.ReadIndex < b.ReadIndex
}

// SortTxs orders txs by security, then trade date and time, then read index.
// txs is sorted in place.
func SortTxs(txs []*Tx) {
	sort.SliceStable(txs, func(i, j int) bool {
		return txLess(txs[i], txs[j])
	})
}
