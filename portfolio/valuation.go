package portfolio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/scriptrack/scriptrack/date"
	decimal_opt "github.com/scriptrack/scriptrack/decimal_value"
	"github.com/scriptrack/scriptrack/log"
)

var ErrQuoteUnavailable = errors.New("quote unavailable")

type Quote struct {
	Security  string
	Rate      decimal.Decimal
	Change    decimal.Decimal
	ChangePct decimal.Decimal
}

type QuoteSource interface {
	Quote(ctx context.Context, security string) (Quote, error)
}

type DividendSource interface {
	Dividend(security string) (decimal.Decimal, error)
}

// LedgerTotals are the ledger buckets which feed the report. Reversed is a
// credit, and so reduces charges.
type LedgerTotals struct {
	FundsTransferred decimal.Decimal `json:"funds_transferred"`
	Maintenance      decimal.Decimal `json:"maintenance"`
	Late             decimal.Decimal `json:"late"`
	Reversed         decimal.Decimal `json:"reversed"`
	ServiceTax       decimal.Decimal `json:"service_tax"`
}

type Policy struct {
	CapitalGainTaxRate decimal.Decimal
	ExitLoadRate       decimal.Decimal
	PreviousBalance    decimal.Decimal
	// Recommend selling a holding once its profit exceeds this percentage.
	SellCutoffPct decimal.Decimal
	SellMarkup    decimal.Decimal
}

func DefaultPolicy() Policy {
	return Policy{
		CapitalGainTaxRate: decimal.RequireFromString("0.15"),
		ExitLoadRate:       decimal.RequireFromString("0.004"),
		PreviousBalance:    decimal.Zero,
		SellCutoffPct:      decimal.RequireFromString("4.0"),
		SellMarkup:         decimal.RequireFromString("1.058"),
	}
}

// PortfolioEntry is a position valued against the market. Valuation fields
// are null when market data was unavailable.
type PortfolioEntry struct {
	Position
	Title string `json:"title"`

	MarketRate      decimal_opt.DecimalOpt `json:"market_rate"`
	MarketChange    decimal_opt.DecimalOpt `json:"market_change"`
	MarketChangePct decimal_opt.DecimalOpt `json:"market_change_pct"`
	CurrentValue    decimal_opt.DecimalOpt `json:"current_value"`
	ProfitLoss      decimal_opt.DecimalOpt `json:"profit_loss"`
	ProfitLossPct   decimal_opt.DecimalOpt `json:"profit_loss_pct"`
	Dividend        decimal_opt.DecimalOpt `json:"dividend"`

	Unavailable bool `json:"unavailable,omitempty"`
}

type Recommendation struct {
	Security string          `json:"security"`
	Title    string          `json:"title"`
	Price    decimal.Decimal `json:"price"`
}

func (r Recommendation) String() string {
	return fmt.Sprintf("Sell %s at %s.", r.Title, r.Price.StringFixed(2))
}

type Report struct {
	TotalInvestment decimal.Decimal `json:"total_investment"`
	CurrentValue    decimal.Decimal `json:"current_value"`

	Charges           decimal.Decimal `json:"charges"`
	MiscCharges       decimal.Decimal `json:"misc_charges"`
	MaintenanceCharge decimal.Decimal `json:"maintenance_charges"`
	LateCharges       decimal.Decimal `json:"late_charges"`
	ChargesReversed   decimal.Decimal `json:"charges_reversed"`
	ServiceTax        decimal.Decimal `json:"service_tax"`

	ExitLoad         decimal.Decimal        `json:"exit_load"`
	UnrealizedProfit decimal.Decimal        `json:"unrealized_profit"`
	ProfitPct        decimal_opt.DecimalOpt `json:"profit_pct"`

	GrossCleared    decimal.Decimal `json:"gross_cleared"`
	Cleared         decimal.Decimal `json:"cleared"`
	IntradayCleared decimal.Decimal `json:"intraday_cleared"`
	PreviousBalance decimal.Decimal `json:"previous_balance"`
	Dividend        decimal.Decimal `json:"dividend"`
	CapitalGainTax  decimal.Decimal `json:"capital_gain_tax"`
	Balance         decimal.Decimal `json:"balance"`

	TotalTradeVolume      decimal.Decimal `json:"total_trade_volume"`
	TotalBrokerage        decimal.Decimal `json:"total_brokerage"`
	IPOInvestment         decimal.Decimal `json:"ipo_investment"`
	TotalFundsTransferred decimal.Decimal `json:"total_funds_transferred"`

	Verdict    decimal.Decimal        `json:"verdict"`
	VerdictPct decimal_opt.DecimalOpt `json:"verdict_pct"`

	Recommendations []Recommendation `json:"recommendations"`
	Warnings        []string         `json:"warnings"`
	GeneratedAt     time.Time        `json:"generated_at"`
}

type Valuation struct {
	Entries []*PortfolioEntry `json:"entries"`
	Report  Report            `json:"report"`
}

// TitleFunc maps a security id to its display title.
type TitleFunc func(security string) string

type ValueOptions struct {
	Titles TitleFunc
	// Skip market quotes. Held positions are valued as unavailable, without
	// warnings.
	Offline bool
}

func valueEntry(
	ctx context.Context, pos *Position, quotes QuoteSource, dividends DividendSource, offline bool,
) (*PortfolioEntry, []string, error) {
	e := &PortfolioEntry{
		Position:        *pos,
		MarketRate:      decimal_opt.Null,
		MarketChange:    decimal_opt.Null,
		MarketChangePct: decimal_opt.Null,
		CurrentValue:    decimal_opt.Zero,
		ProfitLoss:      decimal_opt.Zero,
		ProfitLossPct:   decimal_opt.Zero,
		Dividend:        decimal_opt.Null,
	}
	var warnings []string
	held := pos.LongCostValue.IsPositive()

	var quote Quote
	var err error
	if offline {
		err = ErrQuoteUnavailable
	} else {
		quote, err = quotes.Quote(ctx, pos.Security)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}
		if !offline {
			log.L().Warn("no quote", zap.String("security", pos.Security), zap.Error(err))
		}
		if held {
			e.Unavailable = true
			e.CurrentValue = decimal_opt.Null
			e.ProfitLoss = decimal_opt.Null
			e.ProfitLossPct = decimal_opt.Null
			if !offline {
				warnings = append(warnings,
					fmt.Sprintf("%s: market rate unavailable; excluded from current value", pos.Security))
			}
		}
	} else {
		e.MarketRate = decimal_opt.New(quote.Rate)
		e.MarketChange = decimal_opt.New(quote.Change)
		e.MarketChangePct = decimal_opt.New(quote.ChangePct)
		if held {
			current := pos.LongQuantity.Mul(quote.Rate)
			pl := current.Sub(pos.LongCostValue)
			e.CurrentValue = decimal_opt.New(current)
			e.ProfitLoss = decimal_opt.New(pl)
			e.ProfitLossPct = decimal_opt.Pct(pl, pos.LongCostValue)
		}
	}

	div, err := dividends.Dividend(pos.Security)
	if err != nil {
		warnings = append(warnings,
			fmt.Sprintf("%s: dividend unavailable: %v", pos.Security, err))
	} else {
		e.Dividend = decimal_opt.New(div)
	}
	return e, warnings, nil
}

// Value prices every position in book and aggregates the report.
func Value(
	ctx context.Context, book *Book, quotes QuoteSource, dividends DividendSource,
	ledger LedgerTotals, policy Policy, options ...ValueOptions,
) (*Valuation, error) {
	var opts ValueOptions
	if len(options) > 0 {
		opts = options[0]
	}

	val := &Valuation{
		Entries: make([]*PortfolioEntry, 0, len(book.Positions)),
	}
	r := &val.Report
	r.Recommendations = []Recommendation{}
	r.Warnings = []string{}

	profit := decimal.Zero
	// Cost of the holdings which could be valued.
	valuedInvestment := decimal.Zero
	for _, sec := range book.Securities() {
		pos := book.Positions[sec]
		e, warnings, err := valueEntry(ctx, pos, quotes, dividends, opts.Offline)
		if err != nil {
			return nil, err
		}
		e.Title = sec
		if opts.Titles != nil {
			e.Title = opts.Titles(sec)
		}
		val.Entries = append(val.Entries, e)
		r.Warnings = append(r.Warnings, warnings...)

		r.TotalInvestment = r.TotalInvestment.Add(pos.LongCostValue)
		if !e.Unavailable {
			valuedInvestment = valuedInvestment.Add(pos.LongCostValue)
		}
		r.CurrentValue = r.CurrentValue.Add(e.CurrentValue.OrZero())
		profit = profit.Add(e.ProfitLoss.OrZero())
		r.GrossCleared = r.GrossCleared.Add(pos.Cleared)
		r.IntradayCleared = r.IntradayCleared.Add(pos.IntradayCleared)
		r.TotalTradeVolume = r.TotalTradeVolume.Add(pos.TotalTradeVolume)
		r.TotalBrokerage = r.TotalBrokerage.Add(pos.TotalBrokerage)
		r.Dividend = r.Dividend.Add(e.Dividend.OrZero())

		if e.ProfitLossPct.GreaterThan(decimal_opt.New(policy.SellCutoffPct)) {
			r.Recommendations = append(r.Recommendations, Recommendation{
				Security: sec,
				Title:    e.Title,
				Price:    pos.AverageRate.Mul(policy.SellMarkup).Round(2),
			})
		}
	}

	r.MiscCharges = book.Misc.Total
	r.MaintenanceCharge = ledger.Maintenance
	r.LateCharges = ledger.Late
	r.ChargesReversed = ledger.Reversed
	r.ServiceTax = ledger.ServiceTax
	r.Charges = r.MiscCharges.Add(r.MaintenanceCharge).Add(r.LateCharges).
		Sub(r.ChargesReversed).Add(r.ServiceTax)

	r.Cleared = r.GrossCleared.Sub(r.Charges)
	r.CapitalGainTax = r.Cleared.Add(r.IntradayCleared).Mul(policy.CapitalGainTaxRate)
	r.ExitLoad = r.CurrentValue.Mul(policy.ExitLoadRate)
	r.UnrealizedProfit = profit.Sub(r.ExitLoad)
	r.ProfitPct = decimal_opt.Pct(r.UnrealizedProfit, valuedInvestment)

	r.PreviousBalance = policy.PreviousBalance
	r.Balance = r.PreviousBalance.Add(r.Cleared).Add(r.IntradayCleared).
		Add(r.Dividend).Sub(r.CapitalGainTax)

	r.IPOInvestment = book.IPOInvestment
	r.TotalFundsTransferred = ledger.FundsTransferred.Add(book.IPOInvestment)
	r.Verdict = r.Balance.Add(r.UnrealizedProfit)
	r.VerdictPct = decimal_opt.Pct(r.Verdict, r.TotalFundsTransferred)

	return val, nil
}

// DividendRecord is one dividend payment, as recorded in dividend feeds.
type DividendRecord struct {
	Security string          `json:"security"`
	Date     date.Date       `json:"date"`
	Total    decimal.Decimal `json:"total"`
}

// DividendStore totals dividend records per security. Securities without
// records have received no dividend.
type DividendStore struct {
	totals map[string]decimal.Decimal
}

func NewDividendStore(records []*DividendRecord) *DividendStore {
	s := &DividendStore{totals: make(map[string]decimal.Decimal)}
	for _, rec := range records {
		s.totals[rec.Security] = s.totals[rec.Security].Add(rec.Total)
	}
	return s
}

func (s *DividendStore) Dividend(security string) (decimal.Decimal, error) {
	if d, ok := s.totals[security]; ok {
		return d, nil
	}
	return decimal.Zero, nil
}
