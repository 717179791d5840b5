package market

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/scriptrack/scriptrack/date"
)

// SymbolQuote is a quote as the market reports it, keyed by exchange symbol
// (eg. "NSE:INFY") rather than by security id.
type SymbolQuote struct {
	Symbol    string
	Rate      decimal.Decimal
	Change    decimal.Decimal
	ChangePct decimal.Decimal
}

type RemoteQuoteLoader interface {
	GetRemoteQuotes(ctx context.Context, symbols []string) ([]SymbolQuote, error)
}

type QuotesCacheAccessor interface {
	WriteQuotes(day date.Date, quotes []SymbolQuote) error
	GetQuotes(day date.Date) ([]SymbolQuote, error)
}

func quotesBySymbol(quotes []SymbolQuote) map[string]SymbolQuote {
	m := make(map[string]SymbolQuote, len(quotes))
	for _, q := range quotes {
		m[q.Symbol] = q
	}
	return m
}
