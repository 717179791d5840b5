package market

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/scriptrack/scriptrack/date"
	"github.com/scriptrack/scriptrack/log"
	"github.com/scriptrack/scriptrack/portfolio"
	"github.com/scriptrack/scriptrack/util"
)

// PriceLoader is the portfolio.QuoteSource for a run. All wanted securities
// are loaded together on the first Quote, from the day's cache if it has
// all of them, else from the remote loader.
type PriceLoader struct {
	ForceDownload bool
	Cache         QuotesCacheAccessor
	RemoteLoader  RemoteQuoteLoader
	// Maps a security id to its market symbol. Identity if nil.
	Symbol     func(security string) string
	ErrPrinter log.ErrorPrinter

	wanted  []string
	quotes  map[string]SymbolQuote
	loaded  bool
	loadErr error
}

func NewPriceLoader(
	forceDownload bool, remote RemoteQuoteLoader, cache QuotesCacheAccessor,
	errPrinter log.ErrorPrinter) *PriceLoader {
	return &PriceLoader{
		ForceDownload: forceDownload,
		Cache:         cache,
		RemoteLoader:  remote,
		ErrPrinter:    errPrinter,
	}
}

func (l *PriceLoader) symbol(security string) string {
	if l.Symbol == nil {
		return security
	}
	return l.Symbol(security)
}

// Want registers securities to be fetched in the batch load.
func (l *PriceLoader) Want(securities ...string) {
	l.wanted = append(l.wanted, securities...)
}

func (l *PriceLoader) wantedSymbols() []string {
	seen := util.NewSet[string]()
	symbols := make([]string, 0, len(l.wanted))
	for _, sec := range l.wanted {
		sym := l.symbol(sec)
		if !seen.Has(sym) {
			seen.Add(sym)
			symbols = append(symbols, sym)
		}
	}
	return symbols
}

func (l *PriceLoader) cachedQuotes(day date.Date, symbols []string) (map[string]SymbolQuote, bool) {
	if l.Cache == nil || l.ForceDownload {
		return nil, false
	}
	cached, err := l.Cache.GetQuotes(day)
	if err != nil {
		log.L().Debug("no usable quote cache", zap.String("day", day.String()), zap.Error(err))
		return nil, false
	}
	bySym := quotesBySymbol(cached)
	for _, sym := range symbols {
		if _, ok := bySym[sym]; !ok {
			return bySym, false
		}
	}
	return bySym, true
}

func (l *PriceLoader) load(ctx context.Context) error {
	day := date.Today()
	symbols := l.wantedSymbols()

	cached, complete := l.cachedQuotes(day, symbols)
	if complete {
		l.quotes = cached
		return nil
	}

	remote, err := l.RemoteLoader.GetRemoteQuotes(ctx, symbols)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if l.ErrPrinter != nil {
			l.ErrPrinter.F("Warning: could not load market quotes: %v\n", err)
		}
		// A partial cache is still better than nothing.
		l.quotes = cached
		if l.quotes == nil {
			l.quotes = map[string]SymbolQuote{}
		}
		l.loadErr = err
		return nil
	}

	l.quotes = quotesBySymbol(remote)
	if l.Cache != nil {
		if err := l.Cache.WriteQuotes(day, remote); err != nil && l.ErrPrinter != nil {
			l.ErrPrinter.Ln("Failed to update quote cache:", err)
		}
	}
	return nil
}

func (l *PriceLoader) Quote(ctx context.Context, security string) (portfolio.Quote, error) {
	if !l.loaded {
		l.Want(security)
		if err := l.load(ctx); err != nil {
			return portfolio.Quote{}, err
		}
		l.loaded = true
	}

	sym := l.symbol(security)
	q, ok := l.quotes[sym]
	if !ok {
		if l.loadErr != nil {
			return portfolio.Quote{}, fmt.Errorf("%w: %s (%s): %v",
				portfolio.ErrQuoteUnavailable, security, sym, l.loadErr)
		}
		return portfolio.Quote{}, fmt.Errorf("%w: %s (%s)",
			portfolio.ErrQuoteUnavailable, security, sym)
	}
	return portfolio.Quote{
		Security:  security,
		Rate:      q.Rate,
		Change:    q.Change,
		ChangePct: q.ChangePct,
	}, nil
}
