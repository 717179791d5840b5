package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/scriptrack/scriptrack/app/outfmt"
	"github.com/scriptrack/scriptrack/config"
	"github.com/scriptrack/scriptrack/log"
	"github.com/scriptrack/scriptrack/market"
	ptf "github.com/scriptrack/scriptrack/portfolio"
	"github.com/scriptrack/scriptrack/securities"
	"github.com/scriptrack/scriptrack/state"
	"github.com/scriptrack/scriptrack/util"
)

// Env is what every command runs against.
type Env struct {
	Cfg      config.Config
	Registry *securities.Registry
	// Overrides the quote source built from Cfg.Market.
	Quotes     ptf.QuoteSource
	Out        io.Writer
	ErrPrinter log.ErrorPrinter
}

func NewEnv(cfg config.Config, out io.Writer, errPrinter log.ErrorPrinter) (*Env, error) {
	reg := securities.Passthrough()
	if cfg.Data.SecuritiesFile != "" {
		var err error
		reg, err = securities.LoadFile(cfg.Data.SecuritiesFile)
		if err != nil {
			return nil, err
		}
		log.L().Debug("loaded securities", zap.String("file", cfg.Data.SecuritiesFile),
			zap.Int("count", reg.Len()))
	}
	return &Env{Cfg: cfg, Registry: reg, Out: out, ErrPrinter: errPrinter}, nil
}

func (e *Env) FeedOptions() ptf.FeedOptions {
	opts := ptf.DefaultFeedOptions()
	opts.Resolve = e.Registry.Resolve
	opts.DeliveryBrokerageRate = decimal.NewFromFloat(e.Cfg.Policy.DeliveryBrokerageRate)
	opts.ErrPrinter = e.ErrPrinter
	return opts
}

func (e *Env) Policy() (ptf.Policy, error) {
	p := e.Cfg.Policy
	prev, err := p.PreviousBalanceAmount()
	if err != nil {
		return ptf.Policy{}, err
	}
	return ptf.Policy{
		CapitalGainTaxRate: decimal.NewFromFloat(p.CapitalGainTaxRate),
		ExitLoadRate:       decimal.NewFromFloat(p.ExitLoadRate),
		PreviousBalance:    prev,
		SellCutoffPct:      decimal.NewFromFloat(p.SellCutoffPct),
		SellMarkup:         decimal.NewFromFloat(p.SellMarkup),
	}, nil
}

func (e *Env) RenderOptions() ptf.RenderOptions {
	r := e.Cfg.Render
	return ptf.RenderOptions{
		Currency:     r.Currency,
		FullDecimals: r.FullDecimals,
		SortKey:      r.SortKey,
		Reverse:      r.Reverse,
		BlankAtEnd:   r.BlankAtEnd,
	}
}

type noRemoteQuoteLoader struct{}

func (noRemoteQuoteLoader) GetRemoteQuotes(ctx context.Context, symbols []string) ([]market.SymbolQuote, error) {
	return nil, errors.New("no market source configured (set market.base_url or market.quotes_file)")
}

func (e *Env) remoteQuoteLoader() market.RemoteQuoteLoader {
	m := e.Cfg.Market
	switch {
	case m.QuotesFile != "":
		return &market.FileQuoteLoader{Path: m.QuotesFile}
	case m.BaseURL != "":
		return market.NewHTTPQuoteLoader(m.BaseURL, m.Timeout, m.Retries, m.Backoff)
	}
	return noRemoteQuoteLoader{}
}

func (e *Env) quoteSource(securities []string) ptf.QuoteSource {
	if e.Quotes != nil {
		return e.Quotes
	}
	var cache market.QuotesCacheAccessor = market.NewMemQuotesCacheAccessor()
	if e.Cfg.Market.CacheDir != "" {
		cache = &market.CsvQuotesCacheAccessor{Dir: e.Cfg.Market.CacheDir}
	}
	loader := market.NewPriceLoader(e.Cfg.Market.ForceDownload, e.remoteQuoteLoader(), cache, e.ErrPrinter)
	loader.Symbol = e.Registry.Symbol
	loader.Want(securities...)
	return loader
}

// LoadState loads the persisted snapshot, and ingests any new documents from
// the input dir into it.
func (e *Env) LoadState(ctx context.Context) (snap *state.Snapshot, err error) {
	_, span := log.StartSpan(ctx, "ingest")
	defer func() { log.EndSpan(span, err) }()

	snap, err = state.Load(e.Cfg.Data.StateFile)
	if err != nil {
		return nil, err
	}
	ingested, err := IngestDir(snap, e.Cfg.Data.InputDir, e.FeedOptions())
	if err != nil {
		return nil, err
	}
	if len(ingested) > 0 {
		log.Fverbosef(e.Out, "Ingested %d new documents\n", len(ingested))
	}
	return snap, nil
}

func reduce(ctx context.Context, snap *state.Snapshot) (book *ptf.Book, err error) {
	_, span := log.StartSpan(ctx, "reduce")
	defer func() { log.EndSpan(span, err) }()
	return BuildBook(snap)
}

func (e *Env) writer() (outfmt.ReportWriter, error) {
	return outfmt.NewWriter(e.Cfg.Render.Format, e.Out, e.Cfg.Render.OutDir)
}

func (e *Env) jsonOutput() bool {
	return e.Cfg.Render.Format == outfmt.FormatJson
}

// RunReport is the full run: ingest, reduce, value against the market,
// render, and persist the snapshot with the new report.
func RunReport(ctx context.Context, env *Env) (val *ptf.Valuation, err error) {
	ctx, span := log.StartSpan(ctx, "report")
	defer func() { log.EndSpan(span, err) }()

	snap, err := env.LoadState(ctx)
	if err != nil {
		return nil, err
	}
	book, err := reduce(ctx, snap)
	if err != nil {
		return nil, err
	}

	val, err = func() (val *ptf.Valuation, err error) {
		qctx, span := log.StartSpan(ctx, "value")
		defer func() { log.EndSpan(span, err) }()
		policy, err := env.Policy()
		if err != nil {
			return nil, err
		}
		quotes := env.quoteSource(book.Securities())
		return ptf.Value(qctx, book, quotes, ptf.NewDividendStore(snap.Dividends),
			LedgerTotals(snap), policy, ptf.ValueOptions{Titles: env.Registry.Title})
	}()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	val.Report.GeneratedAt = now

	if err = env.renderValuation(ctx, val, snap.LastReport); err != nil {
		return nil, err
	}

	_, pspan := log.StartSpan(ctx, "persist")
	snap.LastReport = &val.Report
	snap.SavedAt = now
	err = snap.Save(env.Cfg.Data.StateFile)
	log.EndSpan(pspan, err)
	if err != nil {
		return nil, fmt.Errorf("Failed to save state: %w", err)
	}
	return val, nil
}

func (e *Env) renderValuation(ctx context.Context, val *ptf.Valuation, prev *ptf.Report) (err error) {
	_, span := log.StartSpan(ctx, "render")
	defer func() { log.EndSpan(span, err) }()

	if e.jsonOutput() {
		return outfmt.WriteJson(e.Out, val)
	}
	w, err := e.writer()
	if err != nil {
		return err
	}
	opts := e.RenderOptions()
	if err = w.PrintRenderTable(outfmt.Portfolio, "", ptf.RenderPortfolioTable(val, opts)); err != nil {
		return err
	}
	return w.PrintRenderTable(outfmt.Report, "", ptf.RenderReportTable(&val.Report, prev, opts))
}

// RunPositions prints the book without market data, and optionally each
// security's transaction history. Nothing is persisted.
func RunPositions(ctx context.Context, env *Env, history bool) (*ptf.Book, error) {
	snap, err := env.LoadState(ctx)
	if err != nil {
		return nil, err
	}
	book, err := reduce(ctx, snap)
	if err != nil {
		return nil, err
	}
	policy, err := env.Policy()
	if err != nil {
		return nil, err
	}
	val, err := ptf.Value(ctx, book, nil, ptf.NewDividendStore(snap.Dividends),
		LedgerTotals(snap), policy,
		ptf.ValueOptions{Titles: env.Registry.Title, Offline: true})
	if err != nil {
		return nil, err
	}

	if env.jsonOutput() {
		if history {
			return book, outfmt.WriteJson(env.Out, book)
		}
		return book, outfmt.WriteJson(env.Out, val.Entries)
	}

	w, err := env.writer()
	if err != nil {
		return nil, err
	}
	opts := env.RenderOptions()
	if history {
		secGains, _ := ptf.CalcBookCumulativeGains(book)
		for _, sec := range util.SortedKeys(book.Deltas) {
			table := ptf.RenderTxTableModel(book.Deltas[sec], secGains[sec], opts)
			if err := w.PrintRenderTable(outfmt.Transactions, env.Registry.Title(sec), table); err != nil {
				return nil, err
			}
		}
	}
	if err := w.PrintRenderTable(outfmt.Portfolio, "", ptf.RenderPortfolioTable(val, opts)); err != nil {
		return nil, err
	}
	return book, nil
}

// RunGains prints the realized gains of every year.
func RunGains(ctx context.Context, env *Env) (*ptf.CumulativeGains, error) {
	snap, err := env.LoadState(ctx)
	if err != nil {
		return nil, err
	}
	book, err := reduce(ctx, snap)
	if err != nil {
		return nil, err
	}
	_, gains := ptf.CalcBookCumulativeGains(book)
	if env.jsonOutput() {
		return gains, outfmt.WriteJson(env.Out, gains)
	}
	w, err := env.writer()
	if err != nil {
		return nil, err
	}
	return gains, w.PrintRenderTable(outfmt.AggregateGains, "", ptf.RenderAggregateGains(gains, env.RenderOptions()))
}

// RunQuery evaluates a jsonpath expression against the persisted snapshot.
func RunQuery(env *Env, path string) (interface{}, error) {
	snap, err := state.Load(env.Cfg.Data.StateFile)
	if err != nil {
		return nil, err
	}
	res, err := snap.Query(path)
	if err != nil {
		return nil, err
	}
	return res, outfmt.WriteJson(env.Out, res)
}
