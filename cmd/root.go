package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/scriptrack/scriptrack/app"
	"github.com/scriptrack/scriptrack/config"
	"github.com/scriptrack/scriptrack/log"
	ptf "github.com/scriptrack/scriptrack/portfolio"
	"github.com/scriptrack/scriptrack/server"
)

// Flags which override the config file. Only flags explicitly set on the
// command line take effect.
type options struct {
	cfgFile       string
	forceDownload bool
	format        string
	outDir        string
	sortKey       string
	reverse       bool
	fullDecimals  bool
	stateFile     string
	inputDir      string
	trace         bool
}

func (o *options) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("force-download") {
		cfg.Market.ForceDownload = o.forceDownload
	}
	if flags.Changed("format") {
		cfg.Render.Format = o.format
	}
	if flags.Changed("out-dir") {
		cfg.Render.OutDir = o.outDir
	}
	if flags.Changed("sort") {
		cfg.Render.SortKey = o.sortKey
	}
	if flags.Changed("reverse") {
		cfg.Render.Reverse = o.reverse
	}
	if flags.Changed("full-decimals") {
		cfg.Render.FullDecimals = o.fullDecimals
	}
	if flags.Changed("state-file") {
		cfg.Data.StateFile = o.stateFile
	}
	if flags.Changed("input-dir") {
		cfg.Data.InputDir = o.inputDir
	}
	if flags.Changed("trace") {
		cfg.Trace = o.trace
	}
}

// setup loads the config, initializes logging and tracing, and builds the
// Env the command runs against. The returned func must be called when the
// command is done.
func (o *options) setup(cmd *cobra.Command) (*app.Env, func(), error) {
	cfg, err := config.Load(o.cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("Error loading config: %w", err)
	}
	o.apply(cmd, &cfg)

	if _, err := log.Init(cfg.Log); err != nil {
		return nil, nil, err
	}
	cleanup := func() { _ = log.L().Sync() }
	if cfg.Trace {
		if err := log.InitTracing(cmd.ErrOrStderr()); err != nil {
			return nil, nil, err
		}
		cleanup = func() {
			_ = log.ShutdownTracing(context.Background())
			_ = log.L().Sync()
		}
	}

	env, err := app.NewEnv(cfg, cmd.OutOrStdout(), &log.StderrErrorPrinter{})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return env, cleanup, nil
}

func cmdName() string {
	return filepath.Base(os.Args[0])
}

func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   cmdName(),
		Short: "Brokerage portfolio tracker",
		Long: fmt.Sprintf(
			`A cli tool which tracks a brokerage portfolio from trade, dividend and
ledger documents.

New documents in the input directory are ingested into the state file once.
Every run replays the full transaction history into positions (weighted
average cost, shorts, intraday trades), values them against market quotes,
and prints the portfolio and a report with charges, capital gain tax, exit
load, balance and a verdict.

Recognized documents:
 - trades*.csv       trades and charges
 - misc_trades*.json trades from other sources (eg. IPO allotments)
 - dividend*.json    dividends
 - ledger*.html      ledger statement
 - ledger*.csv       ledger statement

Trade csv files should contain a header with these column names:
%s
The security, trade date, action, quantity and gross total columns are
required. Rows with the action "charge" are charges, not trades.
 `, strings.Join(ptf.ColNames, ", ")),
		Args:          cobra.NoArgs,
		Version:       "0.3.0",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, done, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			defer done()
			_, err = app.RunReport(cmd.Context(), env)
			return err
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.cfgFile, "config", "c", "", "Config file (yaml)")
	pf.BoolVarP(&log.VerboseEnabled, "verbose", "v", false, "Print verbose output")
	pf.BoolVarP(&opts.forceDownload, "force-download", "f", false,
		"Download market quotes, even if they are cached")
	pf.StringVar(&opts.format, "format", "std", "Output format: std, csv, markdown or json")
	pf.StringVarP(&opts.outDir, "out-dir", "d", "", "Directory to write csv output to")
	pf.StringVar(&opts.sortKey, "sort", "security",
		"Sort portfolio rows by: security, quantity, buy_value, new_value, profit, "+
			"profit_pct, cleared, intraday or dividend")
	pf.BoolVar(&opts.reverse, "reverse", false, "Reverse the portfolio row order")
	pf.BoolVar(&opts.fullDecimals, "full-decimals", false, "Print amounts without rounding")
	pf.StringVar(&opts.stateFile, "state-file", "", "State file to load and save")
	pf.StringVar(&opts.inputDir, "input-dir", "", "Directory of documents to ingest")
	pf.BoolVar(&opts.trace, "trace", false, "Print tracing spans to stderr")

	root.AddCommand(
		newReportCmd(opts),
		newPositionsCmd(opts),
		newGainsCmd(opts),
		newQueryCmd(opts),
		newServeCmd(opts),
	)
	return root
}

func newReportCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Value the portfolio, print the report and save it (the default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, done, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			defer done()
			_, err = app.RunReport(cmd.Context(), env)
			return err
		},
	}
}

func newPositionsCmd(opts *options) *cobra.Command {
	var history bool
	cmd := &cobra.Command{
		Use:   "positions",
		Short: "Print positions without market data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, done, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			defer done()
			_, err = app.RunPositions(cmd.Context(), env, history)
			return err
		},
	}
	cmd.Flags().BoolVar(&history, "history", false, "Print each security's transactions")
	return cmd
}

func newGainsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "gains",
		Short: "Print realized gains by year",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, done, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			defer done()
			_, err = app.RunGains(cmd.Context(), env)
			return err
		},
	}
}

func newQueryCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "query JSONPATH",
		Short:   "Query the saved state",
		Example: "  query '$.last_report.balance'",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, done, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			defer done()
			_, err = app.RunQuery(env, args[0])
			return err
		},
	}
}

func newServeCmd(opts *options) *cobra.Command {
	var addr string
	var debug bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the saved state over http",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, done, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			defer done()
			if cmd.Flags().Changed("addr") {
				env.Cfg.Serve.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			h := &server.Handler{StateFile: env.Cfg.Data.StateFile, Titles: env.Registry.Title}
			return server.Run(ctx, env.Cfg.Serve.Addr, server.NewEngine(h, debug))
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "Address to listen on")
	cmd.Flags().BoolVar(&debug, "debug", false, "Run gin in debug mode")
	return cmd
}

// Execute runs the command line. This is called by main.main().
func Execute() {
	if err := NewRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
