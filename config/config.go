package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/scriptrack/scriptrack/log"
)

type Config struct {
	Log    log.LogConfig `mapstructure:"log"`
	Data   DataConfig    `mapstructure:"data"`
	Market MarketConfig  `mapstructure:"market"`
	Policy PolicyConfig  `mapstructure:"policy"`
	Render RenderConfig  `mapstructure:"render"`
	Serve  ServeConfig   `mapstructure:"serve"`
	Trace  bool          `mapstructure:"trace"`
}

type DataConfig struct {
	StateFile      string `mapstructure:"state_file"`
	InputDir       string `mapstructure:"input_dir"`
	SecuritiesFile string `mapstructure:"securities_file"`
}

type MarketConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	Retries       int           `mapstructure:"retries"`
	Backoff       time.Duration `mapstructure:"backoff"`
	QuotesFile    string        `mapstructure:"quotes_file"`
	CacheDir      string        `mapstructure:"cache_dir"`
	ForceDownload bool          `mapstructure:"force_download"`
}

// Rates are fractions (0.15 is 15%), except SellCutoffPct, which is a
// percentage. PreviousBalance is an amount, kept as a string so it is never
// rounded through a float; quote it in yaml.
type PolicyConfig struct {
	CapitalGainTaxRate    float64 `mapstructure:"capital_gain_tax_rate"`
	ExitLoadRate          float64 `mapstructure:"exit_load_rate"`
	PreviousBalance       string  `mapstructure:"previous_balance"`
	SellCutoffPct         float64 `mapstructure:"sell_cutoff_pct"`
	SellMarkup            float64 `mapstructure:"sell_markup"`
	DeliveryBrokerageRate float64 `mapstructure:"delivery_brokerage_rate"`
}

type RenderConfig struct {
	Format       string `mapstructure:"format"`
	OutDir       string `mapstructure:"out_dir"`
	Currency     string `mapstructure:"currency"`
	FullDecimals bool   `mapstructure:"full_decimals"`
	SortKey      string `mapstructure:"sort_key"`
	Reverse      bool   `mapstructure:"reverse"`
	BlankAtEnd   bool   `mapstructure:"blank_at_end"`
}

type ServeConfig struct {
	Addr string `mapstructure:"addr"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", false)

	v.SetDefault("data.state_file", "scriptrack_state.json")
	v.SetDefault("data.input_dir", "input")
	v.SetDefault("data.securities_file", "")

	v.SetDefault("market.base_url", "")
	v.SetDefault("market.timeout", "10s")
	v.SetDefault("market.retries", 3)
	v.SetDefault("market.backoff", "2s")
	v.SetDefault("market.quotes_file", "")
	v.SetDefault("market.cache_dir", "")
	v.SetDefault("market.force_download", false)

	v.SetDefault("policy.capital_gain_tax_rate", 0.15)
	v.SetDefault("policy.exit_load_rate", 0.004)
	v.SetDefault("policy.previous_balance", "0")
	v.SetDefault("policy.sell_cutoff_pct", 4.0)
	v.SetDefault("policy.sell_markup", 1.058)
	v.SetDefault("policy.delivery_brokerage_rate", 0.002)

	v.SetDefault("render.format", "std")
	v.SetDefault("render.out_dir", "")
	v.SetDefault("render.currency", "INR")
	v.SetDefault("render.full_decimals", false)
	v.SetDefault("render.sort_key", "security")
	v.SetDefault("render.reverse", false)
	v.SetDefault("render.blank_at_end", true)

	v.SetDefault("serve.addr", ":8080")
	v.SetDefault("trace", false)
}

// Load reads configuration from (in increasing priority) defaults, the yaml
// file at path (if path is non-empty), and SCRIPTRACK_* environment
// variables. A .env file in the working directory is loaded into the
// environment first, if present.
func Load(path string) (Config, error) {
	// Missing .env is normal.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("SCRIPTRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	if _, err := cfg.Policy.PreviousBalanceAmount(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// PreviousBalanceAmount parses PreviousBalance. Blank is zero.
func (p PolicyConfig) PreviousBalanceAmount() (decimal.Decimal, error) {
	s := strings.TrimSpace(p.PreviousBalance)
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("Invalid policy.previous_balance %q: %w", p.PreviousBalance, err)
	}
	return d, nil
}
