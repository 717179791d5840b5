package portfolio

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/scriptrack/scriptrack/date"
	"github.com/scriptrack/scriptrack/log"
	"github.com/scriptrack/scriptrack/util"
)

var CsvDateFormat string = "2006-01-02"

const chargeAction = "charge"

// FeedOptions control how raw trade documents are normalized.
type FeedOptions struct {
	// Maps the security named in a document to its id. Identity if nil.
	Resolve func(name string) (string, error)
	// When a row does not say whether it is intraday, it is taken to be
	// intraday if its brokerage is below this fraction of its rate.
	DeliveryBrokerageRate decimal.Decimal
	// ReadIndex of the first tx read.
	FirstReadIndex uint32
	ErrPrinter     log.ErrorPrinter
}

func DefaultFeedOptions() FeedOptions {
	return FeedOptions{
		DeliveryBrokerageRate: decimal.RequireFromString("0.002"),
		ErrPrinter:            &log.StderrErrorPrinter{},
	}
}

// Feed is what was read from one or more trade documents.
type Feed struct {
	Txs     []*Tx
	Charges []*Charge
}

func (f *Feed) Append(other *Feed) {
	f.Txs = append(f.Txs, other.Txs...)
	f.Charges = append(f.Charges, other.Charges...)
}

type row struct {
	Security   string
	TradeDate  date.Date
	TradeTime  date.TimeOfDay
	Action     string
	Quantity   decimal.Decimal
	GrossTotal decimal.Decimal
	Brokerage  decimal.Decimal
	Intraday   *bool
	Notes      string
}

type ColParser func(string, *row) error

var colParserMap = map[string]ColParser{
	"security":    parseSecurity,
	"trade date":  parseTradeDate,
	"trade time":  parseTradeTime,
	"action":      parseAction,
	"quantity":    parseQuantity,
	"gross total": parseGrossTotal,
	"brokerage":   parseBrokerage,
	"intraday":    parseIntraday,
	"notes":       parseNotes,
}

// ColNames are the recognized trade csv columns, sorted.
var ColNames = util.SortedKeys(colParserMap)

// rowToFeed turns a parsed row into a Tx or a Charge.
func rowToFeed(r *row, opts *FeedOptions, source string, feed *Feed) error {
	if strings.EqualFold(strings.TrimSpace(r.Action), chargeAction) {
		desc := r.Notes
		if desc == "" {
			desc = r.Security
		}
		feed.Charges = append(feed.Charges, &Charge{
			Date: r.TradeDate, Description: desc, Amount: r.GrossTotal, Source: source,
		})
		return nil
	}

	action, err := ParseTxAction(r.Action)
	if err != nil {
		return err
	}
	security := strings.TrimSpace(r.Security)
	if opts.Resolve != nil {
		security, err = opts.Resolve(security)
		if err != nil {
			return err
		}
	}

	tx := &Tx{
		Security:   security,
		TradeDate:  r.TradeDate,
		TradeTime:  r.TradeTime,
		Action:     action,
		Quantity:   r.Quantity,
		GrossTotal: r.GrossTotal.Abs(),
		Brokerage:  r.Brokerage.Abs(),
		Notes:      strings.TrimSpace(r.Notes),
		ReadIndex:  opts.FirstReadIndex + uint32(len(feed.Txs)),
		Source:     source,
	}
	if r.Intraday != nil {
		tx.Intraday = *r.Intraday
	} else {
		tx.Intraday = looksIntraday(tx, opts.DeliveryBrokerageRate)
	}
	if err := checkTxSanity(len(feed.Txs), tx); err != nil {
		return err
	}
	feed.Txs = append(feed.Txs, tx)
	return nil
}

// Delivery trades are charged a higher brokerage rate than intraday ones.
func looksIntraday(tx *Tx, deliveryRate decimal.Decimal) bool {
	rate := tx.Rate()
	if rate.IsZero() || deliveryRate.IsZero() {
		return false
	}
	return tx.Brokerage.Div(rate).LessThan(deliveryRate)
}

func ParseTxCsv(reader io.Reader, name string, opts FeedOptions) (*Feed, error) {
	csvR := csv.NewReader(reader)
	csvR.TrimLeadingSpace = true
	records, err := csvR.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("Failed to parse CSV %s: %w", name, err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("No rows found in %s", name)
	}

	header := records[0]
	colParsers := make([]ColParser, len(header))
	for i, col := range header {
		sanCol := strings.TrimSpace(strings.ToLower(col))
		if parser, ok := colParserMap[sanCol]; ok {
			colParsers[i] = parser
		} else {
			if opts.ErrPrinter != nil {
				opts.ErrPrinter.F("Warning: Unrecognized column %s in %s\n", sanCol, name)
			}
			colParsers[i] = parseNothing
		}
	}

	feed := &Feed{Txs: make([]*Tx, 0, len(records)-1)}
	for i, record := range records[1:] {
		r := &row{}
		for j, col := range record {
			if err := colParsers[j](strings.TrimSpace(col), r); err != nil {
				return nil, fmt.Errorf("Error parsing %s at line:col %d:%d: %w", name, i+2, j+1, err)
			}
		}
		if err := rowToFeed(r, &opts, name, feed); err != nil {
			return nil, fmt.Errorf("Error parsing %s at line %d: %w", name, i+2, err)
		}
	}
	return feed, nil
}

func ParseTxCsvFile(fname string, opts FeedOptions) (*Feed, error) {
	fp, err := os.Open(fname)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	return ParseTxCsv(fp, filepath.Base(fname), opts)
}

type jsonTx struct {
	Security   string          `json:"security"`
	TradeDate  date.Date       `json:"trade_date"`
	TradeTime  date.TimeOfDay  `json:"trade_time"`
	Action     string          `json:"action"`
	Quantity   decimal.Decimal `json:"quantity"`
	GrossTotal decimal.Decimal `json:"gross_total"`
	Brokerage  decimal.Decimal `json:"brokerage"`
	Intraday   *bool           `json:"intraday"`
	Notes      string          `json:"notes"`
}

// ParseTxJson reads a json array of trade records (the misc trades format).
// Fields are named like the csv columns, with underscores.
func ParseTxJson(reader io.Reader, name string, opts FeedOptions) (*Feed, error) {
	var records []jsonTx
	if err := json.NewDecoder(reader).Decode(&records); err != nil {
		return nil, fmt.Errorf("Failed to parse JSON %s: %w", name, err)
	}
	feed := &Feed{Txs: make([]*Tx, 0, len(records))}
	for i, rec := range records {
		r := row(rec)
		if err := rowToFeed(&r, &opts, name, feed); err != nil {
			return nil, fmt.Errorf("Error parsing %s at record %d: %w", name, i, err)
		}
	}
	return feed, nil
}

func ParseTxJsonFile(fname string, opts FeedOptions) (*Feed, error) {
	fp, err := os.Open(fname)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	return ParseTxJson(fp, filepath.Base(fname), opts)
}

// ParseDividendJson reads `[{"security": ..., "date": ..., "total": ...}]`.
func ParseDividendJson(
	reader io.Reader, name string, resolve func(string) (string, error),
) ([]*DividendRecord, error) {
	var records []*DividendRecord
	if err := json.NewDecoder(reader).Decode(&records); err != nil {
		return nil, fmt.Errorf("Failed to parse JSON %s: %w", name, err)
	}
	for i, rec := range records {
		if rec.Security == "" {
			return nil, fmt.Errorf("Error parsing %s at record %d: no security", name, i)
		}
		if resolve != nil {
			id, err := resolve(rec.Security)
			if err != nil {
				return nil, fmt.Errorf("Error parsing %s at record %d: %w", name, i, err)
			}
			rec.Security = id
		}
	}
	return records, nil
}

func ParseDividendJsonFile(fname string, resolve func(string) (string, error)) ([]*DividendRecord, error) {
	fp, err := os.Open(fname)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	return ParseDividendJson(fp, filepath.Base(fname), resolve)
}

func parseNothing(data string, r *row) error {
	return nil
}

func parseSecurity(data string, r *row) error {
	r.Security = data
	return nil
}

func parseTradeDate(data string, r *row) error {
	d, err := date.Parse(CsvDateFormat, data)
	if err != nil {
		return err
	}
	r.TradeDate = d
	return nil
}

func parseTradeTime(data string, r *row) error {
	t, err := date.ParseTimeOfDay(data)
	if err != nil {
		return err
	}
	r.TradeTime = t
	return nil
}

func parseAction(data string, r *row) error {
	r.Action = data
	return nil
}

// ParseAmount parses a decimal which may have thousands separators or an
// explicit sign. Blank is zero.
func ParseAmount(data string) (decimal.Decimal, error) {
	data = strings.ReplaceAll(strings.TrimSpace(data), ",", "")
	data = strings.TrimPrefix(data, "+")
	if data == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(data)
}

func parseQuantity(data string, r *row) error {
	q, err := ParseAmount(data)
	if err != nil {
		return fmt.Errorf("Error parsing quantity: %w", err)
	}
	r.Quantity = q
	return nil
}

func parseGrossTotal(data string, r *row) error {
	g, err := ParseAmount(data)
	if err != nil {
		return fmt.Errorf("Error parsing gross total: %w", err)
	}
	r.GrossTotal = g
	return nil
}

func parseBrokerage(data string, r *row) error {
	b, err := ParseAmount(data)
	if err != nil {
		return fmt.Errorf("Error parsing brokerage: %w", err)
	}
	r.Brokerage = b
	return nil
}

func parseIntraday(data string, r *row) error {
	var v bool
	switch strings.ToLower(data) {
	case "":
		r.Intraday = nil
		return nil
	case "y", "yes", "true", "1":
		v = true
	case "n", "no", "false", "0":
		v = false
	default:
		return fmt.Errorf("Invalid intraday value '%s'", data)
	}
	r.Intraday = &v
	return nil
}

func parseNotes(data string, r *row) error {
	r.Notes = data
	return nil
}
