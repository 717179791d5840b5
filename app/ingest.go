package app

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/scriptrack/scriptrack/ledger"
	"github.com/scriptrack/scriptrack/log"
	ptf "github.com/scriptrack/scriptrack/portfolio"
	"github.com/scriptrack/scriptrack/state"
)

type DescribedReader struct {
	Desc   string
	Reader io.Reader
}

type DocKind int

const (
	UnknownDoc DocKind = iota
	TradesCsvDoc
	MiscTradesJsonDoc
	DividendJsonDoc
	LedgerHtmlDoc
	LedgerCsvDoc
)

// ClassifyDocument decides how a document is read from its file name.
func ClassifyDocument(name string) DocKind {
	base := strings.ToLower(filepath.Base(name))
	ext := filepath.Ext(base)
	switch {
	case strings.HasPrefix(base, "trades") && ext == ".csv":
		return TradesCsvDoc
	case strings.HasPrefix(base, "misc_trades") && ext == ".json":
		return MiscTradesJsonDoc
	case strings.HasPrefix(base, "dividend") && ext == ".json":
		return DividendJsonDoc
	case strings.HasPrefix(base, "ledger") && (ext == ".htm" || ext == ".html"):
		return LedgerHtmlDoc
	case strings.HasPrefix(base, "ledger") && ext == ".csv":
		return LedgerCsvDoc
	}
	return UnknownDoc
}

// ListInputDocs returns the paths of the recognized documents in dir, in
// name order. A missing dir has no documents.
func ListInputDocs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			log.L().Warn("input directory does not exist", zap.String("dir", dir))
			return nil, nil
		}
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ClassifyDocument(e.Name()) == UnknownDoc {
			log.L().Debug("ignoring input file", zap.String("file", e.Name()))
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	return paths, nil
}

// docContent is what one document adds to the snapshot.
type docContent struct {
	feed      *ptf.Feed
	dividends []*ptf.DividendRecord
	entries   []*ledger.Entry
}

func (c *docContent) addTo(snap *state.Snapshot) {
	if c.feed != nil {
		snap.Transactions = append(snap.Transactions, c.feed.Txs...)
		snap.Charges = append(snap.Charges, c.feed.Charges...)
	}
	snap.Dividends = append(snap.Dividends, c.dividends...)
	snap.LedgerEntries = append(snap.LedgerEntries, c.entries...)
}

func readDoc(doc DescribedReader, name string, opts ptf.FeedOptions) (c docContent, err error) {
	switch ClassifyDocument(name) {
	case TradesCsvDoc:
		c.feed, err = ptf.ParseTxCsv(doc.Reader, name, opts)
	case MiscTradesJsonDoc:
		c.feed, err = ptf.ParseTxJson(doc.Reader, name, opts)
	case DividendJsonDoc:
		c.dividends, err = ptf.ParseDividendJson(doc.Reader, name, opts.Resolve)
	case LedgerHtmlDoc:
		c.entries, err = ledger.ParseHTML(doc.Reader, name)
	case LedgerCsvDoc:
		c.entries, err = ledger.ParseCSV(doc.Reader, name)
	default:
		err = fmt.Errorf("Unrecognized document %s", name)
	}
	return c, err
}

func readDocFile(path string, opts ptf.FeedOptions) (c docContent, err error) {
	switch ClassifyDocument(path) {
	case TradesCsvDoc:
		c.feed, err = ptf.ParseTxCsvFile(path, opts)
	case MiscTradesJsonDoc:
		c.feed, err = ptf.ParseTxJsonFile(path, opts)
	case DividendJsonDoc:
		c.dividends, err = ptf.ParseDividendJsonFile(path, opts.Resolve)
	case LedgerHtmlDoc, LedgerCsvDoc:
		c.entries, err = ledger.ParseFile(path)
	default:
		err = fmt.Errorf("Unrecognized document %s", filepath.Base(path))
	}
	return c, err
}

// ingest reads one document into snap with read, unless it was processed
// already. snap is only changed if read succeeds.
func ingest(
	snap *state.Snapshot, name string, opts ptf.FeedOptions,
	read func(ptf.FeedOptions) (docContent, error),
) (bool, error) {
	if snap.IsProcessed(name) {
		log.L().Debug("already processed", zap.String("doc", name))
		return false, nil
	}
	opts.FirstReadIndex = snap.NextReadIndex()
	c, err := read(opts)
	if err != nil {
		return false, err
	}
	c.addTo(snap)
	snap.MarkProcessed(name)
	log.L().Info("ingested", zap.String("doc", name))
	return true, nil
}

// IngestDocs reads every document not yet processed into snap, and marks it
// processed. Documents are identified by base name. On error, snap holds the
// documents before the failing one, and should not be saved.
func IngestDocs(snap *state.Snapshot, docs []DescribedReader, opts ptf.FeedOptions) ([]string, error) {
	var ingested []string
	for _, doc := range docs {
		name := filepath.Base(doc.Desc)
		ok, err := ingest(snap, name, opts, func(opts ptf.FeedOptions) (docContent, error) {
			return readDoc(doc, name, opts)
		})
		if err != nil {
			return ingested, err
		}
		if ok {
			ingested = append(ingested, name)
		}
	}
	return ingested, nil
}

// IngestDir is IngestDocs over the recognized documents in dir.
func IngestDir(snap *state.Snapshot, dir string, opts ptf.FeedOptions) ([]string, error) {
	paths, err := ListInputDocs(dir)
	if err != nil {
		return nil, err
	}
	var ingested []string
	for _, path := range paths {
		name := filepath.Base(path)
		ok, err := ingest(snap, name, opts, func(opts ptf.FeedOptions) (docContent, error) {
			return readDocFile(path, opts)
		})
		if err != nil {
			return ingested, err
		}
		if ok {
			ingested = append(ingested, name)
		}
	}
	return ingested, nil
}

// BuildBook replays every persisted transaction.
func BuildBook(snap *state.Snapshot) (*ptf.Book, error) {
	txs := make([]*ptf.Tx, len(snap.Transactions))
	copy(txs, snap.Transactions)
	ptf.SortTxs(txs)
	return ptf.Reduce(txs, snap.Charges, ptf.MiscAccount{})
}

func LedgerTotals(snap *state.Snapshot) ptf.LedgerTotals {
	return ledger.Total(snap.LedgerEntries).PortfolioTotals()
}
