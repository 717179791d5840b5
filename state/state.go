package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/PaesslerAG/jsonpath"

	"github.com/scriptrack/scriptrack/ledger"
	"github.com/scriptrack/scriptrack/portfolio"
)

const SnapshotVersion = 1

// Snapshot is everything a run persists for the next one. Decimals are
// stored as strings so that no precision is lost.
type Snapshot struct {
	Version       int                         `json:"version"`
	Transactions  []*portfolio.Tx             `json:"transactions"`
	Charges       []*portfolio.Charge         `json:"charges"`
	LedgerEntries []*ledger.Entry             `json:"ledger_entries"`
	Dividends     []*portfolio.DividendRecord `json:"dividends"`
	// Base names of the documents already ingested.
	Processed  []string          `json:"processed"`
	LastReport *portfolio.Report `json:"last_report,omitempty"`
	SavedAt    time.Time         `json:"saved_at"`
}

func New() *Snapshot {
	return &Snapshot{
		Version:       SnapshotVersion,
		Transactions:  []*portfolio.Tx{},
		Charges:       []*portfolio.Charge{},
		LedgerEntries: []*ledger.Entry{},
		Dividends:     []*portfolio.DividendRecord{},
		Processed:     []string{},
	}
}

func (s *Snapshot) IsProcessed(doc string) bool {
	i := sort.SearchStrings(s.Processed, doc)
	return i < len(s.Processed) && s.Processed[i] == doc
}

func (s *Snapshot) MarkProcessed(doc string) {
	if s.IsProcessed(doc) {
		return
	}
	s.Processed = append(s.Processed, doc)
	sort.Strings(s.Processed)
}

// NextReadIndex is the ReadIndex to give the next ingested tx, so that
// ingestion order breaks ties across runs.
func (s *Snapshot) NextReadIndex() uint32 {
	var next uint32
	for _, tx := range s.Transactions {
		if tx.ReadIndex >= next {
			next = tx.ReadIndex + 1
		}
	}
	return next
}

// Load reads the snapshot at path. A missing file is an empty snapshot.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return New(), nil
		}
		return nil, err
	}
	s := New()
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("Failed to parse state file %s: %w", filepath.Base(path), err)
	}
	if s.Version > SnapshotVersion {
		return nil, fmt.Errorf("State file %s has version %d, newer than supported %d",
			filepath.Base(path), s.Version, SnapshotVersion)
	}
	sort.Strings(s.Processed)
	return s, nil
}

// Save writes the snapshot to path, replacing any previous one atomically.
func (s *Snapshot) Save(path string) error {
	s.Version = SnapshotVersion
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Query evaluates a jsonpath expression (eg. `$.last_report.balance`) against
// the snapshot's json form.
func (s *Snapshot) Query(path string) (interface{}, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	val, err := jsonpath.Get(path, doc)
	if err != nil {
		return nil, fmt.Errorf("Error evaluating %q: %w", path, err)
	}
	return val, nil
}
