// Package securities maps the display titles found in broker documents to
// stable security ids, and ids to market symbols.
package securities

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrUnknownSecurity = errors.New("unknown security")

type Security struct {
	ID     string `yaml:"id"`
	Title  string `yaml:"title"`
	Symbol string `yaml:"symbol"`
}

type Registry struct {
	byID  map[string]Security
	index map[string]string
}

func NewRegistry(secs ...Security) (*Registry, error) {
	r := &Registry{
		byID:  make(map[string]Security),
		index: make(map[string]string),
	}
	for i, s := range secs {
		if s.ID == "" {
			return nil, fmt.Errorf("security %d has no id", i)
		}
		if _, ok := r.byID[s.ID]; ok {
			return nil, fmt.Errorf("duplicate security id %q", s.ID)
		}
		r.byID[s.ID] = s
		r.index[normalize(s.ID)] = s.ID
		if s.Title != "" {
			r.index[normalize(s.Title)] = s.ID
		}
	}
	return r, nil
}

// Passthrough is used when no registry file is configured; every name
// resolves to itself.
func Passthrough() *Registry {
	return nil
}

func Load(r io.Reader) (*Registry, error) {
	var secs []Security
	if err := yaml.NewDecoder(r).Decode(&secs); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid securities file: %w", err)
	}
	return NewRegistry(secs...)
}

func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	reg, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reg, nil
}

func normalize(name string) string {
	return strings.ToUpper(strings.Join(strings.Fields(name), " "))
}

// Resolve returns the security id for a display title or id. Matching
// ignores case and repeated whitespace.
func (r *Registry) Resolve(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: empty name", ErrUnknownSecurity)
	}
	if r == nil {
		return name, nil
	}
	if id, ok := r.index[normalize(name)]; ok {
		return id, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSecurity, name)
}

func (r *Registry) Title(id string) string {
	if r != nil {
		if s, ok := r.byID[id]; ok && s.Title != "" {
			return s.Title
		}
	}
	return id
}

func (r *Registry) Symbol(id string) string {
	if r != nil {
		if s, ok := r.byID[id]; ok && s.Symbol != "" {
			return s.Symbol
		}
	}
	return id
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.byID)
}
