package scraper

import (
	"context"
	"fmt"

	"newsdash/internal/domain"
)

// Scraper captures a single source strategy (MK, YES24, etc.). Fetch is
// read-only with respect to the store: it returns raw records or fails as a
// whole, with no partial persistence.
type Scraper interface {
	Key() string
	Kind() domain.SourceKind
	Fetch(ctx context.Context) ([]domain.Record, error)
}

// Registry keeps a mapping from source keys to their scrapers.
type Registry struct {
	scrapers map[string]Scraper
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{scrapers: map[string]Scraper{}}
}

// Register adds or replaces a scraper implementation.
func (r *Registry) Register(s Scraper) {
	if r.scrapers == nil {
		r.scrapers = map[string]Scraper{}
	}
	r.scrapers[s.Key()] = s
}

// Resolve returns a scraper by source key or an error if it is absent.
func (r *Registry) Resolve(key string) (Scraper, error) {
	if s, ok := r.scrapers[key]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("scraper %s is not registered: %w", key, domain.ErrUnknownSource)
}
