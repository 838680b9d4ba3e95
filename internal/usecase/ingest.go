package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"newsdash/internal/domain"
	"newsdash/internal/ports"
	"newsdash/internal/scraper"
)

// IngestorDeps wires the driven adapters into the ingestion engine.
type IngestorDeps struct {
	Registry    *scraper.Registry
	Store       ports.ArticleStore
	MaxArticles int
	Logger      *slog.Logger
}

// Ingestor is the ingestion/dedup engine. It is the sole writer of article
// rows. Two policies exist, selected by source kind: full-replace for
// bestseller sources and append-with-dedup for news sources.
type Ingestor struct {
	registry    *scraper.Registry
	store       ports.ArticleStore
	maxArticles int
	logger      *slog.Logger

	// Per-source locks serialize concurrent ingest calls (manual trigger
	// racing the scheduler) so delete/insert sequences never interleave.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewIngestor constructs the engine.
func NewIngestor(deps IngestorDeps) *Ingestor {
	return &Ingestor{
		registry:    deps.Registry,
		store:       deps.Store,
		maxArticles: deps.MaxArticles,
		logger:      deps.Logger,
		locks:       map[string]*sync.Mutex{},
	}
}

func (in *Ingestor) sourceLock(key string) *sync.Mutex {
	in.mu.Lock()
	defer in.mu.Unlock()
	lock, ok := in.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		in.locks[key] = lock
	}
	return lock
}

// Scrape fetches a source and ingests the result. The key is validated
// before any network call; a fetch failure leaves the store untouched.
func (in *Ingestor) Scrape(ctx context.Context, key string) (domain.IngestResult, error) {
	if _, err := domain.SourceByKey(key); err != nil {
		return domain.IngestResult{}, err
	}

	sc, err := in.registry.Resolve(key)
	if err != nil {
		return domain.IngestResult{}, err
	}

	records, err := sc.Fetch(ctx)
	if err != nil {
		return domain.IngestResult{}, &domain.FetchError{Source: key, Err: err}
	}

	return in.Ingest(ctx, key, records)
}

// Ingest applies the source's policy to the raw records and returns the
// pass counters. Safe for concurrent use; calls for the same source are
// serialized.
func (in *Ingestor) Ingest(ctx context.Context, key string, records []domain.Record) (domain.IngestResult, error) {
	source, err := domain.SourceByKey(key)
	if err != nil {
		return domain.IngestResult{}, err
	}

	lock := in.sourceLock(key)
	lock.Lock()
	defer lock.Unlock()

	var result domain.IngestResult
	switch source.Kind {
	case domain.KindBestseller:
		result, err = in.ingestReplace(ctx, source, records)
	default:
		result, err = in.ingestAppend(ctx, source, records)
	}
	if err != nil {
		return domain.IngestResult{}, err
	}

	in.debug("ingest pass done",
		"source", key,
		"inserted", result.Inserted,
		"deleted", result.Deleted,
		"skipped_duplicate", result.SkippedDuplicate,
		"skipped_cap", result.SkippedCap)

	return result, nil
}

// ingestReplace discards every prior row of the source and stores exactly
// the fetched set, preserving fetched order as rank. Dismiss history is
// ignored: the upstream list is authoritative each run. An empty fetch still
// clears the source.
func (in *Ingestor) ingestReplace(ctx context.Context, source domain.Source, records []domain.Record) (domain.IngestResult, error) {
	articles := make([]domain.Article, 0, len(records))
	for i, rec := range records {
		a := domain.ArticleFromRecord(source.Key, rec)
		if a.Rank == 0 {
			a.Rank = i + 1
		}
		articles = append(articles, a)
	}

	deleted, err := in.store.ReplaceSource(ctx, source.Key, articles)
	if err != nil {
		return domain.IngestResult{}, fmt.Errorf("replace %s: %w", source.Key, err)
	}

	return domain.IngestResult{
		Source:   source.Key,
		Inserted: len(articles),
		Deleted:  deleted,
	}, nil
}

// ingestAppend filters the records against live and dismissed URLs (stable,
// fetch order preserved) and inserts at most the remaining room under the
// per-source cap. Existing rows are never evicted to make room.
func (in *Ingestor) ingestAppend(ctx context.Context, source domain.Source, records []domain.Record) (domain.IngestResult, error) {
	result := domain.IngestResult{Source: source.Key}
	if len(records) == 0 {
		return result, nil
	}

	live, err := in.store.LiveURLs(ctx, source.Key)
	if err != nil {
		return domain.IngestResult{}, fmt.Errorf("load live urls for %s: %w", source.Key, err)
	}
	dismissed, err := in.store.DismissedURLs(ctx)
	if err != nil {
		return domain.IngestResult{}, fmt.Errorf("load dismissed urls: %w", err)
	}

	fresh := make([]domain.Record, 0, len(records))
	batch := map[string]struct{}{}
	for _, rec := range records {
		u := rec.RecordURL()
		if _, ok := live[u]; ok {
			result.SkippedDuplicate++
			continue
		}
		if _, ok := dismissed[u]; ok {
			result.SkippedDuplicate++
			continue
		}
		if _, ok := batch[u]; ok {
			result.SkippedDuplicate++
			continue
		}
		batch[u] = struct{}{}
		fresh = append(fresh, rec)
	}

	room := in.maxArticles - len(live)
	if room < 0 {
		room = 0
	}
	if len(fresh) > room {
		result.SkippedCap = len(fresh) - room
		fresh = fresh[:room]
	}

	if len(fresh) == 0 {
		return result, nil
	}

	articles := make([]domain.Article, 0, len(fresh))
	for _, rec := range fresh {
		articles = append(articles, domain.ArticleFromRecord(source.Key, rec))
	}

	if err := in.store.InsertArticles(ctx, articles); err != nil {
		return domain.IngestResult{}, fmt.Errorf("insert for %s: %w", source.Key, err)
	}

	result.Inserted = len(articles)
	return result, nil
}

// ProcessAll runs a full pass over the fixed source list sequentially. A
// failing source is logged and skipped; the remaining sources still run.
func (in *Ingestor) ProcessAll(ctx context.Context) []domain.IngestResult {
	results := make([]domain.IngestResult, 0, len(domain.Sources))
	for _, source := range domain.Sources {
		result, err := in.Scrape(ctx, source.Key)
		if err != nil {
			if in.logger != nil {
				in.logger.Error("scrape pass failed", "source", source.Key, "error", err)
			}
			continue
		}
		results = append(results, result)
	}
	return results
}

func (in *Ingestor) debug(msg string, args ...any) {
	if in.logger != nil {
		in.logger.Debug(msg, args...)
	}
}
