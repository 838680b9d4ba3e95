package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsdash/internal/domain"
	"newsdash/internal/scraper"
)

// fakeStore is an in-memory ArticleStore recording engine writes.
type fakeStore struct {
	articles  map[string][]domain.Article
	dismissed map[string]struct{}

	insertCalls  int
	replaceCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		articles:  map[string][]domain.Article{},
		dismissed: map[string]struct{}{},
	}
}

func (f *fakeStore) Articles(_ context.Context, source string) ([]domain.Article, error) {
	return f.articles[source], nil
}

func (f *fakeStore) LiveURLs(_ context.Context, source string) (map[string]struct{}, error) {
	urls := map[string]struct{}{}
	for _, a := range f.articles[source] {
		urls[a.URL] = struct{}{}
	}
	return urls, nil
}

func (f *fakeStore) CountArticles(_ context.Context, source string) (int, error) {
	return len(f.articles[source]), nil
}

func (f *fakeStore) InsertArticles(_ context.Context, articles []domain.Article) error {
	f.insertCalls++
	for _, a := range articles {
		f.articles[a.Source] = append(f.articles[a.Source], a)
	}
	return nil
}

func (f *fakeStore) ReplaceSource(_ context.Context, source string, articles []domain.Article) (int, error) {
	f.replaceCalls++
	deleted := len(f.articles[source])
	f.articles[source] = append([]domain.Article(nil), articles...)
	return deleted, nil
}

func (f *fakeStore) DismissedURLs(_ context.Context) (map[string]struct{}, error) {
	out := map[string]struct{}{}
	for u := range f.dismissed {
		out[u] = struct{}{}
	}
	return out, nil
}

func (f *fakeStore) Dismiss(_ context.Context, url string) error {
	f.dismissed[url] = struct{}{}
	for source, list := range f.articles {
		kept := list[:0]
		for _, a := range list {
			if a.URL != url {
				kept = append(kept, a)
			}
		}
		f.articles[source] = kept
	}
	return nil
}

func (f *fakeStore) DismissSource(_ context.Context, source string) (int, error) {
	cleared := len(f.articles[source])
	for _, a := range f.articles[source] {
		f.dismissed[a.URL] = struct{}{}
	}
	f.articles[source] = nil
	return cleared, nil
}

func (f *fakeStore) ClearDismissed(_ context.Context, keyword string) (int, error) {
	cleared := 0
	for u := range f.dismissed {
		if strings.Contains(u, keyword) {
			delete(f.dismissed, u)
			cleared++
		}
	}
	return cleared, nil
}

// fakeScraper returns canned records or a canned error.
type fakeScraper struct {
	key     string
	kind    domain.SourceKind
	records []domain.Record
	err     error
	calls   int
}

func (f *fakeScraper) Key() string             { return f.key }
func (f *fakeScraper) Kind() domain.SourceKind { return f.kind }

func (f *fakeScraper) Fetch(context.Context) ([]domain.Record, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

func newTestIngestor(store *fakeStore, maxArticles int, scrapers ...scraper.Scraper) *Ingestor {
	registry := scraper.NewRegistry()
	for _, s := range scrapers {
		registry.Register(s)
	}
	return NewIngestor(IngestorDeps{
		Registry:    registry,
		Store:       store,
		MaxArticles: maxArticles,
	})
}

func news(url string) domain.NewsRecord {
	return domain.NewsRecord{Title: "t " + url, URL: url}
}

func TestIngestAppendFiltersDuplicatesAndCaps(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.articles["mk"] = []domain.Article{
		{Source: "mk", Title: "old 1", URL: "https://n.example/1"},
		{Source: "mk", Title: "old 2", URL: "https://n.example/2"},
	}

	in := newTestIngestor(store, 3)

	result, err := in.Ingest(context.Background(), "mk", []domain.Record{
		news("https://n.example/1"), // already live
		news("https://n.example/3"),
		news("https://n.example/4"),
		news("https://n.example/5"),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Inserted)
	assert.Equal(t, 1, result.SkippedDuplicate)
	assert.Equal(t, 2, result.SkippedCap)
	assert.Equal(t, 0, result.Deleted)

	// Fetch order is preserved: the single free slot goes to the first
	// fresh record, not an arbitrary one.
	urls, _ := store.LiveURLs(context.Background(), "mk")
	assert.Contains(t, urls, "https://n.example/3")
	assert.Len(t, store.articles["mk"], 3)
}

func TestIngestAppendEarliestRecordsWinTheRoom(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.articles["irobot"] = []domain.Article{
		{Source: "irobot", Title: "old 1", URL: "https://i.example/old1"},
		{Source: "irobot", Title: "old 2", URL: "https://i.example/old2"},
	}

	in := newTestIngestor(store, 3)

	result, err := in.Ingest(context.Background(), "irobot", []domain.Record{
		news("https://i.example/a"),
		news("https://i.example/b"),
		news("https://i.example/c"),
		news("https://i.example/d"),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Inserted)
	assert.Equal(t, 3, result.SkippedCap)
	assert.Zero(t, result.SkippedDuplicate)

	urls, _ := store.LiveURLs(context.Background(), "irobot")
	assert.Contains(t, urls, "https://i.example/a")
	assert.NotContains(t, urls, "https://i.example/b")
}

func TestIngestAppendNeverResurrectsDismissed(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	require.NoError(t, store.Dismiss(context.Background(), "https://n.example/read"))

	in := newTestIngestor(store, 10)

	result, err := in.Ingest(context.Background(), "mk", []domain.Record{
		news("https://n.example/read"),
		news("https://n.example/fresh"),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Inserted)
	assert.Equal(t, 1, result.SkippedDuplicate)

	urls, _ := store.LiveURLs(context.Background(), "mk")
	assert.NotContains(t, urls, "https://n.example/read")
	assert.Contains(t, urls, "https://n.example/fresh")
}

func TestIngestAppendDedupesWithinBatch(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	in := newTestIngestor(store, 10)

	result, err := in.Ingest(context.Background(), "mk", []domain.Record{
		news("https://n.example/a"),
		news("https://n.example/a"),
		news("https://n.example/b"),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Inserted)
	assert.Equal(t, 1, result.SkippedDuplicate)
}

func TestIngestAppendEmptyInputWritesNothing(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	in := newTestIngestor(store, 10)

	result, err := in.Ingest(context.Background(), "mk", nil)
	require.NoError(t, err)

	assert.Equal(t, domain.IngestResult{Source: "mk"}, result)
	assert.Zero(t, store.insertCalls)
	assert.Zero(t, store.replaceCalls)
}

func TestIngestReplaceStoresExactlyFetchedSet(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.articles["bestseller"] = []domain.Article{
		{Source: "bestseller", Title: "last week", URL: "https://b.example/old", Rank: 1},
	}
	// Dismiss history never applies to the replace policy.
	store.dismissed["https://b.example/1"] = struct{}{}

	in := newTestIngestor(store, 10)

	result, err := in.Ingest(context.Background(), "bestseller", []domain.Record{
		domain.BestsellerRecord{Rank: 1, Title: "Book One", URL: "https://b.example/1"},
		domain.BestsellerRecord{Rank: 2, Title: "Book Two", URL: "https://b.example/2"},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Inserted)
	assert.Equal(t, 1, result.Deleted)
	assert.Zero(t, result.SkippedDuplicate)
	assert.Zero(t, result.SkippedCap)

	rows := store.articles["bestseller"]
	require.Len(t, rows, 2)
	assert.Equal(t, "Book One", rows[0].Title)
	assert.Equal(t, 1, rows[0].Rank)
	assert.Equal(t, "https://b.example/1", rows[0].URL)
}

func TestIngestReplaceEmptyFetchStillClears(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.articles["bestseller_kr"] = []domain.Article{
		{Source: "bestseller_kr", Title: "stale", URL: "https://y.example/1", Rank: 1},
	}

	in := newTestIngestor(store, 10)

	result, err := in.Ingest(context.Background(), "bestseller_kr", nil)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Deleted)
	assert.Zero(t, result.Inserted)
	assert.Empty(t, store.articles["bestseller_kr"])
}

func TestIngestReplaceAssignsRankFromOrder(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	in := newTestIngestor(store, 10)

	_, err := in.Ingest(context.Background(), "bestseller", []domain.Record{
		domain.BestsellerRecord{Title: "No Rank A", URL: "https://b.example/a"},
		domain.BestsellerRecord{Title: "No Rank B", URL: "https://b.example/b"},
	})
	require.NoError(t, err)

	rows := store.articles["bestseller"]
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[0].Rank)
	assert.Equal(t, 2, rows[1].Rank)
}

func TestIngestUnknownSource(t *testing.T) {
	t.Parallel()

	in := newTestIngestor(newFakeStore(), 10)

	_, err := in.Ingest(context.Background(), "nope", nil)
	assert.ErrorIs(t, err, domain.ErrUnknownSource)
}

func TestScrapeValidatesKeyBeforeFetch(t *testing.T) {
	t.Parallel()

	sc := &fakeScraper{key: "mk", kind: domain.KindNews}
	in := newTestIngestor(newFakeStore(), 10, sc)

	_, err := in.Scrape(context.Background(), "bogus")
	assert.ErrorIs(t, err, domain.ErrUnknownSource)
	assert.Zero(t, sc.calls)
}

func TestScrapeFetchFailureLeavesStoreUntouched(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.articles["bestseller"] = []domain.Article{
		{Source: "bestseller", Title: "kept", URL: "https://b.example/kept", Rank: 1},
	}

	sc := &fakeScraper{key: "bestseller", kind: domain.KindBestseller, err: errors.New("upstream down")}
	in := newTestIngestor(store, 10, sc)

	_, err := in.Scrape(context.Background(), "bestseller")

	var fetchErr *domain.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, "bestseller", fetchErr.Source)

	assert.Len(t, store.articles["bestseller"], 1)
	assert.Zero(t, store.replaceCalls)
}

func TestProcessAllContinuesPastFailingSource(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	scrapers := []scraper.Scraper{
		&fakeScraper{key: "mk", kind: domain.KindNews, err: errors.New("timeout")},
		&fakeScraper{key: "irobot", kind: domain.KindNews, records: []domain.Record{news("https://i.example/1")}},
		&fakeScraper{key: "robotreport", kind: domain.KindNews},
		&fakeScraper{key: "aicompanies", kind: domain.KindNews},
		&fakeScraper{key: "bestseller", kind: domain.KindBestseller},
		&fakeScraper{key: "bestseller_kr", kind: domain.KindBestseller},
	}
	in := newTestIngestor(store, 10, scrapers...)

	results := in.ProcessAll(context.Background())

	// The failing source is dropped from the results, the rest still ran.
	assert.Len(t, results, len(domain.Sources)-1)

	urls, _ := store.LiveURLs(context.Background(), "irobot")
	assert.Contains(t, urls, "https://i.example/1")
}
