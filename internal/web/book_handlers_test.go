package web

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsdash/internal/domain"
)

func (m *memStore) Books(_ context.Context) ([]domain.Book, error) {
	books := make([]domain.Book, 0, len(m.books))
	for _, b := range m.books {
		books = append(books, b)
	}
	sort.Slice(books, func(i, j int) bool { return books[i].ID < books[j].ID })
	return books, nil
}

func (m *memStore) ReadBooks(ctx context.Context) ([]domain.Book, error) {
	all, _ := m.Books(ctx)
	var read []domain.Book
	for _, b := range all {
		if b.Shelf == domain.ShelfRead {
			read = append(read, b)
		}
	}
	sort.SliceStable(read, func(i, j int) bool { return read[i].DateRead.After(read[j].DateRead) })
	return read, nil
}

func (m *memStore) FindBook(_ context.Context, title, author string) (domain.Book, error) {
	for _, b := range m.books {
		if b.Title == title && b.Author == author {
			return b, nil
		}
	}
	return domain.Book{}, domain.ErrNotFound
}

func (m *memStore) CreateBook(_ context.Context, book domain.Book) error {
	m.nextBookID++
	book.ID = m.nextBookID
	m.books[book.ID] = book
	return nil
}

func (m *memStore) UpsertBook(ctx context.Context, book domain.Book) (bool, error) {
	if book.GoodreadsID != "" {
		for id, existing := range m.books {
			if existing.GoodreadsID == book.GoodreadsID {
				book.ID = id
				m.books[id] = book
				return false, nil
			}
		}
	}
	return true, m.CreateBook(ctx, book)
}

func (m *memStore) RateBook(_ context.Context, id int64, rating int) error {
	book, ok := m.books[id]
	if !ok {
		return domain.ErrNotFound
	}
	book.Rating = rating
	m.books[id] = book
	return nil
}

func (m *memStore) DeleteBook(_ context.Context, id int64) error {
	if _, ok := m.books[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.books, id)
	return nil
}

func (m *memStore) DeleteShelf(_ context.Context, shelf string) (int, error) {
	removed := 0
	for id, b := range m.books {
		if b.Shelf == shelf {
			delete(m.books, id)
			removed++
		}
	}
	return removed, nil
}

func (m *memStore) LibraryStats(_ context.Context) (domain.LibraryStats, error) {
	var stats domain.LibraryStats
	sum := 0
	for _, b := range m.books {
		if b.Shelf == domain.ShelfRead {
			stats.TotalRead++
		}
		if b.Rating > 0 {
			stats.RatedCount++
			sum += b.Rating
		}
	}
	if stats.RatedCount > 0 {
		stats.AvgRating = float64(sum) / float64(stats.RatedCount)
	}
	return stats, nil
}

func (m *memStore) Recommendations(_ context.Context) ([]domain.Recommendation, error) {
	return m.recs, nil
}

func (m *memStore) ReplaceRecommendations(_ context.Context, recs []domain.Recommendation) error {
	m.recs = append([]domain.Recommendation(nil), recs...)
	return nil
}

// stubChat returns a canned completion.
type stubChat struct {
	answer string
}

func (s stubChat) Complete(context.Context, string) (string, error) {
	return s.answer, nil
}

func seedBook(store *memStore, title, author string, rating int) int64 {
	store.nextBookID++
	store.books[store.nextBookID] = domain.Book{
		ID:     store.nextBookID,
		Title:  title,
		Author: author,
		Shelf:  domain.ShelfRead,
		Rating: rating,
	}
	return store.nextBookID
}

func TestBooksPageShowsStats(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	seedBook(store, "Dune", "Frank Herbert", 5)
	seedBook(store, "Hyperion", "Dan Simmons", 4)
	srv := newTestServer(t, store)

	req := httptest.NewRequest(http.MethodGet, "/books", nil)
	req.AddCookie(sessionFor(t, srv))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "4.5")
	assert.Contains(t, rec.Body.String(), "books read")
}

func TestLibraryPageListsReadBooks(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	seedBook(store, "Dune", "Frank Herbert", 5)
	srv := newTestServer(t, store)

	req := httptest.NewRequest(http.MethodGet, "/books/library", nil)
	req.AddCookie(sessionFor(t, srv))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Dune")
	assert.Contains(t, rec.Body.String(), "Frank Herbert")
}

func TestBookImportUpsertsAndRedirects(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	srv := newTestServer(t, store)

	csv := "Book Id,Title,Author,My Rating,Date Read,Exclusive Shelf\n" +
		"11,Dune,Frank Herbert,5,2024/03/10,read\n" +
		"12,Later,Someone,0,,to-read\n"

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("csv", "goodreads.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(csv))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/books/library/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(sessionFor(t, srv))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/books/library", rec.Header().Get("Location"))

	// The to-read row is purged after import; only the read book remains.
	require.Len(t, store.books, 1)
	for _, b := range store.books {
		assert.Equal(t, "Dune", b.Title)
		assert.Equal(t, 5, b.Rating)
	}
}

func TestBookImportWithoutFileFails(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, newMemStore())

	req := httptest.NewRequest(http.MethodPost, "/books/library/import", strings.NewReader(""))
	req.AddCookie(sessionFor(t, srv))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBookAddRejectsDuplicate(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	seedBook(store, "Dune", "Frank Herbert", 5)
	srv := newTestServer(t, store)

	form := url.Values{"title": {"Dune"}, "author": {"Frank Herbert"}}
	req := httptest.NewRequest(http.MethodPost, "/books/library/add", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(sessionFor(t, srv))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "already in the library")
}

func TestBookRateValidatesRange(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	id := seedBook(store, "Dune", "Frank Herbert", 0)
	srv := newTestServer(t, store)

	req := httptest.NewRequest(http.MethodPost, "/api/books/1/rate", strings.NewReader(`{"rating":9}`))
	req.AddCookie(sessionFor(t, srv))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, store.books[id].Rating)
}

func TestBookRateUpdatesBook(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	id := seedBook(store, "Dune", "Frank Herbert", 0)
	srv := newTestServer(t, store)

	req := httptest.NewRequest(http.MethodPost, "/api/books/1/rate", strings.NewReader(`{"rating":4}`))
	req.AddCookie(sessionFor(t, srv))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 4, store.books[id].Rating)
}

func TestBookRateUnknownIDReturns404(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, newMemStore())

	req := httptest.NewRequest(http.MethodPost, "/api/books/99/rate", strings.NewReader(`{"rating":3}`))
	req.AddCookie(sessionFor(t, srv))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBookDeleteRemovesBook(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	seedBook(store, "Dune", "Frank Herbert", 5)
	srv := newTestServer(t, store)

	req := httptest.NewRequest(http.MethodPost, "/api/books/1/delete", nil)
	req.AddCookie(sessionFor(t, srv))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, store.books)
}

func TestBookDeleteUnknownIDReturns404(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, newMemStore())

	req := httptest.NewRequest(http.MethodPost, "/api/books/7/delete", nil)
	req.AddCookie(sessionFor(t, srv))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGenerateRequiresBooks(t *testing.T) {
	t.Parallel()

	srv := newTestServerWithChat(t, newMemStore(), stubChat{answer: "[]"})

	req := httptest.NewRequest(http.MethodPost, "/api/books/recommendations/generate", nil)
	req.AddCookie(sessionFor(t, srv))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateStoresRecommendations(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	seedBook(store, "Dune", "Frank Herbert", 5)
	answer := `[{"title":"Hyperion","author":"Dan Simmons","reason":"Epic scope","category":"Sci-Fi"}]`
	srv := newTestServerWithChat(t, store, stubChat{answer: answer})

	req := httptest.NewRequest(http.MethodPost, "/api/books/recommendations/generate", nil)
	req.AddCookie(sessionFor(t, srv))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)
	require.Len(t, store.recs, 1)
	assert.Equal(t, "Hyperion", store.recs[0].Title)
}

func TestGenerateDisabledWithoutChatClient(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	seedBook(store, "Dune", "Frank Herbert", 5)
	srv := newTestServer(t, store)

	req := httptest.NewRequest(http.MethodPost, "/api/books/recommendations/generate", nil)
	req.AddCookie(sessionFor(t, srv))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "not configured")
}

func TestRecommendationsPageListsStoredSet(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.recs = []domain.Recommendation{
		{ID: 1, Title: "Hyperion", Author: "Dan Simmons", Reason: "Epic scope", Category: "Sci-Fi"},
	}
	srv := newTestServer(t, store)

	req := httptest.NewRequest(http.MethodGet, "/books/recommendations", nil)
	req.AddCookie(sessionFor(t, srv))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Hyperion")
	assert.Contains(t, rec.Body.String(), "Epic scope")
}
