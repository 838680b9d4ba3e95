package usecase

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"newsdash/internal/domain"
	"newsdash/internal/ports"
)

// ErrNoBooks signals a generation attempt against an empty library.
var ErrNoBooks = errors.New("library is empty")

// ErrRecommenderDisabled signals that no completion API is configured.
var ErrRecommenderDisabled = errors.New("recommender is not configured")

const defaultRecommendationCount = 10

// Markdown code fences around the model's JSON answer.
var (
	fenceOpenRe  = regexp.MustCompile("^```(?:json)?\\s*")
	fenceCloseRe = regexp.MustCompile("\\s*```$")
)

// RecommenderDeps wires the book store and the completion client.
type RecommenderDeps struct {
	Books  ports.BookStore
	Chat   ports.ChatClient
	Logger *slog.Logger
}

// Recommender maintains the reading library and produces LLM-generated
// book suggestions from it.
type Recommender struct {
	books  ports.BookStore
	chat   ports.ChatClient
	logger *slog.Logger
}

// NewRecommender constructs the recommender. A nil Chat client leaves the
// library features working and only generation disabled.
func NewRecommender(deps RecommenderDeps) *Recommender {
	return &Recommender{
		books:  deps.Books,
		chat:   deps.Chat,
		logger: deps.Logger,
	}
}

// Goodreads export column headers consumed by ImportCSV.
const (
	csvColBookID   = "Book Id"
	csvColTitle    = "Title"
	csvColAuthor   = "Author"
	csvColRating   = "My Rating"
	csvColDateRead = "Date Read"
	csvColShelf    = "Exclusive Shelf"
)

// ImportCSV reads a Goodreads library export and upserts it into the book
// store, matching existing rows by Goodreads id. Books shelved to-read are
// purged afterwards; the library tracks finished books only.
func (r *Recommender) ImportCSV(ctx context.Context, src io.Reader) (domain.ImportResult, error) {
	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return domain.ImportResult{}, fmt.Errorf("read csv header: %w", err)
	}

	cols := map[string]int{}
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{csvColTitle, csvColAuthor} {
		if _, ok := cols[required]; !ok {
			return domain.ImportResult{}, fmt.Errorf("csv is missing the %q column", required)
		}
	}

	field := func(row []string, name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	var result domain.ImportResult
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.ImportResult{}, fmt.Errorf("read csv row: %w", err)
		}

		book := domain.Book{
			GoodreadsID: field(row, csvColBookID),
			Title:       field(row, csvColTitle),
			Author:      field(row, csvColAuthor),
			Shelf:       field(row, csvColShelf),
		}
		if book.Title == "" || book.Author == "" {
			continue
		}
		if book.Shelf == "" {
			book.Shelf = domain.ShelfRead
		}
		if rating, err := strconv.Atoi(field(row, csvColRating)); err == nil {
			book.Rating = rating
		}
		if t, err := time.Parse("2006/01/02", field(row, csvColDateRead)); err == nil {
			book.DateRead = t
		}

		created, err := r.books.UpsertBook(ctx, book)
		if err != nil {
			return domain.ImportResult{}, fmt.Errorf("upsert %q: %w", book.Title, err)
		}
		if created {
			result.Added++
		} else {
			result.Updated++
		}
	}

	removed, err := r.books.DeleteShelf(ctx, domain.ShelfToRead)
	if err != nil {
		return domain.ImportResult{}, fmt.Errorf("purge to-read shelf: %w", err)
	}
	result.RemovedToRead = removed

	if r.logger != nil {
		r.logger.Info("library import finished",
			"added", result.Added, "updated", result.Updated, "removed_to_read", removed)
	}

	return result, nil
}

// AddBook registers a manually entered book. Duplicate title/author pairs
// are rejected.
func (r *Recommender) AddBook(ctx context.Context, title, author, shelf string) error {
	title = strings.TrimSpace(title)
	author = strings.TrimSpace(author)
	if title == "" || author == "" {
		return fmt.Errorf("title and author are required")
	}
	if shelf == "" {
		shelf = domain.ShelfRead
	}

	if _, err := r.books.FindBook(ctx, title, author); err == nil {
		return fmt.Errorf("%q by %s is already in the library", title, author)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	return r.books.CreateBook(ctx, domain.Book{Title: title, Author: author, Shelf: shelf})
}

// Generate asks the completion API for suggestions based on the whole
// library and replaces the stored recommendation set with the answer.
// Returns how many recommendations were stored.
func (r *Recommender) Generate(ctx context.Context) (int, error) {
	if r.chat == nil {
		return 0, ErrRecommenderDisabled
	}

	books, err := r.books.Books(ctx)
	if err != nil {
		return 0, fmt.Errorf("load library: %w", err)
	}
	if len(books) == 0 {
		return 0, ErrNoBooks
	}

	answer, err := r.chat.Complete(ctx, buildPrompt(books, defaultRecommendationCount))
	if err != nil {
		return 0, fmt.Errorf("completion request: %w", err)
	}

	recs, err := parseRecommendations(answer, books, defaultRecommendationCount)
	if err != nil {
		return 0, err
	}

	if err := r.books.ReplaceRecommendations(ctx, recs); err != nil {
		return 0, fmt.Errorf("store recommendations: %w", err)
	}

	if r.logger != nil {
		r.logger.Info("recommendations generated", "count", len(recs))
	}

	return len(recs), nil
}

// buildPrompt lists the reader's rated books (highest first) and read but
// unrated books, then asks for a JSON array of fresh suggestions.
func buildPrompt(books []domain.Book, count int) string {
	var rated, unrated []domain.Book
	for _, b := range books {
		if b.Shelf != domain.ShelfRead {
			continue
		}
		if b.Rating > 0 {
			rated = append(rated, b)
		} else {
			unrated = append(unrated, b)
		}
	}
	sort.SliceStable(rated, func(i, j int) bool { return rated[i].Rating > rated[j].Rating })

	var sb strings.Builder
	sb.WriteString("Here is a reader's book library:\n\n")

	if len(rated) > 0 {
		sb.WriteString("## Rated books (highest first):\n")
		for _, b := range rated {
			fmt.Fprintf(&sb, "- %q by %s (%d/5)\n", b.Title, b.Author, b.Rating)
		}
	}
	if len(unrated) > 0 {
		sb.WriteString("\n## Read but unrated:\n")
		for _, b := range unrated {
			fmt.Fprintf(&sb, "- %q by %s (read, unrated)\n", b.Title, b.Author)
		}
	}

	fmt.Fprintf(&sb, "\nBased on this reader's taste, recommend exactly %d books "+
		"they would love. Do NOT recommend any book already in their library. "+
		"Provide diverse recommendations across different categories.\n"+
		"Respond with ONLY a JSON array, no markdown fences, no extra text:\n"+
		`[{"title": "...", "author": "...", "reason": "...", "category": "..."}]`, count)

	return sb.String()
}

type recommendationPayload struct {
	Title    string `json:"title"`
	Author   string `json:"author"`
	Reason   string `json:"reason"`
	Category string `json:"category"`
}

// parseRecommendations decodes the model answer, tolerating markdown fences,
// and drops any title already present in the library.
func parseRecommendations(answer string, books []domain.Book, limit int) ([]domain.Recommendation, error) {
	cleaned := strings.TrimSpace(answer)
	cleaned = fenceOpenRe.ReplaceAllString(cleaned, "")
	cleaned = fenceCloseRe.ReplaceAllString(cleaned, "")

	var decoded []recommendationPayload
	if err := json.Unmarshal([]byte(cleaned), &decoded); err != nil {
		return nil, fmt.Errorf("parse completion answer: %w", err)
	}

	owned := map[string]struct{}{}
	for _, b := range books {
		owned[strings.ToLower(b.Title)] = struct{}{}
	}

	recs := make([]domain.Recommendation, 0, len(decoded))
	for _, rec := range decoded {
		if rec.Title == "" {
			continue
		}
		if _, ok := owned[strings.ToLower(rec.Title)]; ok {
			continue
		}
		recs = append(recs, domain.Recommendation{
			Title:    rec.Title,
			Author:   rec.Author,
			Reason:   rec.Reason,
			Category: rec.Category,
		})
		if len(recs) == limit {
			break
		}
	}

	return recs, nil
}
