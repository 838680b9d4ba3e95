package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"newsdash/internal/domain"
	"newsdash/internal/ports"
)

var _ ports.BookStore = (*SQLiteStore)(nil)

func (s *SQLiteStore) migrateBooks(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS my_books (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			goodreads_id TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL,
			author TEXT NOT NULL,
			shelf TEXT NOT NULL DEFAULT 'read',
			rating INTEGER NOT NULL DEFAULT 0,
			date_read TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_my_books_goodreads_id ON my_books (goodreads_id)`,
		`CREATE TABLE IF NOT EXISTS recommendations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			author TEXT NOT NULL DEFAULT '',
			reason TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT ''
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate book schema: %w", err)
		}
	}

	return nil
}

func scanBooks(rows *sql.Rows) ([]domain.Book, error) {
	var books []domain.Book
	for rows.Next() {
		var (
			b        domain.Book
			dateRead sql.NullTime
		)
		if err := rows.Scan(&b.ID, &b.GoodreadsID, &b.Title, &b.Author, &b.Shelf, &b.Rating, &dateRead); err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		if dateRead.Valid {
			b.DateRead = dateRead.Time
		}
		books = append(books, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return books, nil
}

var bookColumns = []string{"id", "goodreads_id", "title", "author", "shelf", "rating", "date_read"}

// Books returns the whole library in insertion order.
func (s *SQLiteStore) Books(ctx context.Context) ([]domain.Book, error) {
	query, args, err := sq.Select(bookColumns...).From("my_books").OrderBy("id ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build books query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query books: %w", err)
	}
	defer rows.Close()

	return scanBooks(rows)
}

// ReadBooks returns the read shelf, most recently finished first. Books
// without a read date sort last.
func (s *SQLiteStore) ReadBooks(ctx context.Context) ([]domain.Book, error) {
	query, args, err := sq.
		Select(bookColumns...).
		From("my_books").
		Where(sq.Eq{"shelf": domain.ShelfRead}).
		OrderBy("date_read IS NULL", "date_read DESC", "id DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build read books query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query read books: %w", err)
	}
	defer rows.Close()

	return scanBooks(rows)
}

// FindBook matches a book by exact title and author.
func (s *SQLiteStore) FindBook(ctx context.Context, title, author string) (domain.Book, error) {
	query, args, err := sq.
		Select(bookColumns...).
		From("my_books").
		Where(sq.Eq{"title": title, "author": author}).
		ToSql()
	if err != nil {
		return domain.Book{}, fmt.Errorf("build find book query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return domain.Book{}, fmt.Errorf("query book: %w", err)
	}
	defer rows.Close()

	books, err := scanBooks(rows)
	if err != nil {
		return domain.Book{}, err
	}
	if len(books) == 0 {
		return domain.Book{}, domain.ErrNotFound
	}

	return books[0], nil
}

// CreateBook inserts a library row.
func (s *SQLiteStore) CreateBook(ctx context.Context, book domain.Book) error {
	query, args, err := sq.
		Insert("my_books").
		Columns("goodreads_id", "title", "author", "shelf", "rating", "date_read").
		Values(book.GoodreadsID, book.Title, book.Author, book.Shelf, book.Rating, nullableTime(book)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build book insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert book: %w", err)
	}

	return nil
}

func nullableTime(book domain.Book) any {
	if book.DateRead.IsZero() {
		return nil
	}
	return book.DateRead
}

// UpsertBook inserts the book or updates the row sharing its Goodreads id.
// Books without a Goodreads id always insert.
func (s *SQLiteStore) UpsertBook(ctx context.Context, book domain.Book) (bool, error) {
	if book.GoodreadsID == "" {
		return true, s.CreateBook(ctx, book)
	}

	query, args, err := sq.
		Update("my_books").
		Set("title", book.Title).
		Set("author", book.Author).
		Set("shelf", book.Shelf).
		Set("rating", book.Rating).
		Set("date_read", nullableTime(book)).
		Where(sq.Eq{"goodreads_id": book.GoodreadsID}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build book update: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update book: %w", err)
	}
	updated, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if updated > 0 {
		return false, nil
	}

	return true, s.CreateBook(ctx, book)
}

// RateBook sets the rating for a book; unknown ids get ErrNotFound.
func (s *SQLiteStore) RateBook(ctx context.Context, id int64, rating int) error {
	query, args, err := sq.
		Update("my_books").
		Set("rating", rating).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build rate update: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("rate book: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// DeleteBook removes a book by id; unknown ids get ErrNotFound.
func (s *SQLiteStore) DeleteBook(ctx context.Context, id int64) error {
	query, args, err := sq.Delete("my_books").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build book delete: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// DeleteShelf removes every book on the shelf and returns the count.
func (s *SQLiteStore) DeleteShelf(ctx context.Context, shelf string) (int, error) {
	query, args, err := sq.Delete("my_books").Where(sq.Eq{"shelf": shelf}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build shelf delete: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete shelf: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	return int(deleted), nil
}

// LibraryStats summarizes the library: finished count, rated count and the
// average rating over rated books.
func (s *SQLiteStore) LibraryStats(ctx context.Context) (domain.LibraryStats, error) {
	var stats domain.LibraryStats

	query, args, err := sq.
		Select("COUNT(*)").
		From("my_books").
		Where(sq.Eq{"shelf": domain.ShelfRead}).
		ToSql()
	if err != nil {
		return stats, fmt.Errorf("build read count query: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&stats.TotalRead); err != nil {
		return stats, fmt.Errorf("count read books: %w", err)
	}

	query, args, err = sq.
		Select("COUNT(*)", "COALESCE(AVG(rating), 0)").
		From("my_books").
		Where(sq.Gt{"rating": 0}).
		ToSql()
	if err != nil {
		return stats, fmt.Errorf("build rating query: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&stats.RatedCount, &stats.AvgRating); err != nil {
		return stats, fmt.Errorf("aggregate ratings: %w", err)
	}

	return stats, nil
}

// Recommendations returns the stored suggestion set in generation order.
func (s *SQLiteStore) Recommendations(ctx context.Context) ([]domain.Recommendation, error) {
	query, args, err := sq.
		Select("id", "title", "author", "reason", "category").
		From("recommendations").
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build recommendations query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recommendations: %w", err)
	}
	defer rows.Close()

	var recs []domain.Recommendation
	for rows.Next() {
		var r domain.Recommendation
		if err := rows.Scan(&r.ID, &r.Title, &r.Author, &r.Reason, &r.Category); err != nil {
			return nil, fmt.Errorf("scan recommendation: %w", err)
		}
		recs = append(recs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return recs, nil
}

// ReplaceRecommendations swaps the whole suggestion set in one transaction.
func (s *SQLiteStore) ReplaceRecommendations(ctx context.Context, recs []domain.Recommendation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin recommendations tx: %w", err)
	}
	defer tx.Rollback()

	query, args, err := sq.Delete("recommendations").ToSql()
	if err != nil {
		return fmt.Errorf("build recommendations delete: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("clear recommendations: %w", err)
	}

	for _, r := range recs {
		query, args, err := sq.
			Insert("recommendations").
			Columns("title", "author", "reason", "category").
			Values(r.Title, r.Author, r.Reason, r.Category).
			ToSql()
		if err != nil {
			return fmt.Errorf("build recommendation insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert recommendation %q: %w", r.Title, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit recommendations tx: %w", err)
	}

	return nil
}
