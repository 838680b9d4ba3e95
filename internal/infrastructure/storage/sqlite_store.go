package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"newsdash/internal/domain"
	"newsdash/internal/ports"
)

// SQLiteStore persists articles, dismiss history, the reading library,
// users and push subscriptions in a single SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

var (
	_ ports.ArticleStore      = (*SQLiteStore)(nil)
	_ ports.UserStore         = (*SQLiteStore)(nil)
	_ ports.SubscriptionStore = (*SQLiteStore)(nil)
)

// Open creates the database file (and its directory) if needed. WAL mode and
// a busy timeout are set through DSN pragmas; the scheduler and the web layer
// share this pool.
func Open(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	dsn := "file:" + path + "?" + url.Values{
		"_pragma": []string{"busy_timeout(5000)", "journal_mode(WAL)"},
	}.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// NewSQLiteStore wraps an existing pool (used by tests with :memory:).
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Close releases the underlying pool.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates the schema and applies additive column migrations.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS articles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source TEXT NOT NULL,
			title TEXT NOT NULL,
			url TEXT NOT NULL,
			section TEXT NOT NULL DEFAULT '',
			rank INTEGER NOT NULL DEFAULT 0,
			author TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_articles_source_url ON articles (source, url)`,
		`CREATE TABLE IF NOT EXISTS read_articles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			url TEXT NOT NULL UNIQUE,
			dismissed_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS push_subscriptions (
			id TEXT PRIMARY KEY,
			endpoint TEXT NOT NULL UNIQUE,
			p256dh TEXT NOT NULL,
			auth TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate schema: %w", err)
		}
	}

	// image_url arrived after the first deployments; add it when absent.
	hasImageURL, err := s.columnExists(ctx, "articles", "image_url")
	if err != nil {
		return err
	}
	if !hasImageURL {
		if _, err := s.db.ExecContext(ctx, `ALTER TABLE articles ADD COLUMN image_url TEXT NOT NULL DEFAULT ''`); err != nil {
			return fmt.Errorf("add image_url column: %w", err)
		}
	}

	return s.migrateBooks(ctx)
}

func (s *SQLiteStore) columnExists(ctx context.Context, table, column string) (bool, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, fmt.Errorf("table info %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultVal, &pk); err != nil {
			return false, fmt.Errorf("scan table info: %w", err)
		}
		if name == column {
			return true, nil
		}
	}

	return false, rows.Err()
}

// Articles returns the live rows of a source: bestseller rows in rank order,
// news rows newest first (news rank is always zero).
func (s *SQLiteStore) Articles(ctx context.Context, source string) ([]domain.Article, error) {
	query, args, err := sq.
		Select("id", "source", "title", "url", "section", "rank", "author", "image_url", "created_at").
		From("articles").
		Where(sq.Eq{"source": source}).
		OrderBy("rank ASC", "created_at DESC", "id DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build articles query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	var articles []domain.Article
	for rows.Next() {
		var a domain.Article
		if err := rows.Scan(&a.ID, &a.Source, &a.Title, &a.URL, &a.Section, &a.Rank, &a.Author, &a.ImageURL, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		articles = append(articles, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return articles, nil
}

// LiveURLs returns the set of URLs currently stored for a source.
func (s *SQLiteStore) LiveURLs(ctx context.Context, source string) (map[string]struct{}, error) {
	query, args, err := sq.
		Select("url").
		From("articles").
		Where(sq.Eq{"source": source}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build live urls query: %w", err)
	}

	return s.queryURLSet(ctx, query, args...)
}

// DismissedURLs returns every URL in the read history. Scope is global: a
// URL dismissed anywhere stays excluded for all append-type sources.
func (s *SQLiteStore) DismissedURLs(ctx context.Context) (map[string]struct{}, error) {
	query, args, err := sq.Select("url").From("read_articles").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build dismissed urls query: %w", err)
	}

	return s.queryURLSet(ctx, query, args...)
}

func (s *SQLiteStore) queryURLSet(ctx context.Context, query string, args ...any) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query urls: %w", err)
	}
	defer rows.Close()

	urls := map[string]struct{}{}
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan url: %w", err)
		}
		urls[u] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return urls, nil
}

// CountArticles returns the live row count for a source.
func (s *SQLiteStore) CountArticles(ctx context.Context, source string) (int, error) {
	query, args, err := sq.
		Select("COUNT(*)").
		From("articles").
		Where(sq.Eq{"source": source}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count articles: %w", err)
	}

	return count, nil
}

// InsertArticles writes all rows in one transaction; any failure rolls the
// whole batch back.
func (s *SQLiteStore) InsertArticles(ctx context.Context, articles []domain.Article) error {
	if len(articles) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert tx: %w", err)
	}
	defer tx.Rollback()

	if err := insertArticlesTx(ctx, tx, articles); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert tx: %w", err)
	}

	return nil
}

func insertArticlesTx(ctx context.Context, tx *sql.Tx, articles []domain.Article) error {
	now := time.Now().UTC()
	for _, a := range articles {
		createdAt := a.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		query, args, err := sq.
			Insert("articles").
			Columns("source", "title", "url", "section", "rank", "author", "image_url", "created_at").
			Values(a.Source, a.Title, a.URL, a.Section, a.Rank, a.Author, a.ImageURL, createdAt).
			ToSql()
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert article %s: %w", a.URL, err)
		}
	}
	return nil
}

// ReplaceSource deletes every row of the source and inserts the given set in
// one transaction. Concurrent readers never observe the interleaved state.
func (s *SQLiteStore) ReplaceSource(ctx context.Context, source string, articles []domain.Article) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin replace tx: %w", err)
	}
	defer tx.Rollback()

	query, args, err := sq.Delete("articles").Where(sq.Eq{"source": source}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete source rows: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	if err := insertArticlesTx(ctx, tx, articles); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit replace tx: %w", err)
	}

	return int(deleted), nil
}

// Dismiss records the URL as read and removes matching live rows. Already
// dismissed URLs are a no-op success.
func (s *SQLiteStore) Dismiss(ctx context.Context, articleURL string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin dismiss tx: %w", err)
	}
	defer tx.Rollback()

	if err := dismissTx(ctx, tx, articleURL); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit dismiss tx: %w", err)
	}

	return nil
}

func dismissTx(ctx context.Context, tx *sql.Tx, articleURL string) error {
	query, args, err := sq.
		Insert("read_articles").
		Options("OR IGNORE").
		Columns("url", "dismissed_at").
		Values(articleURL, time.Now().UTC()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build dismiss insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("record dismissed url: %w", err)
	}

	query, args, err = sq.Delete("articles").Where(sq.Eq{"url": articleURL}).ToSql()
	if err != nil {
		return fmt.Errorf("build dismiss delete: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete dismissed article: %w", err)
	}

	return nil
}

// DismissSource dismisses every live article of a source in one transaction
// and returns how many rows were cleared.
func (s *SQLiteStore) DismissSource(ctx context.Context, source string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin dismiss-source tx: %w", err)
	}
	defer tx.Rollback()

	query, args, err := sq.
		Select("url").
		From("articles").
		Where(sq.Eq{"source": source}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build source urls query: %w", err)
	}

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("query source urls: %w", err)
	}

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan url: %w", err)
		}
		urls = append(urls, u)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("rows iteration: %w", err)
	}
	rows.Close()

	for _, u := range urls {
		if err := dismissTx(ctx, tx, u); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit dismiss-source tx: %w", err)
	}

	return len(urls), nil
}

// ClearDismissed removes read-history rows whose URL contains the keyword.
func (s *SQLiteStore) ClearDismissed(ctx context.Context, keyword string) (int, error) {
	query, args, err := sq.
		Delete("read_articles").
		Where(sq.Like{"url": "%" + keyword + "%"}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build clear query: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("clear dismissed: %w", err)
	}

	cleared, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	return int(cleared), nil
}

// UserByUsername looks up a dashboard account.
func (s *SQLiteStore) UserByUsername(ctx context.Context, username string) (domain.User, error) {
	query, args, err := sq.
		Select("id", "username", "password_hash").
		From("users").
		Where(sq.Eq{"username": username}).
		ToSql()
	if err != nil {
		return domain.User{}, fmt.Errorf("build user query: %w", err)
	}

	var u domain.User
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&u.ID, &u.Username, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("query user: %w", err)
	}

	return u, nil
}

// CreateUser inserts a dashboard account.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, passwordHash string) error {
	query, args, err := sq.
		Insert("users").
		Columns("username", "password_hash").
		Values(username, passwordHash).
		ToSql()
	if err != nil {
		return fmt.Errorf("build user insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// CountUsers returns the number of accounts.
func (s *SQLiteStore) CountUsers(ctx context.Context) (int, error) {
	query, args, err := sq.Select("COUNT(*)").From("users").ToSql()
	if err != nil {
		return 0, fmt.Errorf("build user count query: %w", err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}

	return count, nil
}

// SaveSubscription upserts a push subscription keyed by endpoint.
func (s *SQLiteStore) SaveSubscription(ctx context.Context, sub domain.PushSubscription) error {
	createdAt := sub.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query, args, err := sq.
		Insert("push_subscriptions").
		Options("OR REPLACE").
		Columns("id", "endpoint", "p256dh", "auth", "created_at").
		Values(sub.ID, sub.Endpoint, sub.P256DH, sub.Auth, createdAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build subscription insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save subscription: %w", err)
	}

	return nil
}

// Subscriptions returns every registered push subscription.
func (s *SQLiteStore) Subscriptions(ctx context.Context) ([]domain.PushSubscription, error) {
	query, args, err := sq.
		Select("id", "endpoint", "p256dh", "auth", "created_at").
		From("push_subscriptions").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build subscriptions query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []domain.PushSubscription
	for rows.Next() {
		var sub domain.PushSubscription
		if err := rows.Scan(&sub.ID, &sub.Endpoint, &sub.P256DH, &sub.Auth, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return subs, nil
}

// DeleteSubscription drops a subscription by endpoint; missing rows are fine.
func (s *SQLiteStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	query, args, err := sq.
		Delete("push_subscriptions").
		Where(sq.Eq{"endpoint": endpoint}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build subscription delete: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}

	return nil
}
