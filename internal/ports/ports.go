package ports

import (
	"context"

	"newsdash/internal/domain"
)

// ArticleStore persists articles and the dismissed-URL history. The engine
// is the sole writer of article rows; the web layer writes dismissals.
type ArticleStore interface {
	Articles(ctx context.Context, source string) ([]domain.Article, error)
	LiveURLs(ctx context.Context, source string) (map[string]struct{}, error)
	CountArticles(ctx context.Context, source string) (int, error)
	// InsertArticles writes all rows in one transaction.
	InsertArticles(ctx context.Context, articles []domain.Article) error
	// ReplaceSource deletes every row for the source and inserts the given
	// set in one transaction, returning the number of rows deleted.
	ReplaceSource(ctx context.Context, source string, articles []domain.Article) (int, error)
	DismissedURLs(ctx context.Context) (map[string]struct{}, error)
	// Dismiss records the URL as read and removes matching live rows.
	// Dismissing an already-dismissed URL is a no-op success.
	Dismiss(ctx context.Context, url string) error
	// DismissSource dismisses every live article of a source and returns
	// how many were cleared.
	DismissSource(ctx context.Context, source string) (int, error)
	// ClearDismissed removes read-history rows whose URL contains keyword.
	ClearDismissed(ctx context.Context, keyword string) (int, error)
}

// BookStore persists the personal reading library and the generated
// recommendation set.
type BookStore interface {
	Books(ctx context.Context) ([]domain.Book, error)
	// ReadBooks returns the read shelf, most recently finished first.
	ReadBooks(ctx context.Context) ([]domain.Book, error)
	// FindBook matches on title and author for manual additions.
	FindBook(ctx context.Context, title, author string) (domain.Book, error)
	CreateBook(ctx context.Context, book domain.Book) error
	// UpsertBook inserts the book, or updates the existing row sharing its
	// Goodreads id. It reports whether a new row was created.
	UpsertBook(ctx context.Context, book domain.Book) (created bool, err error)
	// RateBook sets the rating (0 clears it); ErrNotFound for unknown ids.
	RateBook(ctx context.Context, id int64, rating int) error
	DeleteBook(ctx context.Context, id int64) error
	// DeleteShelf removes every book on the shelf and returns the count.
	DeleteShelf(ctx context.Context, shelf string) (int, error)
	LibraryStats(ctx context.Context) (domain.LibraryStats, error)
	Recommendations(ctx context.Context) ([]domain.Recommendation, error)
	// ReplaceRecommendations swaps the whole set in one transaction.
	ReplaceRecommendations(ctx context.Context, recs []domain.Recommendation) error
}

// ChatClient sends a prompt to an LLM and returns the text completion.
type ChatClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// UserStore holds dashboard accounts.
type UserStore interface {
	UserByUsername(ctx context.Context, username string) (domain.User, error)
	CreateUser(ctx context.Context, username, passwordHash string) error
	CountUsers(ctx context.Context) (int, error)
}

// SubscriptionStore keeps browser push subscriptions.
type SubscriptionStore interface {
	SaveSubscription(ctx context.Context, sub domain.PushSubscription) error
	Subscriptions(ctx context.Context) ([]domain.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// Notifier delivers a push message to every registered subscription.
type Notifier interface {
	Broadcast(ctx context.Context, msg domain.PushMessage) error
}

// Scheduler fires the registered job on its configured cadence.
type Scheduler interface {
	Start(job func()) error
	Stop(ctx context.Context) error
}
