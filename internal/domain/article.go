package domain

import (
	"errors"
	"time"
)

// ErrNotFound is returned by stores when a lookup matches nothing.
var ErrNotFound = errors.New("not found")

// Article is a persisted row produced by the ingestion engine. Section is
// populated for news sources; Rank, Author and ImageURL for bestsellers.
type Article struct {
	ID        int64
	Source    string
	Title     string
	URL       string
	Section   string
	Rank      int
	Author    string
	ImageURL  string
	CreatedAt time.Time
}

// ArticleFromRecord normalizes a scraped record into a persistable row.
func ArticleFromRecord(source string, rec Record) Article {
	switch r := rec.(type) {
	case NewsRecord:
		return Article{Source: source, Title: r.Title, URL: r.URL, Section: r.Section}
	case BestsellerRecord:
		return Article{
			Source:   source,
			Title:    r.Title,
			URL:      r.URL,
			Rank:     r.Rank,
			Author:   r.Author,
			ImageURL: r.ImageURL,
		}
	}
	return Article{Source: source, URL: rec.RecordURL()}
}

// User is the access-control gate for the web layer.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
}

// PushSubscription is a browser push endpoint registered via the web UI.
type PushSubscription struct {
	ID        string
	Endpoint  string
	P256DH    string
	Auth      string
	CreatedAt time.Time
}

// PushMessage is the payload shown by the service worker.
type PushMessage struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Tag   string `json:"tag,omitempty"`
	URL   string `json:"url,omitempty"`
}

// IngestResult reports the outcome of one ingest pass for one source.
type IngestResult struct {
	Source           string `json:"source"`
	Inserted         int    `json:"inserted"`
	Deleted          int    `json:"deleted"`
	SkippedDuplicate int    `json:"skipped_duplicate"`
	SkippedCap       int    `json:"skipped_cap"`
}
