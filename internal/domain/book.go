package domain

import "time"

// Shelf values carried over from the Goodreads export.
const (
	ShelfRead   = "read"
	ShelfToRead = "to-read"
)

// Book is a row in the personal reading library, imported from a Goodreads
// CSV export or added by hand. Rating 0 means unrated.
type Book struct {
	ID          int64
	GoodreadsID string
	Title       string
	Author      string
	Shelf       string
	Rating      int
	DateRead    time.Time
}

// LibraryStats summarizes the read shelf for the books overview page.
type LibraryStats struct {
	TotalRead  int
	RatedCount int
	AvgRating  float64
}

// Recommendation is one LLM-generated book suggestion. The set is replaced
// wholesale on each generation run.
type Recommendation struct {
	ID       int64
	Title    string
	Author   string
	Reason   string
	Category string
}

// ImportResult reports the outcome of one library CSV import.
type ImportResult struct {
	Added         int `json:"added"`
	Updated       int `json:"updated"`
	RemovedToRead int `json:"removed_to_read"`
}
