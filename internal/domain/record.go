package domain

// Record is a raw scraped item before ingestion. The two concrete shapes
// mirror the two source kinds; the interface is sealed so the engine can
// switch exhaustively.
type Record interface {
	RecordURL() string
}

// NewsRecord is produced by news-kind scrapers.
type NewsRecord struct {
	Title   string
	URL     string
	Section string
}

// RecordURL returns the natural dedup key.
func (r NewsRecord) RecordURL() string { return r.URL }

// BestsellerRecord is produced by bestseller-kind scrapers.
type BestsellerRecord struct {
	Rank     int
	Title    string
	Author   string
	URL      string
	ImageURL string
}

// RecordURL returns the natural dedup key.
func (r BestsellerRecord) RecordURL() string { return r.URL }
