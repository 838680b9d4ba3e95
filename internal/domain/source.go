package domain

import "errors"

// SourceKind selects the ingestion policy for a source.
type SourceKind string

const (
	// KindNews sources are ingested with the append-with-dedup policy.
	KindNews SourceKind = "news"
	// KindBestseller sources are ingested with the full-replace policy.
	KindBestseller SourceKind = "bestseller"
)

// ErrUnknownSource is returned for keys outside the fixed source set.
var ErrUnknownSource = errors.New("unknown source")

// FetchError marks an upstream network or markup failure. The store is left
// untouched for the affected source.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return "fetch " + e.Source + ": " + e.Err.Error()
}

func (e *FetchError) Unwrap() error { return e.Err }

// Source describes one of the fixed upstream providers.
type Source struct {
	Key  string
	Kind SourceKind
	Name string
}

// Sources is the closed set of providers, in scheduled ingestion order.
var Sources = []Source{
	{Key: "mk", Kind: KindNews, Name: "Maeil Business"},
	{Key: "irobot", Kind: KindNews, Name: "iRobot News"},
	{Key: "robotreport", Kind: KindNews, Name: "The Robot Report"},
	{Key: "aicompanies", Kind: KindNews, Name: "AI Companies"},
	{Key: "bestseller", Kind: KindBestseller, Name: "Amazon Charts"},
	{Key: "bestseller_kr", Kind: KindBestseller, Name: "YES24 Bestsellers"},
}

// SourceByKey resolves a key against the fixed set.
func SourceByKey(key string) (Source, error) {
	for _, s := range Sources {
		if s.Key == key {
			return s, nil
		}
	}
	return Source{}, ErrUnknownSource
}
