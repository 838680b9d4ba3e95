package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"newsdash/internal/domain"
	"newsdash/internal/scraper"
)

const openAIFeedLimit = 30

// AICompaniesScraper aggregates research/blog posts from a handful of AI
// labs into a single source. Sub-scrapes are independent: one failing lab
// only loses that lab's posts. The fetch as a whole fails when every
// sub-scrape failed.
type AICompaniesScraper struct {
	client *http.Client
	feed   *gofeed.Parser
	logger *slog.Logger

	anthropicURL  string
	deepmindURL   string
	openAIFeedURL string
}

var _ scraper.Scraper = (*AICompaniesScraper)(nil)

// NewAICompaniesScraper wires an HTTP client shared by the HTML scrapes and
// the RSS parser.
func NewAICompaniesScraper(client *http.Client, logger *slog.Logger) *AICompaniesScraper {
	if client == nil {
		client = newHTTPClient()
	}
	feed := gofeed.NewParser()
	feed.Client = client
	feed.UserAgent = userAgent
	return &AICompaniesScraper{
		client:        client,
		feed:          feed,
		logger:        logger,
		anthropicURL:  "https://www.anthropic.com/research",
		deepmindURL:   "https://deepmind.google/discover/blog/",
		openAIFeedURL: "https://openai.com/blog/rss.xml",
	}
}

// Key identifies the source inside the registry.
func (s *AICompaniesScraper) Key() string { return "aicompanies" }

// Kind selects the append-with-dedup policy.
func (s *AICompaniesScraper) Kind() domain.SourceKind { return domain.KindNews }

// Fetch runs all sub-scrapes and concatenates their records in a stable
// order: Anthropic, DeepMind, OpenAI.
func (s *AICompaniesScraper) Fetch(ctx context.Context) ([]domain.Record, error) {
	var (
		records  []domain.Record
		failures int
	)
	seen := map[string]struct{}{}

	appendRecords := func(lab string, recs []domain.Record, err error) {
		if err != nil {
			failures++
			if s.logger != nil {
				s.logger.Warn("sub-scrape failed", "lab", lab, "error", err)
			}
			return
		}
		for _, rec := range recs {
			if _, ok := seen[rec.RecordURL()]; ok {
				continue
			}
			seen[rec.RecordURL()] = struct{}{}
			records = append(records, rec)
		}
	}

	recs, err := s.fetchAnthropic(ctx)
	appendRecords("anthropic", recs, err)
	recs, err = s.fetchDeepMind(ctx)
	appendRecords("deepmind", recs, err)
	recs, err = s.fetchOpenAI(ctx)
	appendRecords("openai", recs, err)

	if failures == 3 {
		return nil, fmt.Errorf("all ai-company sub-scrapes failed")
	}

	return records, nil
}

// Anthropic's research page has a featured grid plus a publication list;
// both use generated class names matched by substring.
func (s *AICompaniesScraper) fetchAnthropic(ctx context.Context) ([]domain.Record, error) {
	doc, err := fetchDocument(ctx, s.client, s.anthropicURL, nil)
	if err != nil {
		return nil, err
	}

	base := baseOf(s.anthropicURL)
	var records []domain.Record

	doc.Find(`a[class*="FeaturedGrid"]`).Each(func(_ int, a *goquery.Selection) {
		titleEl := a.Find("h2").First()
		if titleEl.Length() == 0 {
			titleEl = a.Find("h4").First()
		}
		if rec, ok := newsFromAnchor(a, titleEl, base, "Anthropic"); ok {
			records = append(records, rec)
		}
	})

	doc.Find(`a[class*="PublicationList"]`).Each(func(_ int, a *goquery.Selection) {
		titleEl := a.Find(`span[class*="title"]`).First()
		if titleEl.Length() == 0 {
			titleEl = a.Find("h3").First()
		}
		if titleEl.Length() == 0 {
			titleEl = a.Find("h4").First()
		}
		if rec, ok := newsFromAnchor(a, titleEl, base, "Anthropic"); ok {
			records = append(records, rec)
		}
	})

	return records, nil
}

func (s *AICompaniesScraper) fetchDeepMind(ctx context.Context) ([]domain.Record, error) {
	doc, err := fetchDocument(ctx, s.client, s.deepmindURL, nil)
	if err != nil {
		return nil, err
	}

	base := baseOf(s.deepmindURL)
	var records []domain.Record

	doc.Find("article.card-blog").Each(func(_ int, card *goquery.Selection) {
		titleEl := card.Find("h3").First()
		linkEl := card.Find("a[href]").First()
		if titleEl.Length() == 0 || linkEl.Length() == 0 {
			return
		}
		if rec, ok := newsFromAnchor(linkEl, titleEl, base, "DeepMind"); ok {
			records = append(records, rec)
		}
	})

	return records, nil
}

func (s *AICompaniesScraper) fetchOpenAI(ctx context.Context) ([]domain.Record, error) {
	feed, err := s.feed.ParseURLWithContext(s.openAIFeedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("openai rss: %w", err)
	}

	var records []domain.Record
	for _, item := range feed.Items {
		if len(records) >= openAIFeedLimit {
			break
		}
		title := strings.TrimSpace(item.Title)
		link := strings.TrimSpace(item.Link)
		if link == "" {
			link = strings.TrimSpace(item.GUID)
		}
		if title == "" || link == "" {
			continue
		}
		records = append(records, domain.NewsRecord{Title: title, URL: link, Section: "OpenAI"})
	}

	return records, nil
}

func newsFromAnchor(a, titleEl *goquery.Selection, base, section string) (domain.NewsRecord, bool) {
	if titleEl == nil || titleEl.Length() == 0 {
		return domain.NewsRecord{}, false
	}
	title := strings.TrimSpace(titleEl.Text())
	href, _ := a.Attr("href")
	if title == "" || href == "" {
		return domain.NewsRecord{}, false
	}
	return domain.NewsRecord{Title: title, URL: absoluteURL(base, href), Section: section}, true
}

// baseOf strips the path from a page URL, leaving scheme://host.
func baseOf(pageURL string) string {
	if i := strings.Index(pageURL, "://"); i >= 0 {
		if j := strings.Index(pageURL[i+3:], "/"); j >= 0 {
			return pageURL[:i+3+j]
		}
	}
	return pageURL
}
