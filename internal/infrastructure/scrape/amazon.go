package scrape

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"newsdash/internal/domain"
	"newsdash/internal/scraper"
)

const amazonDefaultBaseURL = "https://www.amazon.com"

var (
	// alt format: "Cover image of Title by Author".
	amazonCoverAltRe = regexp.MustCompile(`^Cover image of (.+?) by (.+)$`)
	// rank is encoded in the ref parameter: chrt_bk_rd_<list>_<rank>.
	amazonRankRe = regexp.MustCompile(`chrt_bk_rd_\w+_(\d+)`)
)

// AmazonChartsScraper pulls the Most Read Nonfiction chart. Charts are
// anchored on Sundays; when the current week's chart is not published yet,
// the two previous weeks are tried.
type AmazonChartsScraper struct {
	client  *http.Client
	baseURL string
	now     func() time.Time
}

var _ scraper.Scraper = (*AmazonChartsScraper)(nil)

// NewAmazonChartsScraper wires an HTTP client.
func NewAmazonChartsScraper(client *http.Client) *AmazonChartsScraper {
	if client == nil {
		client = newHTTPClient()
	}
	return &AmazonChartsScraper{client: client, baseURL: amazonDefaultBaseURL, now: time.Now}
}

// Key identifies the source inside the registry.
func (s *AmazonChartsScraper) Key() string { return "bestseller" }

// Kind selects the full-replace policy.
func (s *AmazonChartsScraper) Kind() domain.SourceKind { return domain.KindBestseller }

// Fetch loads the newest available weekly chart and returns its entries in
// rank order.
func (s *AmazonChartsScraper) Fetch(ctx context.Context) ([]domain.Record, error) {
	headers := map[string]string{
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.9",
	}

	sunday := recentSunday(s.now())
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		chartDate := sunday.AddDate(0, 0, -7*attempt).Format("2006-01-02")
		chartURL := fmt.Sprintf("%s/charts/%s/mostread/nonfiction", s.baseURL, chartDate)

		doc, err := fetchDocument(ctx, s.client, chartURL, headers)
		if err != nil {
			lastErr = err
			continue
		}

		return s.extract(doc), nil
	}

	return nil, fmt.Errorf("amazon charts: all weekly attempts failed: %w", lastErr)
}

func (s *AmazonChartsScraper) extract(doc *goquery.Document) []domain.Record {
	var books []domain.BestsellerRecord
	seen := map[string]struct{}{}

	doc.Find(`img[alt^="Cover image of"]`).Each(func(_ int, img *goquery.Selection) {
		alt, _ := img.Attr("alt")
		m := amazonCoverAltRe.FindStringSubmatch(alt)
		if m == nil {
			return
		}
		title, author := m[1], m[2]
		imageURL, _ := img.Attr("src")

		// The nearest ancestor anchor pointing at a product page carries
		// both the permalink and the rank-bearing ref parameter.
		var href string
		img.ParentsFiltered("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			if h, ok := a.Attr("href"); ok && strings.Contains(h, "/dp/") {
				href = h
				return false
			}
			return true
		})
		if href == "" {
			return
		}
		href = absoluteURL(s.baseURL, href)
		if _, ok := seen[href]; ok {
			return
		}
		seen[href] = struct{}{}

		rank := len(books) + 1
		if rm := amazonRankRe.FindStringSubmatch(href); rm != nil {
			if n, err := strconv.Atoi(rm[1]); err == nil {
				rank = n
			}
		}

		books = append(books, domain.BestsellerRecord{
			Rank:     rank,
			Title:    title,
			Author:   author,
			URL:      href,
			ImageURL: imageURL,
		})
	})

	sort.SliceStable(books, func(i, j int) bool { return books[i].Rank < books[j].Rank })

	records := make([]domain.Record, 0, len(books))
	for _, b := range books {
		records = append(records, b)
	}
	return records
}

// recentSunday returns the most recent Sunday relative to t.
func recentSunday(t time.Time) time.Time {
	return t.AddDate(0, 0, -int(t.Weekday()))
}
