package scrape

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"newsdash/internal/domain"
	"newsdash/internal/scraper"
)

const irobotDefaultBaseURL = "https://www.irobotnews.com"

// IrobotScraper pulls the article list from irobotnews.com. The site expects
// a browsing session, so a warm-up request against the front page is issued
// first with a cookie jar attached.
type IrobotScraper struct {
	client  *http.Client
	baseURL string
}

var _ scraper.Scraper = (*IrobotScraper)(nil)

// NewIrobotScraper wires an HTTP client; a nil client gets a default with a
// cookie jar.
func NewIrobotScraper(client *http.Client) *IrobotScraper {
	if client == nil {
		client = newHTTPClient()
	}
	if client.Jar == nil {
		jar, _ := cookiejar.New(nil)
		client.Jar = jar
	}
	return &IrobotScraper{client: client, baseURL: irobotDefaultBaseURL}
}

// Key identifies the source inside the registry.
func (s *IrobotScraper) Key() string { return "irobot" }

// Kind selects the append-with-dedup policy.
func (s *IrobotScraper) Kind() domain.SourceKind { return domain.KindNews }

// Fetch loads the webzine-style article list.
func (s *IrobotScraper) Fetch(ctx context.Context) ([]domain.Record, error) {
	headers := map[string]string{
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "ko-KR,ko;q=0.9,en;q=0.8",
		"Referer":         s.baseURL + "/",
	}

	// Warm-up request establishes the session cookie; its failure is not
	// fatal as long as the list page loads.
	if req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL, nil); err == nil {
		req.Header.Set("User-Agent", userAgent)
		if resp, warmErr := s.client.Do(req); warmErr == nil {
			resp.Body.Close()
		}
	}

	listURL := s.baseURL + "/news/articleList.html?view_type=sm"
	doc, err := fetchDocument(ctx, s.client, listURL, headers)
	if err != nil {
		return nil, fmt.Errorf("irobot list: %w", err)
	}

	return s.extract(doc), nil
}

func (s *IrobotScraper) extract(doc *goquery.Document) []domain.Record {
	var records []domain.Record
	seen := map[string]struct{}{}

	doc.Find("#section-list li.altlist-webzine-item").Each(func(_ int, item *goquery.Selection) {
		linkEl := item.Find("h2.altlist-subject > a").First()
		if linkEl.Length() == 0 {
			return
		}

		title := strings.TrimSpace(linkEl.Text())
		href, _ := linkEl.Attr("href")
		if title == "" || href == "" {
			return
		}

		href = absoluteURL(s.baseURL, href)
		if _, ok := seen[href]; ok {
			return
		}
		seen[href] = struct{}{}

		section := strings.TrimSpace(item.Find("div.altlist-info-item").First().Text())

		records = append(records, domain.NewsRecord{Title: title, URL: href, Section: section})
	})

	return records
}
