package scrape

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"newsdash/internal/domain"
	"newsdash/internal/scraper"
)

const mkDefaultBaseURL = "https://www.mk.co.kr"

// MK article permalinks look like /news/<category>/<numeric id>.
var mkArticleURLRe = regexp.MustCompile(`/news/[^/]+/\d{5,}`)

// MKScraper extracts the daily paper edition from mk.co.kr.
type MKScraper struct {
	client  *http.Client
	baseURL string
	now     func() time.Time
}

var _ scraper.Scraper = (*MKScraper)(nil)

// NewMKScraper wires an HTTP client; a nil client gets a default with timeout.
func NewMKScraper(client *http.Client) *MKScraper {
	if client == nil {
		client = newHTTPClient()
	}
	return &MKScraper{client: client, baseURL: mkDefaultBaseURL, now: time.Now}
}

// Key identifies the source inside the registry.
func (s *MKScraper) Key() string { return "mk" }

// Kind selects the append-with-dedup policy.
func (s *MKScraper) Kind() domain.SourceKind { return domain.KindNews }

// Fetch loads the most recent weekday edition and extracts its articles.
// The edition page uses two markup patterns; the second is only consulted
// when the first yields nothing.
func (s *MKScraper) Fetch(ctx context.Context) ([]domain.Record, error) {
	pageURL := fmt.Sprintf("%s/today-paper?date=%s", s.baseURL, recentWeekday(s.now()))

	doc, err := fetchDocument(ctx, s.client, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("mk today-paper: %w", err)
	}

	records := s.extractNodes(doc)
	if len(records) == 0 {
		records = s.extractRankingStyle(doc)
	}

	return records, nil
}

// Pattern 1: li.news_node containing h3.news_ttl and a.link.
func (s *MKScraper) extractNodes(doc *goquery.Document) []domain.Record {
	var records []domain.Record
	seen := map[string]struct{}{}

	doc.Find("li.news_node").Each(func(_ int, node *goquery.Selection) {
		titleEl := node.Find("h3.news_ttl").First()
		linkEl := node.Find("a.link").First()
		if linkEl.Length() == 0 {
			linkEl = node.Find("a").First()
		}
		if titleEl.Length() == 0 || linkEl.Length() == 0 {
			return
		}

		// Drop the reporter-name span before reading the title text.
		titleEl.Find("span.writing").Remove()
		title := strings.TrimSpace(titleEl.Text())
		href, _ := linkEl.Attr("href")

		if title == "" || !mkArticleURLRe.MatchString(href) {
			return
		}
		href = absoluteURL(s.baseURL, href)
		if _, ok := seen[href]; ok {
			return
		}
		seen[href] = struct{}{}

		section := "오늘의 매경"
		if cate := node.ParentsFiltered("li.cate_page_node").First().Find("em.cate").First(); cate.Length() > 0 {
			if text := strings.TrimSpace(cate.Text()); text != "" {
				section = text
			}
		}

		records = append(records, domain.NewsRecord{Title: title, URL: href, Section: section})
	})

	return records
}

// Pattern 2: a[href] wrapping h3.news_ttl (ranking page style).
func (s *MKScraper) extractRankingStyle(doc *goquery.Document) []domain.Record {
	var records []domain.Record
	seen := map[string]struct{}{}

	doc.Find("a").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if !mkArticleURLRe.MatchString(href) {
			return
		}
		titleEl := a.Find("h3.news_ttl").First()
		if titleEl.Length() == 0 {
			return
		}
		title := strings.TrimSpace(titleEl.Text())
		if title == "" {
			return
		}

		href = absoluteURL(s.baseURL, href)
		if _, ok := seen[href]; ok {
			return
		}
		seen[href] = struct{}{}

		records = append(records, domain.NewsRecord{Title: title, URL: href, Section: "오늘의 매경"})
	})

	return records
}

// recentWeekday returns the most recent Mon-Fri as YYYYMMDD; the paper has
// no weekend editions.
func recentWeekday(t time.Time) string {
	d := t
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, -1)
	}
	return d.Format("20060102")
}
