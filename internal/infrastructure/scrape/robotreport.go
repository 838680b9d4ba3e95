package scrape

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"newsdash/internal/domain"
	"newsdash/internal/scraper"
)

const robotReportDefaultBaseURL = "https://www.therobotreport.com"

// RobotReportScraper extracts the news category of The Robot Report.
type RobotReportScraper struct {
	client  *http.Client
	baseURL string
}

var _ scraper.Scraper = (*RobotReportScraper)(nil)

// NewRobotReportScraper wires an HTTP client.
func NewRobotReportScraper(client *http.Client) *RobotReportScraper {
	if client == nil {
		client = newHTTPClient()
	}
	return &RobotReportScraper{client: client, baseURL: robotReportDefaultBaseURL}
}

// Key identifies the source inside the registry.
func (s *RobotReportScraper) Key() string { return "robotreport" }

// Kind selects the append-with-dedup policy.
func (s *RobotReportScraper) Kind() domain.SourceKind { return domain.KindNews }

// Fetch loads the news category listing.
func (s *RobotReportScraper) Fetch(ctx context.Context) ([]domain.Record, error) {
	doc, err := fetchDocument(ctx, s.client, s.baseURL+"/category/news/", nil)
	if err != nil {
		return nil, fmt.Errorf("robotreport list: %w", err)
	}

	var records []domain.Record
	seen := map[string]struct{}{}

	doc.Find("article").Each(func(_ int, article *goquery.Selection) {
		linkEl := article.Find("h2 a.entry-title-link").First()
		if linkEl.Length() == 0 {
			linkEl = article.Find("h2 a").First()
		}
		if linkEl.Length() == 0 {
			linkEl = article.Find("h3 a").First()
		}
		if linkEl.Length() == 0 {
			return
		}

		title := strings.TrimSpace(linkEl.Text())
		href, _ := linkEl.Attr("href")
		if title == "" || href == "" {
			return
		}
		if _, ok := seen[href]; ok {
			return
		}
		seen[href] = struct{}{}

		records = append(records, domain.NewsRecord{Title: title, URL: href})
	})

	return records, nil
}
