package scrape

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"newsdash/internal/domain"
	"newsdash/internal/scraper"
)

const (
	yes24DefaultBaseURL = "https://www.yes24.com"
	yes24ListSize       = 30
)

// Yes24Scraper pulls the monthly bestseller top 30 from YES24.
type Yes24Scraper struct {
	client  *http.Client
	baseURL string
}

var _ scraper.Scraper = (*Yes24Scraper)(nil)

// NewYes24Scraper wires an HTTP client.
func NewYes24Scraper(client *http.Client) *Yes24Scraper {
	if client == nil {
		client = newHTTPClient()
	}
	return &Yes24Scraper{client: client, baseURL: yes24DefaultBaseURL}
}

// Key identifies the source inside the registry.
func (s *Yes24Scraper) Key() string { return "bestseller_kr" }

// Kind selects the full-replace policy.
func (s *Yes24Scraper) Kind() domain.SourceKind { return domain.KindBestseller }

// Fetch loads the monthly bestseller list in page order.
func (s *Yes24Scraper) Fetch(ctx context.Context) ([]domain.Record, error) {
	listURL := fmt.Sprintf(
		"%s/product/category/monthbestseller?categoryNumber=001&pageNumber=1&pageSize=%d",
		s.baseURL, yes24ListSize,
	)
	headers := map[string]string{"Accept-Language": "ko-KR,ko;q=0.9"}

	doc, err := fetchDocument(ctx, s.client, listURL, headers)
	if err != nil {
		return nil, fmt.Errorf("yes24 bestseller: %w", err)
	}

	var records []domain.Record
	doc.Find(".itemUnit").Each(func(i int, item *goquery.Selection) {
		if i >= yes24ListSize {
			return
		}

		titleEl := item.Find("a.gd_name").First()
		if titleEl.Length() == 0 {
			return
		}
		title := strings.TrimSpace(titleEl.Text())
		href, _ := titleEl.Attr("href")
		if title == "" {
			return
		}
		href = absoluteURL(s.baseURL, href)

		rank := len(records) + 1
		if rankText := strings.TrimSpace(item.Find("em.ico.rank").First().Text()); rankText != "" {
			if n, err := strconv.Atoi(rankText); err == nil {
				rank = n
			}
		}

		author := strings.TrimSpace(item.Find(".info_auth a").First().Text())

		imageURL := ""
		if img := item.Find("img.lazy").First(); img.Length() > 0 {
			imageURL, _ = img.Attr("data-original")
			if imageURL == "" {
				imageURL, _ = img.Attr("src")
			}
		}

		records = append(records, domain.BestsellerRecord{
			Rank:     rank,
			Title:    title,
			Author:   author,
			URL:      href,
			ImageURL: imageURL,
		})
	})

	return records, nil
}
