package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"aidigest/internal/domain"

	"github.com/PuerkitoBio/goquery"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36"

func (f *Fetcher) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req) //nolint:gosec // configured source URL
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			f.log.ErrorContext(ctx, "Failed to close response body",
				"error", err,
				"pageURL", pageURL,
				"operation", "fetchDocument",
				"source", f.source.Name)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("do request: unexpected status: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("create document from reader: %w", err)
	}

	return doc, nil
}

// fetchPage scrapes article links matched by the source's item selector.
// The page has no per-item dates, so every matched link is a candidate.
func (f *Fetcher) fetchPage(ctx context.Context) ([]domain.Candidate, error) {
	base, err := url.Parse(f.source.URL)
	if err != nil {
		return nil, fmt.Errorf("parse source URL: %w", err)
	}

	doc, err := f.fetchDocument(ctx, f.source.URL)
	if err != nil {
		return nil, err
	}

	var candidates []domain.Candidate
	seen := make(map[string]struct{})

	doc.Find(f.source.ItemSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if len(candidates) >= f.source.Limit {
			return false
		}

		link := pageItemLink(base, s)
		if link == "" {
			return true
		}
		if _, ok := seen[link]; ok {
			return true
		}

		title := strings.TrimSpace(s.AttrOr("title", ""))
		if title == "" {
			title = s.Find("h1, h2, h3, .title, [class*='title']").First().Text()
		}
		if strings.TrimSpace(title) == "" {
			title = s.Text()
		}

		summary := s.Find("p, .description, [class*='anons'], [class*='lead']").First().Text()

		c, ok := f.candidate(ctx, title, summary, link)
		if !ok {
			return true
		}

		seen[link] = struct{}{}
		candidates = append(candidates, c)

		return true
	})

	return candidates, nil
}

func pageItemLink(base *url.URL, s *goquery.Selection) string {
	href, ok := s.Attr("href")
	if !ok {
		href, ok = s.Find("a[href]").First().Attr("href")
	}
	if !ok || strings.TrimSpace(href) == "" {
		return ""
	}

	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}

	return base.ResolveReference(ref).String()
}
