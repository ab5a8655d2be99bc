package feed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"aidigest/internal/domain"

	"github.com/mmcdole/gofeed"
	"mvdan.cc/xurls/v2"
)

func (f *Fetcher) fetchRSS(ctx context.Context, cutoff time.Time) ([]domain.Candidate, error) {
	parsed, err := f.libParser.ParseURLWithContext(f.source.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed (URL = %s): %w", f.source.URL, err)
	}

	var candidates []domain.Candidate

	for _, item := range parsed.Items {
		if len(candidates) >= f.source.Limit {
			break
		}

		if published := itemTime(item); !published.IsZero() && published.Before(cutoff) {
			continue
		}

		rawSummary := item.Description
		if strings.TrimSpace(rawSummary) == "" {
			rawSummary = item.Content
		}

		c, ok := f.candidate(ctx, item.Title, rawSummary, itemLink(item))
		if !ok {
			continue
		}

		candidates = append(candidates, c)
	}

	return candidates, nil
}

func itemTime(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}

	return time.Time{}
}

// itemLink falls back to the first URL mentioned in the entry when the feed
// omits the link element.
func itemLink(item *gofeed.Item) string {
	if link := strings.TrimSpace(item.Link); link != "" {
		return link
	}

	if len(item.Links) > 0 {
		if link := strings.TrimSpace(item.Links[0]); link != "" {
			return link
		}
	}

	if guid := strings.TrimSpace(item.GUID); strings.HasPrefix(guid, "http") {
		return guid
	}

	return xurls.Strict().FindString(item.Description + " " + item.Content)
}
