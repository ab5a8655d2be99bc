package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"aidigest/internal/domain"
	"aidigest/internal/summarizer"

	"github.com/mmcdole/gofeed"
)

const (
	httpClientTimeout = 20 * time.Second
	defaultItemLimit  = 10
	fetchGracePeriod  = 10 * time.Minute
)

// Fetcher retrieves candidates from a single configured source.
type Fetcher struct {
	source    Source
	libParser *gofeed.Parser
	client    *http.Client
	summaries *summaries
	log       *slog.Logger
}

// NewFetchers builds one fetcher per source. They share the HTTP client and
// the summary cache.
func NewFetchers(sources []Source, s summarizer.Summarizer, log *slog.Logger) []*Fetcher {
	client := &http.Client{Timeout: httpClientTimeout}
	libParser := gofeed.NewParser()
	libParser.Client = client
	libParser.UserAgent = userAgent

	shared := newSummaries(s, log)

	fetchers := make([]*Fetcher, 0, len(sources))
	for _, src := range sources {
		fetchers = append(fetchers, &Fetcher{
			source:    src.normalized(),
			libParser: libParser,
			client:    client,
			summaries: shared,
			log:       log,
		})
	}

	return fetchers
}

func (f *Fetcher) Name() string {
	return f.source.Name
}

// Fetch performs a single attempt against the source. Candidates older than
// a day before asOf are skipped.
func (f *Fetcher) Fetch(ctx context.Context, asOf time.Time) ([]domain.Candidate, error) {
	cutoff := asOf.Add(-24*time.Hour - fetchGracePeriod)

	var (
		candidates []domain.Candidate
		err        error
	)

	switch f.source.Kind {
	case KindRSS:
		candidates, err = f.fetchRSS(ctx, cutoff)
	case KindPage:
		candidates, err = f.fetchPage(ctx)
	case KindTelegram:
		candidates, err = f.fetchTelegramChannel(ctx, cutoff)
	default:
		err = fmt.Errorf("unsupported source kind %q", f.source.Kind)
	}

	if err != nil {
		return nil, &domain.FetchError{Source: f.source.Name, Err: err}
	}

	return candidates, nil
}

func (f *Fetcher) candidate(ctx context.Context, title, rawSummary, link string) (domain.Candidate, bool) {
	title = strings.Join(strings.Fields(title), " ")
	link = strings.TrimSpace(link)

	if title == "" || link == "" {
		f.log.DebugContext(ctx, "Skipping entry without title or link",
			"source", f.source.Name,
			"title", title,
			"url", link)

		return domain.Candidate{}, false
	}

	return domain.Candidate{
		Title:   title,
		Summary: f.summaries.summarize(ctx, link, rawSummary),
		URL:     link,
		Source:  f.source.Name,
	}, true
}
