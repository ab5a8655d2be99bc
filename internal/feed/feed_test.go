package feed_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"aidigest/internal/domain"
	"aidigest/internal/feed"

	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func serve(t *testing.T, contentType, body string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)

	return srv
}

func rssBody(asOf time.Time) string {
	recent := asOf.Add(-time.Hour).Format(time.RFC1123Z)
	stale := asOf.Add(-72 * time.Hour).Format(time.RFC1123Z)

	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Test</title>
<item><title>Fresh news</title><link>https://news.example/fresh</link>
<description>&lt;p&gt;Neural &lt;b&gt;networks&lt;/b&gt;&lt;/p&gt;</description><pubDate>%s</pubDate></item>
<item><title>Stale news</title><link>https://news.example/stale</link><pubDate>%s</pubDate></item>
<item><title>No link</title><description>see https://news.example/from-text for details</description></item>
<item><title></title><link>https://news.example/untitled</link></item>
</channel></rss>`, recent, stale)
}

func TestRSSFetcher(t *testing.T) {
	asOf := time.Now().UTC()
	srv := serve(t, "application/rss+xml", rssBody(asOf))

	fetchers := feed.NewFetchers([]feed.Source{{Name: "Test", Kind: feed.KindRSS, URL: srv.URL}}, nil, discardLogger())
	require.Len(t, fetchers, 1)
	require.Equal(t, "Test", fetchers[0].Name())

	got, err := fetchers[0].Fetch(context.Background(), asOf)
	require.NoError(t, err)
	require.Len(t, got, 2)

	require.Equal(t, domain.Candidate{
		Title:   "Fresh news",
		Summary: "Neural networks",
		URL:     "https://news.example/fresh",
		Source:  "Test",
	}, got[0])
	require.Equal(t, "https://news.example/from-text", got[1].URL)
}

func TestRSSFetcherRespectsLimit(t *testing.T) {
	asOf := time.Now().UTC()
	srv := serve(t, "application/rss+xml", rssBody(asOf))

	fetchers := feed.NewFetchers([]feed.Source{{Name: "Test", URL: srv.URL, Limit: 1}}, nil, discardLogger())

	got, err := fetchers[0].Fetch(context.Background(), asOf)
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestFetcherFailureIsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	fetchers := feed.NewFetchers([]feed.Source{
		{Name: "Broken RSS", Kind: feed.KindRSS, URL: srv.URL},
		{Name: "Broken page", Kind: feed.KindPage, URL: srv.URL, ItemSelector: "a"},
	}, nil, discardLogger())

	for _, f := range fetchers {
		_, err := f.Fetch(context.Background(), time.Now())

		var fetchErr *domain.FetchError
		require.True(t, errors.As(err, &fetchErr), "source %s", f.Name())
		require.Equal(t, f.Name(), fetchErr.Source)
	}
}

func TestPageFetcher(t *testing.T) {
	body := `<html><body>
<div class="news">
  <a class="item" href="/tech/1"><span class="title">First  AI story</span><p>Lead one</p></a>
  <a class="item" href="https://other.example/2" title="Second story"></a>
  <a class="item" href="/tech/1"><span class="title">Duplicate link</span></a>
  <a class="item"><span class="title">Missing href</span></a>
</div></body></html>`
	srv := serve(t, "text/html; charset=utf-8", body)

	fetchers := feed.NewFetchers([]feed.Source{
		{Name: "Page", Kind: feed.KindPage, URL: srv.URL + "/news/", ItemSelector: "a.item"},
	}, nil, discardLogger())

	got, err := fetchers[0].Fetch(context.Background(), time.Now())
	require.NoError(t, err)
	require.Len(t, got, 2)

	require.Equal(t, "First AI story", got[0].Title)
	require.Equal(t, "Lead one", got[0].Summary)
	require.Equal(t, srv.URL+"/tech/1", got[0].URL)
	require.Equal(t, "Second story", got[1].Title)
	require.Equal(t, "https://other.example/2", got[1].URL)
}

func TestLoadSources(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	content := `sources:
  - name: Habr
    url: https://habr.com/ru/rss/articles/
  - name: Channel
    kind: telegram
    url: https://t.me/s/example_channel
  - name: Site
    kind: page
    url: https://site.example/news
    itemSelector: a.news
    limit: 3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	sources, err := feed.LoadSources(path)
	require.NoError(t, err)
	require.Len(t, sources, 3)
	require.Equal(t, feed.KindRSS, sources[0].Kind)
	require.Equal(t, 10, sources[0].Limit)
	require.Equal(t, feed.KindTelegram, sources[1].Kind)
	require.Equal(t, 3, sources[2].Limit)
}

func TestLoadSourcesRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	content := `sources:
  - name: NoSelector
    kind: page
    url: https://site.example/news
  - name: BadURL
    url: not-a-url
  - name: NotChannel
    kind: telegram
    url: https://example.com/channel
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	_, err := feed.LoadSources(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "source #1")
	require.Contains(t, err.Error(), "source #2")
	require.Contains(t, err.Error(), "source #3")
}

func TestDefaultSourcesAreValid(t *testing.T) {
	sources := feed.DefaultSources()
	require.NotEmpty(t, sources)

	fetchers := feed.NewFetchers(sources, nil, discardLogger())
	require.Len(t, fetchers, len(sources))
}

func TestTelegramMessageCanonicalURL(t *testing.T) {
	require.Equal(t, "https://t.me/example/123", feed.TelegramMessageCanonicalURL("  https://t.me/example/123?single=1 "))
	require.Equal(t, "::not a url::", feed.TelegramMessageCanonicalURL("::not a url::"))
}

func TestTelegramChannelCanonicalURL(t *testing.T) {
	require.Equal(t, "https://t.me/s/example", feed.TelegramChannelCanonicalURL("  example  "))
	require.Empty(t, feed.TelegramChannelCanonicalURL("   "))
}
