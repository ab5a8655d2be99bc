package feed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	"aidigest/internal/domain"
	"aidigest/internal/summarizer"

	"github.com/PuerkitoBio/goquery"
)

const (
	summaryMaxRunes = 150
	summaryEllipsis = "..."
)

// summaries turns raw entry text into the short plain-text summary shown in
// digests. A summarizer is optional; without it the text is truncated.
type summaries struct {
	summarizer summarizer.Summarizer
	cache      *summaryCache
	log        *slog.Logger
}

func newSummaries(s summarizer.Summarizer, log *slog.Logger) *summaries {
	return &summaries{
		summarizer: s,
		cache:      newSummaryCache(summaryCacheMaxEntries),
		log:        log,
	}
}

func (s *summaries) summarize(ctx context.Context, link, raw string) string {
	text := plainText(raw)
	if text == "" || s.summarizer == nil || len([]rune(text)) <= summaryMaxRunes {
		return truncateRunes(text, summaryMaxRunes)
	}

	now := time.Now().UTC()
	cacheKey := summaryCacheKey(link, text)

	if summary, ok := s.cache.get(cacheKey, now); ok {
		return summary
	}

	summary, err := s.summarizer.Summarize(ctx, summarizer.Input{
		Text:      text,
		SourceURL: link,
	})
	if err != nil {
		s.log.WarnContext(ctx, "Failed to summarize entry, truncating instead",
			"error", err,
			"url", link,
			"textLen", len(text))

		return truncateRunes(text, summaryMaxRunes)
	}

	summary = strings.Join(strings.Fields(summary), " ")
	if summary == "" {
		return truncateRunes(text, summaryMaxRunes)
	}

	s.cache.set(cacheKey, summary, now.Add(summaryCacheTTL), now)

	return summary
}

// plainText strips markup and collapses whitespace.
func plainText(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	text := raw
	if strings.ContainsAny(raw, "<&") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
		if err == nil {
			doc.Find("br").Each(func(_ int, br *goquery.Selection) {
				br.ReplaceWithHtml(" ")
			})
			text = doc.Text()
		}
	}

	return strings.Join(strings.Fields(text), " ")
}

func truncateRunes(text string, maxRunes int) string {
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}

	trimmed := strings.TrimSpace(string(runes[:maxRunes]))
	if trimmed == "" {
		return text
	}

	return trimmed + summaryEllipsis
}

func summaryCacheKey(link, text string) string {
	canonical := domain.CanonicalURL(link)
	if canonical == "" || text == "" {
		return ""
	}

	hash := sha256.Sum256([]byte(text))

	return canonical + "|" + hex.EncodeToString(hash[:])
}
