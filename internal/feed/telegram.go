package feed

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"aidigest/internal/domain"

	"github.com/PuerkitoBio/goquery"
)

const (
	minPartsForTelegramChannelSlugStartingWithS = 2
	telegramTitleMaxRunes                       = 100

	telegramHost = "t.me"
)

var telegramSlugRe = regexp.MustCompile(`^\w{5,32}$`)

type channelItem struct {
	URL       string
	Text      string
	published time.Time
}

func TelegramMessageCanonicalURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return trimmed
	}

	u.RawQuery = ""
	u.Fragment = ""

	return u.String()
}

func TelegramChannelCanonicalURL(slug string) string {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return ""
	}

	return fmt.Sprintf("https://%s/s/%s", telegramHost, slug)
}

func isTelegramChannelURL(raw string) (bool, string) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false, ""
	}

	if u.Host != telegramHost {
		return false, ""
	}

	path := strings.Trim(u.Path, "/")
	if path == "" {
		return false, ""
	}

	parts := strings.Split(path, "/")

	var slug string

	switch parts[0] {
	case "s":
		if len(parts) < minPartsForTelegramChannelSlugStartingWithS {
			return false, ""
		}
		slug = parts[1]
	default:
		slug = parts[0]
	}

	slug = strings.TrimSpace(slug)

	if !telegramSlugRe.MatchString(slug) {
		return false, ""
	}

	return true, slug
}

// fetchTelegramChannel reads the public web preview of a channel. Each post
// becomes a candidate titled by its first line.
func (f *Fetcher) fetchTelegramChannel(ctx context.Context, cutoff time.Time) ([]domain.Candidate, error) {
	ok, slug := isTelegramChannelURL(f.source.URL)
	if !ok {
		return nil, fmt.Errorf("not a Telegram channel URL %q", f.source.URL)
	}

	doc, err := f.fetchDocument(ctx, TelegramChannelCanonicalURL(slug))
	if err != nil {
		return nil, err
	}

	var (
		items []channelItem
		errs  []error
	)

	doc.Find("a.tgme_widget_message_date").Each(func(_ int, s *goquery.Selection) {
		item, processErr := processFoundDocItem(s)
		if processErr != nil {
			errs = append(errs, fmt.Errorf("process found doc item: %w", processErr))
			return
		}

		items = append(items, item)
	})

	if len(items) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	for _, processErr := range errs {
		f.log.WarnContext(ctx, "Skipping Telegram channel post",
			"error", processErr,
			"source", f.source.Name,
			"slug", slug)
	}

	var candidates []domain.Candidate

	// The preview lists posts oldest first.
	for i := len(items) - 1; i >= 0 && len(candidates) < f.source.Limit; i-- {
		item := items[i]
		if item.published.Before(cutoff) {
			continue
		}

		c, ok := f.candidate(ctx, telegramPostTitle(item.Text), item.Text, item.URL)
		if !ok {
			continue
		}

		candidates = append(candidates, c)
	}

	return candidates, nil
}

func telegramPostTitle(text string) string {
	firstLine, _, _ := strings.Cut(strings.TrimSpace(text), "\n")

	return truncateRunes(strings.TrimSpace(firstLine), telegramTitleMaxRunes)
}

func processFoundDocItem(s *goquery.Selection) (channelItem, error) {
	href, ok := s.Attr("href")
	if !ok || href == "" {
		return channelItem{}, errors.New("href empty")
	}

	href = TelegramMessageCanonicalURL(href)

	var textBuilder strings.Builder
	message := s.ParentsFiltered(".tgme_widget_message").First()
	message.Find(".tgme_widget_message_text, .tgme_widget_message_caption").Each(
		func(_ int, inner *goquery.Selection) {
			inner.Find("br").Each(func(_ int, br *goquery.Selection) {
				br.ReplaceWithHtml("\n")
			})
			fragment := strings.TrimSpace(inner.Text())
			if fragment == "" {
				return
			}
			if textBuilder.Len() > 0 {
				textBuilder.WriteString("\n")
			}
			textBuilder.WriteString(fragment)
		},
	)
	text := strings.TrimSpace(textBuilder.String())

	var t time.Time
	datetime := strings.TrimSpace(s.Find("time").AttrOr("datetime", ""))

	if datetime != "" {
		parsed, timeParseErr := time.Parse(time.RFC3339, datetime)
		if timeParseErr != nil {
			return channelItem{}, fmt.Errorf("parse datetime: %w", timeParseErr)
		}
		t = parsed
	}

	if t.IsZero() {
		t = time.Now().UTC()
	}

	return channelItem{URL: href, Text: text, published: t}, nil
}
