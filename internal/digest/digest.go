package digest

import (
	"fmt"
	"strings"

	"aidigest/internal/domain"
	"aidigest/internal/markdown"
	"aidigest/internal/planner"
)

const (
	// DefaultTopic names the digest in message headers.
	DefaultTopic = "AI news"

	telegramMessageMaxLength = 4096
	titleMaxRunes            = 200
	summaryMaxRunes          = 300

	noItemsText      = "😔 No new items today\\."
	allDeliveredText = "✅ You are all caught up, every item of today was already sent\\."
	failureText      = "❌ Failed to get news\\. Please try again later\\."
)

// Formatter renders plans as Telegram MarkdownV2 messages.
type Formatter struct {
	topic string
}

func NewFormatter(topic string) *Formatter {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		topic = DefaultTopic
	}

	return &Formatter{topic: topic}
}

// Format returns the message for a plan and the items it contains. Items that
// do not fit into one Telegram message are left out of both. Empty plans get
// the message matching their status, never an empty string.
func (f *Formatter) Format(plan planner.Plan) (string, []domain.Item) {
	switch plan.Status {
	case planner.StatusReady:
		return f.formatItems(plan.Date, plan.Items)
	case planner.StatusAllDelivered:
		return allDeliveredText, nil
	default:
		return noItemsText, nil
	}
}

// Failure is sent when a cycle could not complete because of a store or
// notifier failure.
func (f *Formatter) Failure() string {
	return failureText
}

func (f *Formatter) formatItems(date string, items []domain.Item) (string, []domain.Item) {
	var b strings.Builder

	fmt.Fprintf(&b, "🤖 *%s \\(%s\\)*\n\n", markdown.EscapeV2(f.topic), markdown.EscapeV2(date))

	rendered := 0
	for _, it := range items {
		entry := formatItem(it)
		if b.Len()+len(entry) > telegramMessageMaxLength {
			break
		}
		b.WriteString(entry)
		rendered++
	}

	return strings.TrimRight(b.String(), "\n"), items[:rendered]
}

func formatItem(it domain.Item) string {
	var b strings.Builder

	title := clip(it.Title, titleMaxRunes)
	fmt.Fprintf(&b, "📰 *%s*\n", markdown.EscapeV2(title))

	if summary := clip(it.Summary, summaryMaxRunes); summary != "" {
		fmt.Fprintf(&b, "📝 %s\n", markdown.EscapeV2(summary))
	}

	if it.URL != "" {
		source := it.Source
		if source == "" {
			source = it.URL
		}
		fmt.Fprintf(&b, "🔗 %s\n", markdown.Link("Read on "+source, it.URL))
	}

	b.WriteString("\n")

	return b.String()
}

func clip(text string, maxRunes int) string {
	text = strings.TrimSpace(text)

	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}

	return strings.TrimSpace(string(runes[:maxRunes])) + "…"
}
