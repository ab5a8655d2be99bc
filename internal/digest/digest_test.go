package digest_test

import (
	"strings"
	"testing"

	"aidigest/internal/digest"
	"aidigest/internal/domain"
	"aidigest/internal/planner"

	"github.com/stretchr/testify/require"
)

func TestFormatReadyPlan(t *testing.T) {
	f := digest.NewFormatter("")

	msg, rendered := f.Format(planner.Plan{
		Status: planner.StatusReady,
		Date:   "2026-10-19",
		Items: []domain.Item{
			{Title: "GigaChat 2.0", Summary: "Sber released a model.", URL: "https://habr.com/1", Source: "Habr"},
			{Title: "No summary", URL: "https://vc.ru/2", Source: "Vc.ru"},
		},
	})

	require.True(t, strings.HasPrefix(msg, "🤖 *AI news \\(2026\\-10\\-19\\)*\n\n"), msg)
	require.Contains(t, msg, "📰 *GigaChat 2\\.0*\n📝 Sber released a model\\.\n🔗 [Read on Habr](https://habr.com/1)")
	require.Contains(t, msg, "📰 *No summary*\n🔗 [Read on Vc\\.ru](https://vc.ru/2)")
	require.False(t, strings.HasSuffix(msg, "\n"))
	require.Len(t, rendered, 2)
}

func TestFormatEmptyPlans(t *testing.T) {
	f := digest.NewFormatter("Tech")

	caughtUp, rendered := f.Format(planner.Plan{Status: planner.StatusAllCaughtUp})
	require.Empty(t, rendered)

	delivered, rendered := f.Format(planner.Plan{Status: planner.StatusAllDelivered})
	require.Empty(t, rendered)

	require.NotEmpty(t, caughtUp)
	require.NotEmpty(t, delivered)
	require.NotEqual(t, caughtUp, delivered)
	require.NotEqual(t, f.Failure(), caughtUp)
	require.NotEqual(t, f.Failure(), delivered)
}

func TestFormatStaysWithinTelegramLimit(t *testing.T) {
	f := digest.NewFormatter("")

	items := make([]domain.Item, 0, 30)
	for range 30 {
		items = append(items, domain.Item{
			Title:   strings.Repeat("t", 500),
			Summary: strings.Repeat("s", 500),
			URL:     "https://x.example/" + strings.Repeat("p", 100),
			Source:  "X",
		})
	}

	msg, rendered := f.Format(planner.Plan{Status: planner.StatusReady, Date: "2026-10-19", Items: items})
	require.LessOrEqual(t, len(msg), 4096)
	require.NotEmpty(t, rendered)
	require.Less(t, len(rendered), len(items))
	require.Equal(t, len(rendered), strings.Count(msg, "📰"))
	require.Equal(t, items[:len(rendered)], rendered)
}
