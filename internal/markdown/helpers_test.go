package markdown_test

import (
	"testing"

	"aidigest/internal/markdown"
)

func TestEscapeV2(t *testing.T) {
	got := markdown.EscapeV2(`GPT-5 (beta) costs $1.5! a_b \ c`)
	want := `GPT\-5 \(beta\) costs $1\.5\! a\_b \\ c`

	if got != want {
		t.Fatalf("unexpected escape: got %q want %q", got, want)
	}
}

func TestEscapeV2NoSpecials(t *testing.T) {
	if got := markdown.EscapeV2("Новости ИИ"); got != "Новости ИИ" {
		t.Fatalf("expected text to be kept, got %q", got)
	}
}

func TestLink(t *testing.T) {
	got := markdown.Link("Read on vc.ru", "https://vc.ru/a_(b)")
	want := `[Read on vc\.ru](https://vc.ru/a_(b\))`

	if got != want {
		t.Fatalf("unexpected link: got %q want %q", got, want)
	}
}
