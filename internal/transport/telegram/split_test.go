package telegram

import (
	"strings"
	"testing"
)

func TestSplitTelegramTextShort(t *testing.T) {
	t.Parallel()
	got := splitTelegramText("hello", 100)
	if len(got) != 1 || got[0] != "hello" {
		t.Fatalf("got %v", got)
	}
}

func TestSplitTelegramTextPrefersNewlines(t *testing.T) {
	t.Parallel()
	lines := make([]string, 0, 40)
	for i := 0; i < 40; i++ {
		lines = append(lines, strings.Repeat("x", 20))
	}
	s := strings.Join(lines, "\n")

	chunks := splitTelegramText(s, 100)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len([]rune(c)) > 100 {
			t.Fatalf("chunk %d over limit: %d runes", i, len([]rune(c)))
		}
		// Newline-preferring split should never cut a line in half.
		for _, line := range strings.Split(c, "\n") {
			if len(line) != 20 {
				t.Fatalf("chunk %d has a cut line %q", i, line)
			}
		}
	}
}

func TestSplitTelegramTextNoNewlines(t *testing.T) {
	t.Parallel()
	s := strings.Repeat("a", 250)
	chunks := splitTelegramText(s, 100)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if total := len(chunks[0]) + len(chunks[1]) + len(chunks[2]); total != 250 {
		t.Fatalf("lost content: total %d", total)
	}
}
