package chunk

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitShortInputYieldsNothing(t *testing.T) {
	if got := Split("Just a short page.", 2400, 3); got != nil {
		t.Errorf("expected no chunks for short input, got %d", len(got))
	}
	if got := Split(strings.Repeat("x", 199), 2400, 3); got != nil {
		t.Errorf("199 chars should be below the floor, got %d chunks", len(got))
	}
}

func TestSplitMeaningfulInputYieldsAtLeastOne(t *testing.T) {
	text := strings.Repeat("a", 200)
	got := Split(text, 2400, 3)
	if len(got) == 0 {
		t.Fatal("200-char input should produce at least one chunk")
	}
	if got[0].Index != 1 {
		t.Errorf("chunk indexes start at 1, got %d", got[0].Index)
	}
}

func TestSplitDeterministic(t *testing.T) {
	text := "About Us\n\n" + strings.Repeat("Acme builds widgets for the modern web. ", 20) +
		"\n\nOur Team\n\n" + strings.Repeat("Jane Doe leads engineering. ", 20)
	a := Split(text, 400, 5)
	b := Split(text, 400, 5)
	if len(a) != len(b) {
		t.Fatalf("non-deterministic chunk count: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("chunk %d differs between runs", i)
		}
	}
}

func TestSplitRespectsMaxChars(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 20; i++ {
		sb.WriteString(strings.Repeat("word ", 30))
		sb.WriteString("\n\n")
	}
	for _, c := range Split(sb.String(), 400, 100) {
		if len(c.Text) > 400 {
			t.Errorf("chunk %d has %d chars, budget 400", c.Index, len(c.Text))
		}
	}
}

func TestSplitHardSplitsOversizedParagraph(t *testing.T) {
	para := strings.Repeat("b", 1000)
	got := Split(para, 300, 10)
	if len(got) != 4 {
		t.Fatalf("1000 chars at 300/chunk should hard-split into 4, got %d", len(got))
	}
	for _, c := range got {
		if len(c.Text) > 300 {
			t.Errorf("hard-split chunk %d exceeds budget: %d chars", c.Index, len(c.Text))
		}
	}
}

func TestSplitHardSplitKeepsRunesIntact(t *testing.T) {
	para := strings.Repeat("日本語のテキスト", 60)
	got := Split(para, 500, 100)
	if len(got) < 2 {
		t.Fatalf("expected a hard split, got %d chunks", len(got))
	}
	var joined strings.Builder
	for _, c := range got {
		if !utf8.ValidString(c.Text) {
			t.Errorf("chunk %d split mid-rune: %q", c.Index, c.Text)
		}
		if len(c.Text) > 500 {
			t.Errorf("chunk %d has %d bytes, budget 500", c.Index, len(c.Text))
		}
		joined.WriteString(c.Text)
	}
	if joined.String() != para {
		t.Error("hard split lost or reordered text")
	}
}

func TestSplitStopsAtMaxChunks(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 50; i++ {
		sb.WriteString(strings.Repeat("para ", 50))
		sb.WriteString("\n\n")
	}
	got := Split(sb.String(), 300, 3)
	if len(got) > 3 {
		t.Errorf("got %d chunks, cap is 3", len(got))
	}
}

func TestSplitHeading(t *testing.T) {
	text := "Leadership Team\n\nJane Doe is the CEO of Acme. " + strings.Repeat("More body text here. ", 20)
	got := Split(text, 2400, 3)
	if len(got) == 0 {
		t.Fatal("expected chunks")
	}
	if got[0].Heading != "Leadership Team" {
		t.Errorf("heading = %q, want %q", got[0].Heading, "Leadership Team")
	}

	long := strings.Repeat("x", 120) + "\n\n" + strings.Repeat("body ", 60)
	got = Split(long, 2400, 3)
	if len(got) == 0 {
		t.Fatal("expected chunks")
	}
	if got[0].Heading != "BODY" {
		t.Errorf("long first line should fall back to BODY, got %q", got[0].Heading)
	}
}
