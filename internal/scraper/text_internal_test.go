package scraper

import (
	"strings"
	"testing"
)

func TestPageTextStripsNoise(t *testing.T) {
	html := []byte(`<html><head><style>body{}</style></head><body>
		<h1>Title</h1>
		<script>alert(1)</script>
		<p>First   paragraph.</p><p>Second<br>line</p>
	</body></html>`)

	text, err := pageText(html, "body")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "Title\nFirst paragraph.\nSecond\nline"
	if text != want {
		t.Fatalf("unexpected text: got %q want %q", text, want)
	}
}

func TestPageTextFallsBackToDocument(t *testing.T) {
	text, err := pageText([]byte(`<p>Only paragraph</p>`), "article")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if text != "Only paragraph" {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestFragmentTextEmpty(t *testing.T) {
	if got := fragmentText("   "); got != "" {
		t.Fatalf("expected empty text, got %q", got)
	}
}

func TestNormalizeTextTruncates(t *testing.T) {
	long := strings.Repeat("a", maxTextRunes+10)

	if got := normalizeText(long); len([]rune(got)) != maxTextRunes {
		t.Fatalf("expected text to be truncated to %d runes, got %d", maxTextRunes, len([]rune(got)))
	}
}
