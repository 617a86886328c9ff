package scraper

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	maxTextRunes  = 20000
	noiseSelector = "script, style, noscript, template, svg"
	blockSelector = "p, div, li, h1, h2, h3, h4, h5, h6, blockquote, pre, tr"
)

// pageText extracts readable text from an HTML page. When selector matches
// nothing the whole document is used.
func pageText(html []byte, selector string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("create document from reader: %w", err)
	}

	sel := doc.Selection
	if selector != "" {
		if found := doc.Find(selector).First(); found.Length() > 0 {
			sel = found
		}
	}

	return selectionText(sel), nil
}

// fragmentText converts an HTML fragment (WordPress content, RSS description)
// to plain text.
func fragmentText(fragment string) string {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return normalizeText(fragment)
	}

	return selectionText(doc.Selection)
}

func selectionText(sel *goquery.Selection) string {
	sel.Find(noiseSelector).Remove()
	sel.Find("br").Each(func(_ int, br *goquery.Selection) {
		br.ReplaceWithHtml("\n")
	})
	sel.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	return normalizeText(sel.Text())
}

func normalizeText(text string) string {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))

	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			continue
		}
		kept = append(kept, line)
	}

	normalized := strings.Join(kept, "\n")

	runes := []rune(normalized)
	if len(runes) > maxTextRunes {
		normalized = strings.TrimSpace(string(runes[:maxTextRunes]))
	}

	return normalized
}
