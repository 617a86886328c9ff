package scraper

import (
	"fmt"
	"strings"

	"mvdan.cc/xurls/v2"
)

// FeedURLs extracts the distinct https URLs found in free-form text, in
// order of appearance.
func FeedURLs(text string) ([]string, error) {
	httpsURLRe, err := xurls.StrictMatchingScheme("https://")
	if err != nil {
		return nil, fmt.Errorf("create regexp: %w", err)
	}

	found := httpsURLRe.FindAllString(strings.TrimSpace(text), -1)
	urls := make([]string, 0, len(found))
	seen := make(map[string]struct{}, len(found))

	for _, u := range found {
		u = strings.TrimSpace(u)
		if _, ok := seen[u]; ok {
			continue
		}

		seen[u] = struct{}{}
		urls = append(urls, u)
	}

	return urls, nil
}
