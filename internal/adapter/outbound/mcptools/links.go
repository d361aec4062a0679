package mcptools

import "regexp"

// markdownLink matches markdown-style links whose target uses an http or
// https scheme, e.g. [Getting started](https://docs.example.com/start).
var markdownLink = regexp.MustCompile(`\[[^\]]*\]\((https?://[^)\s]+)\)`)

// extractSources collects every distinct link target found in text. The
// result has set semantics: duplicates removed by exact string equality,
// ordering among survivors not meaningful (first occurrence kept for
// stability).
func extractSources(text string) []string {
	matches := markdownLink.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	sources := make([]string, 0, len(matches))
	for _, m := range matches {
		url := m[1]
		if _, dup := seen[url]; dup {
			continue
		}
		seen[url] = struct{}{}
		sources = append(sources, url)
	}
	return sources
}
