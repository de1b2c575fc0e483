// Package visual extracts author-embedded visual-aid hints from generated
// documents and harvests supporting context for image prompts.
package visual

import (
	"strings"

	"github.com/deepuonthemove/lessonforge/internal/domain"
)

// Marker is the fixed phrase authors embed to request an illustration.
// Matching is case-insensitive.
const Marker = "visual aid suggestion:"

// DefaultMaxHints caps how many hints survive extraction.
const DefaultMaxHints = 3

// ExtractHints scans the document for the marker phrase and returns the
// cleaned hints in first-seen order, deduplicated by cleaned text, capped at
// max entries. A document with no marker yields an empty list: no guessed
// illustrations are generated when the author gave no signal.
func ExtractHints(doc string, max int) []domain.Hint {
	if max <= 0 {
		max = DefaultMaxHints
	}

	hints := []domain.Hint{}
	seen := make(map[string]bool)

	for _, line := range strings.Split(doc, "\n") {
		idx := strings.Index(strings.ToLower(line), Marker)
		if idx < 0 {
			continue
		}

		text := CleanHint(line[idx+len(Marker):])
		if text == "" || seen[text] {
			continue
		}
		seen[text] = true

		hints = append(hints, domain.Hint{
			Text:        text,
			MatchedLine: strings.TrimRight(line, "\r"),
		})
		if len(hints) == max {
			break
		}
	}

	return hints
}

// CleanHint strips emphasis markup and the trailing period from the raw
// phrase following the marker.
func CleanHint(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, "*_`")
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ".")
	return strings.TrimSpace(s)
}
