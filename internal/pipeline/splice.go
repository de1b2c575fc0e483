package pipeline

import (
	"fmt"
	"strings"

	"github.com/deepuonthemove/lessonforge/internal/domain"
)

// Splice inserts a markdown image reference after each image's matched hint
// line. The search is a literal first-occurrence match recomputed against
// the current (already mutated) document, so earlier insertions shift later
// positions correctly. Images whose matched line is no longer found are
// skipped and reported; a mismatch never fails the run.
func Splice(doc string, images []domain.UploadedImage) (string, []string) {
	var missed []string

	for _, img := range images {
		idx := strings.Index(doc, img.MatchedLine)
		if idx < 0 {
			missed = append(missed, img.HintText)
			continue
		}

		lineEnd := idx + len(img.MatchedLine)
		insertAt := len(doc)
		if nl := strings.IndexByte(doc[lineEnd:], '\n'); nl >= 0 {
			insertAt = lineEnd + nl
		}

		token := fmt.Sprintf("\n![%s](%s)", img.HintText, img.URL)
		doc = doc[:insertAt] + token + doc[insertAt:]
	}

	return doc, missed
}
