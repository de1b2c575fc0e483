package provider

import (
	"fmt"
	"strings"

	"github.com/deepuonthemove/lessonforge/internal/domain"
)

// SystemPrompt is the shared instruction block every text adapter sends.
// It asks the model to embed visual-aid markers so the image phase has
// deterministic anchors to find.
const SystemPrompt = `You are an expert educational content author. Write a complete,
well-structured markdown lesson for the given topic outline. Use headings,
short paragraphs, and concrete examples. Where an illustration would help,
add a line of the form:

**Visual Aid Suggestion:** <short description of the illustration>.

Use at most three such suggestions, each on its own line.`

// BuildUserPrompt renders the generation request into the user-role message
// shared by all text adapters.
func BuildUserPrompt(req *domain.GenerationRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic outline:\n%s\n", strings.TrimSpace(req.Outline))

	if req.Options.Style != "" {
		fmt.Fprintf(&b, "\nWriting style: %s", req.Options.Style)
	}
	if req.Options.Length != "" {
		fmt.Fprintf(&b, "\nTarget length: %s", req.Options.Length)
	}
	if req.Options.Audience != "" {
		fmt.Fprintf(&b, "\nIntended audience: %s", req.Options.Audience)
	}
	return b.String()
}
