package visual

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/deepuonthemove/lessonforge/internal/domain"
)

// DefaultMaxConcepts caps the supporting concepts harvested into a prompt.
const DefaultMaxConcepts = 5

// SupportingConcepts walks the document's markdown AST and harvests up to
// max supporting concepts: heading texts in document order, then the lead
// sentence of the first paragraph. Hint lines themselves are skipped.
func SupportingConcepts(doc string, max int) []string {
	if max <= 0 {
		max = DefaultMaxConcepts
	}

	source := []byte(doc)
	root := goldmark.New().Parser().Parse(text.NewReader(source))

	var headings []string
	leadSentence := ""

	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			if t := nodeText(node, source); t != "" && !isHintText(t) {
				headings = append(headings, t)
			}
			return ast.WalkSkipChildren, nil
		case *ast.Paragraph:
			if leadSentence == "" {
				if t := nodeText(node, source); t != "" && !isHintText(t) {
					leadSentence = firstSentence(t)
				}
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	concepts := headings
	if leadSentence != "" {
		concepts = append(concepts, leadSentence)
	}
	if len(concepts) > max {
		concepts = concepts[:max]
	}
	return concepts
}

// BuildPrompt combines a hint phrase with supporting concepts from the
// document into an enriched image prompt.
func BuildPrompt(hint domain.Hint, doc string, maxConcepts int) string {
	var b strings.Builder
	b.WriteString("Educational illustration: ")
	b.WriteString(hint.Text)

	concepts := SupportingConcepts(doc, maxConcepts)
	if len(concepts) > 0 {
		b.WriteString(". Context: ")
		b.WriteString(strings.Join(concepts, "; "))
	}
	return b.String()
}

// nodeText flattens the text content of a node's inline children.
func nodeText(n ast.Node, source []byte) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		collectText(c, source, &b)
	}
	return strings.TrimSpace(b.String())
}

func collectText(n ast.Node, source []byte, b *strings.Builder) {
	if t, ok := n.(*ast.Text); ok {
		b.Write(t.Segment.Value(source))
		if t.SoftLineBreak() || t.HardLineBreak() {
			b.WriteByte(' ')
		}
		return
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		collectText(c, source, b)
	}
}

func firstSentence(s string) string {
	if idx := strings.Index(s, ". "); idx >= 0 {
		return s[:idx+1]
	}
	return s
}

func isHintText(s string) bool {
	return strings.Contains(strings.ToLower(s), Marker)
}
