package pipeline

import (
	"strings"
	"testing"

	"github.com/deepuonthemove/lessonforge/internal/domain"
)

func TestSpliceInsertsAfterMatchedLine(t *testing.T) {
	doc := "# Lesson\n\nVisual Aid Suggestion: A leaf diagram.\n\nMore text."
	images := []domain.UploadedImage{{
		URL:         "http://assets.local/leaf.png",
		HintText:    "A leaf diagram",
		MatchedLine: "Visual Aid Suggestion: A leaf diagram.",
	}}

	got, missed := Splice(doc, images)
	if len(missed) != 0 {
		t.Fatalf("unexpected misses: %v", missed)
	}

	want := "# Lesson\n\nVisual Aid Suggestion: A leaf diagram.\n![A leaf diagram](http://assets.local/leaf.png)\n\nMore text."
	if got != want {
		t.Errorf("Splice() =\n%q\nwant\n%q", got, want)
	}
}

func TestSpliceAtEndOfDocument(t *testing.T) {
	doc := "intro\nVisual Aid Suggestion: Last line."
	images := []domain.UploadedImage{{
		URL:         "http://assets.local/x.png",
		HintText:    "Last line",
		MatchedLine: "Visual Aid Suggestion: Last line.",
	}}

	got, _ := Splice(doc, images)
	if !strings.HasSuffix(got, "Visual Aid Suggestion: Last line.\n![Last line](http://assets.local/x.png)") {
		t.Errorf("Splice() = %q", got)
	}
}

func TestSpliceMultipleImagesShiftCorrectly(t *testing.T) {
	doc := "Visual Aid Suggestion: First.\nmiddle\nVisual Aid Suggestion: Second.\nend"
	images := []domain.UploadedImage{
		{URL: "u1", HintText: "First", MatchedLine: "Visual Aid Suggestion: First."},
		{URL: "u2", HintText: "Second", MatchedLine: "Visual Aid Suggestion: Second."},
	}

	got, missed := Splice(doc, images)
	if len(missed) != 0 {
		t.Fatalf("unexpected misses: %v", missed)
	}

	firstIdx := strings.Index(got, "![First](u1)")
	secondIdx := strings.Index(got, "![Second](u2)")
	if firstIdx < 0 || secondIdx < 0 || firstIdx > secondIdx {
		t.Errorf("tokens out of order or missing:\n%s", got)
	}
	if !strings.Contains(got, "Visual Aid Suggestion: Second.\n![Second](u2)\nend") {
		t.Errorf("second token misplaced:\n%s", got)
	}
}

func TestSpliceDuplicateLinesUseFirstOccurrence(t *testing.T) {
	doc := "line\nline\nend"
	images := []domain.UploadedImage{{URL: "u", HintText: "h", MatchedLine: "line"}}

	got, _ := Splice(doc, images)
	if got != "line\n![h](u)\nline\nend" {
		t.Errorf("Splice() = %q", got)
	}
}

func TestSpliceMissingLineIsReported(t *testing.T) {
	doc := "unchanged"
	images := []domain.UploadedImage{{URL: "u", HintText: "gone", MatchedLine: "not present"}}

	got, missed := Splice(doc, images)
	if got != doc {
		t.Errorf("document mutated on miss: %q", got)
	}
	if len(missed) != 1 || missed[0] != "gone" {
		t.Errorf("missed = %v", missed)
	}
}

func TestSpliceNoImages(t *testing.T) {
	doc := "unchanged"
	got, missed := Splice(doc, nil)
	if got != doc || missed != nil {
		t.Errorf("Splice() = %q, %v", got, missed)
	}
}
