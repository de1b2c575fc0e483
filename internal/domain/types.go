package domain

import "time"

// ContentOptions are the style/size knobs a caller can attach to a request.
type ContentOptions struct {
	Style    string `json:"style,omitempty"`
	Length   string `json:"length,omitempty"`
	Audience string `json:"audience,omitempty"`
}

// GenerationRequest is the immutable input to one generation run.
type GenerationRequest struct {
	Outline string         `json:"outline"`
	Options ContentOptions `json:"content_options"`
}

// TextResult is the output of the text-provider fallback chain.
type TextResult struct {
	Content  string
	Provider string
	Model    string
}

// Hint is an author-embedded instruction in generated text requesting an
// illustration at that point. Text is the cleaned phrase; MatchedLine is the
// original literal line it was extracted from, used later to locate the
// splice position.
type Hint struct {
	Text        string `json:"text"`
	MatchedLine string `json:"matched_line"`
}

// GeneratedImage holds raw image bytes between generation and upload.
// It is never persisted; a successful upload turns it into an UploadedImage.
type GeneratedImage struct {
	Payload []byte
	Prompt  string
	Hint    Hint
}

// UploadedImage is the durable record of one generated-and-uploaded image.
// Every UploadedImage traces back to exactly one Hint.
type UploadedImage struct {
	URL         string `json:"url"`
	Prompt      string `json:"prompt"`
	HintText    string `json:"hint_text"`
	MatchedLine string `json:"matched_line"`
}

// Lesson statuses. A run writes exactly one transition:
// generating -> generated (possibly degraded) or generating -> error.
const (
	LessonStatusGenerating = "generating"
	LessonStatusGenerated  = "generated"
	LessonStatusError      = "error"
)

// Lesson is the stored unit of generated content.
type Lesson struct {
	ID             string          `json:"id"`
	Outline        string          `json:"outline"`
	Options        ContentOptions  `json:"content_options"`
	Status         string          `json:"status"`
	Document       string          `json:"document,omitempty"`
	ProviderUsed   string          `json:"provider_used,omitempty"`
	Images         []UploadedImage `json:"images,omitempty"`
	Degraded       bool            `json:"degraded,omitempty"`
	FailureMessage string          `json:"failure_message,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
