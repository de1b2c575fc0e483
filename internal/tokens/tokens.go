// Package tokens estimates token counts for attempt summaries using tiktoken.
package tokens

import (
	"fmt"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

const summaryMaxRunes = 120

// Estimator counts tokens with a lazily-initialized cl100k codec. Counts are
// best-effort: on tokenizer failure it reports zero rather than failing the
// caller, since summaries are diagnostic only.
type Estimator struct {
	once  sync.Once
	codec tokenizer.Codec
	err   error
}

func NewEstimator() *Estimator {
	return &Estimator{}
}

func (e *Estimator) init() {
	e.codec, e.err = tokenizer.Get(tokenizer.Cl100kBase)
}

// Count returns the token count for text, or 0 if the codec is unavailable.
func (e *Estimator) Count(text string) int {
	if e == nil {
		return 0
	}
	e.once.Do(e.init)
	if e.err != nil {
		return 0
	}
	ids, _, err := e.codec.Encode(text)
	if err != nil {
		return 0
	}
	return len(ids)
}

// Summarize produces the truncated one-line summary recorded on an Attempt:
// a prefix of the text plus its token count.
func (e *Estimator) Summarize(text string) string {
	return fmt.Sprintf("%s (%d tokens)", truncate(text, summaryMaxRunes), e.Count(text))
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
