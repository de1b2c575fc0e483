// Package registration wires the built-in provider adapters into the
// factory registry. Keeping registration here, behind one explicit call
// from main, avoids init() side effects in the vendor packages.
package registration

import (
	"github.com/deepuonthemove/lessonforge/internal/provider/anthropic"
	"github.com/deepuonthemove/lessonforge/internal/provider/leonardo"
	"github.com/deepuonthemove/lessonforge/internal/provider/ollama"
	"github.com/deepuonthemove/lessonforge/internal/provider/openai"
	"github.com/deepuonthemove/lessonforge/internal/provider/stability"
)

// RegisterBuiltins registers every built-in adapter factory. Safe to call
// more than once.
func RegisterBuiltins() {
	openai.RegisterFactory()
	anthropic.RegisterFactory()
	ollama.RegisterFactory()
	stability.RegisterFactory()
	leonardo.RegisterFactory()
}
