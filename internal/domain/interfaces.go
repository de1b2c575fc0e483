package domain

import "context"

// TextProvider is one external text-generation service behind a uniform
// adapter: it reports availability, performs one generation call, and
// returns content or a *ProviderCallError.
type TextProvider interface {
	Name() string

	// Available reports whether the adapter is usable with the current
	// configuration. It never performs network I/O.
	Available() bool

	Generate(ctx context.Context, req *GenerationRequest) (*TextResult, error)
}

// ImageProvider is one external image-generation service. An adapter may
// expose several backing models or job types, tried in order by the
// per-hint fallback engine.
type ImageProvider interface {
	Name() string
	Available() bool

	// Models returns the ordered list of backing models/job types.
	Models() []string

	// Generate produces raw image bytes for the prompt using the given
	// backing model, or a *ProviderCallError. Adapters own their own wire
	// protocol: synchronous, async-job polling, or URL-then-fetch.
	Generate(ctx context.Context, prompt, model string) ([]byte, error)
}
