// Package assets defines the binary asset store consumed by the image
// pipeline's upload stage.
package assets

import (
	"context"
	"time"
)

// Entry describes one stored asset.
type Entry struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Store persists binary assets and serves them at publicly fetchable URLs.
type Store interface {
	// Upload stores data under a name derived from pathHint and returns the
	// public URL the bytes are served at.
	Upload(ctx context.Context, data []byte, pathHint string) (string, error)

	// Delete removes an asset by its store-relative path. It reports whether
	// anything was removed.
	Delete(ctx context.Context, path string) (bool, error)

	// ListUnderPrefix enumerates assets whose store-relative path starts
	// with prefix.
	ListUnderPrefix(ctx context.Context, prefix string) ([]Entry, error)
}
