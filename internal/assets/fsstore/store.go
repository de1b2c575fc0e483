// Package fsstore implements the asset store on the local filesystem, with
// uploads served over HTTP at a configured public base URL.
package fsstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/deepuonthemove/lessonforge/internal/assets"
)

// Store writes assets beneath a root directory. The directory is expected
// to be mounted behind the server's /assets file handler (or any static
// host) so BaseURL resolves to the stored bytes.
type Store struct {
	root    string
	baseURL string
}

var _ assets.Store = (*Store)(nil)

// New creates the store, ensuring the root directory exists.
func New(root, baseURL string) (*Store, error) {
	if root == "" {
		return nil, errors.New("asset root directory is not configured")
	}
	if baseURL == "" {
		return nil, errors.New("asset public base URL is not configured")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create asset root: %w", err)
	}
	return &Store{
		root:    root,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}, nil
}

func (s *Store) Upload(ctx context.Context, data []byte, pathHint string) (string, error) {
	if len(data) == 0 {
		return "", errors.New("refusing to upload empty asset")
	}

	name := sanitize(pathHint)
	if name == "" {
		name = "asset"
	}
	// Unique suffix so repeated hints never clobber earlier uploads.
	fileName := fmt.Sprintf("%s-%s.png", name, uuid.New().String()[:8])
	filePath := filepath.Join(s.root, fileName)

	if err := os.WriteFile(filePath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write asset: %w", err)
	}

	return s.baseURL + "/" + fileName, nil
}

func (s *Store) Delete(ctx context.Context, path string) (bool, error) {
	full := filepath.Join(s.root, filepath.Clean("/"+path))
	err := os.Remove(full)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to delete asset: %w", err)
	}
	return true, nil
}

func (s *Store) ListUnderPrefix(ctx context.Context, prefix string) ([]assets.Entry, error) {
	entries := []assets.Entry{}

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if prefix != "" && !strings.HasPrefix(rel, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		entries = append(entries, assets.Entry{
			Path:    rel,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}

	return entries, nil
}

// Root returns the directory assets are written to, for the file server.
func (s *Store) Root() string {
	return s.root
}

// sanitize reduces a path hint to a safe file-name stem.
func sanitize(hint string) string {
	hint = strings.ToLower(strings.TrimSpace(hint))
	var b strings.Builder
	for _, r := range hint {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_', r == '/':
			b.WriteRune('-')
		}
	}
	out := strings.Trim(b.String(), "-")
	if len(out) > 48 {
		out = out[:48]
	}
	return out
}
