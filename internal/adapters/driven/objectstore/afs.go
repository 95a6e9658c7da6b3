// Package objectstore reads raw uploaded documents through the viant/afs
// virtual filesystem, so the same adapter serves local directories, mem://
// fixtures in tests, and cloud buckets via scheme-specific connectors.
package objectstore

import (
	"context"
	"fmt"

	"github.com/viant/afs"
	"github.com/viant/afs/url"

	"github.com/custodia-labs/docfield-core/internal/core/domain"
	"github.com/custodia-labs/docfield-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ObjectStore = (*Store)(nil)

// Store implements driven.ObjectStore on an afs.Service rooted at baseURL.
type Store struct {
	fs      afs.Service
	baseURL string
}

// New creates a Store. baseURL carries the scheme and root
// (e.g. "file:///var/uploads", "mem://docfield", "s3://bucket/prefix").
func New(baseURL string) *Store {
	return &Store{
		fs:      afs.New(),
		baseURL: baseURL,
	}
}

// Download returns the raw bytes stored under key.
func (s *Store) Download(ctx context.Context, key string) ([]byte, error) {
	objectURL := url.Join(s.baseURL, key)

	ok, err := s.fs.Exists(ctx, objectURL)
	if err != nil {
		return nil, fmt.Errorf("%w: checking %s: %v", domain.ErrObjectStore, key, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, key)
	}

	data, err := s.fs.DownloadWithURL(ctx, objectURL)
	if err != nil {
		return nil, fmt.Errorf("%w: downloading %s: %v", domain.ErrObjectStore, key, err)
	}
	return data, nil
}

// Exists reports whether an object is present under key.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := s.fs.Exists(ctx, url.Join(s.baseURL, key))
	if err != nil {
		return false, fmt.Errorf("%w: checking %s: %v", domain.ErrObjectStore, key, err)
	}
	return ok, nil
}
