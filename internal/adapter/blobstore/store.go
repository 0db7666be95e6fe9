// Package blobstore persists downloaded granule files to a gocloud.dev bucket.
// Local directories use file:// URLs; s3://, gs:// and mem:// are also registered.
package blobstore

import (
	"context"
	"fmt"
	"io"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
	"gocloud.dev/gcerrors"
)

// Store writes objects to a single bucket.
// It implements acquisition.Destination.
type Store struct {
	bucket *blob.Bucket
	url    string
}

// Open opens the bucket at url, e.g. "file:///data/gedi_data?create_dir=true".
func Open(ctx context.Context, url string) (*Store, error) {
	bucket, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", url, err)
	}
	return &Store{bucket: bucket, url: url}, nil
}

// New wraps an already opened bucket.
func New(bucket *blob.Bucket) *Store {
	return &Store{bucket: bucket}
}

// Save streams r into key and returns the number of bytes written.
// The object only becomes visible once the writer closes cleanly.
func (s *Store) Save(ctx context.Context, key string, r io.Reader) (int64, error) {
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w, err := s.bucket.NewWriter(wctx, key, nil)
	if err != nil {
		return 0, fmt.Errorf("create writer %s: %w", key, err)
	}

	n, err := io.Copy(w, r)
	if err != nil {
		// Cancelling before Close discards the partial object.
		cancel()
		_ = w.Close()
		return n, fmt.Errorf("write %s: %w", key, err)
	}

	if err := w.Close(); err != nil {
		return n, fmt.Errorf("close %s: %w", key, err)
	}
	return n, nil
}

// Exists reports whether key is already present.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := s.bucket.Exists(ctx, key)
	if err != nil && gcerrors.Code(err) != gcerrors.NotFound {
		return false, fmt.Errorf("stat %s: %w", key, err)
	}
	return ok, nil
}

// Size returns the stored object size in bytes.
func (s *Store) Size(ctx context.Context, key string) (int64, error) {
	attrs, err := s.bucket.Attributes(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("attributes %s: %w", key, err)
	}
	return attrs.Size, nil
}

// URL returns the bucket URL the store was opened with.
func (s *Store) URL() string {
	return s.url
}

// Close releases the underlying bucket.
func (s *Store) Close() error {
	return s.bucket.Close()
}
