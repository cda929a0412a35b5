// Package spectra provides access to the local tree of reduced HARPS
// spectrum files: discovery, FITS reading, and the already-processed
// filter.
package spectra

import (
	"context"
	"fmt"
	"io"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
)

// reducedPrefix is where the download/untar step leaves the reduced data
// products, relative to the data directory.
const reducedPrefix = "data/reduced/"

// reducedSuffix selects the one-dimensional extracted spectra.
const reducedSuffix = "_s1d_A.fits"

// Store fronts the spectrum tree with a blob bucket so discovery and
// reading go through one seam (local directories via fileblob).
type Store struct {
	bucket *blob.Bucket
}

// OpenStore opens the data directory as a bucket.
func OpenStore(dataDir string) (*Store, error) {
	bucket, err := fileblob.OpenBucket(dataDir, nil)
	if err != nil {
		return nil, fmt.Errorf("open spectrum dir %s: %w", dataDir, err)
	}
	return &Store{bucket: bucket}, nil
}

// Close releases the bucket.
func (s *Store) Close() error {
	return s.bucket.Close()
}

// ListReduced returns the keys of every reduced one-dimensional spectrum
// under data/reduced/.
func (s *Store) ListReduced(ctx context.Context) ([]string, error) {
	var keys []string

	iter := s.bucket.List(&blob.ListOptions{Prefix: reducedPrefix})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list spectra: %w", err)
		}
		if strings.HasSuffix(obj.Key, reducedSuffix) {
			keys = append(keys, obj.Key)
		}
	}

	return keys, nil
}

// Open returns a reader for one spectrum key.
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := s.bucket.NewReader(ctx, key, nil)
	if err != nil {
		return nil, fmt.Errorf("open spectrum %s: %w", key, err)
	}
	return r, nil
}
