// Package blob stores and retrieves raw uploaded files. Uploads land on the
// local filesystem; retrieval also resolves http(s) references so jobs can
// point at externally hosted files.
package blob

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a reference does not resolve to stored bytes.
var ErrNotFound = errors.New("blob not found")

// Store persists raw file bytes and hands back an opaque reference.
type Store interface {
	// Put stores data and returns a reference that Get and Delete accept.
	Put(ctx context.Context, filename string, data []byte) (string, error)
	// Get resolves a reference to the stored bytes.
	Get(ctx context.Context, ref string) ([]byte, error)
	// Delete removes the blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, ref string) error
}

// Resolver wraps a local Store and additionally resolves http(s) references
// through a Fetcher. Writes and deletes only apply to local references.
type Resolver struct {
	local   Store
	fetcher *Fetcher
}

func NewResolver(local Store, fetcher *Fetcher) *Resolver {
	return &Resolver{local: local, fetcher: fetcher}
}

func (r *Resolver) Put(ctx context.Context, filename string, data []byte) (string, error) {
	return r.local.Put(ctx, filename, data)
}

func (r *Resolver) Get(ctx context.Context, ref string) ([]byte, error) {
	if isRemote(ref) {
		if r.fetcher == nil {
			return nil, fmt.Errorf("no fetcher configured for remote reference %q", ref)
		}
		return r.fetcher.Fetch(ctx, ref)
	}
	return r.local.Get(ctx, ref)
}

func (r *Resolver) Delete(ctx context.Context, ref string) error {
	if isRemote(ref) {
		// Remote blobs are not ours to delete.
		return nil
	}
	return r.local.Delete(ctx, ref)
}

func isRemote(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}
