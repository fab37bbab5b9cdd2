// Package filestore persists rendered schema documents.
//
// A target is either a local path, written atomically through a temporary
// file and rename, or an s3://bucket/key URL uploaded to an S3 compatible
// object store.
//
//	err := filestore.Persist(ctx, "src/schema/schema.toml", data, nil)
//	err := filestore.Persist(ctx, "s3://schemas/prod/schema.toml", data, &filestore.ObjectConfig{...})
package filestore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// DefaultPath is where the schema document is written when no target is given
const DefaultPath = "src/schema/schema.toml"

// Store writes a complete document to a location in one step. A reader of
// that location sees either the previous document or the new one.
type Store interface {
	Put(ctx context.Context, location string, data []byte) error
}

// Target is a parsed output destination
type Target struct {
	// Path is set for local targets
	Path string

	// Bucket and Key are set for object store targets
	Bucket string
	Key    string
}

// IsObject reports whether the target lives in an object store
func (t Target) IsObject() bool {
	return t.Bucket != ""
}

func (t Target) String() string {
	if t.IsObject() {
		return "s3://" + t.Bucket + "/" + t.Key
	}
	return t.Path
}

var ErrInvalidTarget = errors.New("invalid output target")

// ParseTarget accepts a filesystem path, a file:// URL or an s3://bucket/key URL
func ParseTarget(raw string) (Target, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Target{Path: DefaultPath}, nil
	}

	switch {
	case strings.HasPrefix(raw, "s3://"):
		u, err := url.Parse(raw)
		if err != nil {
			return Target{}, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
		}
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" || strings.HasSuffix(key, "/") {
			return Target{}, fmt.Errorf("%w: %q must name a bucket and an object key", ErrInvalidTarget, raw)
		}
		return Target{Bucket: u.Host, Key: key}, nil

	case strings.HasPrefix(raw, "file://"):
		u, err := url.Parse(raw)
		if err != nil {
			return Target{}, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
		}
		if u.Path == "" {
			return Target{}, fmt.Errorf("%w: %q has no path", ErrInvalidTarget, raw)
		}
		return Target{Path: u.Path}, nil

	case strings.Contains(raw, "://"):
		return Target{}, fmt.Errorf("%w: unsupported scheme in %q", ErrInvalidTarget, raw)
	}

	return Target{Path: raw}, nil
}

// Persist writes data to target. Object store targets need cfg; local
// targets ignore it.
func Persist(ctx context.Context, target string, data []byte, cfg *ObjectConfig) error {
	t, err := ParseTarget(target)
	if err != nil {
		return err
	}

	if !t.IsObject() {
		return NewLocalStore().Put(ctx, t.Path, data)
	}

	if cfg == nil {
		return fmt.Errorf("%w: %s requires object store settings", ErrInvalidTarget, t)
	}
	store, err := NewMinIOStore(ctx, cfg)
	if err != nil {
		return err
	}
	return store.Put(ctx, t.Bucket+"/"+t.Key, data)
}
