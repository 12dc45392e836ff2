// Package storage provides object storage access and the dtool dataset
// layout reader used to index base URIs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yosida95/uritemplate/v3"
)

// ErrNotFound indicates a missing object.
var ErrNotFound = errors.New("object not found")

// ObjectInfo provides information about a storage object.
type ObjectInfo struct {
	Key          string     `json:"key"`
	Size         int64      `json:"size"`
	LastModified *time.Time `json:"last_modified,omitempty"`
}

// Provider reads objects from a bucket. S3 implements this; MemoryProvider
// backs tests and local runs.
type Provider interface {
	// Name returns the provider name.
	Name() string

	// GetObject returns the object body or ErrNotFound.
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)

	// ListObjects lists objects below prefix. With a delimiter, keys sharing
	// a path segment after prefix are folded into common prefixes.
	ListObjects(ctx context.Context, bucket, prefix, delimiter string) ([]ObjectInfo, []string, error)

	// Close releases resources.
	Close() error
}

// Location is a base URI split into bucket and key prefix.
type Location struct {
	Scheme string `json:"scheme"`
	Bucket string `json:"bucket"`
	Prefix string `json:"prefix,omitempty"`
}

var locationTemplate = uritemplate.MustNew("{scheme}://{bucket}{+path}")

// ParseLocation splits a base URI such as "s3://bucket/some/prefix". The
// prefix is empty or ends in "/".
func ParseLocation(baseURI string) (Location, error) {
	match := locationTemplate.Match(strings.TrimRight(baseURI, "/"))
	if match == nil {
		return Location{}, fmt.Errorf("invalid base uri %q", baseURI)
	}
	loc := Location{
		Scheme: match.Get("scheme").String(),
		Bucket: match.Get("bucket").String(),
	}
	if loc.Scheme == "" || loc.Bucket == "" {
		return Location{}, fmt.Errorf("invalid base uri %q", baseURI)
	}
	if p := strings.Trim(match.Get("path").String(), "/"); p != "" {
		loc.Prefix = p + "/"
	}
	return loc, nil
}

// String returns the base URI.
func (l Location) String() string {
	s := l.Scheme + "://" + l.Bucket
	if l.Prefix != "" {
		s += "/" + strings.TrimSuffix(l.Prefix, "/")
	}
	return s
}

// DatasetURI returns the URI of the dataset uuid under this location.
func (l Location) DatasetURI(uuid string) string {
	return l.String() + "/" + uuid
}
