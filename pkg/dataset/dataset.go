// Package dataset defines dataset descriptors, the index query contract and
// the pure aggregation used for per-user summaries.
package dataset

import (
	"errors"
	"fmt"
	"strings"
)

// TypeDataset is the only descriptor type accepted at registration.
const TypeDataset = "dataset"

// uuidLength is the length of a canonical textual UUID.
const uuidLength = 36

var (
	// ErrValidation indicates a malformed dataset descriptor.
	ErrValidation = errors.New("invalid dataset info")

	// ErrUnknownURI indicates no dataset is registered under a URI.
	ErrUnknownURI = errors.New("unknown dataset uri")
)

// Info describes one copy of a dataset at one URI.
type Info struct {
	UUID            string         `json:"uuid"`
	URI             string         `json:"uri"`
	BaseURI         string         `json:"base_uri"`
	Type            string         `json:"type"`
	Name            string         `json:"name,omitempty"`
	CreatorUsername string         `json:"creator_username,omitempty"`
	FrozenAt        float64        `json:"frozen_at,omitempty"`
	CreatedAt       float64        `json:"created_at,omitempty"`
	NumberOfItems   int            `json:"number_of_items,omitempty"`
	SizeInBytes     int64          `json:"size_in_bytes,omitempty"`
	Tags            []string       `json:"tags"`
	Readme          string         `json:"readme,omitempty"`
	Manifest        *Manifest      `json:"manifest,omitempty"`
	Annotations     map[string]any `json:"annotations,omitempty"`
}

// Manifest lists the items of a frozen dataset.
type Manifest struct {
	DtoolcoreVersion string                  `json:"dtoolcore_version,omitempty"`
	HashFunction     string                  `json:"hash_function,omitempty"`
	Items            map[string]ManifestItem `json:"items"`
}

// ManifestItem is one entry of a Manifest, keyed by item identifier.
type ManifestItem struct {
	RelPath      string  `json:"relpath"`
	SizeInBytes  int64   `json:"size_in_bytes"`
	Hash         string  `json:"hash"`
	UTCTimestamp float64 `json:"utc_timestamp"`
}

// Validate reports every problem with the descriptor. The returned error
// matches ErrValidation.
func (i *Info) Validate() error {
	var errs []error
	if i.UUID == "" {
		errs = append(errs, fmt.Errorf("%w: uuid is required", ErrValidation))
	} else if len(i.UUID) != uuidLength {
		errs = append(errs, fmt.Errorf("%w: uuid must be %d characters, got %d", ErrValidation, uuidLength, len(i.UUID)))
	}
	if i.Type == "" {
		errs = append(errs, fmt.Errorf("%w: type is required", ErrValidation))
	} else if i.Type != TypeDataset {
		errs = append(errs, fmt.Errorf("%w: type must be %q, got %q", ErrValidation, TypeDataset, i.Type))
	}
	if i.URI == "" {
		errs = append(errs, fmt.Errorf("%w: uri is required", ErrValidation))
	}
	return errors.Join(errs...)
}

// Normalize fills derivable fields: the base URI from the URI when absent and
// a sorted, deduplicated tag set.
func (i *Info) Normalize() {
	if i.BaseURI == "" {
		i.BaseURI = BaseURIOf(i.URI)
	}
	i.Tags = uniqueSorted(i.Tags)
}

// Summary returns a copy without readme, manifest and annotations, the shape
// returned by searches.
func (i Info) Summary() Info {
	i.Readme = ""
	i.Manifest = nil
	i.Annotations = nil
	if i.Tags == nil {
		i.Tags = []string{}
	}
	return i
}

// BaseURIOf returns the base URI a dataset URI lives under, which is the URI
// with its final path segment removed.
func BaseURIOf(uri string) string {
	uri = strings.TrimRight(uri, "/")
	idx := strings.LastIndex(uri, "/")
	if idx < 0 {
		return uri
	}
	if strings.HasSuffix(uri[:idx], ":/") {
		// scheme://name has no parent below the root.
		return uri
	}
	return uri[:idx]
}
