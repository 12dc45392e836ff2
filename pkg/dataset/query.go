package dataset

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// Query is a search request as submitted by a caller.
type Query struct {
	BaseURIs         []string `json:"base_uris,omitempty"`
	FreeText         string   `json:"free_text,omitempty"`
	UUIDs            []string `json:"uuids,omitempty"`
	CreatorUsernames []string `json:"creator_usernames,omitempty"`
	Tags             []string `json:"tags,omitempty"`
}

// Filter is the structural predicate an index evaluates.
//
// BaseURIs, CreatorUsernames and UUIDs match when the field equals any listed
// value. FreeText matches when any of its tokens hits. Tags matches only when
// every listed tag is present. Groups combine with AND and an empty optional
// group is unconstrained. BaseURIs is always applied: an empty list matches
// nothing.
type Filter struct {
	BaseURIs         []string
	CreatorUsernames []string
	UUIDs            []string
	FreeText         string
	Tags             []string
}

// Filter converts a scoped query into an index filter.
func (q Query) Filter() Filter {
	return Filter{
		BaseURIs:         q.BaseURIs,
		CreatorUsernames: q.CreatorUsernames,
		UUIDs:            q.UUIDs,
		FreeText:         strings.TrimSpace(q.FreeText),
		Tags:             q.Tags,
	}
}

// Match evaluates the filter against a descriptor in memory.
func (f Filter) Match(info *Info) bool {
	if !slices.Contains(f.BaseURIs, info.BaseURI) {
		return false
	}
	if len(f.CreatorUsernames) > 0 && !slices.Contains(f.CreatorUsernames, info.CreatorUsername) {
		return false
	}
	if len(f.UUIDs) > 0 && !slices.Contains(f.UUIDs, info.UUID) {
		return false
	}
	for _, tag := range f.Tags {
		if !slices.Contains(info.Tags, tag) {
			return false
		}
	}
	if f.FreeText != "" && !matchesText(Tokenize(f.FreeText), info) {
		return false
	}
	return true
}

func matchesText(tokens []string, info *Info) bool {
	if len(tokens) == 0 {
		return true
	}
	fields := []string{info.Name, info.Readme, info.CreatorUsername, info.URI, strings.Join(info.Tags, " ")}
	words := map[string]bool{}
	for _, field := range fields {
		for _, w := range Tokenize(field) {
			words[w] = true
		}
	}
	for _, t := range tokens {
		if words[t] {
			return true
		}
	}
	return false
}

var tokenRe = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// Tokenize splits free text into lowercase word tokens. Punctuation never
// reaches an index, so tokens are safe to embed in text search expressions.
func Tokenize(s string) []string {
	raw := tokenRe.FindAllString(strings.ToLower(s), -1)
	return uniqueSorted(raw)
}

const (
	// DefaultPageSize applies when a caller requests a page without a size.
	DefaultPageSize = 10

	// MaxPageSize caps the page size a caller may request.
	MaxPageSize = 100
)

// Page is a 1-based pagination window.
type Page struct {
	Number int
	Size   int
}

// Normalize clamps the window to valid values.
func (p *Page) Normalize() {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
}

// Offset is the number of records preceding the page.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// Bounds returns the slice bounds of the page within n records.
func (p Page) Bounds(n int) (start, end int) {
	start = min(p.Offset(), n)
	end = min(start+p.Size, n)
	return start, end
}

// SortField orders results by one field.
type SortField struct {
	Field string
	Desc  bool
}

// Sort is an ordered list of sort keys.
type Sort []SortField

// sortableFields lists the fields a caller may sort on.
var sortableFields = []string{
	"uuid", "uri", "base_uri", "name", "creator_username",
	"frozen_at", "created_at", "number_of_items", "size_in_bytes",
}

// ParseSort parses "-frozen_at,name" style sort expressions. A leading "-"
// sorts descending, a leading "+" or none ascending.
func ParseSort(expr string) (Sort, error) {
	var s Sort
	for part := range strings.SplitSeq(expr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		field := SortField{Field: part}
		switch part[0] {
		case '-':
			field = SortField{Field: part[1:], Desc: true}
		case '+':
			field = SortField{Field: part[1:]}
		}
		if !slices.Contains(sortableFields, field.Field) {
			return nil, fmt.Errorf("%w: cannot sort by %q", ErrValidation, field.Field)
		}
		s = append(s, field)
	}
	return s, nil
}

// OrDefault returns the sort, or uri ascending when empty.
func (s Sort) OrDefault() Sort {
	if len(s) == 0 {
		return Sort{{Field: "uri"}}
	}
	return s
}

// Compare orders two descriptors by the sort keys, falling back to URI so
// that the order is total.
func (s Sort) Compare(a, b *Info) int {
	for _, f := range s.OrDefault() {
		c := compareField(f.Field, a, b)
		if f.Desc {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return strings.Compare(a.URI, b.URI)
}

func compareField(field string, a, b *Info) int {
	switch field {
	case "uuid":
		return strings.Compare(a.UUID, b.UUID)
	case "base_uri":
		return strings.Compare(a.BaseURI, b.BaseURI)
	case "name":
		return strings.Compare(a.Name, b.Name)
	case "creator_username":
		return strings.Compare(a.CreatorUsername, b.CreatorUsername)
	case "frozen_at":
		return cmpOrdered(a.FrozenAt, b.FrozenAt)
	case "created_at":
		return cmpOrdered(a.CreatedAt, b.CreatedAt)
	case "number_of_items":
		return cmpOrdered(a.NumberOfItems, b.NumberOfItems)
	case "size_in_bytes":
		return cmpOrdered(a.SizeInBytes, b.SizeInBytes)
	default:
		return strings.Compare(a.URI, b.URI)
	}
}

func cmpOrdered[T int | int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Result is one page of search results plus the total match count.
type Result struct {
	Datasets []Info `json:"datasets"`
	Total    int    `json:"total"`
}

func uniqueSorted(in []string) []string {
	if len(in) == 0 {
		return []string{}
	}
	out := slices.Clone(in)
	slices.Sort(out)
	return slices.Compact(out)
}
