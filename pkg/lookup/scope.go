// Package lookup runs permission-scoped searches, lookups, summaries and
// registrations against the configured plugins.
package lookup

import (
	"slices"

	"github.com/txn2/dataset-lookup/pkg/dataset"
)

// Scope restricts q to the allowed base URIs. An empty q.BaseURIs means
// every allowed base URI; otherwise requested base URIs outside allowed are
// dropped without error. ok is false when nothing remains in scope, in which
// case the caller must return an empty result.
func Scope(q dataset.Query, allowed []string) (dataset.Query, bool) {
	var scope []string
	if len(q.BaseURIs) == 0 {
		scope = slices.Clone(allowed)
	} else {
		for _, b := range q.BaseURIs {
			if slices.Contains(allowed, b) && !slices.Contains(scope, b) {
				scope = append(scope, b)
			}
		}
	}
	slices.Sort(scope)
	q.BaseURIs = scope
	return q, len(scope) > 0
}
