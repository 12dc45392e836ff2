package dataset

import (
	"maps"
	"slices"
)

// Summary aggregates the datasets visible to one user.
type Summary struct {
	NumberOfDatasets   int            `json:"number_of_datasets"`
	CreatorUsernames   []string       `json:"creator_usernames"`
	BaseURIs           []string       `json:"base_uris"`
	Tags               []string       `json:"tags"`
	DatasetsPerCreator map[string]int `json:"datasets_per_creator"`
	DatasetsPerBaseURI map[string]int `json:"datasets_per_base_uri"`
	DatasetsPerTag     map[string]int `json:"datasets_per_tag"`
}

// Summarize computes the summary of a materialized set of descriptors. The
// output depends only on the set: list fields are sorted ascending.
func Summarize(infos []Info) Summary {
	s := Summary{
		NumberOfDatasets:   len(infos),
		DatasetsPerCreator: map[string]int{},
		DatasetsPerBaseURI: map[string]int{},
		DatasetsPerTag:     map[string]int{},
	}
	for i := range infos {
		info := &infos[i]
		s.DatasetsPerCreator[info.CreatorUsername]++
		s.DatasetsPerBaseURI[info.BaseURI]++
		for _, tag := range uniqueSorted(info.Tags) {
			s.DatasetsPerTag[tag]++
		}
	}
	s.CreatorUsernames = sortedKeys(s.DatasetsPerCreator)
	s.BaseURIs = sortedKeys(s.DatasetsPerBaseURI)
	s.Tags = sortedKeys(s.DatasetsPerTag)
	return s
}

func sortedKeys(m map[string]int) []string {
	keys := slices.Sorted(maps.Keys(m))
	if keys == nil {
		return []string{}
	}
	return keys
}
