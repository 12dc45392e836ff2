package platform

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// CurrentConfigVersion is assumed when a config omits apiVersion.
const CurrentConfigVersion = "v1"

// VersionStatus says whether a config apiVersion still loads.
type VersionStatus int

const (
	VersionCurrent VersionStatus = iota
	// VersionDeprecated still loads.
	VersionDeprecated
	// VersionRemoved no longer loads.
	VersionRemoved
)

// String implements fmt.Stringer.
func (s VersionStatus) String() string {
	switch s {
	case VersionCurrent:
		return "current"
	case VersionDeprecated:
		return "deprecated"
	case VersionRemoved:
		return "removed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// configVersions lists every config API version ever published.
var configVersions = map[string]VersionStatus{
	"v1": VersionCurrent,
}

// SupportedConfigVersions returns the versions that still load, sorted.
func SupportedConfigVersions() []string {
	return slices.DeleteFunc(slices.Sorted(maps.Keys(configVersions)), func(v string) bool {
		return configVersions[v] == VersionRemoved
	})
}

// peekVersion reads apiVersion without parsing the rest of the document.
// A missing field means the current version.
func peekVersion(data []byte) string {
	var envelope struct {
		APIVersion string `yaml:"apiVersion"`
	}
	if err := yaml.Unmarshal(data, &envelope); err != nil || envelope.APIVersion == "" {
		return CurrentConfigVersion
	}
	return envelope.APIVersion
}

// checkConfigVersion rejects unknown and removed versions.
func checkConfigVersion(version string) (VersionStatus, error) {
	status, ok := configVersions[version]
	switch {
	case !ok:
		return 0, fmt.Errorf("unsupported config apiVersion %q; supported versions: %s",
			version, strings.Join(SupportedConfigVersions(), ", "))
	case status == VersionRemoved:
		return status, fmt.Errorf("config apiVersion %q has been removed", version)
	}
	return status, nil
}
