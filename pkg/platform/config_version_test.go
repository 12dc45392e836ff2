package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	verTestV1  = "v1"
	verTestV99 = "v99"
)

func TestPeekVersion(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{name: "explicit v1", data: "apiVersion: v1\nserver:\n  name: test", want: verTestV1},
		{name: "missing apiVersion defaults to v1", data: "server:\n  name: test", want: verTestV1},
		{name: "empty apiVersion defaults to v1", data: "apiVersion: \"\"\n", want: verTestV1},
		{name: "invalid YAML defaults to v1", data: ":::invalid", want: verTestV1},
		{name: "empty input defaults to v1", data: "", want: verTestV1},
		{name: "unknown version returns as-is", data: "apiVersion: v99\n", want: verTestV99},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, peekVersion([]byte(tt.data)))
		})
	}
}

func TestVersionStatus_String(t *testing.T) {
	assert.Equal(t, "current", VersionCurrent.String())
	assert.Equal(t, "deprecated", VersionDeprecated.String())
	assert.Equal(t, "removed", VersionRemoved.String())
	assert.Equal(t, "unknown(99)", VersionStatus(99).String())
}

func TestCheckConfigVersion(t *testing.T) {
	status, err := checkConfigVersion(verTestV1)
	require.NoError(t, err)
	assert.Equal(t, VersionCurrent, status)

	_, err = checkConfigVersion(verTestV99)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "supported versions: v1")

	configVersions["v0"] = VersionRemoved
	t.Cleanup(func() { delete(configVersions, "v0") })
	_, err = checkConfigVersion("v0")
	assert.ErrorContains(t, err, "has been removed")
	assert.Equal(t, []string{verTestV1}, SupportedConfigVersions())
}

func TestParseConfig_UnknownVersion(t *testing.T) {
	_, err := ParseConfig([]byte("apiVersion: v99\n"))
	assert.ErrorContains(t, err, "unsupported config apiVersion")
}
