package platform

import (
	"encoding/json"
	"fmt"
	"net/url"

	"gopkg.in/yaml.v3"

	"github.com/txn2/dataset-lookup/pkg/plugin"
)

// Version is the service version, set at build time with
// -ldflags "-X github.com/txn2/dataset-lookup/pkg/platform.Version=...".
var Version = "dev"

// Settings is the immutable merged configuration: the core config plus what
// every active plugin reports. Secrets are masked on the way in.
type Settings struct {
	published []byte
	versions  map[string]string
}

// NewSettings merges cfg with the plugins in set.
func NewSettings(cfg *Config, set *plugin.Set) (*Settings, error) {
	core, err := coreSettings(cfg)
	if err != nil {
		return nil, err
	}

	versions := map[string]string{
		defaultServerName: Version,
		"config":          cfg.APIVersion,
	}
	var plugins []map[string]any
	if set != nil {
		add := func(category plugin.Category, name string, p plugin.Plugin) {
			plugins = append(plugins, map[string]any{
				"type":    string(category),
				"kind":    p.Kind(),
				"version": p.Version(),
				"config":  plugin.Obfuscated(p.Config(), p.SecretKeys()),
			})
			versions[string(category)+"/"+name] = p.Version()
		}
		add(plugin.CategorySearch, set.Search.Kind(), set.Search)
		add(plugin.CategoryRetrieve, set.Retrieve.Kind(), set.Retrieve)
		for _, e := range set.Extensions {
			add(plugin.CategoryExtension, e.Name(), e)
		}
	}
	core["plugins"] = plugins

	published, err := json.Marshal(core)
	if err != nil {
		return nil, fmt.Errorf("encoding settings: %w", err)
	}
	return &Settings{published: published, versions: versions}, nil
}

// coreSettings renders cfg as a generic map with secrets masked.
func coreSettings(cfg *Config) (map[string]any, error) {
	c := *cfg
	c.Plugins = nil
	if c.Auth.JWT.Secret != "" {
		c.Auth.JWT.Secret = plugin.Mask
	}
	c.Database.DSN = maskDSN(c.Database.DSN)
	c.Auth.APIKeys = append(c.Auth.APIKeys[:0:0], c.Auth.APIKeys...)
	for i := range c.Auth.APIKeys {
		c.Auth.APIKeys[i].KeyHash = plugin.Mask
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encoding settings: %w", err)
	}
	var out map[string]any
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decoding settings: %w", err)
	}
	return out, nil
}

// maskDSN redacts the password of a URL style DSN. Other DSN forms are
// masked entirely.
func maskDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" {
		return plugin.Mask
	}
	return u.Redacted()
}

// Published returns a fresh copy of the merged settings.
func (s *Settings) Published() map[string]any {
	var out map[string]any
	_ = json.Unmarshal(s.published, &out)
	return out
}

// Versions returns the versions of the service and every active plugin.
func (s *Settings) Versions() map[string]string {
	out := make(map[string]string, len(s.versions))
	for k, v := range s.versions {
		out[k] = v
	}
	return out
}
