package plugin

import (
	"time"
)

// String returns cfg[key] as a string, or def when absent or not a string.
func String(cfg map[string]any, key, def string) string {
	if v, ok := cfg[key].(string); ok && v != "" {
		return v
	}
	return def
}

// Bool returns cfg[key] as a bool, or def.
func Bool(cfg map[string]any, key string, def bool) bool {
	if v, ok := cfg[key].(bool); ok {
		return v
	}
	return def
}

// Int returns cfg[key] as an int, or def. YAML decodes integers as int and
// JSON as float64; both are accepted.
func Int(cfg map[string]any, key string, def int) int {
	switch v := cfg[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// Duration returns cfg[key] parsed as a duration string, or def.
func Duration(cfg map[string]any, key string, def time.Duration) time.Duration {
	s, ok := cfg[key].(string)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// Obfuscated returns a copy of cfg with the listed keys masked.
func Obfuscated(cfg map[string]any, secrets []string) map[string]any {
	out := make(map[string]any, len(cfg))
	for k, v := range cfg {
		out[k] = v
	}
	for _, k := range secrets {
		if _, ok := out[k]; ok {
			out[k] = Mask
		}
	}
	return out
}

// Mask replaces secret values in published settings.
const Mask = "***"
