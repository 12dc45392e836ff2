package storage

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// MemoryProvider keeps objects in memory.
type MemoryProvider struct {
	mu      sync.RWMutex
	buckets map[string]map[string][]byte
}

// NewMemoryProvider creates an empty in-memory provider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{buckets: make(map[string]map[string][]byte)}
}

// Name returns the provider name.
func (*MemoryProvider) Name() string {
	return "memory"
}

// Put stores an object, replacing any previous body.
func (m *MemoryProvider) Put(bucket, key string, body []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.buckets[bucket] == nil {
		m.buckets[bucket] = make(map[string][]byte)
	}
	m.buckets[bucket][key] = slices.Clone(body)
}

// GetObject returns the object body.
func (m *MemoryProvider) GetObject(_ context.Context, bucket, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	body, ok := m.buckets[bucket][key]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, bucket, key)
	}
	return slices.Clone(body), nil
}

// ListObjects lists objects in key order.
func (m *MemoryProvider) ListObjects(_ context.Context, bucket, prefix, delimiter string) ([]ObjectInfo, []string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.buckets[bucket]))
	for k := range m.buckets[bucket] {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	objects := []ObjectInfo{}
	var prefixes []string
	for _, k := range keys {
		if delimiter != "" {
			if idx := strings.Index(k[len(prefix):], delimiter); idx >= 0 {
				p := k[:len(prefix)+idx+len(delimiter)]
				if !slices.Contains(prefixes, p) {
					prefixes = append(prefixes, p)
				}
				continue
			}
		}
		objects = append(objects, ObjectInfo{Key: k, Size: int64(len(m.buckets[bucket][k]))})
	}
	return objects, prefixes, nil
}

// Close is a no-op.
func (*MemoryProvider) Close() error {
	return nil
}

// Verify interface compliance.
var _ Provider = (*MemoryProvider)(nil)
