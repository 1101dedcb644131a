package store

import (
	"context"

	"github.com/patrickmn/go-cache"
)

// MemoryBackend keeps snapshots in process memory. Nothing expires.
type MemoryBackend struct {
	cache *cache.Cache
	quota int
}

// NewMemoryBackend creates an empty backend. A quota <= 0 means DefaultQuota.
func NewMemoryBackend(quota int) *MemoryBackend {
	if quota <= 0 {
		quota = DefaultQuota
	}
	return &MemoryBackend{
		cache: cache.New(cache.NoExpiration, 0),
		quota: quota,
	}
}

func (b *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := b.cache.Get(key)
	if !ok {
		return nil, ErrNotFound
	}
	blob := v.([]byte)
	return append([]byte(nil), blob...), nil
}

func (b *MemoryBackend) Put(_ context.Context, key string, blob []byte) error {
	if len(blob) > b.quota {
		return ErrQuotaExceeded
	}
	b.cache.Set(key, append([]byte(nil), blob...), cache.NoExpiration)
	return nil
}

func (b *MemoryBackend) Delete(_ context.Context, key string) error {
	b.cache.Delete(key)
	return nil
}

// Check always succeeds.
func (b *MemoryBackend) Check(context.Context) error { return nil }
