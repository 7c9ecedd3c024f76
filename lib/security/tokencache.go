package security

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTokenNotFound is the cache miss signal, distinct from an empty value.
var ErrTokenNotFound = errors.New("no token cached under this key")

type CachedToken struct {
	Token     string
	Timestamp time.Time
}

// TokenCache stores negotiated tokens keyed by (record id, scope). Both
// implementations are safe for concurrent use; last-writer-wins semantics are
// fine here since token reuse is inherently approximate.
type TokenCache interface {
	Get(ctx context.Context, key string) (CachedToken, error)
	Set(ctx context.Context, key string, token CachedToken) error
}

// MemoryTokenCache is the in-process fallback used in tests and for agents
// without a shared store.
type MemoryTokenCache struct {
	mu     sync.Mutex
	tokens map[string]CachedToken
}

func NewMemoryTokenCache() *MemoryTokenCache {
	return &MemoryTokenCache{tokens: map[string]CachedToken{}}
}

func (c *MemoryTokenCache) Get(ctx context.Context, key string) (CachedToken, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	token, ok := c.tokens[key]
	if !ok {
		return CachedToken{}, ErrTokenNotFound
	}
	return token, nil
}

func (c *MemoryTokenCache) Set(ctx context.Context, key string, token CachedToken) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[key] = token
	return nil
}
