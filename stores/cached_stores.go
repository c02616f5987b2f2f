package stores

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto"
)

// grantChecker is the shared read path of AssignmentStore and ShareStore.
type grantChecker interface {
	Exists(ctx context.Context, resourceID, userID string) (bool, error)
}

// CachedGrantStore is a read-through ristretto cache over a grant store's
// Exists check. Access decisions themselves are never cached; only the grant
// row lookups feeding the visibility gate are, with a short TTL so revocation
// lag stays bounded.
type CachedGrantStore struct {
	inner grantChecker
	cache *ristretto.Cache
	ttl   time.Duration
}

func NewCachedGrantStore(inner grantChecker, ttl time.Duration) (*CachedGrantStore, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1 << 16,
		MaxCost:     1 << 22,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &CachedGrantStore{inner: inner, cache: cache, ttl: ttl}, nil
}

func grantKey(resourceID, userID string) string {
	return resourceID + "\x00" + userID
}

func (s *CachedGrantStore) Exists(ctx context.Context, resourceID, userID string) (bool, error) {
	key := grantKey(resourceID, userID)
	if v, ok := s.cache.Get(key); ok {
		return v.(bool), nil
	}
	exists, err := s.inner.Exists(ctx, resourceID, userID)
	if err != nil {
		return false, err
	}
	s.cache.SetWithTTL(key, exists, 1, s.ttl)
	return exists, nil
}

// Invalidate drops the cached verdict for one grant. Call after assigning,
// sharing, or revoking through the underlying store.
func (s *CachedGrantStore) Invalidate(resourceID, userID string) {
	s.cache.Del(grantKey(resourceID, userID))
}

// Wait blocks until buffered cache writes are applied. Test helper.
func (s *CachedGrantStore) Wait() {
	s.cache.Wait()
}

func (s *CachedGrantStore) Close() {
	s.cache.Close()
}
