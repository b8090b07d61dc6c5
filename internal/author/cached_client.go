package author

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"
)

// CachedClient is a read-through Cache in front of another Caller. Concurrent
// lookups for the same book id are coalesced into a single upstream call.
//
// Only successful lookups are cached; not-found and error outcomes are
// re-attempted on the next request for that id.
type CachedClient struct {
	base  Caller
	cache Cache
	group singleflight.Group
}

func NewCachedClient(base Caller, cache Cache) (*CachedClient, error) {
	if base == nil {
		return nil, fmt.Errorf("cached client: base caller is required")
	}
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &CachedClient{base: base, cache: cache}, nil
}

func (c *CachedClient) Call(ctx context.Context, bookID string) (*Details, error) {
	if c == nil || c.base == nil {
		return nil, fmt.Errorf("Call: nil cached client (use NewCachedClient)")
	}

	if details, ok := c.cache.Get(ctx, bookID); ok {
		return details, nil
	}

	v, err, _ := c.group.Do(bookID, func() (interface{}, error) {
		details, err := c.base.Call(ctx, bookID)
		if err != nil {
			return nil, err
		}
		c.cache.Set(ctx, bookID, details)
		return details, nil
	})
	if err != nil {
		return nil, err
	}

	details, ok := v.(*Details)
	if !ok {
		return nil, fmt.Errorf("Call: unexpected cached value type %T", v)
	}
	return details, nil
}
