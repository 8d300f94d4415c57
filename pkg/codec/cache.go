package codec

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/streamhouse/eventflow/pkg/schema"
)

// Store is the slice of the schema registry the codec needs. The
// registry package's client satisfies it; tests substitute fakes.
type Store interface {
	Register(ctx context.Context, subject string, def *schema.Definition) (int, error)
	GetByID(ctx context.Context, id int) (*schema.Definition, error)
}

// Cache memoizes the two schema identities the codec resolves per
// message: id -> definition (decode path) and subject+fingerprint -> id
// (encode path). Entries are populated lazily and never evicted:
// schemas are immutable once assigned an id, so staleness is
// impossible and growth is bounded by the number of distinct schemas
// the process ever sees.
//
// Concurrent misses for the same key are coalesced into a single store
// call; misses for different keys resolve independently.
type Cache struct {
	store Store

	group singleflight.Group

	mu            sync.RWMutex
	byID          map[int]*schema.Definition
	byFingerprint map[string]int
}

// NewCache creates a cache backed by the given store.
func NewCache(store Store) *Cache {
	return &Cache{
		store:         store,
		byID:          make(map[int]*schema.Definition),
		byFingerprint: make(map[string]int),
	}
}

// Resolve returns the definition registered under id, fetching it from
// the store on first sight.
func (c *Cache) Resolve(ctx context.Context, id int) (*schema.Definition, error) {
	c.mu.RLock()
	def, ok := c.byID[id]
	c.mu.RUnlock()
	if ok {
		return def, nil
	}

	// The winning caller's context drives the fetch; latecomers share
	// its result.
	v, err, _ := c.group.Do(fmt.Sprintf("id/%d", id), func() (any, error) {
		c.mu.RLock()
		def, ok := c.byID[id]
		c.mu.RUnlock()
		if ok {
			return def, nil
		}

		fetched, err := c.store.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.byID[id] = fetched
		c.mu.Unlock()
		return fetched, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*schema.Definition), nil
}

// Identify returns the id of def under subject, registering it on
// first use. The lookup key is the definition's structural
// fingerprint, so repeated encodes with equal in-memory definitions
// never re-register.
func (c *Cache) Identify(ctx context.Context, subject string, def *schema.Definition) (int, error) {
	key := subject + "/" + def.Fingerprint()

	c.mu.RLock()
	id, ok := c.byFingerprint[key]
	c.mu.RUnlock()
	if ok {
		return id, nil
	}

	v, err, _ := c.group.Do("subject/"+key, func() (any, error) {
		c.mu.RLock()
		id, ok := c.byFingerprint[key]
		c.mu.RUnlock()
		if ok {
			return id, nil
		}

		registered, err := c.store.Register(ctx, subject, def)
		if err != nil {
			return 0, err
		}

		c.mu.Lock()
		c.byFingerprint[key] = registered
		// Registration also pins the id for the decode path.
		if _, seen := c.byID[registered]; !seen {
			c.byID[registered] = def
		}
		c.mu.Unlock()
		return registered, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

// Len returns the number of distinct schema ids cached. Used by tests
// and debug surfaces.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byID)
}
