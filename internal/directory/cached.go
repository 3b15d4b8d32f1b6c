package directory

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type medEntry struct {
	name string
	ok   bool
}

// Cached memoises lookups against a slower directory. Misses on people are
// not cached so newly registered staff become visible immediately.
type Cached struct {
	next   Lookup
	people *expirable.LRU[string, Person]
	meds   *expirable.LRU[string, medEntry]
}

func NewCached(next Lookup, size int, ttl time.Duration) *Cached {
	if size <= 0 {
		size = 256
	}
	return &Cached{
		next:   next,
		people: expirable.NewLRU[string, Person](size, nil, ttl),
		meds:   expirable.NewLRU[string, medEntry](size, nil, ttl),
	}
}

func (c *Cached) FindByID(ctx context.Context, id string) (Person, error) {
	if p, ok := c.people.Get(id); ok {
		return p, nil
	}
	p, err := c.next.FindByID(ctx, id)
	if err != nil {
		return Person{}, err
	}
	c.people.Add(id, p)
	return p, nil
}

func (c *Cached) CanonicalMedicationName(ctx context.Context, name string) (string, bool, error) {
	if e, ok := c.meds.Get(name); ok {
		return e.name, e.ok, nil
	}
	canonical, ok, err := c.next.CanonicalMedicationName(ctx, name)
	if err != nil {
		return "", false, err
	}
	c.meds.Add(name, medEntry{name: canonical, ok: ok})
	return canonical, ok, nil
}
