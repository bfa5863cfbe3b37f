package catalog

import (
	"slices"
	"time"
)

type EventKind string

const (
	EventPriceUpdated   EventKind = "price_updated"
	EventProductAdded   EventKind = "product_added"
	EventProductDeleted EventKind = "product_deleted"
	EventCommitted      EventKind = "committed"
)

// Event describes a persisted catalog mutation.
type Event struct {
	Kind       EventKind `json:"kind"`
	ProductIDs []string  `json:"productIds"`
	Updated    int       `json:"updated"`
	Added      int       `json:"added"`
	At         time.Time `json:"at"`
}

// Subscribe registers fn to receive every event emitted after a successful mutation.
// Subscribers run synchronously on the mutating goroutine, after the catalog lock is released.
// The returned func removes the subscription and is safe to call more than once.
func (c *Catalog) Subscribe(fn func(Event)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subscribers[id] = fn
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.subscribers, id)
		c.subMu.Unlock()
	}
}

func (c *Catalog) publish(event Event) {
	c.subMu.Lock()
	ids := make([]int, 0, len(c.subscribers))
	for id := range c.subscribers {
		ids = append(ids, id)
	}
	fns := make([]func(Event), 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		fns = append(fns, c.subscribers[id])
	}
	c.subMu.Unlock()

	for _, fn := range fns {
		fn(event)
	}
}
