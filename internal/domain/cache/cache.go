// Package cache provides a bounded in-memory cache for prediction results.
package cache

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
)

// Cache stores values by key. Implementations are best effort: callers treat
// every error as a miss and carry on.
type Cache[V any] interface {
	Get(ctx context.Context, key string) (V, bool, error)
	Put(ctx context.Context, key string, value V) error
	Clear()
	Len() int64
}

// node is one entry of the insertion-ordered list.
type node struct {
	key  string
	next *node
}

func (n *node) reset() {
	n.key = ""
	n.next = nil
}

// Bounded is a Cache with FIFO eviction. Values are stored and returned by
// copy, so V should not contain shared references.
type Bounded[V any] struct {
	mu         sync.RWMutex
	values     map[string]V
	head, tail *node // head is the oldest entry
	maxEntries int   // 0 or negative = unbounded
	size       atomic.Int64
	nodePool   sync.Pool
}

// NewBounded creates a bounded cache.
func NewBounded[V any](opts ...Option) *Bounded[V] {
	cfg := config{maxEntries: defaultMaxEntries}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Bounded[V]{
		values:     make(map[string]V),
		maxEntries: cfg.maxEntries,
		nodePool: sync.Pool{
			New: func() interface{} { return &node{} },
		},
	}
}

// Get returns the cached value for key.
func (c *Bounded[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	if err := check(ctx, key); err != nil {
		return zero, false, err
	}

	c.mu.RLock()
	v, ok := c.values[key]
	c.mu.RUnlock()
	return v, ok, nil
}

// Put stores value under key, evicting the oldest entry when full.
// Overwriting an existing key keeps its original position.
func (c *Bounded[V]) Put(ctx context.Context, key string, value V) error {
	if err := check(ctx, key); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.values[key]; exists {
		c.values[key] = value
		return nil
	}

	if c.maxEntries > 0 && len(c.values) >= c.maxEntries {
		c.evictOldest()
	}

	n := c.nodePool.Get().(*node)
	n.key = key
	if c.tail == nil {
		c.head = n
	} else {
		c.tail.next = n
	}
	c.tail = n

	c.values[key] = value
	c.size.Add(1)
	return nil
}

// Clear drops every entry.
func (c *Bounded[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for n := c.head; n != nil; {
		next := n.next
		n.reset()
		c.nodePool.Put(n)
		n = next
	}
	c.head, c.tail = nil, nil
	c.values = make(map[string]V)
	c.size.Store(0)
}

// Len returns the number of cached entries.
func (c *Bounded[V]) Len() int64 {
	return c.size.Load()
}

// evictOldest removes the head of the list. Caller holds c.mu.
func (c *Bounded[V]) evictOldest() {
	n := c.head
	if n == nil {
		return
	}
	c.head = n.next
	if c.head == nil {
		c.tail = nil
	}
	delete(c.values, n.key)
	n.reset()
	c.nodePool.Put(n)
	c.size.Add(-1)
}

func check(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}
