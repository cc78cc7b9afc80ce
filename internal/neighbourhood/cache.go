package neighbourhood

import (
	"fmt"
	"sync"

	"github.com/ironsheep/ca-segment-mcp/internal/lattice"
)

// Cache memoises a strategy's neighbour lists per cell.
//
// A list is computed the first time its cell is requested and kept until
// Clear, which drops every list at once. Cache is safe for concurrent use.
// Returned slices are shared and must not be modified.
type Cache struct {
	strategy Strategy
	lat      *lattice.Lattice

	mu    sync.RWMutex
	lists [][]lattice.Point
}

// NewCache binds s to l. It fails with lattice.ErrOutOfBounds when the
// strategy reaches past the lattice padding.
func NewCache(l *lattice.Lattice, s Strategy) (*Cache, error) {
	if s.radius > l.Radius() {
		return nil, fmt.Errorf("%w: %v radius %d exceeds padding %d", lattice.ErrOutOfBounds, s.kind, s.radius, l.Radius())
	}
	return &Cache{
		strategy: s,
		lat:      l,
		lists:    make([][]lattice.Point, l.Len()),
	}, nil
}

// Strategy returns the cached geometry.
func (c *Cache) Strategy() Strategy { return c.strategy }

// Neighbours returns p's neighbour list, computing it on first use.
func (c *Cache) Neighbours(p lattice.Point) ([]lattice.Point, error) {
	i, err := c.lat.Index(p)
	if err != nil {
		return nil, fmt.Errorf("neighbours: %w", err)
	}

	c.mu.RLock()
	list := c.lists[i]
	c.mu.RUnlock()
	if list != nil {
		return list, nil
	}

	list = c.strategy.compute(c.lat, p)
	c.mu.Lock()
	if existing := c.lists[i]; existing != nil {
		list = existing
	} else {
		c.lists[i] = list
	}
	c.mu.Unlock()
	return list, nil
}

// Cached returns how many cells currently hold a list.
func (c *Cache) Cached() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, l := range c.lists {
		if l != nil {
			n++
		}
	}
	return n
}

// Clear drops every cached list.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.lists = make([][]lattice.Point, c.lat.Len())
	c.mu.Unlock()
}
