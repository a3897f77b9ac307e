// Package session tracks, per signed-in user, the set of books with an
// active order. It is a UX short-circuit in front of the reservation
// workflow; the workflow's own checks stay authoritative.
package session

import (
	"context"
	"sort"
	"sync"
)

type OrdersSource interface {
	ActiveBookIDs(ctx context.Context, userID int64) ([]int64, error)
}

// Cache is an explicit per-user eligibility cache with a refresh/invalidate
// contract, constructed and passed down instead of living in ambient state.
type Cache struct {
	mu     sync.RWMutex
	userID int64
	src    OrdersSource
	loaded bool
	books  map[int64]struct{}
}

func NewCache(userID int64, src OrdersSource) *Cache {
	return &Cache{
		userID: userID,
		src:    src,
		books:  make(map[int64]struct{}),
	}
}

// Refresh reloads the active-order book set from the source.
func (c *Cache) Refresh(ctx context.Context) error {
	ids, err := c.src.ActiveBookIDs(ctx, c.userID)
	if err != nil {
		return err
	}
	books := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		books[id] = struct{}{}
	}
	c.mu.Lock()
	c.books = books
	c.loaded = true
	c.mu.Unlock()
	return nil
}

// HasActiveOrder reports whether the user holds an active order for the
// book. An unloaded cache reports false: the workflow check decides.
func (c *Cache) HasActiveOrder(bookID int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.loaded {
		return false
	}
	_, ok := c.books[bookID]
	return ok
}

// BookIDs returns the cached active-order book ids, sorted.
func (c *Cache) BookIDs() []int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]int64, 0, len(c.books))
	for id := range c.books {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// MarkReserved records a successful reservation locally, without a reload.
func (c *Cache) MarkReserved(bookID int64) {
	c.mu.Lock()
	c.books[bookID] = struct{}{}
	c.loaded = true
	c.mu.Unlock()
}

// Invalidate drops the cached set; the next HasActiveOrder reports false
// until Refresh runs again.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.books = make(map[int64]struct{})
	c.loaded = false
	c.mu.Unlock()
}

// Manager hands out one Cache per user.
type Manager struct {
	mu     sync.Mutex
	src    OrdersSource
	caches map[int64]*Cache
}

func NewManager(src OrdersSource) *Manager {
	return &Manager{
		src:    src,
		caches: make(map[int64]*Cache),
	}
}

func (m *Manager) Get(userID int64) *Cache {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.caches[userID]
	if !ok {
		c = NewCache(userID, m.src)
		m.caches[userID] = c
	}
	return c
}

func (m *Manager) Drop(userID int64) {
	m.mu.Lock()
	delete(m.caches, userID)
	m.mu.Unlock()
}
