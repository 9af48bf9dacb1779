package catalog

import (
	"fmt"
	"sort"
	"sync"
)

// Catalog is a keyed registry of entries, populated once per run. It
// replaces the source's reflective, first-access-memoizing accessor
// pattern (spec §9 "identity caching") with an explicit map built in the
// constructor: Register stores the entry once, and Get always returns that
// same instance, so two references to the same key are guaranteed to be the
// same entry instance within one catalog.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]Entry
	order   []string
}

// New constructs an empty catalog.
func New() *Catalog {
	return &Catalog{entries: make(map[string]Entry)}
}

// Register adds an entry to the catalog. It panics on a duplicate key: this
// is a programming error made at construction time, before any pipeline is
// built, and mirrors how the teacher's registries treat duplicate
// registration as a startup-time fault rather than a recoverable error.
func (c *Catalog) Register(e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[e.Key()]; exists {
		panic(fmt.Sprintf("catalog: duplicate entry key %q", e.Key()))
	}
	c.entries[e.Key()] = e
	c.order = append(c.order, e.Key())
}

// Get returns the entry registered under key, or false if none exists.
func (c *Catalog) Get(key string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok
}

// MustGet returns the entry registered under key, panicking if absent. Used
// by typed accessor helpers constructed after the catalog is built, where a
// missing key is a build-time wiring bug.
func (c *Catalog) MustGet(key string) Entry {
	e, ok := c.Get(key)
	if !ok {
		panic(fmt.Sprintf("catalog: no entry registered under key %q", key))
	}
	return e
}

// Keys returns every registered key in registration order.
func (c *Catalog) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// SortedKeys returns every registered key in lexical order, useful for
// deterministic metadata export.
func (c *Catalog) SortedKeys() []string {
	keys := c.Keys()
	sort.Strings(keys)
	return keys
}

// Get[T] is a package-level typed accessor: it looks up key in c and
// type-asserts it to *TypedEntry[T], returning ok=false on either a missing
// key or a type mismatch (wiring bug).
func Get[T any](c *Catalog, key string) (*TypedEntry[T], bool) {
	e, ok := c.Get(key)
	if !ok {
		return nil, false
	}
	typed, ok := e.(*TypedEntry[T])
	return typed, ok
}

// MustGetTyped is the panic-on-miss counterpart of Get, for call sites
// constructing a pipeline where a missing or mistyped key is a programming
// error.
func MustGetTyped[T any](c *Catalog, key string) *TypedEntry[T] {
	typed, ok := Get[T](c, key)
	if !ok {
		panic(fmt.Sprintf("catalog: entry %q is not registered as the expected type", key))
	}
	return typed
}
