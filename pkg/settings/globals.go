// Package settings caches the plugin-wide settings the host stores on the
// plugin's behalf. Local writes are pushed back to the host immediately;
// values received from the host hydrate the cache without a push.
package settings

import (
	"context"
	"encoding/json"
	"maps"
	"slices"
	"sync"
)

// Pusher persists a full settings snapshot on the host.
type Pusher interface {
	SetGlobalSettings(settings map[string]any)
}

// Globals is a push-on-write settings cache. It is safe for concurrent use.
type Globals struct {
	push Pusher

	// pushMu orders pushes the same way as the writes they carry.
	pushMu sync.Mutex

	mu       sync.RWMutex
	data     map[string]any
	hydrated bool
	signal   chan struct{}
}

// New creates an empty cache that pushes writes through p. A nil Pusher
// keeps the cache local.
func New(p Pusher) *Globals {
	return &Globals{
		push:   p,
		data:   make(map[string]any),
		signal: make(chan struct{}),
	}
}

// Hydrate replaces the cache with settings received from the host.
func (g *Globals) Hydrate(settings map[string]any) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.data = maps.Clone(settings)
	if g.data == nil {
		g.data = make(map[string]any)
	}
	g.hydrated = true
	g.notify()
}

// Hydrated reports whether the host has delivered settings at least once.
func (g *Globals) Hydrated() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.hydrated
}

// Get returns the value for key and whether it was found.
func (g *Globals) Get(key string) (any, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	v, ok := g.data[key]
	if !ok {
		return nil, false
	}

	return copyValue(v), true
}

// Keys returns the sorted keys.
func (g *Globals) Keys() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return slices.Sorted(maps.Keys(g.data))
}

// Snapshot returns a shallow copy of the cache.
func (g *Globals) Snapshot() map[string]any {
	g.mu.RLock()
	defer g.mu.RUnlock()

	cp := make(map[string]any, len(g.data))
	for k, v := range g.data {
		cp[k] = copyValue(v)
	}

	return cp
}

// Set stores value under key and pushes the result.
func (g *Globals) Set(key string, value any) {
	g.write(func(m map[string]any) { m[key] = value })
}

// SetMany stores every entry of values and pushes once.
func (g *Globals) SetMany(values map[string]any) {
	g.write(func(m map[string]any) { maps.Copy(m, values) })
}

// Delete removes key and pushes the result.
func (g *Globals) Delete(key string) {
	g.write(func(m map[string]any) { delete(m, key) })
}

// Replace swaps the whole cache for settings and pushes it.
func (g *Globals) Replace(settings map[string]any) {
	g.write(func(m map[string]any) {
		clear(m)
		maps.Copy(m, settings)
	})
}

// Update applies fn to the cache under the write lock and pushes the result.
func (g *Globals) Update(fn func(m map[string]any)) {
	g.write(fn)
}

func (g *Globals) write(fn func(m map[string]any)) {
	g.pushMu.Lock()
	defer g.pushMu.Unlock()

	g.mu.Lock()
	fn(g.data)
	snap := maps.Clone(g.data)
	g.notify()
	g.mu.Unlock()

	if g.push != nil {
		g.push.SetGlobalSettings(snap)
	}
}

// notify wakes Watch callers. g.mu must be held for writing.
func (g *Globals) notify() {
	close(g.signal)
	g.signal = make(chan struct{})
}

// Watch blocks until key exists or ctx is done.
func (g *Globals) Watch(ctx context.Context, key string) (any, error) {
	for {
		g.mu.RLock()
		v, ok := g.data[key]
		sig := g.signal
		g.mu.RUnlock()

		if ok {
			return copyValue(v), nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-sig:
		}
	}
}

// copyValue deep-copies raw JSON and byte slices so callers cannot alias the
// cached bytes. Other values are returned as stored.
func copyValue(v any) any {
	switch raw := v.(type) {
	case json.RawMessage:
		return slices.Clone(raw)
	case []byte:
		return slices.Clone(raw)
	default:
		return v
	}
}
