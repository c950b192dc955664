package deckctx

import (
	"reflect"
	"sync"
)

// Extensions is a store of plugin-provided services keyed by their type.
type Extensions struct {
	mu sync.RWMutex
	m  map[reflect.Type]any
}

// NewExtensions creates an empty store.
func NewExtensions() *Extensions {
	return &Extensions{m: make(map[reflect.Type]any)}
}

// Provide registers v as the extension of type T, replacing any previous one.
func Provide[T any](e *Extensions, v T) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.m[reflect.TypeFor[T]()] = v
}

// Lookup returns the extension of type T.
func Lookup[T any](e *Extensions) (T, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	v, ok := e.m[reflect.TypeFor[T]()].(T)

	return v, ok
}

// Ext returns the extension of type T from cx.
func Ext[T any](cx *Context) (T, bool) {
	return Lookup[T](cx.ext)
}
