// Package plugin assembles the immutable definition a runtime is started
// with: action registrations, adapters, hooks and typed extensions.
package plugin

import (
	"errors"
	"fmt"
	"reflect"
	"slices"

	"github.com/germanamz/deckhand/pkg/action"
	"github.com/germanamz/deckhand/pkg/adapter"
	"github.com/germanamz/deckhand/pkg/deckctx"
	"github.com/germanamz/deckhand/pkg/hook"
)

// ErrMissingExtension is wrapped by New when a required extension was not
// provided.
var ErrMissingExtension = errors.New("plugin: missing required extension")

// Provider installs one or more extensions.
type Provider func(ext *deckctx.Extensions)

// Requirement checks that an extension is present.
type Requirement func(ext *deckctx.Extensions) error

// With returns a Provider for v.
func With[T any](v T) Provider {
	return func(ext *deckctx.Extensions) { deckctx.Provide(ext, v) }
}

// Require returns a Requirement satisfied when an extension of type T is
// provided.
func Require[T any]() Requirement {
	return func(ext *deckctx.Extensions) error {
		if _, ok := deckctx.Lookup[T](ext); !ok {
			return fmt.Errorf("%w: %s", ErrMissingExtension, reflect.TypeFor[T]())
		}

		return nil
	}
}

// Config describes a plugin.
type Config struct {
	Name       string
	Actions    []action.Registration
	Adapters   []adapter.Adapter
	Hooks      []hook.Func
	Extensions []Provider
	Requires   []Requirement
}

// Definition is a validated Config. It is never modified after New.
type Definition struct {
	name     string
	actions  []action.Registration
	adapters []adapter.Adapter
	hooks    []hook.Func
	ext      []Provider
}

// New validates cfg and returns its Definition.
func New(cfg Config) (*Definition, error) {
	if err := action.Validate(cfg.Actions); err != nil {
		return nil, fmt.Errorf("plugin: %w", err)
	}

	if err := adapter.Validate(cfg.Adapters); err != nil {
		return nil, fmt.Errorf("plugin: %w", err)
	}

	for i, fn := range cfg.Hooks {
		if fn == nil {
			return nil, fmt.Errorf("plugin: hook %d is nil", i)
		}
	}

	probe := deckctx.NewExtensions()
	for _, p := range cfg.Extensions {
		if p == nil {
			return nil, errors.New("plugin: nil extension provider")
		}
		p(probe)
	}

	for _, req := range cfg.Requires {
		if err := req(probe); err != nil {
			return nil, err
		}
	}

	return &Definition{
		name:     cfg.Name,
		actions:  slices.Clone(cfg.Actions),
		adapters: slices.Clone(cfg.Adapters),
		hooks:    slices.Clone(cfg.Hooks),
		ext:      slices.Clone(cfg.Extensions),
	}, nil
}

// MustNew is New for package-level definitions; it panics on error.
func MustNew(cfg Config) *Definition {
	d, err := New(cfg)
	if err != nil {
		panic(err)
	}

	return d
}

func (d *Definition) Name() string                   { return d.name }
func (d *Definition) Actions() []action.Registration { return slices.Clone(d.actions) }
func (d *Definition) Adapters() []adapter.Adapter    { return slices.Clone(d.adapters) }
func (d *Definition) Hooks() []hook.Func             { return slices.Clone(d.hooks) }

// Extensions builds a fresh extension set from the providers.
func (d *Definition) Extensions() *deckctx.Extensions {
	ext := deckctx.NewExtensions()
	for _, p := range d.ext {
		p(ext)
	}

	return ext
}
