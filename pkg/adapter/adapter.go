// Package adapter supervises background workers ("adapters"). Each adapter
// runs on its own goroutine and talks to the rest of the plugin only through
// its bus inbox and bus publishes, so a slow or faulty adapter never stalls
// the dispatch goroutine.
package adapter

import (
	"context"
	"errors"
	"fmt"

	"github.com/germanamz/deckhand/pkg/bus"
	"github.com/germanamz/deckhand/pkg/deckctx"
	"github.com/germanamz/deckhand/pkg/lifecycle"
)

// Adapter is a background worker.
//
// Run must return once ctx is cancelled or inbox is closed. An error or panic
// from Run demotes the adapter to Stopped; it is not restarted.
type Adapter interface {
	Name() string
	Policy() lifecycle.StartPolicy
	Topics() []string
	Run(ctx context.Context, cx *deckctx.Context, inbox <-chan *bus.Envelope) error
}

// Initializer is implemented by adapters that need synchronous setup before
// their worker starts. A failing Init leaves the adapter Stopped.
type Initializer interface {
	Init(cx *deckctx.Context) error
}

// StartError reports an adapter that could not be started.
type StartError struct {
	Name string
	Err  error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("adapter %s: start: %v", e.Name, e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }

// ErrUnknownAdapter is returned for names that were never registered.
var ErrUnknownAdapter = errors.New("adapter: unknown adapter")

// RunFunc is the body of a function-backed adapter.
type RunFunc func(ctx context.Context, cx *deckctx.Context, inbox <-chan *bus.Envelope) error

type funcAdapter struct {
	name   string
	policy lifecycle.StartPolicy
	topics []string
	run    RunFunc
}

// NewFunc builds an Adapter from a function.
func NewFunc(name string, policy lifecycle.StartPolicy, topics []string, run RunFunc) Adapter {
	return &funcAdapter{name: name, policy: policy, topics: topics, run: run}
}

func (a *funcAdapter) Name() string                  { return a.name }
func (a *funcAdapter) Policy() lifecycle.StartPolicy { return a.policy }
func (a *funcAdapter) Topics() []string              { return a.topics }

func (a *funcAdapter) Run(ctx context.Context, cx *deckctx.Context, inbox <-chan *bus.Envelope) error {
	return a.run(ctx, cx, inbox)
}

// Validate checks adapter names are present and unique and that lazy adapters
// declare at least one topic to be woken by.
func Validate(adapters []Adapter) error {
	seen := make(map[string]struct{}, len(adapters))
	for _, a := range adapters {
		if a == nil {
			return errors.New("adapter: nil adapter")
		}

		name := a.Name()
		if name == "" {
			return errors.New("adapter: name is required")
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("adapter: duplicate name %q", name)
		}
		seen[name] = struct{}{}

		if a.Policy() == lifecycle.Lazy && len(a.Topics()) == 0 {
			return fmt.Errorf("adapter %q: lazy adapters must declare topics", name)
		}
	}

	return nil
}
