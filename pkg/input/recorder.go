package input

import (
	"context"
	"sync"

	"github.com/germanamz/deckhand/pkg/logging"
)

// Recorder is a Synth that records steps instead of injecting them. With a
// logger it doubles as a dry-run backend.
type Recorder struct {
	Log logging.Logger
	// Fail, when set, is consulted before recording each step.
	Fail func(Step) error

	mu    sync.Mutex
	steps []Step
}

// Send implements Synth.
func (r *Recorder) Send(_ context.Context, step Step) error {
	if r.Fail != nil {
		if err := r.Fail(step); err != nil {
			return err
		}
	}

	r.mu.Lock()
	r.steps = append(r.steps, step)
	r.mu.Unlock()

	if r.Log != nil {
		r.Log.Log(logging.LevelDebug, "input: step", "step", step.String())
	}

	return nil
}

// Steps returns the recorded steps.
func (r *Recorder) Steps() []Step {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Step(nil), r.steps...)
}

// Reset forgets recorded steps.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.steps = nil
	r.mu.Unlock()
}
