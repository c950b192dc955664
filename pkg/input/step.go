// Package input describes synthetic keyboard and mouse input as
// platform-neutral steps. OS backends implement Synth; plugins build step
// sequences with the helpers in this package and run them through an
// Executor so concurrent macros never interleave.
package input

import (
	"context"
	"fmt"
	"time"
)

// Scan is a set-1 keyboard scancode with its E0 extended flag.
type Scan struct {
	Code     uint16
	Extended bool
}

func (s Scan) String() string {
	return fmt.Sprintf("scan=0x%02X ext=%t", s.Code, s.Extended)
}

// Button is a mouse button.
type Button int

const (
	Left Button = iota
	Right
	Middle
	X1
	X2
)

func (b Button) String() string {
	switch b {
	case Left:
		return "left"
	case Right:
		return "right"
	case Middle:
		return "middle"
	case X1:
		return "x1"
	case X2:
		return "x2"
	default:
		return fmt.Sprintf("button(%d)", int(b))
	}
}

// StepKind says what a Step does.
type StepKind int

const (
	KeyDown StepKind = iota
	KeyUp
	MouseDown
	MouseUp
	Pause
)

// Step is one primitive input action.
type Step struct {
	Kind   StepKind
	Scan   Scan          // KeyDown, KeyUp
	Button Button        // MouseDown, MouseUp
	Delay  time.Duration // Pause
}

func (s Step) String() string {
	switch s.Kind {
	case KeyDown:
		return "key_down(" + s.Scan.String() + ")"
	case KeyUp:
		return "key_up(" + s.Scan.String() + ")"
	case MouseDown:
		return "mouse_down(" + s.Button.String() + ")"
	case MouseUp:
		return "mouse_up(" + s.Button.String() + ")"
	case Pause:
		return "sleep(" + s.Delay.String() + ")"
	default:
		return fmt.Sprintf("step(%d)", int(s.Kind))
	}
}

// Synth injects input into the operating system. Send is never called with
// a Pause step; pauses are timed by the caller.
type Synth interface {
	Send(ctx context.Context, step Step) error
}

// SendAll sends steps in order, sleeping for Pause steps. It stops at the
// first error or when ctx is done.
func SendAll(ctx context.Context, s Synth, steps ...Step) error {
	for _, step := range steps {
		if step.Kind == Pause {
			if err := sleep(ctx, step.Delay); err != nil {
				return err
			}
			continue
		}

		if err := s.Send(ctx, step); err != nil {
			return fmt.Errorf("input: %s: %w", step, err)
		}
	}

	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
