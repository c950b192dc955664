// Package lifecycle holds the vocabulary shared by the adapter supervisor and
// the code that controls it: start policies, descriptor states and control
// requests.
package lifecycle

import (
	"fmt"
	"strings"
)

// StartPolicy decides when an adapter's worker is started.
type StartPolicy int

const (
	// Eager adapters start during runtime initialisation.
	Eager StartPolicy = iota
	// Lazy adapters start on the first bus publish matching one of their topics.
	Lazy
	// OnAppLaunch adapters start when a monitored application launches and
	// stop once the last one terminated.
	OnAppLaunch
	// Manual adapters start only through a Control request.
	Manual
)

func (p StartPolicy) String() string {
	switch p {
	case Eager:
		return "eager"
	case Lazy:
		return "lazy"
	case OnAppLaunch:
		return "on_app_launch"
	case Manual:
		return "manual"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy parses the String form of a policy.
func ParsePolicy(s string) (StartPolicy, error) {
	switch strings.ToLower(s) {
	case "eager":
		return Eager, nil
	case "lazy":
		return Lazy, nil
	case "on_app_launch":
		return OnAppLaunch, nil
	case "manual":
		return Manual, nil
	default:
		return Eager, fmt.Errorf("lifecycle: unknown start policy %q", s)
	}
}

// State is the lifecycle state of an adapter descriptor.
type State int

const (
	Registered State = iota
	Starting
	Running
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Registered:
		return "registered"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Op is a control operation.
type Op int

const (
	OpStart Op = iota
	OpStop
	OpRestart
)

func (o Op) String() string {
	switch o {
	case OpStart:
		return "start"
	case OpStop:
		return "stop"
	case OpRestart:
		return "restart"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

type selectorKind int

const (
	selectAll selectorKind = iota
	selectName
	selectPolicy
)

// Selector picks the adapters a Control applies to.
type Selector struct {
	kind   selectorKind
	name   string
	policy StartPolicy
}

// All selects every adapter.
func All() Selector { return Selector{kind: selectAll} }

// Named selects the adapter with the given name.
func Named(name string) Selector { return Selector{kind: selectName, name: name} }

// ByPolicy selects every adapter with the given start policy.
func ByPolicy(p StartPolicy) Selector { return Selector{kind: selectPolicy, policy: p} }

// Matches reports whether an adapter with the given name and policy is selected.
func (s Selector) Matches(name string, p StartPolicy) bool {
	switch s.kind {
	case selectName:
		return s.name == name
	case selectPolicy:
		return s.policy == p
	default:
		return true
	}
}

func (s Selector) String() string {
	switch s.kind {
	case selectName:
		return "name:" + s.name
	case selectPolicy:
		return "policy:" + s.policy.String()
	default:
		return "all"
	}
}

// Control asks the supervisor to start, stop or restart adapters.
type Control struct {
	Op     Op
	Target Selector
}

func (c Control) String() string {
	return c.Op.String() + " " + c.Target.String()
}
