// Deckhand-demo is an example plugin. It registers a counter, a ping that
// round-trips through a lazily started adapter, a clock fed by an eager
// adapter, and a macro key that queues keyboard input on a dry-run synth.
//
// The host starts it with -port, -pluginUUID, -registerEvent and -info.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/germanamz/deckhand/pkg/action"
	"github.com/germanamz/deckhand/pkg/adapter"
	"github.com/germanamz/deckhand/pkg/deckctx"
	"github.com/germanamz/deckhand/pkg/hook"
	"github.com/germanamz/deckhand/pkg/input"
	"github.com/germanamz/deckhand/pkg/logging"
	"github.com/germanamz/deckhand/pkg/plugin"
	"github.com/germanamz/deckhand/pkg/runtime"
)

func main() {
	def, err := definition(input.NewExecutor(&input.Recorder{}))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	runtime.Main(def)
}

func definition(ex *input.Executor) (*plugin.Definition, error) {
	return plugin.New(plugin.Config{
		Name: "deckhand-demo",
		Actions: []action.Registration{
			{UUID: counterUUID, New: func() action.Action { return &counter{} }},
			{UUID: pingUUID, New: func() action.Action { return &pinger{} }},
			{UUID: clockUUID, New: func() action.Action { return &clockFace{} }},
			{UUID: macroUUID, New: func() action.Action { return &macro{} }},
		},
		Adapters: []adapter.Adapter{
			newClock(time.Second),
			newEcho(),
		},
		Hooks: []hook.Func{
			forwardWarnings,
			closeExecutor,
		},
		Extensions: []plugin.Provider{plugin.With(ex)},
		Requires:   []plugin.Requirement{plugin.Require[*input.Executor]()},
	})
}

// forwardWarnings copies warnings and errors into the host's log.
func forwardWarnings(cx *deckctx.Context, ev hook.Event) {
	if ev.Kind != hook.Log || ev.Level < logging.LevelWarn {
		return
	}

	cx.Client().LogMessage(fmt.Sprintf("[%s] %s", ev.Level, ev.Message))
}

func closeExecutor(cx *deckctx.Context, ev hook.Event) {
	if ev.Kind != hook.Exit {
		return
	}

	ex, ok := deckctx.Ext[*input.Executor](cx)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := ex.Close(ctx); err != nil {
		cx.Warn("demo: input executor did not drain", "error", err)
	}
}
