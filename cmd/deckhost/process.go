package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/germanamz/deckhand/pkg/launch"
)

// stopGrace is how long the plugin gets to exit after an interrupt.
const stopGrace = 3 * time.Second

// launchArgs builds the arguments passed to the plugin for a host on port.
func launchArgs(l *Layout, port int) (launch.Args, error) {
	info := launch.Info{
		Application: launch.ApplicationInfo{
			Language: "en",
			Platform: runtime.GOOS,
			Version:  "deckhost",
		},
		Plugin:           launch.PluginInfo{UUID: l.Plugin.UUID, Version: "dev"},
		DevicePixelRatio: 1,
		Devices: []launch.DeviceInfo{{
			ID:   l.Device.ID,
			Name: l.Device.Name,
			Size: launch.DeviceSize{Columns: l.Device.Columns, Rows: l.Device.Rows},
		}},
	}

	raw, err := json.Marshal(info)
	if err != nil {
		return launch.Args{}, fmt.Errorf("deckhost: encode info: %w", err)
	}

	return launch.Args{
		Port:          port,
		PluginUUID:    l.Plugin.UUID,
		RegisterEvent: l.Plugin.RegisterEvent,
		Info:          info,
		RawInfo:       string(raw),
	}, nil
}

// pluginProc is a running plugin process.
type pluginProc struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

// Done is closed when the process has exited.
func (p *pluginProc) Done() <-chan struct{} { return p.done }

// Err is the exit error. Only valid after Done is closed.
func (p *pluginProc) Err() error { return p.err }

func (p *pluginProc) Pid() int { return p.cmd.Process.Pid }

// startPlugin starts the plugin process. Cancelling ctx interrupts it and
// kills it after stopGrace.
func startPlugin(ctx context.Context, l *Layout, args launch.Args, out io.Writer) (*pluginProc, error) {
	argv := append(args.Argv(), l.Plugin.Args...)

	cmd := exec.CommandContext(ctx, l.Plugin.Path, argv...) //nolint:gosec // plugin path comes from the layout
	cmd.Env = append(os.Environ(), l.Plugin.Env...)
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = stopGrace

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("deckhost: start plugin: %w", err)
	}

	p := &pluginProc{cmd: cmd, done: make(chan struct{})}
	go func() {
		p.err = cmd.Wait()
		close(p.done)
	}()

	return p, nil
}
