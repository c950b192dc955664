package main

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// startBridge forwards host frames and the plugin's exit to the program.
// The goroutines only call p.Send. The returned function stops them and
// waits for both to return.
func startBridge(ctx context.Context, p *tea.Program, h *Host, proc *pluginProc) context.CancelFunc {
	bridgeCtx, cancel := context.WithCancel(ctx)

	var wg sync.WaitGroup

	wg.Go(func() {
		for {
			select {
			case <-bridgeCtx.Done():
				return
			case f := <-h.Frames():
				p.Send(frameMsg{frame: f})
			}
		}
	})

	wg.Go(func() {
		select {
		case <-bridgeCtx.Done():
		case <-proc.Done():
			p.Send(exitedMsg{err: proc.Err()})
		}
	})

	return func() {
		cancel()
		wg.Wait()
	}
}
