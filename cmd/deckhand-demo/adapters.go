package main

import (
	"context"
	"time"

	"github.com/germanamz/deckhand/pkg/adapter"
	"github.com/germanamz/deckhand/pkg/bus"
	"github.com/germanamz/deckhand/pkg/deckctx"
	"github.com/germanamz/deckhand/pkg/lifecycle"
)

// newClock publishes a Tick to actions every interval.
func newClock(interval time.Duration) adapter.Adapter {
	return adapter.NewFunc("clock", lifecycle.Eager, nil,
		func(ctx context.Context, cx *deckctx.Context, _ <-chan *bus.Envelope) error {
			t := time.NewTicker(interval)
			defer t.Stop()

			for {
				select {
				case <-ctx.Done():
					return nil
				case now := <-t.C:
					bus.PublishToActions(cx.Bus(), clockTopic, "", Tick{Now: now})
				}
			}
		})
}

// newEcho answers every Ping with a Pong to the sending key. It is started
// by the first ping.
func newEcho() adapter.Adapter {
	return adapter.NewFunc("echo", lifecycle.Lazy, []string{pingTopic.Name()},
		func(ctx context.Context, cx *deckctx.Context, inbox <-chan *bus.Envelope) error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case env, ok := <-inbox:
					if !ok {
						return nil
					}

					ping, ok := bus.Downcast(env, pingTopic)
					if !ok {
						continue
					}

					bus.NotifyActions(cx.Bus(), bus.ToContext(env.Context()), pongTopic, env.Context(),
						Pong{Latency: time.Since(ping.Sent)})
				}
			}
		})
}
