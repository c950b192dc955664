package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/germanamz/deckhand/pkg/config"
	"github.com/germanamz/deckhand/pkg/launch"
	"github.com/germanamz/deckhand/pkg/logging"
	"github.com/germanamz/deckhand/pkg/plugin"
)

// Exit codes returned by Main.
const (
	ExitOK     = 0
	ExitFailed = 1
	ExitUsage  = 2
)

// Main runs def as a plugin process: it reads the host's launch arguments,
// loads .env and the file named by DECKHAND_CONFIG, and runs until the host
// disconnects or the process is interrupted. It does not return.
func Main(def *plugin.Definition) {
	os.Exit(run(def, os.Args[1:], os.Stderr))
}

func run(def *plugin.Definition, argv []string, stderr io.Writer) int {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return ExitFailed
	}

	args, err := launch.Parse(argv)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return ExitUsage
	}

	cfg, err := config.FromEnv()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return ExitFailed
	}

	log, closer, err := openLogger(cfg, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return ExitFailed
	}
	defer closer.Close()

	log = log.With("plugin", def.Name(), "uuid", args.PluginUUID)

	rt, err := New(def, args, WithConfig(cfg), WithLogger(log))
	if err != nil {
		log.Error("runtime: setup failed", "error", err)
		return ExitFailed
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rt.Run(ctx); err != nil {
		log.Error("runtime: session failed", "error", err)
		return ExitFailed
	}

	return ExitOK
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func openLogger(cfg config.Config, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	if cfg.LogFile == "" {
		return logging.New(stderr, cfg.Level(), cfg.LogFormat), nopCloser{}, nil
	}

	return logging.Open(cfg.LogFile, cfg.Level(), cfg.LogFormat)
}
