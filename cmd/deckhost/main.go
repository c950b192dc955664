// Deckhost runs a plugin against a simulated keypad. It serves the host side
// of the websocket protocol, launches the plugin with the usual launch
// arguments and shows a terminal UI for pressing keys.
//
//	deckhost init [-layout deckhost.yaml] [-force]
//	deckhost [-layout deckhost.yaml] [-env .env] [-log deckhost.log]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/germanamz/deckhand/pkg/config"
	"github.com/germanamz/deckhand/pkg/logging"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "init" {
		initCmd := flag.NewFlagSet("init", flag.ExitOnError)
		initCmd.Usage = func() {
			fmt.Fprintf(os.Stderr, "Usage: deckhost init [flags]\n\nCreate a layout file interactively.\n\nFlags:\n")
			initCmd.PrintDefaults()
		}
		path := initCmd.String("layout", DefaultLayoutPath, "layout file to create")
		force := initCmd.Bool("force", false, "overwrite an existing layout")
		_ = initCmd.Parse(os.Args[2:])

		if err := runInit(*path, *force); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}

		return
	}

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: deckhost [flags]\n       deckhost init [flags]\n\nFlags:\n")
		flag.PrintDefaults()
	}

	layoutPath := flag.String("layout", DefaultLayoutPath, "layout file")
	envFile := flag.String("env", ".env", "path to .env file (ignored if missing)")
	logPath := flag.String("log", "deckhost.log", "host log file")
	level := flag.String("level", "debug", "host log level")
	port := flag.Int("port", 0, "port to listen on (0 picks a free one)")
	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := run(*layoutPath, *logPath, *level, *port); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func runInit(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use -force to overwrite)", path)
	}

	l, err := runWizard()
	if err != nil {
		return err
	}

	data, err := l.Marshal()
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}

	fmt.Printf("Wrote %s\n", path)

	return nil
}

func run(layoutPath, logPath, levelName string, port int) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	l, err := LoadLayout(layoutPath)
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return err
	}

	log, closer, err := logging.Open(logPath, level, "text")
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	out, closeOut, err := pluginOutput(l.Plugin.LogFile)
	if err != nil {
		return err
	}
	defer func() { _ = closeOut() }()

	ln, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		return fmt.Errorf("deckhost: listen: %w", err)
	}

	host := NewHost(l, log, 256)
	srv := &http.Server{Handler: host, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("deckhost: serve", "error", err)
		}
	}()
	defer shutdown(srv, log)

	args, err := launchArgs(l, ln.Addr().(*net.TCPAddr).Port)
	if err != nil {
		return err
	}

	pluginCtx, stopPlugin := context.WithCancel(ctx)
	defer stopPlugin()

	proc, err := startPlugin(pluginCtx, l, args, out)
	if err != nil {
		return err
	}
	log.Info("deckhost: plugin started", "pid", proc.Pid(), "port", args.Port, "uuid", args.PluginUUID)

	p := tea.NewProgram(newHostModel(ctx, host, l), tea.WithAltScreen(), tea.WithContext(ctx))
	stopBridge := startBridge(ctx, p, host, proc)

	_, err = p.Run()
	stopBridge()

	stopPlugin()
	<-proc.Done()
	log.Info("deckhost: plugin stopped", "error", proc.Err())

	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}

	return err
}

func pluginOutput(path string) (io.Writer, func() error, error) {
	if path == "" {
		return io.Discard, func() error { return nil }, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) //nolint:gosec // path comes from the layout
	if err != nil {
		return nil, nil, fmt.Errorf("deckhost: open plugin log: %w", err)
	}

	return f, f.Close, nil
}

func shutdown(srv *http.Server, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("deckhost: shutdown", "error", err)
	}
}
