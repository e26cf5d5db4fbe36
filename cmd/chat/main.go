// chat is the terminal client for chatrelay. It connects to the relay's
// WebSocket endpoint, shows a join screen, and then the conversation.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/Tyrowin/chatrelay/internal/tui"
	"github.com/Tyrowin/chatrelay/internal/wsclient"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var url, origin, logLevel, logOutput string

	flagSet := pflag.NewFlagSet("chat", pflag.ContinueOnError)
	flagSet.StringVar(&url, "url", "ws://localhost:8080/ws", "relay WebSocket endpoint")
	flagSet.StringVar(&origin, "origin", "http://localhost:8080", "Origin header sent during the handshake")
	flagSet.StringVar(&logLevel, "log-level", "INFO", "log level (DEBUG, INFO, WARN, ERROR)")
	flagSet.StringVar(&logOutput, "log-output", "", "write JSON log records to this file")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	log, closeLog, err := newLogger(logOutput, logLevel)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn, err := wsclient.Dial(ctx, url, origin, log)
	if err != nil {
		return err
	}
	defer conn.Close()

	model := tui.New(conn, log)
	program := tea.NewProgram(model, tea.WithAltScreen())
	go tui.Pump(ctx, conn, program)

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("run terminal UI: %w", err)
	}
	return nil
}

// newLogger writes to logOutput when set. The terminal belongs to the UI,
// so without a file logs are discarded.
func newLogger(logOutput, level string) (*slog.Logger, func(), error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, nil, fmt.Errorf("invalid --log-level %q: %w", level, err)
	}

	if logOutput == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil
	}

	file, err := os.OpenFile(logOutput, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log output: %w", err)
	}
	log := slog.New(slog.NewJSONHandler(file, &slog.HandlerOptions{Level: lvl}))
	return log, func() { _ = file.Close() }, nil
}
