package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mama165/sdk-go/logs"

	"github.com/Tyrowin/chatrelay/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := server.LoadConfig(".env")
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(cfg.LogLevel)

	hub := server.NewHub(cfg, log)
	go hub.Run()
	log.Info("Hub started and ready to manage WebSocket connections")

	httpServer := server.CreateServer(cfg.Port, server.SetupRoutes(hub))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.StartServer(httpServer, log)
	}()

	select {
	case err := <-serveErr:
		_ = hub.Shutdown(cfg.ShutdownTimeout)
		return err
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	}

	httpErr := server.ShutdownServer(httpServer, cfg.ShutdownTimeout, log)
	hubErr := hub.Shutdown(cfg.ShutdownTimeout)
	return errors.Join(httpErr, hubErr)
}
