package app

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"tunnelfy/internal/config"
	"tunnelfy/internal/testserver"
)

// App wraps the bundled local test server that cmd/tunnelfy exposes so
// tunnelfy-client has something concrete to forward to.
type App struct {
	cfg    *config.Config
	server *testserver.Server
}

// New creates a new App instance.
func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	server := testserver.New(testserver.Config{
		ListenAddr:   cfg.ListenAddr,
		ResponseBody: cfg.ResponseBody,
		LogRequests:  cfg.LogRequests,
	}, log.Default())

	return &App{cfg: cfg, server: server}, nil
}

// Start runs the bundled local test server until an interrupt or
// termination signal arrives, then shuts it down gracefully.
func (a *App) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("signal received: %v; shutting down", sig)
		cancel()
	}()

	if err := a.server.Start(ctx); err != nil {
		return err
	}
	log.Println("shutdown complete")
	return nil
}
