/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the request lifecycle engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, flags)
  2. Initialize the store (memory or SQLite)
  3. Load allocation policy and employee directory; an existing SQLite
     directory is reused, an empty store gets the demo scenario
  4. Create API handler with the engine
  5. Configure HTTP router
  6. Start server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database and the demo directory
  ./server -db="./data/requests.db"

  # Run fully in memory with a real directory
  ./server -storage=memory -directory=./directory.json

  # Run on different port
  PORT=3000 ./server

SEE ALSO:
  - config/config.go: Configuration sources
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/request-engine/api"
	"github.com/warp/request-engine/config"
	"github.com/warp/request-engine/factory"
	"github.com/warp/request-engine/generic"
	"github.com/warp/request-engine/store/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "server:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return err
	}

	logger := api.NewLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	var allocation generic.AllocationPolicy
	if cfg.AllocationFile != "" {
		policy, err := factory.LoadAllocationFile(cfg.AllocationFile)
		if err != nil {
			return err
		}
		allocation = policy
		logger.Info("allocation policy loaded", "policy", policy.ID, "overrides", len(policy.Overrides))
	}

	configure := func(e *generic.Engine) {
		e.Logger = logger
		e.Currency = cfg.DefaultCurrency
		e.Sinks = append(e.Sinks, generic.LogSink{Logger: logger.With("component", "audit")})
	}

	// Initialize store
	var (
		build  api.EngineFactory
		stored generic.Directory
	)
	switch cfg.Storage {
	case config.StorageSQLite:
		store, err := sqlite.New(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer store.Close()
		build = api.SQLiteBackend(store, allocation, configure)
		stored = store
	default:
		build = api.MemoryBackend(allocation, configure)
	}

	// Load directory
	var employees []generic.Employee
	if cfg.DirectoryFile != "" {
		employees, err = factory.LoadDirectoryFile(cfg.DirectoryFile)
		if err != nil {
			return err
		}
		logger.Info("directory loaded", "employees", len(employees))
	}

	// Initialize handler
	ctx := context.Background()
	handler := api.NewHandler(nil, build, logger)
	if err := handler.Start(ctx, employees, stored); err != nil {
		return err
	}

	// Create router
	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.CORSOrigins,
		Logger:         logger,
	})

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", server.Addr, "storage", cfg.Storage)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
