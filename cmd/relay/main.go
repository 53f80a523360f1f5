package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"session-lab/internal"
	"session-lab/relay"
	"session-lab/runtime/workers"

	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Relay terminated with error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	// 1. Configuration & Logger
	var config internal.RelayConfig
	if err := internal.Load(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	// 2. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Relay and its supervised background workers
	registry := relay.NewRegistry()
	server := relay.NewServer(logger, config.SharedSecret, registry)
	health := relay.NewHealth(logger)

	sup := workers.NewSupervisor(logger).WithRestartInterval(config.RestartInterval)
	sup.Add(workers.NewHeartbeatWorker(logger, server, config.HeartbeatInterval))
	supDone := make(chan struct{})
	go func() {
		defer close(supDone)
		sup.Run(ctx)
	}()

	errChan := make(chan error, 2)

	// 4. WebSocket listener
	address := net.JoinHostPort(config.Host, strconv.Itoa(config.Port))
	httpServer := &http.Server{
		Addr:              address,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("Starting relay", "address", address, "path", relay.WebSocketPath, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("relay server error: %w", err)
		}
	}()

	// 5. gRPC health
	healthAddress := net.JoinHostPort(config.Host, strconv.Itoa(config.HealthPort))
	listener, err := net.Listen("tcp", healthAddress)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to listen on %s: %w", healthAddress, err)
	}
	go func() {
		if err := health.Serve(listener); err != nil {
			errChan <- fmt.Errorf("gRPC health error: %w", err)
		}
	}()

	// 6. Wait for Stop or Error
	code := exitOK
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case runErr = <-errChan:
		code = exitRuntime
	}

	// 7. Graceful Shutdown
	logger.Info("Shutting down gracefully...")
	health.SetServing(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Relay shutdown incomplete", "error", err)
	}
	health.Stop()
	sup.Stop()
	<-supDone
	logger.Info("Program stopped cleanly")

	return code, runErr
}
