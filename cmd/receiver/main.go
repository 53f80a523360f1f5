package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"session-lab/contract"
	"session-lab/domain"
	"session-lab/internal"
	"session-lab/relay"
	"session-lab/repositories"
	"session-lab/runtime"
	"session-lab/runtime/workers"
	"session-lab/sink"

	"github.com/mama165/sdk-go/logs"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2

	fanoutBuffer = 64
	sinkTimeout  = time.Second
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Receiver terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run connects as the receiving identity, accepts point-to-point sessions
// and answers every number with its parity until interrupted.
func run() (int, error) {
	var config internal.ReceiverConfig
	if err := internal.Load(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	logger := logs.GetLoggerFromString(config.LogLevel)
	identity, err := domain.ParseIdentity(config.Identity)
	if err != nil {
		return exitConfig, err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sinks := []contract.EventSink{sink.NewConsole(os.Stdout, true)}
	if config.BadgerFilepath != "" {
		db, err := internal.OpenBadger(ctx, logger, config.BadgerFilepath, false)
		if err != nil {
			return exitRuntime, fmt.Errorf("database opening failed: %w", err)
		}
		defer func() {
			logger.Info("Closing BadgerDB...")
			_ = db.Close()
		}()
		sinks = append(sinks, sink.NewDiskSink(repositories.NewMessageRepository(db, logger, nil), logger))
	}

	fanout := workers.NewEventFanout(logger, fanoutBuffer, sinkTimeout, sinks...)
	supCtx, cancelSup := context.WithCancel(context.Background())
	defer cancelSup()
	sup := workers.NewSupervisor(logger).Add(fanout)
	supDone := make(chan struct{})
	go func() {
		defer close(supDone)
		sup.Run(supCtx)
	}()

	orchestrator := runtime.NewOrchestrator(logger, relay.NewClient(logger), fanout, runtime.Settings{
		Server:            config.Server,
		SharedSecret:      config.SharedSecret,
		PollTimeout:       config.PollTimeout,
		SecureGroupKeying: config.SecureGroupKeying,
		AutoReply:         true,
	})

	orchDone := make(chan error, 1)
	go func() {
		orchDone <- orchestrator.Run(ctx)
	}()

	code := exitOK
	var runErr error
	if err := orchestrator.Connect(ctx, identity); err != nil {
		code, runErr = exitRuntime, err
		stop()
	} else {
		internal.PrintBanner(os.Stdout, "Point-to-point receiver",
			internal.Field{Name: "Identity", Value: identity.String()},
			internal.Field{Name: "Server", Value: config.Server},
			internal.Field{Name: "Connection", Value: connection(orchestrator)},
			internal.Field{Name: "Secure keying", Value: strconv.FormatBool(config.SecureGroupKeying)},
			internal.Field{Name: "Poll timeout", Value: config.PollTimeout.String()},
		)
	}

	<-ctx.Done()
	if err := <-orchDone; err != nil && runErr == nil {
		code, runErr = exitRuntime, err
	}
	sup.Stop()
	<-supDone
	return code, runErr
}

func connection(o *runtime.Orchestrator) string {
	if id, ok := o.ConnID(); ok {
		return strconv.FormatUint(uint64(id), 10)
	}
	return "(none)"
}
