package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"session-lab/domain"
	"session-lab/domain/event"
	"session-lab/internal"
	"session-lab/relay"
	"session-lab/runtime"
	"session-lab/runtime/workers"
	"session-lab/sink"

	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2

	closeTimeout = 3 * time.Second
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Sender terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run opens a point-to-point session to the remote identity, sends random
// numbers and checks every odd/even answer.
func run() (int, error) {
	var config internal.SenderConfig
	if err := internal.Load(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	logger := logs.GetLoggerFromString(config.LogLevel)
	identity, err := domain.ParseIdentity(config.Identity)
	if err != nil {
		return exitConfig, err
	}
	remote, err := domain.ParseIdentity(config.Remote)
	if err != nil {
		return exitConfig, err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	console := sink.NewConsole(os.Stdout, true)
	lifecycle := runtime.NewConnectionLifecycle(logger, relay.NewClient(logger))
	defer func() {
		_ = lifecycle.Disconnect()
	}()

	endpoint, err := lifecycle.Connect(ctx, config.Server, identity, config.SharedSecret)
	if err != nil {
		return exitRuntime, err
	}
	_ = console.Consume(ctx, event.Info("Connected to %s as %s", config.Server, identity))
	if err := lifecycle.SetRoute(ctx, remote); err != nil {
		return exitRuntime, err
	}

	session, err := endpoint.CreateSession(ctx, remote, domain.PointToPointConfig(config.SecureGroupKeying))
	if err != nil {
		return exitRuntime, fmt.Errorf("create session with %s: %w", remote, err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		_ = session.Close(closeCtx)
	}()

	connID, _ := lifecycle.ConnID()
	internal.PrintBanner(os.Stdout, "Point-to-point sender",
		internal.Field{Name: "Identity", Value: identity.String()},
		internal.Field{Name: "Remote", Value: remote.String()},
		internal.Field{Name: "Server", Value: config.Server},
		internal.Field{Name: "Connection", Value: strconv.FormatUint(uint64(connID), 10)},
		internal.Field{Name: "Session", Value: string(session.ID())},
		internal.Field{Name: "Secure keying", Value: strconv.FormatBool(config.SecureGroupKeying)},
	)

	sender := workers.NewOddEvenSender(logger, session, console,
		config.Iterations, config.Min, config.Max, config.ReplyTimeout, config.Pause)
	stats, err := sender.Send(ctx)
	printStats(stats)
	if err != nil && ctx.Err() == nil {
		return exitRuntime, err
	}
	return exitOK, nil
}

func printStats(stats workers.SenderStats) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Sent", "Replies", "Mismatches"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.Append([]string{
		strconv.Itoa(stats.Sent),
		strconv.Itoa(stats.Replies),
		strconv.Itoa(stats.Mismatches),
	})
	table.Render()
}
