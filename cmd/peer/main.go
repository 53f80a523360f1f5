package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"session-lab/contract"
	"session-lab/domain"
	"session-lab/domain/event"
	"session-lab/internal"
	"session-lab/projection"
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

	fanoutBuffer = 256
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Peer terminated with error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	var config internal.PeerConfig
	if err := internal.Load(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	console := sink.NewConsole(os.Stdout, config.Colours)
	timeline := projection.NewTimeline()
	sinks := []contract.EventSink{console, timeline}
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

	fanout := workers.NewEventFanout(logger, fanoutBuffer, config.SinkTimeout, sinks...)
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
		RequestTimeout:    config.RequestTimeout,
		SecureGroupKeying: config.SecureGroupKeying,
		AutoReply:         config.AutoReply,
	})
	orchDone := make(chan error, 1)
	go func() {
		orchDone <- orchestrator.Run(ctx)
	}()

	if config.Identity != "" {
		if identity, err := domain.ParseIdentity(config.Identity); err == nil {
			_ = orchestrator.Connect(ctx, identity)
		}
	}

	internal.PrintBanner(os.Stdout, "Group peer",
		internal.Field{Name: "Identity", Value: valueOr(config.Identity, "(use /connect)")},
		internal.Field{Name: "Server", Value: config.Server},
		internal.Field{Name: "Connection", Value: connection(orchestrator)},
		internal.Field{Name: "Secure keying", Value: strconv.FormatBool(config.SecureGroupKeying)},
		internal.Field{Name: "Auto reply", Value: strconv.FormatBool(config.AutoReply)},
	)
	fmt.Println(usage)

	p := &prompt{orchestrator: orchestrator, timeline: timeline, out: os.Stdout}
	p.loop(ctx, os.Stdin)
	stop()

	err := <-orchDone
	sup.Stop()
	<-supDone
	if err != nil {
		return exitRuntime, err
	}
	return exitOK, nil
}

type prompt struct {
	orchestrator *runtime.Orchestrator
	timeline     *projection.Timeline
	out          io.Writer
}

// loop reads commands until /quit, end of input or cancellation.
func (p *prompt) loop(ctx context.Context, in io.Reader) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if quit := p.handle(ctx, line); quit {
				return
			}
		}
	}
}

func (p *prompt) handle(ctx context.Context, line string) bool {
	cmd, err := parseCommand(line)
	if errors.Is(err, errEmptyLine) {
		return false
	}
	if err != nil {
		fmt.Fprintln(p.out, err)
		return false
	}

	switch cmd.kind {
	case cmdSend:
		_ = p.orchestrator.Send(ctx, cmd.text)
	case cmdConnect:
		identity, err := domain.ParseIdentity(cmd.identity)
		if err != nil {
			fmt.Fprintln(p.out, err)
			return false
		}
		_ = p.orchestrator.Connect(ctx, identity)
	case cmdGroup:
		_ = p.orchestrator.RequestGroup(ctx, cmd.channel, cmd.invitees)
	case cmdLeave:
		_ = p.orchestrator.Leave(ctx)
	case cmdDisconnect:
		_ = p.orchestrator.Disconnect(ctx)
	case cmdRole:
		p.printRole()
	case cmdHistory:
		p.printHistory()
	case cmdHelp:
		fmt.Fprintln(p.out, usage)
	case cmdQuit:
		return true
	}
	return false
}

func (p *prompt) printRole() {
	line := fmt.Sprintf("Role: %s", p.orchestrator.Role())
	if self := p.orchestrator.Identity(); !self.IsZero() {
		line += fmt.Sprintf(" as %s", self)
	}
	if id, ok := p.orchestrator.SessionID(); ok {
		line += fmt.Sprintf(" (session %s)", id)
	}
	if _, ok := p.orchestrator.ConnID(); ok {
		line += fmt.Sprintf(" on connection %s", connection(p.orchestrator))
	}
	fmt.Fprintln(p.out, line)
}

func (p *prompt) printHistory() {
	id, ok := p.orchestrator.SessionID()
	if !ok {
		fmt.Fprintln(p.out, event.Warn("Not in a session.").Line())
		return
	}
	for _, e := range p.timeline.Entries(id) {
		arrow := "<<"
		if e.Outgoing {
			arrow = ">>"
		}
		fmt.Fprintf(p.out, "%s %s %s: %s\n", e.At.Local().Format(time.TimeOnly), arrow, e.Author, e.Text)
	}
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func connection(o *runtime.Orchestrator) string {
	if id, ok := o.ConnID(); ok {
		return strconv.FormatUint(uint64(id), 10)
	}
	return "(not connected)"
}
