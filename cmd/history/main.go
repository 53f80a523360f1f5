package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"session-lab/domain"
	"session-lab/internal"
	"session-lab/repositories"

	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "History terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run prints every stored session as a table, oldest message first, then
// optionally keeps serving the inspector page.
func run() (int, error) {
	var config internal.HistoryConfig
	if err := internal.Load(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := internal.OpenBadger(ctx, logger, config.BadgerFilepath, true)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	repository := repositories.NewMessageRepository(db, logger, config.LimitMessages)
	if err := dump(os.Stdout, repository); err != nil {
		return exitRuntime, err
	}

	if config.InspectPort > 0 {
		if err := internal.ServeInspector(ctx, logger, db, config.InspectPort, messageMapper); err != nil {
			return exitRuntime, err
		}
	}
	return exitOK, nil
}

func dump(w io.Writer, repository repositories.IMessageRepository) error {
	sessions, err := repository.Sessions()
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Session", "Time", "Dir", "Author", "Content"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, session := range sessions {
		messages, err := readAll(repository, session)
		if err != nil {
			return err
		}
		for _, m := range messages {
			table.Append([]string{
				shortID(string(m.Session)),
				m.At.Local().Format("2006-01-02 15:04:05"),
				direction(m.Outgoing),
				m.Author,
				m.Content,
			})
		}
	}
	table.Render()
	return nil
}

// readAll pages through a session and returns it in chronological order.
func readAll(repository repositories.IMessageRepository, session domain.SessionID) ([]repositories.DiskMessage, error) {
	var all []repositories.DiskMessage
	var cursor *string
	for {
		page, next, err := repository.GetMessages(session, cursor)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		all = append(all, page...)
		cursor = next
	}
	return lo.Reverse(all), nil
}

func messageMapper(key string, val []byte) internal.InspectRow {
	row := internal.DefaultMapper(key, val)
	message, err := repositories.DecodeMessage(val)
	if err != nil {
		row.Detail = "Error: unmarshal failed"
		return row
	}
	row.Type = direction(message.Outgoing)
	row.Author = message.Author
	row.Detail = message.Content
	return row
}

func direction(outgoing bool) string {
	if outgoing {
		return "SENT"
	}
	return "RECEIVED"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
