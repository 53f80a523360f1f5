package internal

import (
	"context"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

// OpenBadger opens the history store. Read-only handles bypass the lock so
// a viewer can run next to the process that writes.
func OpenBadger(ctx context.Context, logger *slog.Logger, path string, readOnly bool) (*badger.DB, error) {
	options := badger.DefaultOptions(path)
	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG)
	} else {
		options = options.WithLoggingLevel(badger.WARNING)
	}
	if readOnly {
		options = options.WithReadOnly(true).WithBypassLockGuard(true)
	}
	return badger.Open(options)
}
