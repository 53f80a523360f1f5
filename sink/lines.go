// Package sink holds the EventSink implementations the binaries plug into
// the orchestrator: plain line callbacks, a coloured console and the
// on-disk message history.
package sink

import (
	"context"

	"session-lab/domain/event"
)

// Lines adapts a func(string) to contract.EventSink.
type Lines func(line string)

func (l Lines) Consume(_ context.Context, n event.Notification) error {
	l(n.Line())
	return nil
}
