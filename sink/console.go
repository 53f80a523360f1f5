package sink

import (
	"context"
	"fmt"
	"io"
	"sync"

	"session-lab/domain/event"

	"github.com/gookit/color"
)

// Console prints one line per notification, coloured by kind when enabled.
type Console struct {
	mu      sync.Mutex
	out     io.Writer
	colours bool
}

func NewConsole(out io.Writer, colours bool) *Console {
	return &Console{out: out, colours: colours}
}

func (c *Console) Consume(_ context.Context, n event.Notification) error {
	line := n.Line()
	if c.colours {
		if style, ok := styleOf(n); ok {
			line = style.Render(line)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintln(c.out, line)
	return err
}

func styleOf(n event.Notification) (color.Style, bool) {
	switch evt := n.(type) {
	case event.ParticipantJoined:
		return color.New(color.FgGreen), true
	case event.ParticipantLeft:
		return color.New(color.FgYellow), true
	case event.RoleChanged, event.RosterChanged:
		return color.New(color.FgCyan), true
	case event.MessageSent:
		return color.New(color.FgGray), true
	case event.LogLine:
		switch evt.Level {
		case event.LevelError:
			return color.New(color.FgRed, color.OpBold), true
		case event.LevelWarn:
			return color.New(color.FgYellow), true
		}
	}
	return nil, false
}
