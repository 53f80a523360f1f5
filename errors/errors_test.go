package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsTerminal(t *testing.T) {
	req := require.New(t)

	req.False(IsTerminal(nil))
	req.False(IsTerminal(ErrTimeout))
	req.False(IsTerminal(ErrSessionClosed))
	req.False(IsTerminal(&SessionError{Reason: "org/x/v1 disconnected"}))

	req.True(IsTerminal(ErrConnectionClosed))
	req.True(IsTerminal(fmt.Errorf("%w: read failed", ErrConnectionClosed)))
	req.True(IsTerminal(&SessionError{Reason: "key mismatch", Terminal: true}))
	req.True(IsTerminal(fmt.Errorf("wrapped: %w", &SessionError{Terminal: true})))
}
