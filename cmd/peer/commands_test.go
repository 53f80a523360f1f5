package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		want command
	}{
		{line: "hello there", want: command{kind: cmdSend, text: "hello there"}},
		{line: "/connect org/alice/v1", want: command{kind: cmdConnect, identity: "org/alice/v1"}},
		{line: "/group room org/bob/v1,org/carol/v1", want: command{kind: cmdGroup, channel: "room", invitees: []string{"org/bob/v1", "org/carol/v1"}}},
		{line: "/group room org/bob/v1, org/carol/v1", want: command{kind: cmdGroup, channel: "room", invitees: []string{"org/bob/v1", "", "org/carol/v1"}}},
		{line: "/group room", want: command{kind: cmdGroup, channel: "room"}},
		{line: "  /LEAVE ", want: command{kind: cmdLeave}},
		{line: "/disconnect", want: command{kind: cmdDisconnect}},
		{line: "/role", want: command{kind: cmdRole}},
		{line: "/history", want: command{kind: cmdHistory}},
		{line: "/exit", want: command{kind: cmdQuit}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := parseCommand(tt.line)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestParseCommand_Invalid(t *testing.T) {
	for _, line := range []string{"", "   ", "/connect", "/connect a b", "/group", "/dance"} {
		_, err := parseCommand(line)
		require.Error(t, err, line)
	}
}
