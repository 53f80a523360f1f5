package main

import (
	"errors"
	"strings"
)

type commandKind int

const (
	cmdSend commandKind = iota
	cmdConnect
	cmdGroup
	cmdLeave
	cmdDisconnect
	cmdRole
	cmdHistory
	cmdHelp
	cmdQuit
)

type command struct {
	kind     commandKind
	identity string
	channel  string
	invitees []string
	text     string
}

var errEmptyLine = errors.New("empty line")

const usage = `Commands:
  /connect <org/ns/app>        connect and listen for invitations
  /group <channel> <a,b,...>   create a group and invite peers
  /leave                       leave the current group
  /disconnect                  drop the relay connection
  /role                        show the current role
  /history                     show this session's messages
  /quit                        exit
Anything else is sent to the current group.`

// parseCommand reads one console line. Lines that do not start with a
// slash are messages.
func parseCommand(line string) (command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return command{}, errEmptyLine
	}
	if !strings.HasPrefix(line, "/") {
		return command{kind: cmdSend, text: line}, nil
	}

	fields := strings.Fields(line)
	args := fields[1:]
	switch strings.ToLower(fields[0]) {
	case "/connect":
		if len(args) != 1 {
			return command{}, errors.New("usage: /connect <org/ns/app>")
		}
		return command{kind: cmdConnect, identity: args[0]}, nil
	case "/group":
		if len(args) == 0 {
			return command{}, errors.New("usage: /group <channel> <a,b,...>")
		}
		c := command{kind: cmdGroup, channel: args[0]}
		for _, arg := range args[1:] {
			c.invitees = append(c.invitees, strings.Split(arg, ",")...)
		}
		return c, nil
	case "/leave":
		return command{kind: cmdLeave}, nil
	case "/disconnect":
		return command{kind: cmdDisconnect}, nil
	case "/role":
		return command{kind: cmdRole}, nil
	case "/history":
		return command{kind: cmdHistory}, nil
	case "/help":
		return command{kind: cmdHelp}, nil
	case "/quit", "/exit":
		return command{kind: cmdQuit}, nil
	default:
		return command{}, errors.New("unknown command " + fields[0] + ", try /help")
	}
}
