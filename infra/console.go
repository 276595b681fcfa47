package infra

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrBadCommand is returned for console lines that do not parse.
var ErrBadCommand = errors.New("malformed console command")

// Op is a console operation.
type Op byte

const (
	OpConnect    Op = 'c'
	OpDisconnect Op = 'd'
)

// Command is a parsed console line:
//
//	c <component>[:<port>] <component>[:<port>]
//	d <component>[:<port>] <component>[:<port>]
type Command struct {
	Op Op
	A  Endpoint
	B  Endpoint
}

var endpointPattern = regexp.MustCompile(`^(\w+)(?::(\w*))?$`)

// ParseCommand parses one console line.
func ParseCommand(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return Command{}, fmt.Errorf("%w: %q", ErrBadCommand, line)
	}

	var cmd Command
	switch fields[0] {
	case "c":
		cmd.Op = OpConnect
	case "d":
		cmd.Op = OpDisconnect
	default:
		return Command{}, fmt.Errorf("%w: unknown operation %q", ErrBadCommand, fields[0])
	}

	var err error
	if cmd.A, err = parseEndpoint(fields[1]); err != nil {
		return Command{}, err
	}
	if cmd.B, err = parseEndpoint(fields[2]); err != nil {
		return Command{}, err
	}
	return cmd, nil
}

func parseEndpoint(s string) (Endpoint, error) {
	m := endpointPattern.FindStringSubmatch(s)
	if m == nil {
		return Endpoint{}, fmt.Errorf("%w: bad endpoint %q", ErrBadCommand, s)
	}
	return Endpoint{Component: m[1], Port: m[2]}, nil
}

// Console executes console commands against the manual authority.
type Console struct {
	manual *Manual
}

// NewConsole creates a console bound to m.
func NewConsole(m *Manual) *Console {
	return &Console{manual: m}
}

// Execute parses and runs one line, returning a short description of what
// happened. Lookup failures leave every connection untouched.
func (c *Console) Execute(line string) (string, error) {
	cmd, err := ParseCommand(line)
	if err != nil {
		return "", err
	}

	switch cmd.Op {
	case OpConnect:
		conn, err := c.manual.ConnectByName(cmd.A, cmd.B)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("connected %s - %s [%s]", cmd.A, cmd.B, conn.Capabilities), nil
	default:
		n, err := c.manual.DisconnectByName(cmd.A, cmd.B)
		if err != nil {
			return "", err
		}
		if n == 0 {
			return fmt.Sprintf("no manual connection %s - %s", cmd.A, cmd.B), nil
		}
		return fmt.Sprintf("disconnected %s - %s", cmd.A, cmd.B), nil
	}
}
