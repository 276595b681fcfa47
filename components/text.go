package components

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jiri/constellation/core"
	"github.com/jiri/constellation/internal/logging"
	"github.com/jiri/constellation/systems"
)

// PortDebug is the text port of terminals and CPUs.
const PortDebug = "debug"

func debugPort() []core.PortSpec {
	return []core.PortSpec{{Name: PortDebug, Capabilities: core.TextOnly()}}
}

// Terminal sends typed lines out of its debug port and keeps a history of
// what it sent and received.
type Terminal struct {
	Base
	text *systems.Text

	mu      sync.Mutex
	history []string
	outbox  []string
}

// NewTerminal creates an empty terminal.
func NewTerminal(name string, text *systems.Text) *Terminal {
	return &Terminal{Base: newBase(name), text: text}
}

func (t *Terminal) DefaultPort() string { return PortDebug }

func (t *Terminal) Ports() []core.PortSpec { return debugPort() }

// Submit records line in the history and sends it on the next update.
func (t *Terminal) Submit(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.history = append(t.history, "> "+line)
	t.outbox = append(t.outbox, line)
}

// Update reads everything that arrived before sending pending lines, so the
// terminal never reads back its own output.
func (t *Terminal) Update(context.Context, time.Time) error {
	port := t.Port(PortDebug)

	t.mu.Lock()
	defer t.mu.Unlock()
	for {
		msg, ok := t.text.Receive(port)
		if !ok {
			break
		}
		t.history = append(t.history, msg)
	}
	for _, line := range t.outbox {
		t.text.Send(port, line)
	}
	t.outbox = nil
	return nil
}

// History returns every line sent and received so far.
func (t *Terminal) History() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.history...)
}

var (
	errStackUnderflow = errors.New("stack underflow")
	errDivideByZero   = errors.New("division by zero")
)

// CPU runs every message that arrives on its debug port as a small stack
// program and answers with what the program writes:
//
//	push N, pop, add, neg, mul, divmod, write
type CPU struct {
	Base
	text *systems.Text

	mu    sync.Mutex
	stack []int
}

// NewCPU creates an idle CPU.
func NewCPU(name string, text *systems.Text) *CPU {
	return &CPU{Base: newBase(name), text: text}
}

func (c *CPU) DefaultPort() string { return PortDebug }

func (c *CPU) Ports() []core.PortSpec { return debugPort() }

func (c *CPU) Update(ctx context.Context, _ time.Time) error {
	port := c.Port(PortDebug)
	var replies []string
	for {
		program, ok := c.text.Receive(port)
		if !ok {
			break
		}
		out, err := c.Run(program)
		replies = append(replies, out...)
		if err != nil {
			replies = append(replies, "error: "+err.Error())
			if log := logging.LoggerFromContext(ctx); log != nil {
				log.Debug(ctx, "program failed",
					logging.String("component", c.Name()),
					logging.String("program", program),
					logging.Err(err),
				)
			}
		}
	}
	for _, r := range replies {
		c.text.Send(port, r)
	}
	return nil
}

// Run executes program on a fresh stack and returns the written values.
func (c *CPU) Run(program string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stack = c.stack[:0]
	var out []string
	words := strings.Fields(program)
	for i := 0; i < len(words); i++ {
		switch w := words[i]; w {
		case "push":
			i++
			if i >= len(words) {
				return out, fmt.Errorf("push: missing operand")
			}
			n, err := strconv.Atoi(words[i])
			if err != nil {
				return out, fmt.Errorf("push: %w", err)
			}
			c.stack = append(c.stack, n)
		case "pop":
			if _, err := c.pop(); err != nil {
				return out, err
			}
		case "add", "mul":
			a, b, err := c.pop2()
			if err != nil {
				return out, err
			}
			if w == "add" {
				c.stack = append(c.stack, a+b)
			} else {
				c.stack = append(c.stack, a*b)
			}
		case "neg":
			a, err := c.pop()
			if err != nil {
				return out, err
			}
			c.stack = append(c.stack, -a)
		case "divmod":
			a, b, err := c.pop2()
			if err != nil {
				return out, err
			}
			if a == 0 {
				return out, errDivideByZero
			}
			c.stack = append(c.stack, b/a, b%a)
		case "write":
			if len(c.stack) == 0 {
				return out, errStackUnderflow
			}
			out = append(out, strconv.Itoa(c.stack[len(c.stack)-1]))
		default:
			return out, fmt.Errorf("unknown word %q", w)
		}
	}
	return out, nil
}

func (c *CPU) pop() (int, error) {
	if len(c.stack) == 0 {
		return 0, errStackUnderflow
	}
	x := c.stack[len(c.stack)-1]
	c.stack = c.stack[:len(c.stack)-1]
	return x, nil
}

// pop2 pops the top of the stack and then the value beneath it.
func (c *CPU) pop2() (int, int, error) {
	a, err := c.pop()
	if err != nil {
		return 0, 0, err
	}
	b, err := c.pop()
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}
