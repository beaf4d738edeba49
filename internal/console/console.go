package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/danmuck/linectl/internal/logging"
	"github.com/danmuck/linectl/internal/sender"
)

// Sender is the one-shot exchange the console drives per input line.
type Sender interface {
	Send(ctx context.Context, target sender.Target, line string, expectResponse bool) (string, bool)
}

type Config struct {
	Target         sender.Target
	ExpectResponse bool
	Prompt         string
}

// Console is the interactive read loop in front of a Sender.
type Console struct {
	cfg    Config
	sender Sender
	in     io.Reader
	out    io.Writer
}

type inputLine struct {
	text string
	err  error
}

func New(cfg Config, s Sender, in io.Reader, out io.Writer) *Console {
	return &Console{
		cfg:    cfg,
		sender: s,
		in:     in,
		out:    out,
	}
}

func (c *Console) PrintBanner() {
	fmt.Fprintln(c.out, "linectl command client")
	fmt.Fprintln(c.out, "----------------------")
	fmt.Fprintf(c.out, "Sending commands to %s\n", c.cfg.Target.Addr())
	fmt.Fprintln(c.out, "Type a command and press Enter to send. Type 'exit' or 'quit' to close this client.")
}

// Exec sends one line and prints the reply value, if any.
func (c *Console) Exec(ctx context.Context, line string) (string, bool) {
	reply, ok := c.sender.Send(ctx, c.cfg.Target, line, c.cfg.ExpectResponse)
	if ok {
		fmt.Fprintln(c.out, reply)
	}
	return reply, ok
}

// Run prompts until exit/quit, EOF, or ctx cancellation, all of which end
// cleanly. Input faults and panics in one iteration end the loop with an error.
func (c *Console) Run(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	lines := c.readLines(done)

	for {
		fmt.Fprint(c.out, c.cfg.Prompt)

		var in inputLine
		select {
		case <-ctx.Done():
			// Unblocks readLines when the input can be closed; otherwise it
			// stays parked on the next read until the process exits.
			if closer, ok := c.in.(io.Closer); ok {
				_ = closer.Close()
			}
			fmt.Fprintln(c.out, "\nExiting client.")
			return nil
		case in = <-lines:
		}

		text := strings.TrimRight(in.text, "\r\n")
		if isExit(text) {
			return nil
		}
		if strings.TrimSpace(text) != "" {
			if err := c.step(ctx, text); err != nil {
				return err
			}
		}
		if in.err != nil {
			if errors.Is(in.err, io.EOF) {
				fmt.Fprintln(c.out)
				logging.Debugf("console input closed")
				return nil
			}
			return fmt.Errorf("console: read input: %w", in.err)
		}
	}
}

func (c *Console) step(ctx context.Context, text string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("console: client loop error: %v", r)
		}
	}()
	c.Exec(ctx, text)
	return nil
}

// readLines pumps input lines so a blocked read never holds up cancellation.
func (c *Console) readLines(done <-chan struct{}) <-chan inputLine {
	out := make(chan inputLine)
	go func() {
		reader := bufio.NewReader(c.in)
		for {
			text, err := reader.ReadString('\n')
			select {
			case out <- inputLine{text: text, err: err}:
			case <-done:
				return
			}
			if err != nil {
				return
			}
		}
	}()
	return out
}

func isExit(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "exit", "quit":
		return true
	default:
		return false
	}
}
