package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/baristabuddy/baristabuddy/internal/history"
	"github.com/baristabuddy/baristabuddy/internal/observe"
	"github.com/baristabuddy/baristabuddy/internal/pipeline"
)

// ConsoleConfig configures a [Console].
type ConsoleConfig struct {
	// Pipeline answers each turn. Must not be nil.
	Pipeline *pipeline.Pipeline

	// Input is read line by line. Must not be nil.
	Input io.Reader

	// Output receives the greeting, prompts and answers. Must not be nil.
	Output io.Writer

	// Metrics, when set, tracks the live-session gauge.
	Metrics *observe.Metrics
}

// Console is a line-oriented conversation over an input/output pair,
// typically stdin and stdout.
//
// One Console runs one session; construct a new value per conversation.
type Console struct {
	pipeline  *pipeline.Pipeline
	in        io.Reader
	out       io.Writer
	metrics   *observe.Metrics
	sessionID string
}

// NewConsole creates a console session from cfg.
func NewConsole(cfg ConsoleConfig) (*Console, error) {
	var errs []error
	if cfg.Pipeline == nil {
		errs = append(errs, errors.New("session: pipeline must not be nil"))
	}
	if cfg.Input == nil {
		errs = append(errs, errors.New("session: input must not be nil"))
	}
	if cfg.Output == nil {
		errs = append(errs, errors.New("session: output must not be nil"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	sid, err := newSessionID()
	if err != nil {
		return nil, fmt.Errorf("session: generate id: %w", err)
	}
	return &Console{
		pipeline:  cfg.Pipeline,
		in:        cfg.Input,
		out:       cfg.Output,
		metrics:   cfg.Metrics,
		sessionID: sid,
	}, nil
}

// Run drives the conversation until an exit word, end of input, context
// cancellation, or a write failure. Pipeline errors are reported to the user
// as a brief apology and the loop continues; they never abort the session.
func (c *Console) Run(ctx context.Context) error {
	ctx = history.WithSession(ctx, c.sessionID)
	if c.metrics != nil {
		c.metrics.ActiveSessions.Add(ctx, 1)
		defer c.metrics.ActiveSessions.Add(ctx, -1)
	}

	if err := c.say(Greeting); err != nil {
		return err
	}

	scanner := bufio.NewScanner(c.in)
	for {
		// Scan blocks without regard for ctx, so cancellation takes effect
		// at the next turn boundary.
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := fmt.Fprint(c.out, Prompt); err != nil {
			return fmt.Errorf("session: write: %w", err)
		}
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("session: read: %w", err)
			}
			// End of input behaves like an exit word.
			return c.say(Goodbye)
		}

		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			if err := c.say(Nudge); err != nil {
				return err
			}
			continue
		case isExitWord(line):
			return c.say(Goodbye)
		}

		res, err := c.pipeline.Process(ctx, line)
		if err != nil {
			slog.Error("query failed", "session", c.sessionID, "err", err)
			if err := c.say(Apology); err != nil {
				return err
			}
			continue
		}
		if err := c.say(res.Answer); err != nil {
			return err
		}
	}
}

// say writes one assistant line, prefixed, to the output.
func (c *Console) say(text string) error {
	if _, err := fmt.Fprintln(c.out, ReplyPrefix+text); err != nil {
		return fmt.Errorf("session: write: %w", err)
	}
	return nil
}
