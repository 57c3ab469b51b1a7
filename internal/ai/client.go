package ai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/alanmeadows/autodev/internal/config"
)

// CommandClient invokes the configured generator executable as a
// subprocess, writing the prompt to stdin and reading the report from
// stdout.
type CommandClient struct {
	command    string
	timeout    time.Duration
	maxRetries int
	mode       ParseMode

	// backoffBase is the first retry delay; doubled per attempt. Tests
	// shrink it.
	backoffBase time.Duration
}

// NewCommandClient builds a CommandClient from configuration.
func NewCommandClient(cfg config.AIConfig) *CommandClient {
	mode := ModeStructured
	if cfg.ResponseFormat == "freeform" {
		mode = ModeFreeform
	}
	return &CommandClient{
		command:     cfg.Command,
		timeout:     cfg.ParseTimeout(),
		maxRetries:  cfg.MaxRetries,
		mode:        mode,
		backoffBase: time.Second,
	}
}

// Available reports whether the generator executable is on PATH.
func (c *CommandClient) Available() error {
	if c.command == "" {
		return fmt.Errorf("%w: no generator command configured", ErrGeneratorFailed)
	}
	if _, err := exec.LookPath(c.command); err != nil {
		return fmt.Errorf("generator %q not found: %w", c.command, err)
	}
	return nil
}

// Generate runs the generator and parses its output. Invocations that
// fail with a transient marker (rate limit, timeout) are retried with
// exponential backoff up to the configured limit.
func (c *CommandClient) Generate(ctx context.Context, req Request) (*Response, error) {
	var lastErr error
	delay := c.backoffBase

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			slog.Warn("retrying generator", "attempt", attempt, "delay", delay, "error", lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			delay *= 2
		}

		out, err := c.run(ctx, req)
		if err == nil {
			resp := Parse(out, c.mode)
			if !resp.Success {
				slog.Warn("generator produced no usable output", "command", c.command)
			}
			return resp, nil
		}
		lastErr = err
		if !transientGeneratorError(err, out) {
			break
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrGeneratorFailed, lastErr)
}

func (c *CommandClient) run(ctx context.Context, req Request) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	args := []string{}
	if req.Agent != "" {
		args = append(args, "--agent", req.Agent)
	}

	cmd := exec.CommandContext(runCtx, c.command, args...)
	cmd.Dir = req.WorkDir
	cmd.Stdin = strings.NewReader(req.Prompt)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	slog.Debug("invoking generator", "command", c.command, "agent", req.Agent, "dir", req.WorkDir)
	start := time.Now()
	err := cmd.Run()
	slog.Debug("generator finished", "command", c.command, "duration", time.Since(start), "error", err)

	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return stdout.String(), fmt.Errorf("generator timed out after %s", c.timeout)
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return stdout.String(), fmt.Errorf("generator %s: %s", c.command, msg)
	}
	return stdout.String(), nil
}

// transientGeneratorError classifies failures worth retrying: timeouts
// and rate limiting, surfaced either in the error or the output.
func transientGeneratorError(err error, out string) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	text := strings.ToLower(err.Error() + " " + out)
	for _, marker := range []string{"rate limit", "rate-limit", "timed out", "timeout", "too many requests", "overloaded", "503", "529"} {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}
