// Package command runs backend CLI processes.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/railwayapp/wharf/internal/ctxlog"
)

// Runner executes external commands. Implementations must be safe for
// concurrent use.
type Runner interface {
	// Run executes the command with output forwarded to the runner's writers
	// and returns the exit status. The error only reports a process that
	// could not be started or was cut short by the context.
	Run(ctx context.Context, name string, args ...string) (int, error)
	// Output executes the command and returns its standard output. A non-zero
	// exit status is an error.
	Output(ctx context.Context, name string, args ...string) (string, error)
	// Interactive attaches the command to the terminal and blocks until it
	// exits. Interrupting the session is a normal termination.
	Interactive(ctx context.Context, name string, args ...string) error
}

// Exec runs commands on the local host.
type Exec struct {
	Stdin   io.Reader
	Stdout  io.Writer
	Stderr  io.Writer
	Timeout time.Duration
}

// NewExec returns a runner wired to the process standard streams. A zero
// timeout disables the deadline.
func NewExec(timeout time.Duration) *Exec {
	return &Exec{
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Timeout: timeout,
	}
}

func (e *Exec) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.Timeout)
}

func (e *Exec) Run(ctx context.Context, name string, args ...string) (int, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	ctxlog.FromContext(ctx).Debug("running command", "command", commandLine(name, args))

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = e.Stdout
	cmd.Stderr = e.Stderr

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	if ctx.Err() != nil {
		return -1, fmt.Errorf("%s: %w", commandLine(name, args), ctx.Err())
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, fmt.Errorf("failed to run %s: %w", commandLine(name, args), err)
}

func (e *Exec) Output(ctx context.Context, name string, args ...string) (string, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	ctxlog.FromContext(ctx).Debug("running command", "command", commandLine(name, args))

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%s: %w", commandLine(name, args), ctx.Err())
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return "", fmt.Errorf("failed to run %s: %w", commandLine(name, args), err)
		}
		return "", fmt.Errorf("failed to run %s: %w: %s", commandLine(name, args), err, msg)
	}
	return stdout.String(), nil
}

// Interactive ignores the runner timeout; a shell session lasts as long as
// the user keeps it open.
func (e *Exec) Interactive(ctx context.Context, name string, args ...string) error {
	ctxlog.FromContext(ctx).Debug("attaching to command", "command", commandLine(name, args))

	// The child shares our terminal and receives the interrupt itself.
	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupts)

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = e.Stdin
	cmd.Stdout = e.Stdout
	cmd.Stderr = e.Stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}

	select {
	case <-interrupts:
		return nil
	default:
	}
	if ctx.Err() != nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			return nil
		}
		// 130 is how shells report a session ended by ^C.
		if exitErr.ExitCode() == 130 {
			return nil
		}
		return fmt.Errorf("%s exited with status %d", commandLine(name, args), exitErr.ExitCode())
	}
	return fmt.Errorf("failed to run %s: %w", commandLine(name, args), err)
}

func commandLine(name string, args []string) string {
	return strings.TrimSpace(name + " " + strings.Join(args, " "))
}
