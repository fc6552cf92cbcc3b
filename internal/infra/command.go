package infra

import (
	"context"
	"os/exec"
	"time"
)

// CommandRunner abstracts command execution for testing
type CommandRunner interface {
	Run(name string, args ...string) error
	Output(name string, args ...string) ([]byte, error)
}

// RealCommandRunner executes real system commands with a timeout.
type RealCommandRunner struct {
	Timeout time.Duration
}

// NewCommandRunner creates a runner that kills commands after timeout.
func NewCommandRunner(timeout time.Duration) *RealCommandRunner {
	return &RealCommandRunner{Timeout: timeout}
}

// Run executes a command and waits for it to complete
func (r *RealCommandRunner) Run(name string, args ...string) error {
	ctx, cancel := r.context()
	defer cancel()
	return exec.CommandContext(ctx, name, args...).Run()
}

// Output executes a command and returns its stdout
func (r *RealCommandRunner) Output(name string, args ...string) ([]byte, error) {
	ctx, cancel := r.context()
	defer cancel()
	return exec.CommandContext(ctx, name, args...).Output()
}

func (r *RealCommandRunner) context() (context.Context, context.CancelFunc) {
	if r.Timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), r.Timeout)
}
