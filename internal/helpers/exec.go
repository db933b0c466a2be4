package helpers

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sync"
)

// CommandRunner abstracts subprocess execution so backends that drive
// external tools (localedef, most prominently) can be tested without them.
type CommandRunner interface {
	// CommandExists checks if a command is available in PATH.
	CommandExists(name string) bool

	// RunCommand executes a command and returns its stdout.
	RunCommand(ctx context.Context, name string, args ...string) (string, error)

	// RunCommandWithOutput runs a command and returns both stdout and stderr.
	RunCommandWithOutput(ctx context.Context, name string, args ...string) (stdout, stderr string, err error)
}

// OSCommandRunner is the default implementation using os/exec.
type OSCommandRunner struct {
	commandCache sync.Map // map[string]bool
}

// NewOSCommandRunner creates a new OSCommandRunner instance.
func NewOSCommandRunner() *OSCommandRunner {
	return &OSCommandRunner{}
}

// CommandExists checks if a command is available in PATH.
func (r *OSCommandRunner) CommandExists(name string) bool {
	if cached, ok := r.commandCache.Load(name); ok {
		if exists, ok := cached.(bool); ok {
			return exists
		}
		r.commandCache.Delete(name)
	}

	_, err := exec.LookPath(name)
	exists := err == nil
	r.commandCache.Store(name, exists)
	return exists
}

// RunCommand executes a command and returns its stdout.
func (r *OSCommandRunner) RunCommand(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("command %q failed: %w\nstderr: %s", name, err, stderr.String())
	}
	return stdout.String(), nil
}

// RunCommandWithOutput runs a command and returns both stdout and stderr.
func (r *OSCommandRunner) RunCommandWithOutput(ctx context.Context, name string, args ...string) (stdout, stderr string, err error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	err = cmd.Run()
	stdout = outBuf.String()
	stderr = errBuf.String()
	if err != nil {
		err = fmt.Errorf("command %q failed: %w", name, err)
	}
	return stdout, stderr, err
}
