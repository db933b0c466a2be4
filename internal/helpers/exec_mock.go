package helpers

import "context"

// MockCommandRunner is a mock implementation of CommandRunner for testing.
type MockCommandRunner struct {
	CommandExistsFunc        func(name string) bool
	RunCommandFunc           func(ctx context.Context, name string, args ...string) (string, error)
	RunCommandWithOutputFunc func(ctx context.Context, name string, args ...string) (stdout, stderr string, err error)
}

// CommandExists implements CommandRunner.CommandExists.
func (m *MockCommandRunner) CommandExists(name string) bool {
	if m.CommandExistsFunc != nil {
		return m.CommandExistsFunc(name)
	}
	return false
}

// RunCommand implements CommandRunner.RunCommand.
func (m *MockCommandRunner) RunCommand(ctx context.Context, name string, args ...string) (string, error) {
	if m.RunCommandFunc != nil {
		return m.RunCommandFunc(ctx, name, args...)
	}
	return "", nil
}

// RunCommandWithOutput implements CommandRunner.RunCommandWithOutput.
func (m *MockCommandRunner) RunCommandWithOutput(ctx context.Context, name string, args ...string) (stdout, stderr string, err error) {
	if m.RunCommandWithOutputFunc != nil {
		return m.RunCommandWithOutputFunc(ctx, name, args...)
	}
	return "", "", nil
}
