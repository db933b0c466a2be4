package cmd

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ximion/appstream-generator-sub004/internal/config"
	"github.com/ximion/appstream-generator-sub004/internal/logging"
)

func TestNewRootCmd(t *testing.T) {
	log := logging.NewTestLogger(io.Discard)
	root := NewRootCmd(&config.Config{}, log, "1.0.0")

	assert.Equal(t, "asgen", root.Use)
	for _, name := range []string{"process", "contents", "version"} {
		found := false
		for _, sub := range root.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		assert.True(t, found, "missing subcommand %s", name)
	}
}

func TestProcessCmdArgValidation(t *testing.T) {
	log := logging.NewTestLogger(io.Discard)
	cmd := NewProcessCmd(&config.Config{}, log)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"only", "two"})

	err := cmd.Execute()
	require.Error(t, err)
}

func TestContentsCmdArgValidation(t *testing.T) {
	log := logging.NewTestLogger(io.Discard)
	cmd := NewContentsCmd(&config.Config{}, log)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"suite", "section", "arch"})

	err := cmd.Execute()
	require.Error(t, err)
}
