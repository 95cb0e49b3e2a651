package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	expected := []string{"evaluate", "runs", "export", "serve"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "dealdesk", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestEvaluateCommand_Flags(t *testing.T) {
	for _, name := range []string{"policy", "format", "output", "save", "as-of"} {
		require.NotNil(t, evaluateCmd.Flags().Lookup(name), "evaluate command should have --%s flag", name)
	}
	assert.Equal(t, "table", evaluateCmd.Flags().Lookup("format").DefValue)
}

func TestRunsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range runsCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["list"])
	assert.True(t, names["show"])
}

func TestExportCommand_Flags(t *testing.T) {
	flag := exportCmd.Flags().Lookup("output")
	require.NotNil(t, flag, "export command should have --output flag")
	assert.Equal(t, "deals.xlsx", flag.DefValue)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}
