package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func subcommandNames(cmd *cobra.Command) map[string]bool {
	names := make(map[string]bool)
	for _, c := range cmd.Commands() {
		names[c.Name()] = true
	}
	return names
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := subcommandNames(rootCmd)

	expected := []string{"migrate", "datamap", "return", "process", "batch", "serve"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "dbasik", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestDatamapCommand_HasSubcommands(t *testing.T) {
	names := subcommandNames(datamapCmd)
	for _, name := range []string{"create", "import", "list", "show"} {
		assert.True(t, names[name], "datamap should have subcommand %q", name)
	}
}

func TestReturnCommand_HasSubcommands(t *testing.T) {
	names := subcommandNames(returnCmd)
	for _, name := range []string{"create", "list", "show"} {
		assert.True(t, names[name], "return should have subcommand %q", name)
	}
}

func TestProcessCommand_Flags(t *testing.T) {
	for _, name := range []string{"return", "datamap", "file", "use-datamap-types", "dry-run"} {
		assert.NotNil(t, processCmd.Flags().Lookup(name), "process should have --%s flag", name)
	}
	flag := processCmd.Flags().Lookup("use-datamap-types")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
}

func TestBatchCommand_Flags(t *testing.T) {
	for _, name := range []string{"dir", "datamap", "tier", "year", "quarter", "use-datamap-types"} {
		assert.NotNil(t, batchCmd.Flags().Lookup(name), "batch should have --%s flag", name)
	}
}

func TestDatamapImportCommand_Flags(t *testing.T) {
	for _, name := range []string{"datamap", "file", "replace", "create"} {
		assert.NotNil(t, datamapImportCmd.Flags().Lookup(name), "datamap import should have --%s flag", name)
	}
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}
