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

	expected := []string{"estimate", "reform", "analyze", "batch", "import", "migrate", "serve"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "flip-estimator", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)

	flag := rootCmd.PersistentFlags().Lookup("output")
	require.NotNil(t, flag)
	assert.Equal(t, "text", flag.DefValue)
}

func TestEstimateCommand_Flags(t *testing.T) {
	for _, name := range []string{"target", "comparables", "sheet"} {
		assert.NotNil(t, estimateCmd.Flags().Lookup(name), name)
	}
	assert.Equal(t, "-", estimateCmd.Flags().Lookup("target").DefValue)
}

func TestReformCommand_Flags(t *testing.T) {
	flag := reformCmd.Flags().Lookup("surface")
	require.NotNil(t, flag)
	assert.Equal(t, "0", flag.DefValue)
	assert.NotNil(t, reformCmd.Flags().Lookup("category"))
	assert.NotNil(t, reformCmd.Flags().Lookup("quality"))
	assert.NotNil(t, reformCmd.Flags().Lookup("zone"))
}

func TestAnalyzeCommand_Flags(t *testing.T) {
	for _, name := range []string{"target", "purchase-price", "category", "quality", "comparables", "save"} {
		assert.NotNil(t, analyzeCmd.Flags().Lookup(name), name)
	}
	assert.Equal(t, "false", analyzeCmd.Flags().Lookup("save").DefValue)
}

func TestBatchCommand_Flags(t *testing.T) {
	flag := batchCmd.Flags().Lookup("limit")
	require.NotNil(t, flag, "batch command should have --limit flag")
	assert.Equal(t, "100", flag.DefValue)
	assert.NotNil(t, batchCmd.Flags().Lookup("targets"))
}

func TestImportCommand_Flags(t *testing.T) {
	for _, name := range []string{"file", "sheet", "source", "dry-run", "costs"} {
		assert.NotNil(t, importCmd.Flags().Lookup(name), name)
	}
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}
