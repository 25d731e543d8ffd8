package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pe-score/internal/ruleset"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"score", "validate", "runs", "retry", "serve"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "pe-score", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRunsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range runsCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"list", "show", "failures"} {
		assert.True(t, names[name], "expected runs subcommand %q not found", name)
	}
}

func TestScoreCommand_Flags(t *testing.T) {
	for _, name := range []string{"model", "inputs", "out", "clip", "workers", "block-rows"} {
		require.NotNil(t, scoreCmd.Flags().Lookup(name), "score command should have --%s", name)
	}
	assert.Equal(t, "0", scoreCmd.Flags().Lookup("workers").DefValue)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestRunsListCommand_Flags(t *testing.T) {
	flag := runsListCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "50", flag.DefValue)
}

func TestEngineOptions_ModelPolicyWins(t *testing.T) {
	c := testConfig(t)
	c.Engine.NoDataPolicy = "substitute"
	c.Engine.NoDataSubstitute = 1

	unset := &ruleset.Model{}
	set := &ruleset.Model{NoData: ruleset.NoDataSpec{Policy: "ignore"}}

	// Only the model without its own policy picks up the configured one.
	assert.Len(t, engineOptions(c, unset, 2, 0, nil), len(engineOptions(c, set, 2, 0, nil))+1)

	c.Engine.NoDataPolicy = "bogus"
	assert.Len(t, engineOptions(c, unset, 2, 0, nil), len(engineOptions(c, set, 2, 0, nil)))
}
