package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectCommandTreeHasEstimateAndIndex(t *testing.T) {
	cmd := newProjectCmd()

	estimate, _, err := cmd.Find([]string{"estimate"})
	require.NoError(t, err)
	assert.Equal(t, "estimate", estimate.Name())

	index, _, err := cmd.Find([]string{"index"})
	require.NoError(t, err)
	assert.Equal(t, "index", index.Name())

	fullFlag := index.Flags().Lookup("full")
	require.NotNil(t, fullFlag)
	assert.Equal(t, "false", fullFlag.DefValue)
}

func TestReportCommandTreeHasShowWithProjectFlag(t *testing.T) {
	cmd := newReportCmd()

	show, _, err := cmd.Find([]string{"show"})
	require.NoError(t, err)
	assert.Equal(t, "show", show.Name())

	projectFlag := show.Flags().Lookup("project")
	require.NotNil(t, projectFlag)
	assert.Equal(t, "false", projectFlag.DefValue)
}

func TestWorkerCommandTreeHasRun(t *testing.T) {
	cmd := newWorkerCmd()

	run, _, err := cmd.Find([]string{"run"})
	require.NoError(t, err)
	assert.Equal(t, "run", run.Name())
}

func TestProjectEstimateRequiresExactlyOneArg(t *testing.T) {
	cmd := newProjectEstimateCmd()
	err := cmd.Args(cmd, []string{})
	assert.Error(t, err)

	err = cmd.Args(cmd, []string{"one-id"})
	assert.NoError(t, err)

	err = cmd.Args(cmd, []string{"one-id", "two-id"})
	assert.Error(t, err)
}
