package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"prodfetch/pkg/auth"
	"prodfetch/pkg/config"
	"prodfetch/pkg/logger"
)

func TestWriteWorkDone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output")
	t.Setenv(githubOutputEnv, path)

	require.NoError(t, writeWorkDone(true))
	require.NoError(t, writeWorkDone(false))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "work_done=true\nwork_done=false\n", string(data))
}

func TestWriteWorkDoneWithoutOutputFile(t *testing.T) {
	t.Setenv(githubOutputEnv, "")
	assert.NoError(t, writeWorkDone(true))
}

func TestBuildEndpoints(t *testing.T) {
	api := config.APIConfig{
		Primary:  config.EndpointConfig{Name: "primary", URL: "https://a.example.com/p.json", Username: "u", Password: "p"},
		Fallback: config.EndpointConfig{Name: "fallback", URL: "https://b.example.com/p.json", Username: "u"},
	}

	endpoints := buildEndpoints(api, auth.NewResolver(nil, logger.NewNopLogger()))

	require.Len(t, endpoints, 2)
	assert.Equal(t, "primary", endpoints[0].Name)
	assert.True(t, endpoints[0].Enabled())
	assert.False(t, endpoints[1].Enabled(), "fallback without a password is disabled")
}

func TestFlagOverridesOnlyChanged(t *testing.T) {
	root := NewRootCmd()
	runCmd, _, err := root.Find([]string{"run"})
	require.NoError(t, err)

	require.NoError(t, runCmd.Flags().Parse([]string{"--input", "list.csv", "--item-delay", "2s"}))

	flags := &runFlags{input: "list.csv", itemDelay: 2 * time.Second}
	overrides := flagOverrides(runCmd, &rootFlags{}, flags)

	assert.Equal(t, map[string]interface{}{
		"input":      "list.csv",
		"item-delay": 2 * time.Second,
	}, overrides)
}

func TestVersionCommand(t *testing.T) {
	root := NewRootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "prodfetch "+version)
}
