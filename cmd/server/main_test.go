package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTablesCommand_Embedded(t *testing.T) {
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"tables"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "Validating embedded tables.cue")
	assert.Contains(t, out.String(), "events:        3")
	assert.Contains(t, out.String(), "tables: OK")
}

func TestTablesCommand_RejectsBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.cue")
	require.NoError(t, os.WriteFile(path, []byte("currency: \"AUD\"\nlevy: {"), 0o644))

	cmd := rootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"tables", path})
	assert.Error(t, cmd.Execute())
}

func TestServeCommand_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strata.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: chatty\n"), 0o644))

	cmd := rootCmd()
	cmd.SetArgs([]string{"serve", "--config", path})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.level")
}
