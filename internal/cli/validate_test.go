package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const configDir = "../../testdata/config"

// runCommand executes cmd with args and returns what it wrote to stdout.
func runCommand(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// writeConfig copies the shared schema into a temp dir alongside rules.
func writeConfig(t *testing.T, rules string) string {
	t.Helper()
	dir := t.TempDir()
	schema, err := os.ReadFile(filepath.Join(configDir, "schema.cue"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schema.cue"), schema, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rules.cue"), []byte(rules), 0o644))
	return dir
}

func TestValidateValidConfig(t *testing.T) {
	out, err := runCommand(t, NewValidateCommand(&RootOptions{Format: "text"}), configDir)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ Configuration valid (2 sync rule(s))")
	// expression flow on an enforced rule
	assert.Contains(t, out, "warning E107")
}

func TestValidateValidConfigJSON(t *testing.T) {
	out, err := runCommand(t, NewValidateCommand(&RootOptions{Format: "json"}), configDir)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, 2, resp.Data.Rules)
	assert.Empty(t, resp.Data.Errors)
	require.Len(t, resp.Data.Warnings, 1)
	assert.Equal(t, "E107", resp.Data.Warnings[0].Code)
}

func TestValidateNonExistentDirectory(t *testing.T) {
	out, err := runCommand(t, NewValidateCommand(&RootOptions{Format: "text"}), "/nonexistent/directory/path")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")
	assert.Contains(t, out, "not found")
}

func TestValidateEmptyDirectory(t *testing.T) {
	out, err := runCommand(t, NewValidateCommand(&RootOptions{Format: "text"}), t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "no CUE files found")
}

func TestValidateCompileError(t *testing.T) {
	dir := writeConfig(t, `package config

sync_rules: "AD user export": {
	id:                    1
	direction:             "export"
	connected_system:      "LDAP"
	object_type:           "user"
	metaverse_object_type: "person"
	flows: []
}
`)

	out, err := runCommand(t, NewValidateCommand(&RootOptions{Format: "json"}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeCompileFailed, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, `unknown connected system "LDAP"`)
}

func TestValidateDuplicateRuleIDs(t *testing.T) {
	dir := writeConfig(t, `package config

sync_rules: {
	"AD user export": {
		id:                    1
		direction:             "export"
		connected_system:      "AD"
		object_type:           "user"
		metaverse_object_type: "person"
		flows: [{id: 10, source: "department", target: "department"}]
	}
	"AD user export copy": {
		id:                    1
		direction:             "export"
		connected_system:      "AD"
		object_type:           "user"
		metaverse_object_type: "person"
		flows: [{id: 11, source: "displayName", target: "displayName"}]
	}
}
`)

	t.Run("text", func(t *testing.T) {
		out, err := runCommand(t, NewValidateCommand(&RootOptions{Format: "text"}), dir)
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Contains(t, out, "✗ Validation failed")
		assert.Contains(t, out, "E104")
	})

	t.Run("json", func(t *testing.T) {
		out, err := runCommand(t, NewValidateCommand(&RootOptions{Format: "json"}), dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "validation failed with 1 error(s)")

		var resp struct {
			Status string           `json:"status"`
			Data   ValidationResult `json:"data"`
			Error  *CLIError        `json:"error"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		assert.Equal(t, "error", resp.Status)
		assert.False(t, resp.Data.Valid)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "E104", resp.Error.Code)
	})
}

func TestValidateVerboseOutput(t *testing.T) {
	errBuf := &bytes.Buffer{}
	outBuf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "json", Verbose: true})
	cmd.SetOut(outBuf)
	cmd.SetErr(errBuf)
	cmd.SetArgs([]string{configDir})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, errBuf.String(), "Found 2 CUE file(s)")

	// stdout stays valid JSON
	var resp CLIResponse
	require.NoError(t, json.Unmarshal(outBuf.Bytes(), &resp))
}
