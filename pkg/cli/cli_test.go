package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/lantern/pkg/graph"
)

const demoDefinition = `name: demo
nodes:
  - id: step1
    transform: step1
  - id: step2
    transform: step2
edges:
  - from: __start__
    to: step1
  - from: step1
    to: step2
  - from: step2
    to: __end__
`

func writeDefinition(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "graph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func runCommand(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestValidateCommand(t *testing.T) {
	path := writeDefinition(t, demoDefinition)

	out, err := runCommand(t, NewValidateCommand(), path)
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")
}

func TestValidateCommandRejectsBadDefinition(t *testing.T) {
	path := writeDefinition(t, "nodes: []\n")

	_, err := runCommand(t, NewValidateCommand(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema validation failed")
}

func TestValidateCommandMissingFile(t *testing.T) {
	_, err := runCommand(t, NewValidateCommand(), "/nonexistent/graph.yaml")
	require.Error(t, err)
}

func TestRunCommand(t *testing.T) {
	path := writeDefinition(t, demoDefinition)

	out, err := runCommand(t, NewRunCommand(), path)
	require.NoError(t, err)
	assert.Contains(t, out, "status: completed")
	assert.Contains(t, out, `"foo": "bar"`)
	assert.Contains(t, out, `"baz": "bar"`)
}

func TestRunCommandInitialState(t *testing.T) {
	path := writeDefinition(t, demoDefinition)

	out, err := runCommand(t, NewRunCommand(), path, "--set", "extra=value")
	require.NoError(t, err)
	assert.Contains(t, out, `"extra": "value"`)
}

func TestRunCommandInvalidSet(t *testing.T) {
	path := writeDefinition(t, demoDefinition)

	_, err := runCommand(t, NewRunCommand(), path, "--set", "no-equals-sign")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid key=value pair")
}

func TestExecCommand(t *testing.T) {
	path := writeDefinition(t, demoDefinition)

	out, err := runCommand(t, NewExecCommand(), path, "step2", "--mock", "foo=mocked")
	require.NoError(t, err)
	assert.Contains(t, out, `"success": true`)
	assert.Contains(t, out, `"baz": "mocked"`)
}

func TestExecCommandUnknownNode(t *testing.T) {
	path := writeDefinition(t, demoDefinition)

	_, err := runCommand(t, NewExecCommand(), path, "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestDemoRegistryTestingNodes(t *testing.T) {
	definition := `name: injection-demo
nodes:
  - id: inject
    type: testing
    config:
      use_mock: true
      seed: 42
edges:
  - from: __start__
    to: inject
  - from: inject
    to: __end__
`
	path := writeDefinition(t, definition)

	out, err := runCommand(t, NewRunCommand(), path, "--set", "prompt=What is the weather?")
	require.NoError(t, err)
	assert.Contains(t, out, "status: completed")
	assert.Contains(t, out, "injected_prompt")
	assert.Contains(t, out, "What is the weather?")
}

func TestParseKeyValues(t *testing.T) {
	state, err := parseKeyValues([]string{"a=1", "b=two", "c=x=y"})
	require.NoError(t, err)
	assert.Equal(t, graph.State{"a": "1", "b": "two", "c": "x=y"}, state)

	_, err = parseKeyValues([]string{"=value"})
	require.Error(t, err)
}
