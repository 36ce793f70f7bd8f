package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aptchat/logging"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() { logging.Set(nil) })

	var out bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeCatalog(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "steps.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestCheckSteps_Valid(t *testing.T) {
	path := writeCatalog(t, `
"0":
  text: Do you drink on nights out?
  options:
    - text: "No"
      end: true
    - text: "Yes"
      next: q1
      score: 2
"q1":
  text: Do you know your limit?
  options:
    - text: "Yes"
      next: result
`)
	out, err := execute(t, "check-steps", path)
	require.NoError(t, err)
	assert.Contains(t, out, "2 steps OK")
}

func TestCheckSteps_ReportsProblems(t *testing.T) {
	path := writeCatalog(t, `
"0":
  text: Do you drink on nights out?
  options:
    - text: "Yes"
      next: q9
"orphan":
  text: Never reached
  options:
    - text: Ok
      end: true
`)
	out, err := execute(t, "check-steps", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 problem(s)")
	assert.Contains(t, out, `points to unknown step "q9"`)
	assert.Contains(t, out, `step "orphan" is unreachable`)
}

func TestCheckSteps_MissingFile(t *testing.T) {
	_, err := execute(t, "check-steps", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "read step catalog")

	_, err = execute(t, "check-steps")
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "aptchat "+Version+"\n", out)
}
