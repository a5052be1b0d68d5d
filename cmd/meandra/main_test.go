package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeWorkflow(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func invoke(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

const chainedDoc = `
workflow:
  id: chained
  nodes:
    - id: produce
      kind: exec
      params:
        command: "printf 'one'"
        capture: raw
      outputs: [raw]
    - id: consume
      kind: exec
      params:
        command: "printf '%s-two' \"$MEANDRA_INPUT_RAW\""
        capture: final
      inputs: [raw]
      outputs: [final]

run:
  id: chained-1
`

func TestCLI_RunExecutesWorkflowFile(t *testing.T) {
	file := writeWorkflow(t, chainedDoc)
	dataDir := t.TempDir()

	code, stdout, stderr := invoke(t, "run", "--file", file, "--data-dir", dataDir)

	assert.Equal(t, exitSuccess, code, "stderr: %s", stderr)
	assert.Contains(t, stdout, "run chained-1 (workflow chained) succeeded")
	assert.Contains(t, stdout, "produce")
	assert.Contains(t, stdout, "consume")
}

func TestCLI_PlanPrintsLevels(t *testing.T) {
	file := writeWorkflow(t, chainedDoc)

	code, stdout, stderr := invoke(t, "plan", "--file", file, "--data-dir", t.TempDir())

	assert.Equal(t, exitSuccess, code, "stderr: %s", stderr)
	assert.Contains(t, stdout, "workflow chained: 2 nodes in 2 levels")
	assert.Contains(t, stdout, "level 0: produce")
	assert.Contains(t, stdout, "level 1: consume")
}

func TestCLI_PlanUnknownKindExitsTwo(t *testing.T) {
	file := writeWorkflow(t, `
workflow:
  id: alien
  nodes:
    - id: task
      kind: python
`)
	code, _, stderr := invoke(t, "plan", "--file", file, "--data-dir", t.TempDir())

	assert.Equal(t, exitSpecError, code)
	assert.Contains(t, stderr, "python")
}

func TestCLI_PlanCycleExitsTwo(t *testing.T) {
	file := writeWorkflow(t, `
workflow:
  id: loop
  nodes:
    - id: a
      kind: exec
      params: {command: "true"}
      after: [b]
    - id: b
      kind: exec
      params: {command: "true"}
      after: [a]
`)
	code, _, stderr := invoke(t, "plan", "--file", file, "--data-dir", t.TempDir())

	assert.Equal(t, exitSpecError, code)
	assert.Contains(t, stderr, "cycle")
}

func TestCLI_RunFailureExitsOne(t *testing.T) {
	file := writeWorkflow(t, `
workflow:
  id: doomed
  nodes:
    - id: broken
      kind: exec
      params:
        command: "exit 7"

run:
  id: doomed-1
`)
	code, stdout, _ := invoke(t, "run", "--file", file, "--data-dir", t.TempDir())

	assert.Equal(t, exitRunFailure, code)
	assert.Contains(t, stdout, "run doomed-1 (workflow doomed) failed")
	assert.Contains(t, stdout, "exit status 7")
}

func TestCLI_MalformedFileExitsTwo(t *testing.T) {
	file := writeWorkflow(t, "workflow: [unclosed")

	code, _, stderr := invoke(t, "run", "--file", file, "--data-dir", t.TempDir())

	assert.Equal(t, exitSpecError, code)
	assert.NotEmpty(t, stderr)
}

func TestCLI_StatusSummarizesFinishedRun(t *testing.T) {
	file := writeWorkflow(t, chainedDoc)
	dataDir := t.TempDir()

	code, _, stderr := invoke(t, "run", "--file", file, "--data-dir", dataDir)
	require.Equal(t, exitSuccess, code, "stderr: %s", stderr)

	code, stdout, stderr := invoke(t, "status", "--data-dir", dataDir, "--run-id", "chained-1")
	assert.Equal(t, exitSuccess, code, "stderr: %s", stderr)
	assert.Contains(t, stdout, "run chained-1: 2 records")
	assert.Contains(t, stdout, "produce")
	assert.Contains(t, stdout, "succeeded")

	code, stdout, _ = invoke(t, "status", "--data-dir", dataDir)
	assert.Equal(t, exitSuccess, code)
	assert.Contains(t, stdout, "chained-1")
}

func TestCLI_StatusUnknownRunExitsOne(t *testing.T) {
	code, _, stderr := invoke(t, "status", "--data-dir", t.TempDir(), "--run-id", "never-ran")

	assert.Equal(t, exitRunFailure, code)
	assert.Contains(t, stderr, "never-ran")
}

func TestCLI_ResumeWithoutRunIDExitsTwo(t *testing.T) {
	file := writeWorkflow(t, `
workflow:
  id: anon
  nodes:
    - id: only
      kind: exec
      params: {command: "true"}
`)
	code, _, stderr := invoke(t, "run", "--file", file, "--data-dir", t.TempDir(), "--resume")

	assert.Equal(t, exitSpecError, code)
	assert.Contains(t, stderr, "resume requires a run id")
}

func TestCLI_ResumeCompletesFailedRun(t *testing.T) {
	workDir := t.TempDir()
	doc := fmt.Sprintf(`
workflow:
  id: retryable
  nodes:
    - id: fragile
      kind: exec
      params:
        command: "cat marker.txt"
        dir: %s
        capture: marker
      outputs: [marker]
    - id: finish
      kind: exec
      params:
        command: "printf 'done:%%s' \"$MEANDRA_INPUT_MARKER\""
        capture: done
      inputs: [marker]
      outputs: [done]

run:
  id: retry-1
`, workDir)
	file := writeWorkflow(t, doc)
	dataDir := t.TempDir()

	code, stdout, _ := invoke(t, "run", "--file", file, "--data-dir", dataDir)
	require.Equal(t, exitRunFailure, code)
	assert.Contains(t, stdout, "failed")

	require.NoError(t, os.WriteFile(filepath.Join(workDir, "marker.txt"), []byte("ready"), 0o644))

	code, stdout, stderr := invoke(t, "run", "--file", file, "--data-dir", dataDir, "--resume", "--run-id", "retry-1")
	assert.Equal(t, exitSuccess, code, "stderr: %s", stderr)
	assert.Contains(t, stdout, "run retry-1 (workflow retryable) succeeded")
	assert.Contains(t, stdout, "fragile")
	assert.Contains(t, stdout, "finish")
}

func TestCLI_UnknownCommandExitsTwo(t *testing.T) {
	code, _, stderr := invoke(t, "frobnicate")

	assert.Equal(t, exitSpecError, code)
	assert.Contains(t, stderr, "unknown command")
}

func TestCLI_NoArgsPrintsUsage(t *testing.T) {
	code, _, stderr := invoke(t)

	assert.Equal(t, exitSpecError, code)
	assert.Contains(t, stderr, "usage: meandra")
}

func TestCLI_HelpExitsZero(t *testing.T) {
	code, stdout, _ := invoke(t, "help")

	assert.Equal(t, exitSuccess, code)
	assert.Contains(t, stdout, "usage: meandra")
}
