package factory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/meandra/internal/domain"
)

const pipelineDoc = `
workflow:
  id: nightly-etl
  nodes:
    - id: extract
      kind: exec
      params:
        command: "fetch --source orders"
      outputs: [raw]
      when: full_refresh
    - id: transform
      kind: exec
      params:
        command: "clean raw"
      inputs: [raw]
      outputs: [clean]
    - id: enrich
      inputs: [clean]
      outputs: [enriched]
      workflow:
        id: enrich
        nodes:
          - id: join
            kind: exec
            inputs: [clean]
            outputs: [joined]
          - id: score
            kind: exec
            inputs: [joined]
            outputs: [enriched]
    - id: load
      kind: exec
      inputs: [enriched]
      outputs: [report]
      after: [transform]

catalog:
  base_dir: data/warehouse
  default_format: json
  entries:
    - key: report
      location: runs/{run_id}/report.json
    - key: raw
      location: runs/{run_id}/raw.bin
      format: binary

run:
  id: nightly-2024-06-01
  flags:
    full_refresh: true
  params:
    rate: 25
  inputs:
    source: orders
  placeholders:
    env: prod
`

func TestLoadBytes_FullDocument(t *testing.T) {
	wf, err := LoadBytes([]byte(pipelineDoc))
	require.NoError(t, err)

	require.NotNil(t, wf.Spec)
	assert.Equal(t, "nightly-etl", wf.Spec.ID)

	ids := make([]string, 0, len(wf.Spec.Nodes))
	for _, n := range wf.Spec.Nodes {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"extract", "transform", "enrich", "load"}, ids)

	extract := wf.Spec.Nodes[0]
	assert.Equal(t, "exec", extract.Kind)
	assert.Equal(t, "fetch --source orders", extract.Params["command"])
	assert.Equal(t, []string{"raw"}, extract.OutputKeys)
	assert.Equal(t, []string{"full_refresh"}, extract.When)

	load := wf.Spec.Nodes[3]
	assert.Equal(t, []string{"enriched"}, load.InputKeys)
	assert.Equal(t, []string{"transform"}, load.After)

	enrich := wf.Spec.Nodes[2]
	require.True(t, enrich.IsSubWorkflow())
	assert.Empty(t, enrich.Kind)
	assert.Equal(t, "enrich", enrich.SubWorkflow.ID)
	require.Len(t, enrich.SubWorkflow.Nodes, 2)
	assert.Equal(t, "join", enrich.SubWorkflow.Nodes[0].ID)
	assert.Equal(t, "score", enrich.SubWorkflow.Nodes[1].ID)

	assert.Equal(t, "data/warehouse", wf.Catalog.BaseDir)
	assert.Equal(t, "json", wf.Catalog.DefaultFormat)
	require.Len(t, wf.Catalog.Entries, 2)
	assert.Equal(t, "report", wf.Catalog.Entries[0].Key)
	assert.Equal(t, "runs/{run_id}/report.json", wf.Catalog.Entries[0].Location)
	assert.Equal(t, "binary", wf.Catalog.Entries[1].Format)

	require.NotNil(t, wf.Run)
	assert.Equal(t, "nightly-2024-06-01", wf.Run.RunID)
	assert.True(t, wf.Run.Flag("full_refresh"))
	assert.Equal(t, 25, wf.Run.Params["rate"])
	assert.Equal(t, "orders", wf.Run.Inputs["source"])
	assert.Equal(t, map[string]string{"env": "prod"}, wf.Run.Placeholders)
	assert.Equal(t, -1, wf.Run.SweepIndex)
}

func TestLoadBytes_WhenAcceptsScalarAndList(t *testing.T) {
	doc := `
workflow:
  id: conditioned
  nodes:
    - id: one
      kind: exec
      when: debug
    - id: two
      kind: exec
      when: [debug, verbose]
`
	wf, err := LoadBytes([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, []string{"debug"}, wf.Spec.Nodes[0].When)
	assert.Equal(t, []string{"debug", "verbose"}, wf.Spec.Nodes[1].When)
}

func TestLoadBytes_DefaultsWithoutRunAndCatalogSections(t *testing.T) {
	doc := `
workflow:
  id: bare
  nodes:
    - id: only
      kind: exec
`
	wf, err := LoadBytes([]byte(doc))
	require.NoError(t, err)

	assert.Empty(t, wf.Catalog.Entries)
	require.NotNil(t, wf.Run)
	assert.Empty(t, wf.Run.RunID)
	assert.Equal(t, -1, wf.Run.SweepIndex)
}

func TestLoadBytes_RejectsUnknownNodeField(t *testing.T) {
	doc := `
workflow:
  id: typo
  nodes:
    - id: only
      kind: exec
      retries: 3
`
	_, err := LoadBytes([]byte(doc))
	require.Error(t, err)
	assert.True(t, domain.IsConfigurationError(err))
	assert.Contains(t, err.Error(), "unknown field")
	assert.Contains(t, err.Error(), "retries")
}

func TestLoadBytes_RejectsMissingWorkflowSection(t *testing.T) {
	doc := `
run:
  id: orphan
`
	_, err := LoadBytes([]byte(doc))
	require.Error(t, err)
	assert.True(t, domain.IsConfigurationError(err))
	assert.Contains(t, err.Error(), "no workflow section")
}

func TestLoadBytes_RejectsDuplicateNodeIDs(t *testing.T) {
	doc := `
workflow:
  id: doubled
  nodes:
    - id: step
      kind: exec
    - id: step
      kind: exec
`
	_, err := LoadBytes([]byte(doc))
	require.Error(t, err)
	assert.True(t, domain.IsConfigurationError(err))
	assert.Contains(t, err.Error(), "duplicate node id")
}

func TestLoadBytes_RejectsWrongFieldTypes(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "when as mapping",
			doc: `
workflow:
  id: bad
  nodes:
    - id: only
      kind: exec
      when: {flag: true}
`,
			want: "must be a string or a list of strings",
		},
		{
			name: "flags value not boolean",
			doc: `
workflow:
  id: bad
  nodes:
    - id: only
      kind: exec
run:
  flags:
    debug: "yes"
`,
			want: "run.flags.debug must be a boolean",
		},
		{
			name: "placeholder value not string",
			doc: `
workflow:
  id: bad
  nodes:
    - id: only
      kind: exec
run:
  placeholders:
    attempt: 3
`,
			want: "run.placeholders.attempt must be a string",
		},
		{
			name: "catalog entry without location",
			doc: `
workflow:
  id: bad
  nodes:
    - id: only
      kind: exec
catalog:
  entries:
    - key: report
`,
			want: "has no location",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadBytes([]byte(tc.doc))
			require.Error(t, err)
			assert.True(t, domain.IsConfigurationError(err))
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoadBytes_RejectsMalformedYAML(t *testing.T) {
	_, err := LoadBytes([]byte("workflow: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse workflow document")
}

func TestLoadFile_ReadsFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(pipelineDoc), 0o644))

	wf, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "nightly-etl", wf.Spec.ID)
	assert.Equal(t, "nightly-2024-06-01", wf.Run.RunID)
}

func TestLoadFile_MissingFileIsAnError(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load workflow file")
}
