package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const peopleYAML = `
job: people_import
source:
  kind: file
  file:
    path: testdata/people.csv
    compression: gzip
parser:
  kind: delimited
  options:
    delimiter: TAB
    header_row: "id\tname\tage"
    lazy_quotes: true
    max_record_lines: 20
descriptor:
  table: people
  entity_id_source: id
  families:
    - name: info
      columns:
        - { name: n, source: name }
        - { name: a, source: age }
storage:
  kind: sqlite
  db:
    dsn: "file:people.db"
    table: people_cells
    auto_create_table: true
runtime:
  batch_size: 100
rejects:
  path: rejects/people.csv
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_YAML(t *testing.T) {
	p, err := Load(writeFile(t, "people.yaml", peopleYAML))
	require.NoError(t, err)

	assert.Equal(t, "people_import", p.Job)
	assert.Equal(t, "gzip", p.Source.File.Compression)
	assert.Equal(t, "TAB", p.Parser.Options.String(OptDelimiter, ""))
	require.NotNil(t, p.Parser.Options.StringPtr(OptHeaderRow))
	assert.Equal(t, "id\tname\tage", *p.Parser.Options.StringPtr(OptHeaderRow))
	assert.True(t, p.Parser.Options.Bool(OptLazyQuotes, false))
	assert.Equal(t, 20, p.Parser.Options.Int(OptMaxRecordLines, 0))

	assert.Equal(t, "id", p.Descriptor.EntityIDSource)
	require.Len(t, p.Descriptor.Families, 1)
	assert.Equal(t, "a", p.Descriptor.Families[0].Columns[1].Name)
	assert.Equal(t, "age", p.Descriptor.Families[0].Columns[1].Source)

	assert.Equal(t, "people_cells", p.Table())
	assert.True(t, p.Storage.DB.AutoCreateTable)
	assert.Equal(t, 100, p.Runtime.BatchSize)
	assert.Equal(t, DefaultLoaderWorkers, p.Runtime.LoaderWorkers, "unset keys keep defaults")
	assert.Equal(t, "rejects/people.csv", p.Rejects.Path)
	assert.Equal(t, "info", p.Logging.Level)

	assert.Empty(t, ValidatePipeline(p).Errors())
}

func TestLoad_JSON(t *testing.T) {
	body := `{
	  "job": "j",
	  "source": {"kind": "file", "file": {"path": "in.csv"}},
	  "parser": {"kind": "delimited", "options": {"delimiter": ","}},
	  "descriptor": {"entity_id_source": "id", "families": [{"name": "f", "columns": [{"name": "q", "source": "v"}]}]},
	  "storage": {"kind": "memory"}
	}`
	p, err := Load(writeFile(t, "p.json", body))
	require.NoError(t, err)
	assert.Equal(t, ",", p.Parser.Options.String(OptDelimiter, ""))
	assert.Nil(t, p.Parser.Options.StringPtr(OptHeaderRow))
	assert.Equal(t, "memory", p.Storage.Kind)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeFile(t, "people.yaml", peopleYAML)
	t.Setenv("BULKIMPORT_STORAGE_DB_DSN", "postgres://u@db/people")
	t.Setenv("BULKIMPORT_STORAGE_KIND", "postgres")
	t.Setenv("BULKIMPORT_RUNTIME_LOADER_WORKERS", "4")
	t.Setenv("BULKIMPORT_PARSER_OPTIONS_DELIMITER", "COMMA")

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", p.Storage.Kind)
	assert.Equal(t, "postgres://u@db/people", p.Storage.DB.DSN)
	assert.Equal(t, 4, p.Runtime.LoaderWorkers)
	assert.Equal(t, "COMMA", p.Parser.Options.String(OptDelimiter, ""))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	p, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Runtime, p.Runtime)
	assert.NotNil(t, p.Parser.Options)
}

func TestLoad_HTTPSource(t *testing.T) {
	body := `
job: remote
source:
  kind: http
  http:
    url: https://example.com/people.tsv.zst
    timeout: 45s
    max_retries: 2
descriptor:
  entity_id_source: id
  families: [ { name: f, columns: [ { name: q, source: v } ] } ]
`
	p, err := Load(writeFile(t, "remote.yaml", body))
	require.NoError(t, err)
	assert.Equal(t, "http", p.Source.Kind)
	assert.Equal(t, "https://example.com/people.tsv.zst", p.Source.HTTP.URL)
	assert.Equal(t, 45*time.Second, p.Source.HTTP.Timeout)
	assert.Equal(t, 2, p.Source.HTTP.MaxRetries)
	assert.Empty(t, ValidatePipeline(p).Errors())
}

const peopleDescriptorJSON = `{
  "table": "people",
  "entity_id_source": "id",
  "families": [{"name": "info", "columns": [{"name": "n", "source": "name"}]}]
}`

func TestLoad_DescriptorFile(t *testing.T) {
	t.Run("relative to the pipeline file", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "people.json"), []byte(peopleDescriptorJSON), 0o644))
		cfg := filepath.Join(dir, "pipeline.yaml")
		require.NoError(t, os.WriteFile(cfg, []byte("job: people\nsource: {file: {path: in.csv}}\ndescriptor_file: people.json\n"), 0o644))

		p, err := Load(cfg)
		require.NoError(t, err)
		assert.Equal(t, "people", p.Descriptor.Table)
		assert.Equal(t, "id", p.Descriptor.EntityIDSource)
		require.Len(t, p.Descriptor.Families, 1)
		assert.Equal(t, "name", p.Descriptor.Families[0].Columns[0].Source)
		assert.Empty(t, ValidatePipeline(p).Errors())
	})

	t.Run("from the environment", func(t *testing.T) {
		t.Setenv("BULKIMPORT_DESCRIPTOR_FILE", writeFile(t, "people.json", peopleDescriptorJSON))
		p, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "id", p.Descriptor.EntityIDSource)
	})

	t.Run("inline descriptor conflicts", func(t *testing.T) {
		body := peopleYAML + "descriptor_file: " + writeFile(t, "people.json", peopleDescriptorJSON) + "\n"
		_, err := Load(writeFile(t, "people.yaml", body))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "mutually exclusive")
	})

	t.Run("invalid descriptor", func(t *testing.T) {
		desc := writeFile(t, "bad.json", `{"families": [{"name": "info", "columns": [{"name": "n", "source": "name"}]}]}`)
		_, err := Load(writeFile(t, "p.yaml", "job: j\ndescriptor_file: "+desc+"\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "entity_id_source")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(writeFile(t, "p.yaml", "job: j\ndescriptor_file: nope.json\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "descriptor_file nope.json")
	})
}
