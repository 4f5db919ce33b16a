// Package config defines the configuration model of an import run and the
// helpers that load and lint it.
//
// A pipeline file is YAML or JSON and mirrors the Pipeline struct:
//
//	job: people_import
//	source:
//	  kind: file
//	  file: { path: people.csv, compression: auto, encoding: utf-8 }
//	parser:
//	  kind: delimited
//	  options: { delimiter: COMMA, header_row: "id,name,age" }
//	descriptor:
//	  entity_id_source: id
//	  families:
//	    - name: info
//	      columns: [ { name: n, source: name }, { name: a, source: age } ]
//	storage:
//	  kind: sqlite
//	  db: { dsn: "file:people.db", table: people_cells, auto_create_table: true }
//
// Parser options vary by parser kind, so they stay a free-form Options map
// with typed getters.
package config

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"bulkimport/internal/descriptor"
)

// Parser option keys understood by the delimited parser.
const (
	OptDelimiter        = "delimiter"
	OptHeaderRow        = "header_row"
	OptLazyQuotes       = "lazy_quotes"
	OptSkipBlankLines   = "skip_blank_lines"
	OptMultilineRecords = "multiline_records"
	OptMaxRecordLines   = "max_record_lines"
)

// Pipeline is the top-level object decoded from a pipeline file.
type Pipeline struct {
	// Job names the run in logs and metrics.
	Job string `json:"job" yaml:"job" mapstructure:"job"`

	Source     Source                `json:"source" yaml:"source" mapstructure:"source"`
	Parser     Parser                `json:"parser" yaml:"parser" mapstructure:"parser"`
	Descriptor descriptor.Descriptor `json:"descriptor" yaml:"descriptor" mapstructure:"descriptor"`
	// DescriptorFile names a standalone JSON descriptor used instead of the
	// inline descriptor block. Relative paths resolve against the pipeline file.
	DescriptorFile string `json:"descriptor_file,omitempty" yaml:"descriptor_file,omitempty" mapstructure:"descriptor_file"`
	Storage    Storage               `json:"storage" yaml:"storage" mapstructure:"storage"`
	Runtime    RuntimeConfig         `json:"runtime" yaml:"runtime" mapstructure:"runtime"`
	Rejects    Rejects               `json:"rejects" yaml:"rejects" mapstructure:"rejects"`
	Logging    Logging               `json:"logging" yaml:"logging" mapstructure:"logging"`
	Metrics    Metrics               `json:"metrics" yaml:"metrics" mapstructure:"metrics"`
}

// RuntimeConfig controls loader concurrency, batching, and channel buffer sizes.
type RuntimeConfig struct {
	LoaderWorkers int `json:"loader_workers" yaml:"loader_workers" mapstructure:"loader_workers"`
	BatchSize     int `json:"batch_size" yaml:"batch_size" mapstructure:"batch_size"`
	ChannelBuffer int `json:"channel_buffer" yaml:"channel_buffer" mapstructure:"channel_buffer"`
}

// Source identifies the data source.
type Source struct {
	// Kind selects the source implementation: "file" or "http".
	Kind string     `json:"kind" yaml:"kind" mapstructure:"kind"`
	File SourceFile `json:"file" yaml:"file" mapstructure:"file"`
	HTTP SourceHTTP `json:"http" yaml:"http" mapstructure:"http"`
}

// SourceFile holds configuration for the "file" source kind.
type SourceFile struct {
	// Path is the local filesystem path to the input file.
	Path string `json:"path" yaml:"path" mapstructure:"path"`

	// Compression is "auto" (by extension and magic bytes), "none", "gzip"
	// or "zstd". Empty means auto.
	Compression string `json:"compression" yaml:"compression" mapstructure:"compression"`

	// Encoding is an IANA charset name. Empty means UTF-8. A byte order mark
	// overrides it.
	Encoding string `json:"encoding" yaml:"encoding" mapstructure:"encoding"`
}

// SourceHTTP holds configuration for the "http" source kind. The body is
// decoded like a file; compression is detected from the URL path and the
// leading bytes.
type SourceHTTP struct {
	URL string `json:"url" yaml:"url" mapstructure:"url"`

	// Timeout bounds the whole download. Zero means no limit.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// MaxRetries is the number of retries after the first attempt on
	// transport errors, 429 and 5xx.
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	InsecureSkipVerify bool `json:"insecure_skip_verify" yaml:"insecure_skip_verify" mapstructure:"insecure_skip_verify"`

	Compression string `json:"compression" yaml:"compression" mapstructure:"compression"`
	Encoding    string `json:"encoding" yaml:"encoding" mapstructure:"encoding"`
}

// Parser selects how lines are split into fields.
type Parser struct {
	// Kind selects the parser implementation. Current value: "delimited".
	Kind string `json:"kind" yaml:"kind" mapstructure:"kind"`

	// Options is interpreted by the parser. For "delimited" the keys are the
	// Opt* constants.
	Options Options `json:"options" yaml:"options" mapstructure:"options"`
}

// Delimiter returns the configured delimiter option, defaulting to TAB for
// the "tsv" parser kind and COMMA otherwise.
func (p Parser) Delimiter() string {
	def := "COMMA"
	if strings.EqualFold(strings.TrimSpace(p.Kind), "tsv") {
		def = "TAB"
	}
	return p.Options.String(OptDelimiter, def)
}

// Storage selects the sink that cells are written to.
type Storage struct {
	// Kind selects a registered backend (memory, sqlite, postgres, mysql,
	// mssql, mongo, parquet).
	Kind string   `json:"kind" yaml:"kind" mapstructure:"kind"`
	DB   DBConfig `json:"db" yaml:"db" mapstructure:"db"`
}

// DBConfig configures the cell store.
type DBConfig struct {
	// DSN is the backend connection string. For parquet it is the output
	// file path; memory ignores it.
	DSN string `json:"dsn" yaml:"dsn" mapstructure:"dsn"`

	// Table is the cell table (or collection) name. Empty falls back to the
	// descriptor table.
	Table string `json:"table" yaml:"table" mapstructure:"table"`

	// AutoCreateTable creates the cell table before loading when it does not
	// exist.
	AutoCreateTable bool `json:"auto_create_table" yaml:"auto_create_table" mapstructure:"auto_create_table"`
}

// Rejects configures the rejected-line sink.
type Rejects struct {
	// Path is a CSV file for dropped lines. Empty disables the sink.
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// Logging configures the process logger.
type Logging struct {
	Level  string `json:"level" yaml:"level" mapstructure:"level"`
	Format string `json:"format" yaml:"format" mapstructure:"format"`
	// File additionally writes JSON logs to this path.
	File string `json:"file" yaml:"file" mapstructure:"file"`
}

// Metrics selects a metrics backend.
type Metrics struct {
	// Backend is "none", "prometheus" or "datadog".
	Backend        string `json:"backend" yaml:"backend" mapstructure:"backend"`
	PushgatewayURL string `json:"pushgateway_url" yaml:"pushgateway_url" mapstructure:"pushgateway_url"`
	DatadogAddr    string `json:"datadog_addr" yaml:"datadog_addr" mapstructure:"datadog_addr"`
}

// Table returns the configured cell table, falling back to the descriptor
// table.
func (p Pipeline) Table() string {
	if p.Storage.DB.Table != "" {
		return p.Storage.DB.Table
	}
	return p.Descriptor.Table
}

// Options fetches typed values from a free-form map. Values may come from
// JSON (numbers are float64), YAML (int) or the environment (strings), so the
// getters coerce between those representations and return def otherwise.
type Options map[string]any

// String returns the string value for key or def if key is missing or not a string.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// StringPtr returns a pointer to the string value for key, or nil when the
// key is absent. It distinguishes "not configured" from "configured empty".
func (o Options) StringPtr(key string) *string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return &s
		}
	}
	return nil
}

// Bool returns the bool value for key or def. A string is parsed with
// strconv.ParseBool.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		switch b := v.(type) {
		case bool:
			return b
		case string:
			if pb, err := strconv.ParseBool(b); err == nil {
				return pb
			}
		}
	}
	return def
}

// Int returns the int value for key or def. JSON numbers are decoded as
// float64, so float64 is accepted and truncated.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		case int64:
			return int(n)
		case string:
			if i, err := strconv.Atoi(n); err == nil {
				return i
			}
		}
	}
	return def
}

// Any returns the raw value for key.
func (o Options) Any(key string) any {
	if v, ok := o[key]; ok {
		return v
	}
	return nil
}

// UnmarshalJSON decodes a missing or null "options" object to an empty,
// non-nil map.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
