package config

// Static linting of a decoded Pipeline. ValidatePipeline never mutates the
// pipeline; it returns issues (errors and warnings) that the CLI prints and
// that Issues.Err folds into a single error.

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"bulkimport/internal/parser/delimited"

	multierror "github.com/hashicorp/go-multierror"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced to users but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// ErrInvalidPipeline is wrapped by Issues.Err.
var ErrInvalidPipeline = errors.New("invalid pipeline")

// Issue describes a single validation/lint finding for a Pipeline.
//
// Path is a dotted path into the config (e.g. "storage.kind",
// "descriptor.families[1].columns[0].source").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// Issues is the result of ValidatePipeline.
type Issues []Issue

// Errors returns only the error-severity issues.
func (is Issues) Errors() Issues {
	var out Issues
	for _, i := range is {
		if i.Severity == SeverityError {
			out = append(out, i)
		}
	}
	return out
}

// Warnings returns only the warning-severity issues.
func (is Issues) Warnings() Issues {
	var out Issues
	for _, i := range is {
		if i.Severity == SeverityWarning {
			out = append(out, i)
		}
	}
	return out
}

// Err folds the error issues into one error wrapping ErrInvalidPipeline, or
// returns nil when there are none.
func (is Issues) Err() error {
	errs := is.Errors()
	if len(errs) == 0 {
		return nil
	}
	var result *multierror.Error
	for _, i := range errs {
		result = multierror.Append(result, i)
	}
	return fmt.Errorf("%w: %w", ErrInvalidPipeline, result)
}

// Known kinds. Unknown kinds are warnings for storage (a backend may be
// registered by another build) and errors elsewhere.
var (
	knownSources      = map[string]struct{}{"file": {}, "http": {}}
	knownParsers      = map[string]struct{}{"delimited": {}, "csv": {}, "tsv": {}}
	knownStorage      = map[string]struct{}{"memory": {}, "sqlite": {}, "postgres": {}, "mysql": {}, "mssql": {}, "mongo": {}, "parquet": {}}
	knownCompression  = map[string]struct{}{"": {}, "auto": {}, "none": {}, "gzip": {}, "zstd": {}}
	knownLogLevels    = map[string]struct{}{"": {}, "debug": {}, "info": {}, "warn": {}, "warning": {}, "error": {}}
	knownLogFormats   = map[string]struct{}{"": {}, "text": {}, "json": {}}
	knownMetricsKinds = map[string]struct{}{"": {}, "none": {}, "prometheus": {}, "datadog": {}}
)

// ValidatePipeline performs static validation of a Pipeline.
//
//	issues := config.ValidatePipeline(p)
//	for _, iss := range issues {
//	    fmt.Println(iss)
//	}
//	if err := issues.Err(); err != nil { ... }
func ValidatePipeline(p Pipeline) Issues {
	var issues Issues

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it is used for metrics labeling and identifying runs",
		})
	}
	issues = append(issues, validateSource(p.Source)...)
	issues = append(issues, validateParser(p.Parser)...)
	issues = append(issues, validateDescriptor(p)...)
	issues = append(issues, validateStorage(p)...)
	issues = append(issues, validateRuntime(p.Runtime)...)
	issues = append(issues, validateAmbient(p)...)

	return issues
}

func validateSource(s Source) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Kind) == "" {
		return append(issues, Issue{SeverityError, "source.kind", "source.kind must not be empty"})
	}
	if _, ok := knownSources[s.Kind]; !ok {
		return append(issues, Issue{SeverityError, "source.kind", fmt.Sprintf("unknown source kind %q", s.Kind)})
	}

	compression, prefix := s.File.Compression, "source.file"
	switch s.Kind {
	case "file":
		if strings.TrimSpace(s.File.Path) == "" {
			issues = append(issues, Issue{SeverityError, "source.file.path", "file source requires a non-empty path"})
		}
	case "http":
		compression, prefix = s.HTTP.Compression, "source.http"
		u, err := url.Parse(s.HTTP.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			issues = append(issues, Issue{SeverityError, "source.http.url",
				fmt.Sprintf("http source requires an absolute http(s) URL, got %q", s.HTTP.URL)})
		}
		if s.HTTP.MaxRetries < 0 {
			issues = append(issues, Issue{SeverityError, "source.http.max_retries", "max_retries must not be negative"})
		}
		if s.HTTP.InsecureSkipVerify {
			issues = append(issues, Issue{SeverityWarning, "source.http.insecure_skip_verify", "TLS certificate verification is disabled"})
		}
	}
	if _, ok := knownCompression[strings.ToLower(compression)]; !ok {
		issues = append(issues, Issue{SeverityError, prefix + ".compression",
			fmt.Sprintf("unknown compression %q; use auto, none, gzip or zstd", compression)})
	}
	return issues
}

func validateParser(p Parser) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Kind) == "" {
		return append(issues, Issue{SeverityError, "parser.kind", "parser.kind must not be empty"})
	}
	if _, ok := knownParsers[strings.ToLower(strings.TrimSpace(p.Kind))]; !ok {
		return append(issues, Issue{SeverityError, "parser.kind", fmt.Sprintf("unknown parser kind %q", p.Kind)})
	}

	d, err := delimited.ParseDelimiter(p.Delimiter())
	if err != nil {
		issues = append(issues, Issue{SeverityError, "parser.options." + OptDelimiter, err.Error()})
	}
	if v := p.Options.Any(OptDelimiter); v != nil {
		if _, ok := v.(string); !ok {
			issues = append(issues, Issue{SeverityError, "parser.options." + OptDelimiter,
				fmt.Sprintf("delimiter must be a string, got %T", v)})
		}
	}

	if hdr := p.Options.StringPtr(OptHeaderRow); hdr != nil && err == nil {
		if strings.TrimSpace(*hdr) == "" {
			issues = append(issues, Issue{SeverityWarning, "parser.options." + OptHeaderRow,
				"header_row is set but empty; the header will have a single empty field name"})
		} else if _, serr := delimited.SplitWith(*hdr, d, delimited.Options{LazyQuotes: p.Options.Bool(OptLazyQuotes, false)}); serr != nil {
			issues = append(issues, Issue{SeverityError, "parser.options." + OptHeaderRow,
				fmt.Sprintf("header_row cannot be parsed: %v", serr)})
		}
	}

	if p.Options.Bool(OptMultilineRecords, false) {
		if d == delimited.Tab {
			issues = append(issues, Issue{SeverityWarning, "parser.options." + OptMultilineRecords,
				"multiline_records has no effect with the TAB delimiter"})
		}
		if n := p.Options.Int(OptMaxRecordLines, delimited.DefaultMaxRecordLines); n <= 0 {
			issues = append(issues, Issue{SeverityError, "parser.options." + OptMaxRecordLines,
				"max_record_lines must be positive"})
		}
	}
	return issues
}

func validateDescriptor(p Pipeline) []Issue {
	var issues []Issue
	if err := p.Descriptor.Validate(); err != nil {
		var merr *multierror.Error
		if errors.As(err, &merr) {
			for _, e := range merr.Errors {
				issues = append(issues, Issue{SeverityError, "descriptor", e.Error()})
			}
		} else {
			issues = append(issues, Issue{SeverityError, "descriptor", err.Error()})
		}
	}

	hdr := p.Parser.Options.StringPtr(OptHeaderRow)
	if hdr == nil {
		return issues
	}
	d, err := delimited.ParseDelimiter(p.Parser.Delimiter())
	if err != nil {
		return issues
	}
	fields, err := delimited.SplitWith(*hdr, d, delimited.Options{LazyQuotes: p.Parser.Options.Bool(OptLazyQuotes, false)})
	if err != nil {
		return issues
	}
	have := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		have[f] = struct{}{}
	}
	for _, src := range p.Descriptor.Sources() {
		if src == "" {
			continue
		}
		if _, ok := have[src]; !ok {
			issues = append(issues, Issue{SeverityError, "descriptor",
				fmt.Sprintf("field %q is not in header_row", src)})
		}
	}
	return issues
}

func validateStorage(p Pipeline) []Issue {
	var issues []Issue
	s := p.Storage

	if strings.TrimSpace(s.Kind) == "" {
		return append(issues, Issue{SeverityError, "storage.kind", "storage.kind must not be empty"})
	}
	if _, ok := knownStorage[s.Kind]; !ok {
		issues = append(issues, Issue{SeverityWarning, "storage.kind",
			fmt.Sprintf("unknown storage kind %q; ensure a matching backend is registered", s.Kind)})
	}

	if s.Kind != "memory" && strings.TrimSpace(s.DB.DSN) == "" {
		issues = append(issues, Issue{SeverityError, "storage.db.dsn", "storage.db.dsn must not be empty"})
	}
	if s.Kind != "memory" && s.Kind != "parquet" && strings.TrimSpace(p.Table()) == "" {
		issues = append(issues, Issue{SeverityError, "storage.db.table",
			"storage.db.table must not be empty when descriptor.table is not set"})
	}
	return issues
}

// validateRuntime flags negative values and zero-sized batches.
func validateRuntime(r RuntimeConfig) []Issue {
	var issues []Issue

	if r.BatchSize <= 0 {
		issues = append(issues, Issue{SeverityWarning, "runtime.batch_size",
			fmt.Sprintf("batch_size=%d; the default will be used", r.BatchSize)})
	}
	if r.LoaderWorkers < 0 {
		issues = append(issues, Issue{SeverityError, "runtime.loader_workers", "loader_workers must not be negative"})
	}
	if r.ChannelBuffer < 0 {
		issues = append(issues, Issue{SeverityError, "runtime.channel_buffer", "channel_buffer must not be negative"})
	}
	return issues
}

func validateAmbient(p Pipeline) []Issue {
	var issues []Issue

	if _, ok := knownLogLevels[strings.ToLower(p.Logging.Level)]; !ok {
		issues = append(issues, Issue{SeverityError, "logging.level", fmt.Sprintf("unknown log level %q", p.Logging.Level)})
	}
	if _, ok := knownLogFormats[strings.ToLower(p.Logging.Format)]; !ok {
		issues = append(issues, Issue{SeverityError, "logging.format", fmt.Sprintf("unknown log format %q", p.Logging.Format)})
	}

	switch b := strings.ToLower(p.Metrics.Backend); {
	case !has(knownMetricsKinds, b):
		issues = append(issues, Issue{SeverityError, "metrics.backend", fmt.Sprintf("unknown metrics backend %q", p.Metrics.Backend)})
	case b == "prometheus" && p.Metrics.PushgatewayURL == "":
		issues = append(issues, Issue{SeverityError, "metrics.pushgateway_url", "prometheus backend requires pushgateway_url"})
	case b == "datadog" && p.Metrics.DatadogAddr == "":
		issues = append(issues, Issue{SeverityError, "metrics.datadog_addr", "datadog backend requires datadog_addr"})
	}
	return issues
}

func has(m map[string]struct{}, k string) bool {
	_, ok := m[k]
	return ok
}
