package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"bulkimport/internal/config"
	"bulkimport/internal/datasource"
	"bulkimport/internal/datasource/file"
	"bulkimport/internal/datasource/httpds"
	"bulkimport/internal/importer"
	"bulkimport/internal/metrics"
	"bulkimport/internal/parser/delimited"
	"bulkimport/internal/rejects"
	"bulkimport/internal/storage"
	"bulkimport/pkg/records"

	"golang.org/x/sync/errgroup"
)

// Repository is the storage contract the driver writes through.
type Repository = storage.Repository

// Function variables used to introduce test seams.
// In production these point to real implementations; tests can override them.
var (
	newRepositoryFn = func(ctx context.Context, cfg storage.Config) (Repository, error) {
		return storage.New(ctx, cfg)
	}

	openSourceFn = openSource

	newRejectsFn = func(path, runID string) (rejects.Sink, error) {
		return rejects.NewCSV(path, runID)
	}
)

// Summary is the end-of-run accounting.
type Summary struct {
	RunID   string
	Stats   importer.Stats
	Written int64 // cells acknowledged by storage
	Batches int64
	Elapsed time.Duration
}

// runtimeConfig contains the resolved concurrency and buffering configuration.
type runtimeConfig struct {
	loaderWorkers int
	batchSize     int
	bufferSize    int
}

func newRuntimeConfig(spec config.Pipeline) runtimeConfig {
	return runtimeConfig{
		loaderWorkers: pickInt(spec.Runtime.LoaderWorkers, config.DefaultLoaderWorkers),
		batchSize:     pickInt(spec.Runtime.BatchSize, config.DefaultBatchSize),
		bufferSize:    pickInt(spec.Runtime.ChannelBuffer, config.DefaultChannelBuffer),
	}
}

// importerConfig maps the pipeline's parser section onto importer.Config.
func importerConfig(spec config.Pipeline, log *slog.Logger, sink rejects.Sink) importer.Config {
	o := spec.Parser.Options
	return importer.Config{
		Job:            spec.Job,
		Delimiter:      spec.Parser.Delimiter(),
		HeaderRow:      o.StringPtr(config.OptHeaderRow),
		LazyQuotes:     o.Bool(config.OptLazyQuotes, false),
		KeepBlankLines: !o.Bool(config.OptSkipBlankLines, true),
		Descriptor:     spec.Descriptor,
		Logger:         log,
		Rejects:        sink,
	}
}

// runStreamed executes source → line reader → importer → partitioned loaders.
//
// Concurrency model:
//
//	Reader (1: lines are produced in file order through one Importer)
//	     → N cell channels, chosen by entity id hash
//	     → N Loaders (batched WriteCells)
//
// Every stage runs in one errgroup; the first fatal error cancels the rest.
// Dropped rows are not errors: they are counted, logged, and sent to the
// rejects sink.
func runStreamed(ctx context.Context, spec config.Pipeline, runID string) (Summary, error) {
	start := time.Now()
	rt := newRuntimeConfig(spec)
	log := slog.Default().With("job", spec.Job, "run_id", runID)
	sum := Summary{RunID: runID}

	log.Info("stream runtime",
		"loaders", rt.loaderWorkers, "batch", rt.batchSize, "buffer", rt.bufferSize,
		"storage", spec.Storage.Kind, "table", spec.Table())

	var sink rejects.Sink = rejects.Nop{}
	if spec.Rejects.Path != "" {
		s, err := newRejectsFn(spec.Rejects.Path, runID)
		if err != nil {
			return sum, err
		}
		sink = s
	}
	sinkOpen := true
	defer func() {
		if !sinkOpen {
			return
		}
		if err := sink.Close(); err != nil {
			log.Error("rejects close", "err", err)
		}
	}()

	icfg := importerConfig(spec, log, sink)
	im, err := importer.New(icfg)
	if err != nil {
		return sum, err
	}

	repo, err := newRepositoryFn(ctx, storage.Config{
		Kind:  spec.Storage.Kind,
		DSN:   spec.Storage.DB.DSN,
		Table: spec.Table(),
	})
	if err != nil {
		return sum, fmt.Errorf("init repo: %w", err)
	}
	defer repo.Close()

	if spec.Storage.DB.AutoCreateTable {
		if err := storage.EnsureTableFromPipeline(ctx, spec, repo); err != nil {
			return sum, fmt.Errorf("apply DDL: %w", err)
		}
	}

	src, err := openSourceFn(ctx, spec)
	if err != nil {
		return sum, fmt.Errorf("source open: %w", err)
	}
	defer src.Close()

	d, _ := delimited.ParseDelimiter(icfg.Delimiter) // already validated by importer.New
	lr := delimited.NewLineReader(src, delimited.LineReaderOptions{
		Delimiter:        d,
		MultilineRecords: spec.Parser.Options.Bool(config.OptMultilineRecords, false),
		MaxRecordLines:   spec.Parser.Options.Int(config.OptMaxRecordLines, 0),
	})

	var written, batches atomic.Int64
	write := func(ctx context.Context, cells []records.Cell) (int64, error) {
		n, err := repo.WriteCells(ctx, cells)
		written.Add(n)
		if err == nil {
			batches.Add(1)
		}
		return n, err
	}

	g, gctx := errgroup.WithContext(ctx)

	chans := make([]chan records.Cell, rt.loaderWorkers)
	for i := range chans {
		chans[i] = make(chan records.Cell, rt.bufferSize)
		in := chans[i]
		g.Go(func() error {
			_, err := storage.LoadBatches(gctx, spec.Job, in, rt.batchSize, write)
			return err
		})
	}

	g.Go(func() error {
		defer func() {
			for _, ch := range chans {
				close(ch)
			}
		}()
		return produce(gctx, lr, im, chans)
	})

	err = g.Wait()
	if err == nil {
		err = finish(repo)
	}
	sinkOpen = false
	if cerr := sink.Close(); cerr != nil {
		if err == nil {
			err = fmt.Errorf("close rejects: %w", cerr)
		} else {
			log.Error("rejects close", "err", cerr)
		}
	}

	st := im.Stats()
	sum.Stats = st
	sum.Written = written.Load()
	sum.Batches = batches.Load()
	sum.Elapsed = time.Since(start)

	recordRunMetrics(spec.Job, st)
	metrics.RecordStep(spec.Job, "import", err, sum.Elapsed)
	logSummary(log, sum)

	if err != nil {
		return sum, err
	}
	if _, ok := im.Header(); !ok {
		log.Warn("input had no header line; nothing imported")
	}
	return sum, nil
}

// finish finalizes repo output when the backend needs it. A failure means
// the written data is not readable, so the run fails.
func finish(repo Repository) error {
	f, ok := repo.(storage.Finisher)
	if !ok {
		return nil
	}
	if err := f.Finish(); err != nil {
		return fmt.Errorf("finalize storage: %w", err)
	}
	return nil
}

// produce feeds every logical line through the importer and routes the
// resulting cells to the loader that owns their entity.
func produce(ctx context.Context, lr *delimited.LineReader, im *importer.Importer, chans []chan records.Cell) error {
	for {
		line, lineNo, err := lr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read line %d: %w", lr.Line()+1, err)
		}

		cells, err := im.ProduceAt(lineNo, line)
		if err != nil {
			return err
		}
		for _, c := range cells {
			select {
			case chans[storage.Partition(c.EntityID, len(chans))] <- c:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// recordRunMetrics publishes the importer's line accounting.
func recordRunMetrics(job string, st importer.Stats) {
	metrics.RecordLines(job, metrics.KindRead, st.Lines)
	metrics.RecordLines(job, metrics.KindBlank, st.Blank)
	metrics.RecordLines(job, metrics.KindImported, st.Imported)
	metrics.RecordLines(job, metrics.KindParseError, st.ParseErrors)
	metrics.RecordLines(job, metrics.KindMissingEntityID, st.MissingEntityID)
	metrics.RecordLines(job, metrics.KindShortField, st.ShortFields)
}

// logSummary prints final aggregated statistics for the run.
//
// For a completed run every line is accounted for:
//
//	lines == header + blank + imported + parse_errors + missing_entity_id
func logSummary(log *slog.Logger, s Summary) {
	st := s.Stats
	log.Info("summary",
		"lines", st.Lines,
		"blank", st.Blank,
		"imported", st.Imported,
		"parse_errors", st.ParseErrors,
		"missing_entity_id", st.MissingEntityID,
		"short_fields", st.ShortFields,
		"cells", st.Cells,
		"written", s.Written,
		"batches", s.Batches,
		"elapsed", s.Elapsed.Truncate(time.Millisecond),
	)
}

// openSource opens the configured input as decoded text.
func openSource(ctx context.Context, spec config.Pipeline) (io.ReadCloser, error) {
	src, err := newSource(spec.Source)
	if err != nil {
		return nil, err
	}
	return src.Open(ctx)
}

func newSource(s config.Source) (datasource.Source, error) {
	switch s.Kind {
	case "file", "":
		return file.NewLocal(s.File.Path, file.Options{
			Compression: s.File.Compression,
			Encoding:    s.File.Encoding,
		}), nil
	case "http":
		return httpds.NewSource(s.HTTP.URL, httpds.Config{
			Timeout:            s.HTTP.Timeout,
			MaxRetries:         s.HTTP.MaxRetries,
			InsecureSkipVerify: s.HTTP.InsecureSkipVerify,
			Header:             http.Header{"User-Agent": {"bulkimport"}},
		}, file.Options{
			Compression: s.HTTP.Compression,
			Encoding:    s.HTTP.Encoding,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported source.kind=%s", s.Kind)
	}
}

// pickInt chooses the first positive value 'a', otherwise returns 'b'.
func pickInt(a, b int) int {
	if a > 0 {
		return a
	}
	return b
}
