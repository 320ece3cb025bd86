package dbpfindex

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"github.com/hupe1980/dbpfindex/dbpf"
	"github.com/hupe1980/dbpfindex/internal/fs"
	"github.com/hupe1980/dbpfindex/workerpool"
)

// OpenHandlerName is the registered workerpool handler that opens
// archives: tasks are OpenTask values, results *dbpf.Archive.
const OpenHandlerName = "dbpfindex.open"

// OpenTask asks a worker to read the table of contents of one archive.
type OpenTask struct {
	Path string
}

// NewOpenHandler returns a handler opening archives on fsys (nil for the
// local file system).
func NewOpenHandler(fsys fs.FileSystem) workerpool.Handler {
	if fsys == nil {
		fsys = fs.Default
	}
	return workerpool.HandlerFunc(func(_ context.Context, _ *workerpool.Worker, task any) (any, error) {
		t, ok := task.(OpenTask)
		if !ok {
			return nil, fmt.Errorf("dbpfindex: unexpected task %T", task)
		}
		return dbpf.Open(fsys, t.Path)
	})
}

func init() {
	workerpool.Register(OpenHandlerName, func() (workerpool.Handler, error) {
		return NewOpenHandler(nil), nil
	})
}

// BuildReport summarizes one Build.
type BuildReport struct {
	// Files is the number of new candidate files, failed ones included.
	Files int
	// Skipped counts candidates that were already indexed.
	Skipped int
	// Entries is the number of entries registered.
	Entries int
	// Failed lists the files left out of the index.
	Failed   []*SourceError
	Duration time.Duration
}

// NothingToScan reports that the build found no new candidate file.
func (r *BuildReport) NothingToScan() bool { return r.Files == 0 }

// Loaded is the number of files that were indexed.
func (r *BuildReport) Loaded() int { return r.Files - len(r.Failed) }

type opened struct {
	archive *dbpf.Archive
	err     error
}

// Build scans the configured sources and registers the entries of every
// file not indexed yet. Baseline files come first, then each plugin
// directory, then the explicit files; a later entry overrides an earlier
// one with the same TGI.
//
// A file that cannot be opened is reported in BuildReport.Failed and
// otherwise ignored. When every candidate fails the error matches
// ErrAllSourcesFailed. Finding nothing to scan is not an error.
func (idx *Index) Build(ctx context.Context) (report *BuildReport, err error) {
	start := time.Now()
	report = &BuildReport{}
	defer func() {
		report.Duration = time.Since(start)
		idx.metrics.RecordBuild(report.Files, report.Entries, len(report.Failed), report.Duration, err)
		idx.logger.LogBuild(ctx, report, err)
	}()

	paths, err := idx.candidates(ctx)
	if err != nil {
		return report, err
	}

	idx.mu.RLock()
	pending := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, ok := idx.byPath[p]; ok {
			report.Skipped++
			continue
		}
		pending = append(pending, p)
	}
	idx.mu.RUnlock()
	report.Files = len(pending)

	results, err := idx.open(ctx, pending)
	if err != nil {
		return report, err
	}

	idx.mu.Lock()
	var errs []error
	for i, p := range pending {
		r := results[i]
		if r.err != nil {
			se := &SourceError{Path: p, cause: r.err}
			report.Failed = append(report.Failed, se)
			errs = append(errs, se)
			idx.logger.LogSourceError(ctx, se)
			continue
		}
		if _, ok := idx.byPath[p]; ok {
			// Registered by a concurrent build.
			report.Skipped++
			continue
		}
		report.Entries += idx.register(p, r.archive.Entries)
	}
	if !idx.entries.Built() {
		idx.entries.Build()
	}
	if report.Loaded() > 0 {
		idx.families = nil
		idx.familiesBuilt = false
	}
	idx.mu.Unlock()

	if report.Files > 0 && len(report.Failed) == report.Files {
		return report, fmt.Errorf("%w: %w", ErrAllSourcesFailed, errors.Join(errs...))
	}
	return report, nil
}

// candidates lists source files in load order without duplicates.
func (idx *Index) candidates(ctx context.Context) ([]string, error) {
	var out []string
	seen := make(map[string]struct{})
	push := func(paths []string) {
		for _, p := range paths {
			p = filepath.Clean(p)
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}

	if idx.opts.includeBaseline {
		files, err := idx.scanner.Scan(ctx, idx.opts.baselineDir)
		if err != nil {
			return nil, fmt.Errorf("scan baseline %s: %w", idx.opts.baselineDir, err)
		}
		push(files)
	}
	for _, dir := range idx.opts.dirs {
		files, err := idx.scanner.Scan(ctx, dir, idx.opts.patterns...)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", dir, err)
		}
		push(files)
	}
	idx.mu.RLock()
	files := slices.Clone(idx.opts.files)
	idx.mu.RUnlock()
	push(files)
	return out, nil
}

// AddFiles indexes files after every source configured so far, as if they
// had been passed to WithFiles. It is the incremental form of Build used
// with a scan.Watcher.
func (idx *Index) AddFiles(ctx context.Context, files ...string) (*BuildReport, error) {
	idx.mu.Lock()
	idx.opts.files = append(idx.opts.files, files...)
	idx.mu.Unlock()
	return idx.Build(ctx)
}

// open reads the table of contents of every path, on a worker pool when
// one is configured or the batch is large.
func (idx *Index) open(ctx context.Context, paths []string) ([]opened, error) {
	out := make([]opened, len(paths))
	if len(paths) == 0 {
		return out, nil
	}

	p := idx.opts.pool
	if p == nil && (idx.opts.threads > 0 || len(paths) > idx.opts.multithreadLimit) {
		pool, err := workerpool.New(workerpool.Config{
			Workers: idx.opts.threads,
			NewHandler: func() (workerpool.Handler, error) {
				return NewOpenHandler(idx.fsys), nil
			},
			Logger: idx.logger.Logger,
			OnError: func(err error) {
				idx.logger.WarnContext(ctx, "worker pool error", "error", err)
			},
		})
		if err != nil {
			return nil, fmt.Errorf("dbpfindex: start worker pool: %w", err)
		}
		defer pool.Close()
		p = pool
	}

	if p == nil {
		for i, path := range paths {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			a, err := dbpf.Open(idx.fsys, path)
			out[i] = opened{archive: a, err: err}
		}
		return out, nil
	}

	idx.logger.DebugContext(ctx, "opening archives on worker pool", "files", len(paths), "workers", p.Size())
	futures := make([]*workerpool.Future, len(paths))
	for i, path := range paths {
		futures[i] = p.Run(OpenTask{Path: path})
	}
	for i, f := range futures {
		a, err := workerpool.Await[*dbpf.Archive](ctx, f)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if errors.Is(err, workerpool.ErrClosed) {
				return nil, err
			}
		}
		out[i] = opened{archive: a, err: err}
	}
	return out, nil
}
