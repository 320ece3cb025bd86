package dbpfindex

import (
	"log/slog"

	"github.com/hupe1980/dbpfindex/codec"
	"github.com/hupe1980/dbpfindex/internal/fs"
	"github.com/hupe1980/dbpfindex/workerpool"
)

// MultithreadLimit is the number of pending files above which Build opens
// archives on a worker pool even when none was configured.
const MultithreadLimit = 1000

// ResourceLimits bound how much an index may consume. Zero values are
// unlimited.
type ResourceLimits struct {
	// MemoryLimitBytes caps decoded payloads held across every cache that
	// shares these limits.
	MemoryLimitBytes int64
	// MaxBackgroundWorkers bounds concurrent decodes of BuildFamilies.
	// Defaults to GOMAXPROCS.
	MaxBackgroundWorkers int
	// IOLimitBytesPerSec throttles entry reads.
	IOLimitBytesPerSec int
}

type options struct {
	dirs             []string
	files            []string
	patterns         []string
	extensions       []string
	baselineDir      string
	includeBaseline  bool
	memoryBudget     int64
	pool             *workerpool.Pool
	threads          int
	multithreadLimit int
	fsys             fs.FileSystem
	logger           *Logger
	metricsCollector MetricsCollector
	codec            codec.Codec
	compression      codec.Compression
	limits           ResourceLimits
	config           *Config
}

// Option configures an Index.
type Option func(*options)

// WithDirs adds plugin directories. Later directories override earlier
// ones.
func WithDirs(dirs ...string) Option {
	return func(o *options) {
		o.dirs = append(o.dirs, dirs...)
	}
}

// WithFiles adds explicit archive files. They load after every directory,
// in the given order.
func WithFiles(files ...string) Option {
	return func(o *options) {
		o.files = append(o.files, files...)
	}
}

// WithPattern restricts directory scans to files matching one of
// patterns. See package scan for the syntax.
func WithPattern(patterns ...string) Option {
	return func(o *options) {
		o.patterns = append(o.patterns, patterns...)
	}
}

// WithExtensions replaces the file extensions considered archives.
func WithExtensions(exts ...string) Option {
	return func(o *options) {
		o.extensions = exts
	}
}

// WithBaselineDir sets the directory of the game's own archives.
// It is only scanned when WithIncludeBaseline(true) is given as well.
func WithBaselineDir(dir string) Option {
	return func(o *options) {
		o.baselineDir = dir
	}
}

// WithIncludeBaseline toggles scanning the baseline directory before any
// plugin source.
func WithIncludeBaseline(include bool) Option {
	return func(o *options) {
		o.includeBaseline = include
	}
}

// WithMemoryBudget bounds the bytes of decoded payloads kept in the cache.
// 0 (the default) never evicts.
func WithMemoryBudget(bytes int64) Option {
	return func(o *options) {
		o.memoryBudget = bytes
	}
}

// WithPool opens archives on p. The pool must run the handler registered
// as OpenHandlerName (or one built by NewOpenHandler). The index does not
// close p.
func WithPool(p *workerpool.Pool) Option {
	return func(o *options) {
		o.pool = p
	}
}

// WithThreads opens archives on an internal pool of n workers for every
// build. 0 (the default) uses a GOMAXPROCS sized pool only for builds
// with more than MultithreadLimit pending files.
func WithThreads(n int) Option {
	return func(o *options) {
		o.threads = n
	}
}

// WithMultithreadLimit overrides MultithreadLimit.
func WithMultithreadLimit(n int) Option {
	return func(o *options) {
		o.multithreadLimit = n
	}
}

// WithFileSystem replaces the file system used for scanning and reading.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		if fsys == nil {
			fsys = fs.Default
		}
		o.fsys = fsys
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := dbpfindex.NewJSONLogger(slog.LevelInfo)
//	idx, _ := dbpfindex.New(dbpfindex.WithDirs(plugins), dbpfindex.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &dbpfindex.BasicMetricsCollector{}
//	idx, _ := dbpfindex.New(dbpfindex.WithMetricsCollector(metrics))
//	// ... use idx ...
//	stats := metrics.GetStats()
//	fmt.Printf("Reads: %d hits, %d misses\n", stats.ReadHits, stats.ReadMisses)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithCodec configures the codec used for snapshot documents.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithCompression selects the payload compression of saved snapshots.
// Defaults to zstd.
func WithCompression(c codec.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithResourceLimits sets memory, background and IO limits.
func WithResourceLimits(l ResourceLimits) Option {
	return func(o *options) {
		o.limits = l
	}
}

// WithConfig applies every setting of cfg. Options given after it
// override the config.
func WithConfig(cfg *Config) Option {
	return func(o *options) {
		o.config = cfg
		if cfg == nil {
			return
		}
		for _, fn := range cfg.options() {
			fn(o)
		}
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		fsys:             fs.Default,
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
		codec:            codec.Default,
		compression:      codec.CompressionZstd,
		multithreadLimit: MultithreadLimit,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

func (o *options) validate() error {
	switch {
	case o.memoryBudget < 0:
		return configErr("memory budget", "must not be negative", nil)
	case o.threads < 0:
		return configErr("threads", "must not be negative", nil)
	case o.multithreadLimit < 0:
		return configErr("multithread limit", "must not be negative", nil)
	case o.limits.MemoryLimitBytes < 0 || o.limits.MaxBackgroundWorkers < 0 || o.limits.IOLimitBytesPerSec < 0:
		return configErr("resource limits", "must not be negative", nil)
	case o.includeBaseline && o.baselineDir == "":
		return configErr("baseline", "included but no directory set", nil)
	case o.compression > codec.CompressionZstd:
		return configErr("compression", "unknown kind "+o.compression.String(), nil)
	}
	return nil
}
