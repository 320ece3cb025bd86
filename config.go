package dbpfindex

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/dbpfindex/codec"
)

// Config is the file form of the index options.
//
//	dirs:
//	  - ~/Documents/SimCity 4/Plugins
//	baseline: /games/SimCity 4
//	include_baseline: true
//	memory_budget: 268435456
//	threads: 8
type Config struct {
	Dirs            []string `yaml:"dirs" validate:"dive,required"`
	Files           []string `yaml:"files" validate:"dive,required"`
	Patterns        []string `yaml:"patterns" validate:"dive,required"`
	Extensions      []string `yaml:"extensions" validate:"dive,required"`
	Baseline        string   `yaml:"baseline" validate:"required_if=IncludeBaseline true"`
	IncludeBaseline bool     `yaml:"include_baseline"`
	MemoryBudget    int64    `yaml:"memory_budget" validate:"gte=0"`
	Threads         int      `yaml:"threads" validate:"gte=0,lte=1024"`
	LogLevel        string   `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	Codec           string   `yaml:"codec" validate:"omitempty,oneof=json go-json"`
	Compression     string   `yaml:"compression" validate:"omitempty,oneof=none lz4 zstd"`
	Limits          struct {
		MemoryBytes       int64 `yaml:"memory_bytes" validate:"gte=0"`
		BackgroundWorkers int   `yaml:"background_workers" validate:"gte=0"`
		IOBytesPerSec     int   `yaml:"io_bytes_per_sec" validate:"gte=0"`
	} `yaml:"limits"`
}

var configValidate = validator.New()

// LoadConfig reads and validates a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, configErr("", "read "+path, err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes and validates YAML config data. Unknown keys are
// rejected.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, configErr("", "yaml", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints. The error is a *ConfigError naming
// the first offending field.
func (c *Config) Validate() error {
	err := configValidate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return configErr(fe.Namespace(), fmt.Sprintf("failed %q (value %v)", fe.Tag(), fe.Value()), err)
	}
	return configErr("", "validation", err)
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func (c *Config) options() []Option {
	opts := []Option{
		WithDirs(c.Dirs...),
		WithFiles(c.Files...),
		WithPattern(c.Patterns...),
		WithBaselineDir(c.Baseline),
		WithIncludeBaseline(c.IncludeBaseline),
		WithMemoryBudget(c.MemoryBudget),
		WithThreads(c.Threads),
		WithResourceLimits(ResourceLimits{
			MemoryLimitBytes:     c.Limits.MemoryBytes,
			MaxBackgroundWorkers: c.Limits.BackgroundWorkers,
			IOLimitBytesPerSec:   c.Limits.IOBytesPerSec,
		}),
	}
	if len(c.Extensions) > 0 {
		opts = append(opts, WithExtensions(c.Extensions...))
	}
	if c.LogLevel != "" {
		opts = append(opts, WithLogLevel(parseLevel(c.LogLevel)))
	}
	if c.Codec != "" {
		if cd, ok := codec.ByName(c.Codec); ok {
			opts = append(opts, WithCodec(cd))
		}
	}
	if c.Compression != "" {
		if comp, err := codec.ParseCompression(c.Compression); err == nil {
			opts = append(opts, WithCompression(comp))
		}
	}
	return opts
}

// Options converts the config to index options.
func (c *Config) Options() []Option {
	return []Option{WithConfig(c)}
}
