package scan

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hupe1980/dbpfindex/internal/fs"
)

// DefaultExtensions are the file extensions that may hold DBPF archives.
var DefaultExtensions = []string{"dat", "sc4lot", "sc4desc", "sc4model"}

// Scanner enumerates candidate files. The zero value scans the local file
// system recursively with DefaultExtensions.
type Scanner struct {
	// FS is the file system to walk. Defaults to the local file system.
	FS fs.FileSystem
	// Extensions without the leading dot, matched case-insensitively.
	Extensions []string
	// Shallow disables recursion for directory patterns.
	Shallow bool
	// Logger receives unreadable directories at debug level.
	Logger *slog.Logger
}

var driveRe = regexp.MustCompile(`^[A-Za-z]:`)

// glob is an expanded pattern.
type glob struct {
	pattern string // slash separated, lower case
	filter  bool   // restrict matches to the scanner's extensions
}

func (s *Scanner) rec() string {
	if s.Shallow {
		return "*"
	}
	return "**/*"
}

// expand rewrites one user pattern into a doublestar pattern.
func (s *Scanner) expand(p string) glob {
	p = filepath.ToSlash(p)

	if strings.HasSuffix(p, "/") {
		return glob{pattern: p + s.rec(), filter: true}
	}

	if name := driveRe.ReplaceAllString(p, ""); strings.Contains(name, ":") {
		pkg, rest, _ := strings.Cut(p, "/")
		group, name, _ := strings.Cut(pkg, ":")
		folder := "[0-9][0-9][02468]-*/" + group + "." + name + ".*.sc4pac/"
		switch {
		case rest == "":
			return glob{pattern: folder + s.rec(), filter: true}
		case strings.HasSuffix(rest, "/*") || rest == "*":
			return glob{pattern: folder + rest, filter: true}
		default:
			return glob{pattern: folder + rest}
		}
	}

	if !strings.ContainsAny(p, "*{}![?") {
		ext := strings.ToLower(path.Ext(p))
		if ext == "" || ext == ".sc4pac" {
			return glob{pattern: p + "/" + s.rec(), filter: true}
		}
		return glob{pattern: p}
	}

	if strings.HasSuffix(p, "/*") || p == "*" {
		return glob{pattern: p, filter: true}
	}
	return glob{pattern: p}
}

func (s *Scanner) fsys() fs.FileSystem {
	if s.FS == nil {
		return fs.Default
	}
	return s.FS
}

func (s *Scanner) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.Logger
}

// HasExtension reports whether name carries one of the scanner's extensions.
func (s *Scanner) HasExtension(name string) bool {
	exts := s.Extensions
	if exts == nil {
		exts = DefaultExtensions
	}
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	for _, e := range exts {
		if strings.EqualFold(ext, strings.TrimPrefix(e, ".")) {
			return true
		}
	}
	return false
}

// Scan returns the files below root that match any of patterns, in load
// order. Without patterns every candidate file below root matches. Relative
// patterns are resolved against root. A missing root yields no files.
func (s *Scanner) Scan(ctx context.Context, root string, patterns ...string) ([]string, error) {
	if len(patterns) == 0 {
		patterns = []string{""}
	}

	found := make(map[string]struct{})
	for _, p := range patterns {
		var g glob
		if p == "" {
			g = glob{pattern: s.rec(), filter: true}
		} else {
			g = s.expand(p)
		}
		if err := s.match(ctx, root, g, found); err != nil {
			return nil, err
		}
	}

	files := make([]string, 0, len(found))
	for f := range found {
		files = append(files, f)
	}
	Sort(files)
	return files, nil
}

func (s *Scanner) match(ctx context.Context, root string, g glob, found map[string]struct{}) error {
	base, rest := doublestar.SplitPattern(g.pattern)
	dir := filepath.FromSlash(base)
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	rest = strings.ToLower(rest)
	if !doublestar.ValidatePattern(rest) {
		return &PatternError{Pattern: g.pattern}
	}

	add := func(full, rel string) error {
		ok, err := doublestar.Match(rest, strings.ToLower(rel))
		if err != nil {
			return &PatternError{Pattern: g.pattern, cause: err}
		}
		if ok && (!g.filter || s.HasExtension(full)) {
			found[full] = struct{}{}
		}
		return nil
	}

	info, err := s.fsys().Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if !info.IsDir() {
		return nil
	}
	depth := -1
	if !strings.Contains(rest, "**") {
		depth = strings.Count(rest, "/")
	}
	return s.walk(ctx, dir, "", depth, add)
}

// walk visits the files below dir. A non-negative depth bounds the number
// of directory levels descended.
func (s *Scanner) walk(ctx context.Context, dir, rel string, depth int, fn func(full, rel string) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entries, err := s.fsys().ReadDir(dir)
	if err != nil {
		s.logger().DebugContext(ctx, "skipping unreadable directory", "path", dir, "error", err)
		return nil
	}
	for _, e := range entries {
		full := filepath.Join(dir, e.Name())
		name := e.Name()
		if rel != "" {
			name = rel + "/" + name
		}
		if e.IsDir() {
			if depth == 0 {
				continue
			}
			if err := s.walk(ctx, full, name, depth-1, fn); err != nil {
				return err
			}
			continue
		}
		if err := fn(full, name); err != nil {
			return err
		}
	}
	return nil
}

// PatternError reports a malformed glob pattern.
type PatternError struct {
	Pattern string
	cause   error
}

func (e *PatternError) Error() string {
	return "scan: invalid pattern " + e.Pattern
}

func (e *PatternError) Unwrap() error {
	if e.cause != nil {
		return e.cause
	}
	return doublestar.ErrBadPattern
}
