package fs

import (
	"errors"
	"os"
	"sort"
	"strings"
	"sync"
)

// ErrInjected is the error returned by faults that carry no Err.
var ErrInjected = errors.New("injected fault error")

// Fault defines specific failure behavior.
type Fault struct {
	FailOnOpen      bool
	FailOnRead      bool
	FailAfterBytes  int64 // Fail reads after this many bytes read FROM THIS FILE. 0 disables.
	FailAfterWrites int64 // Fail writes after this many bytes written. 0 disables.
	FailOnClose     bool
	Err             error
}

func (f Fault) err() error {
	if f.Err != nil {
		return f.Err
	}
	return ErrInjected
}

// FaultyFS is a FileSystem wrapper that can inject errors.
type FaultyFS struct {
	FS    FileSystem
	mu    sync.Mutex
	rules map[string]Fault // Filename substring -> Fault
	opens map[string]int
}

// NewFaultyFS creates a new FaultyFS wrapping the provided FS (or Default if nil).
func NewFaultyFS(fs FileSystem) *FaultyFS {
	if fs == nil {
		fs = Default
	}
	return &FaultyFS{
		FS:    fs,
		rules: make(map[string]Fault),
		opens: make(map[string]int),
	}
}

// AddRule adds a fault injection rule for files whose name contains pattern.
func (f *FaultyFS) AddRule(pattern string, fault Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules[pattern] = fault
}

// Opens returns how often name was opened.
func (f *FaultyFS) Opens(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens[name]
}

func (f *FaultyFS) match(name string) (Fault, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	patterns := make([]string, 0, len(f.rules))
	for p := range f.rules {
		if strings.Contains(name, p) {
			patterns = append(patterns, p)
		}
	}
	if len(patterns) == 0 {
		return Fault{}, false
	}
	// Longest pattern wins, so specific rules override broad ones.
	sort.Slice(patterns, func(i, j int) bool {
		if len(patterns[i]) != len(patterns[j]) {
			return len(patterns[i]) > len(patterns[j])
		}
		return patterns[i] < patterns[j]
	})
	return f.rules[patterns[0]], true
}

func (f *FaultyFS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	f.mu.Lock()
	f.opens[name]++
	f.mu.Unlock()

	fault, ok := f.match(name)
	if ok && fault.FailOnOpen {
		return nil, &os.PathError{Op: "open", Path: name, Err: fault.err()}
	}

	file, err := f.FS.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	if !ok {
		return file, nil
	}
	return &faultyFile{File: file, fault: fault}, nil
}

func (f *FaultyFS) Remove(name string) error {
	return f.FS.Remove(name)
}

func (f *FaultyFS) Rename(oldpath, newpath string) error {
	return f.FS.Rename(oldpath, newpath)
}

func (f *FaultyFS) Stat(name string) (os.FileInfo, error) {
	return f.FS.Stat(name)
}

func (f *FaultyFS) MkdirAll(path string, perm os.FileMode) error {
	return f.FS.MkdirAll(path, perm)
}

func (f *FaultyFS) ReadDir(name string) ([]os.DirEntry, error) {
	return f.FS.ReadDir(name)
}

type faultyFile struct {
	File
	fault   Fault
	mu      sync.Mutex
	read    int64
	written int64
}

func (ff *faultyFile) allowRead(n int) bool {
	if ff.fault.FailOnRead {
		return false
	}
	if ff.fault.FailAfterBytes <= 0 {
		return true
	}
	ff.mu.Lock()
	defer ff.mu.Unlock()
	if ff.read+int64(n) > ff.fault.FailAfterBytes {
		return false
	}
	ff.read += int64(n)
	return true
}

func (ff *faultyFile) Read(p []byte) (int, error) {
	if !ff.allowRead(len(p)) {
		return 0, ff.fault.err()
	}
	return ff.File.Read(p)
}

func (ff *faultyFile) ReadAt(p []byte, off int64) (int, error) {
	if !ff.allowRead(len(p)) {
		return 0, ff.fault.err()
	}
	return ff.File.ReadAt(p, off)
}

func (ff *faultyFile) Write(p []byte) (int, error) {
	if ff.fault.FailAfterWrites > 0 {
		ff.mu.Lock()
		exceeded := ff.written+int64(len(p)) > ff.fault.FailAfterWrites
		if !exceeded {
			ff.written += int64(len(p))
		}
		ff.mu.Unlock()
		if exceeded {
			return 0, ff.fault.err()
		}
	}
	return ff.File.Write(p)
}

func (ff *faultyFile) Close() error {
	if ff.fault.FailOnClose {
		_ = ff.File.Close()
		return ff.fault.err()
	}
	return ff.File.Close()
}
