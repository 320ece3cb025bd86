package scan

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Op is the kind of change seen for a file.
type Op int

const (
	OpCreate Op = iota
	OpWrite
	OpRemove
	OpRename
)

func (op Op) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Change is one debounced file change.
type Change struct {
	Path string
	Op   Op
}

// DefaultDebounce is the quiet period before a batch of changes is
// delivered.
const DefaultDebounce = 250 * time.Millisecond

// Watcher reports changes to candidate files below a set of roots. Bursts
// of events are collapsed into one batch per quiet period, with the last
// operation per path kept and paths in load order.
type Watcher struct {
	scanner  *Scanner
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// NewWatcher watches roots and every directory below them. A zero debounce
// uses DefaultDebounce.
func NewWatcher(s *Scanner, debounce time.Duration, roots ...string) (*Watcher, error) {
	if s == nil {
		s = &Scanner{}
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		scanner:  s,
		watcher:  fw,
		debounce: debounce,
		logger:   s.logger(),
		done:     make(chan struct{}),
	}
	for _, root := range roots {
		if err := w.addRecursive(root); err != nil {
			_ = fw.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		return w.watcher.Add(path)
	})
}

// Run delivers batches to fn until ctx is done or Close is called. Pending
// changes are flushed before Run returns.
func (w *Watcher) Run(ctx context.Context, fn func([]Change)) error {
	var (
		batch  []Change
		index  = make(map[string]int)
		timer  *time.Timer
		timerC <-chan time.Time
	)

	flush := func() {
		if timer != nil {
			timer.Stop()
			timer, timerC = nil, nil
		}
		if len(batch) == 0 {
			return
		}
		out := batch
		batch, index = nil, make(map[string]int)
		sortChanges(out)
		fn(out)
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return ctx.Err()
		case <-w.done:
			flush()
			return nil
		case <-timerC:
			flush()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				flush()
				return nil
			}
			w.logger.WarnContext(ctx, "watch error", "error", err)
		case ev, ok := <-w.watcher.Events:
			if !ok {
				flush()
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(ev.Name); err != nil {
						w.logger.WarnContext(ctx, "cannot watch directory", "path", ev.Name, "error", err)
					}
					continue
				}
			}
			if !w.scanner.HasExtension(ev.Name) {
				continue
			}
			c := Change{Path: ev.Name, Op: convertOp(ev.Op)}
			if i, ok := index[c.Path]; ok {
				c.Op = batch[i].Op.then(c.Op)
				batch[i] = c
			} else {
				index[c.Path] = len(batch)
				batch = append(batch, c)
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		}
	}
}

// Close stops the watcher. It is safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	if errors.Is(err, fsnotify.ErrClosed) {
		return nil
	}
	return err
}

// then coalesces two changes of one path within a batch. A file created
// and then written is still new.
func (op Op) then(next Op) Op {
	if op == OpCreate && next == OpWrite {
		return OpCreate
	}
	return next
}

func convertOp(op fsnotify.Op) Op {
	switch {
	case op.Has(fsnotify.Remove):
		return OpRemove
	case op.Has(fsnotify.Rename):
		return OpRename
	case op.Has(fsnotify.Create):
		return OpCreate
	default:
		return OpWrite
	}
}

func sortChanges(cs []Change) {
	paths := make([]string, len(cs))
	byPath := make(map[string]Change, len(cs))
	for i, c := range cs {
		paths[i] = c.Path
		byPath[c.Path] = c
	}
	Sort(paths)
	for i, p := range paths {
		cs[i] = byPath[p]
	}
}

// Paths returns the paths of newly created files, the set an incremental
// build can pick up. Files rewritten in place are left out: an index never
// reloads a file it already holds, so those need a fresh index.
func Paths(cs []Change) []string {
	var out []string
	for _, c := range cs {
		if c.Op != OpCreate {
			continue
		}
		out = append(out, c.Path)
	}
	return out
}
