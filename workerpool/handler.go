package workerpool

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Handler runs tasks on a worker. Each worker owns its handler instance
// unless the pool was configured with a shared inline Handler.
type Handler interface {
	Handle(ctx context.Context, w *Worker, task any) (any, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, w *Worker, task any) (any, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, w *Worker, task any) (any, error) {
	return f(ctx, w, task)
}

// Factory creates the handler of a new worker. It runs once per spawn,
// including replacements for failed workers.
type Factory func() (Handler, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes a handler factory available by name. It panics if name is
// empty, registered twice or factory is nil.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if name == "" || factory == nil {
		panic("workerpool: Register requires a name and a factory")
	}
	if _, dup := registry[name]; dup {
		panic("workerpool: Register called twice for handler " + name)
	}
	registry[name] = factory
}

// Lookup returns the factory registered under name.
func Lookup(name string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

// Handlers returns the sorted names of registered factories.
func Handlers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Config) factory() (Factory, error) {
	switch {
	case c.NewHandler != nil:
		return c.NewHandler, nil
	case c.HandlerName != "":
		f, ok := Lookup(c.HandlerName)
		if !ok {
			return nil, fmt.Errorf("workerpool: unknown handler %q", c.HandlerName)
		}
		return f, nil
	case c.Handler != nil:
		h := c.Handler
		return func() (Handler, error) { return h, nil }, nil
	}
	return nil, ErrNoHandler
}
