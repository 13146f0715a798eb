package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/tick/pkg/domain"
	"github.com/aretw0/tick/pkg/sender"
)

// HandlerFunc defines the signature for an action handler.
// It receives only the contexts its action declared as inputs and returns
// values for (a subset of) its declared outputs.
type HandlerFunc func(ctx context.Context, in map[string]any, s sender.Sender) (map[string]any, error)

// Provider supplies a namespaced set of handlers, e.g. one per integration.
type Provider interface {
	Namespace() string
	Handlers() map[string]HandlerFunc
}

// Registry manages the handlers available to one story.
// It is built by the host and passed to the engine; there is no global registry.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]HandlerFunc),
	}
}

// Register adds a handler to the registry.
// Registering a name twice fails with domain.ErrHandlerCollision.
func (r *Registry) Register(name string, fn HandlerFunc) error {
	if name == "" || fn == nil {
		return fmt.Errorf("register handler %q: empty name or nil function", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("register handler %q: %w", name, domain.ErrHandlerCollision)
	}
	r.handlers[name] = fn
	return nil
}

// MustRegister is Register for static wiring; it panics on error.
func (r *Registry) MustRegister(name string, fn HandlerFunc) {
	if err := r.Register(name, fn); err != nil {
		panic(err)
	}
}

// Mount registers every handler of a provider as "namespace.name".
// Nothing is registered if any name collides.
func (r *Registry) Mount(p Provider) error {
	handlers := p.Handlers()
	names := make([]string, 0, len(handlers))
	for name := range handlers {
		names = append(names, qualify(p.Namespace(), name))
	}
	sort.Strings(names)

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range names {
		if _, exists := r.handlers[name]; exists {
			return fmt.Errorf("mount %q: handler %q: %w", p.Namespace(), name, domain.ErrHandlerCollision)
		}
	}
	for name, fn := range handlers {
		r.handlers[qualify(p.Namespace(), name)] = fn
	}
	return nil
}

// Lookup returns the handler registered under name.
func (r *Registry) Lookup(name string) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.handlers[name]
	return fn, ok
}

// Has reports whether a handler is registered under name.
func (r *Registry) Has(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// Names returns all registered names sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func qualify(namespace, name string) string {
	if namespace == "" {
		return name
	}
	return namespace + "." + name
}

// Funcs adapts a plain map into a Provider.
type Funcs struct {
	NS    string
	Funcs map[string]HandlerFunc
}

func (f Funcs) Namespace() string                 { return f.NS }
func (f Funcs) Handlers() map[string]HandlerFunc { return f.Funcs }
