package task

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// HandlerFunc runs one attempt of a task. The Config it receives is owned
// by that attempt: handlers may mutate cfg.Data() freely.
type HandlerFunc func(ctx context.Context, cfg Config) error

// Definition is a typed task definition. T is the payload type; the
// payload is decoded into T through its JSON representation.
type Definition[T any] struct {
	// Key is the task key the handler is registered under.
	Key string

	// Handler processes the decoded payload.
	Handler func(ctx context.Context, input T) error
}

// NewDefinition creates a typed task definition.
func NewDefinition[T any](key string, handler func(ctx context.Context, input T) error) *Definition[T] {
	return &Definition[T]{Key: key, Handler: handler}
}

// Registry maps task keys to handlers. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]HandlerFunc)}
}

// Register binds h to key, replacing any previous handler.
func (r *Registry) Register(key string, h HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[key] = h
}

// RegisterDefinition registers a typed definition. The payload is decoded
// into T before the typed handler runs; a nil payload yields the zero T.
//
// This is a package-level generic function because Go does not allow
// generic methods on non-generic receiver types.
func RegisterDefinition[T any](r *Registry, def *Definition[T]) {
	r.Register(def.Key, func(ctx context.Context, cfg Config) error {
		var in T
		if cfg.Data() != nil {
			if err := cfg.Data().Decode(&in); err != nil {
				return fmt.Errorf("decode payload for task %q: %w", def.Key, err)
			}
		}
		return def.Handler(ctx, in)
	})
}

// Get returns the handler for key.
func (r *Registry) Get(key string) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[key]
	return h, ok
}

// Has reports whether a handler is registered for key.
func (r *Registry) Has(key string) bool {
	_, ok := r.Get(key)
	return ok
}

// Keys returns all registered task keys, sorted.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
