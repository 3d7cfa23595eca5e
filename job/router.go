package job

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/xraph/taskq"
)

// HandlerFunc handles a regular job. Returning the boolean false marks the
// job as failed without raising an error; see Succeeded.
type HandlerFunc func(ctx context.Context, data Data) (any, error)

// Dispatcher resolves a route and runs it with data.
type Dispatcher interface {
	Dispatch(ctx context.Context, route string, data Data) (any, error)
}

// Router maps routes to handlers. It is safe for concurrent use.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

var _ Dispatcher = (*Router)(nil)

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{handlers: make(map[string]HandlerFunc)}
}

// Handle registers an untyped handler for route, replacing any previous one.
func (r *Router) Handle(route string, h HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[route] = h
}

// Register registers a typed definition. Data is re-encoded as JSON and
// decoded into T before the handler runs.
//
// This is a package-level generic function because Go does not allow
// generic methods on non-generic receiver types.
func Register[T any](r *Router, def *Definition[T]) {
	r.Handle(def.Route, func(ctx context.Context, data Data) (any, error) {
		var args T
		if len(data) > 0 {
			raw, err := json.Marshal(data)
			if err != nil {
				return nil, fmt.Errorf("encode data for route %q: %w", def.Route, err)
			}
			if err := json.Unmarshal(raw, &args); err != nil {
				return nil, fmt.Errorf("decode data for route %q: %w", def.Route, err)
			}
		}
		return nil, def.Handler(ctx, args)
	})
}

// Get returns the handler for route.
func (r *Router) Get(route string) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[route]
	return h, ok
}

// Dispatch runs the handler registered for route.
func (r *Router) Dispatch(ctx context.Context, route string, data Data) (any, error) {
	h, ok := r.Get(route)
	if !ok {
		return nil, fmt.Errorf("%w for %q", taskq.ErrRouteNotFound, route)
	}
	return h(ctx, data)
}

// Routes returns all registered routes in sorted order.
func (r *Router) Routes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	routes := make([]string, 0, len(r.handlers))
	for route := range r.handlers {
		routes = append(routes, route)
	}
	sort.Strings(routes)
	return routes
}
