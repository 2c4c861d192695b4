package redis

import "sync"

// Middleware is the external collaborator of spec.md §6.4: a
// pass-through decorator around command/pipeline send+receive. The
// prelude bypasses it (spec.md §4.1).
type Middleware interface {
	Call(cmd Command, cfg *Config, next func() (Reply, error)) (Reply, error)
	CallPipelined(cmds []Command, cfg *Config, next func() ([]Reply, error)) ([]Reply, error)
}

// MiddlewareRegistry is an append-only collection of Middlewares.
// Register before issuing commands; never mutate mid-command. Each Client
// owns its own registry, created empty by NewFromConfig and reached
// through Client.Middlewares; there is no process-wide registry, and a
// Client cannot be given a registry built elsewhere.
type MiddlewareRegistry struct {
	mu  sync.RWMutex
	all []Middleware
}

// NewMiddlewareRegistry returns an empty registry.
func NewMiddlewareRegistry() *MiddlewareRegistry { return &MiddlewareRegistry{} }

// Register appends a Middleware to the registry.
func (r *MiddlewareRegistry) Register(mw Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all = append(r.all, mw)
}

func (r *MiddlewareRegistry) snapshot() []Middleware {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Middleware, len(r.all))
	copy(out, r.all)
	return out
}

// wrapCall folds the registered Middlewares around terminal, outermost
// first.
func (r *MiddlewareRegistry) wrapCall(cmd Command, cfg *Config, terminal func() (Reply, error)) (Reply, error) {
	mws := r.snapshot()
	next := terminal
	for i := len(mws) - 1; i >= 0; i-- {
		mw, n := mws[i], next
		next = func() (Reply, error) { return mw.Call(cmd, cfg, n) }
	}
	return next()
}

// wrapCallPipelined folds the registered Middlewares around terminal for
// a pipelined batch.
func (r *MiddlewareRegistry) wrapCallPipelined(cmds []Command, cfg *Config, terminal func() ([]Reply, error)) ([]Reply, error) {
	mws := r.snapshot()
	next := terminal
	for i := len(mws) - 1; i >= 0; i-- {
		mw, n := mws[i], next
		next = func() ([]Reply, error) { return mw.CallPipelined(cmds, cfg, n) }
	}
	return next()
}
