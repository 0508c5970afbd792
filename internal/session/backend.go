package session

import (
	"sync"

	"inferd/internal/runtime"
)

// Backend guards process-wide one-time initialization of the model runtime.
// Sessions must be constructed through a Backend so the runtime is
// initialized before the first model operation; the daemon creates exactly
// one. Init is idempotent and safe under concurrent session construction;
// Shutdown releases global runtime state on clean process exit and is
// likewise one-shot.
type Backend struct {
	rt       runtime.Runtime
	initOnce sync.Once
	stopOnce sync.Once
	initErr  error
}

// NewBackend wraps rt without touching it; initialization is deferred to
// the first ensure call.
func NewBackend(rt runtime.Runtime) *Backend {
	return &Backend{rt: rt}
}

// ensure performs the one-time runtime initialization.
func (b *Backend) ensure() error {
	b.initOnce.Do(func() {
		b.initErr = b.rt.Init()
	})
	return b.initErr
}

// Init eagerly initializes the runtime. Callers that skip it still get
// initialization on first session construction.
func (b *Backend) Init() error { return b.ensure() }

// Shutdown tears down global runtime state. Sessions must not perform model
// operations afterwards.
func (b *Backend) Shutdown() {
	b.stopOnce.Do(func() {
		b.rt.Shutdown()
	})
}
