package session

import (
	"context"
	"sync"
	"time"

	"inferd/pkg/types"
)

const defaultMaxSessions = 16

// notLoadedText is the safe payload returned across the plain call boundary
// when generate is invoked without a loaded model or with a bad handle.
const notLoadedText = "Error: Model not loaded"

// capacityError signals the session cap was reached, for 429 mapping.
type capacityError struct{}

func (capacityError) Error() string { return "session limit reached" }

// IsCapacity reports whether err indicates the session table is full.
func IsCapacity(err error) bool {
	_, ok := err.(capacityError)
	return ok
}

// TableConfig encapsulates tunables for Table construction.
type TableConfig struct {
	// Session holds per-session tunables applied to every created session.
	Session Config
	// MaxSessions caps concurrently live sessions (0 = package default).
	MaxSessions int
	// Registry lists models discoverable via ListModels and id resolution.
	Registry []types.Model
}

// Table is an explicit table of live sessions keyed by opaque integer
// handles. It is the only way handles cross the call boundary: every
// operation on an unknown or freed handle is a no-op or returns a safe
// default, never a crash.
type Table struct {
	backend     *Backend
	cfg         Config
	registry    []types.Model
	maxSessions int
	startTime   time.Time

	mu          sync.RWMutex
	next        uint64
	sessions    map[uint64]*Session
	lastErr     string
	loads       uint64
	retiredGens uint64
}

// NewTable constructs a Table over backend b.
func NewTable(b *Backend, cfg TableConfig) *Table {
	max := cfg.MaxSessions
	if max <= 0 {
		max = defaultMaxSessions
	}
	return &Table{
		backend:     b,
		cfg:         cfg.Session.withDefaults(),
		registry:    cfg.Registry,
		maxSessions: max,
		startTime:   time.Now(),
		sessions:    make(map[uint64]*Session),
	}
}

// Create constructs a fresh uninitialized session and returns its handle.
func (t *Table) Create() (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.sessions) >= t.maxSessions {
		return 0, capacityError{}
	}
	s, err := New(t.backend, t.cfg)
	if err != nil {
		t.lastErr = err.Error()
		return 0, err
	}
	t.next++
	s.id = t.next
	t.sessions[s.id] = s
	sessionsLive.Set(float64(len(t.sessions)))
	return s.id, nil
}

// Get returns the live session for a handle.
func (t *Table) Get(h uint64) (*Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.sessions[h]
	return s, ok
}

// LoadSession loads path into the session behind h.
func (t *Table) LoadSession(h uint64, path string) error {
	s, ok := t.Get(h)
	if !ok {
		return ErrSessionNotFound
	}
	if err := s.Load(path); err != nil {
		return err
	}
	t.mu.Lock()
	t.loads++
	t.mu.Unlock()
	return nil
}

// Load is the boolean call-boundary form of LoadSession.
func (t *Table) Load(h uint64, path string) bool {
	return t.LoadSession(h, path) == nil
}

// Generate is the plain-text call-boundary form: it returns the generated
// text, or a textual error payload when the handle is invalid or no model
// is loaded. It never panics and never returns garbage.
func (t *Table) Generate(ctx context.Context, h uint64, prompt string, maxTokens int, temperature float32) string {
	s, ok := t.Get(h)
	if !ok {
		return notLoadedText
	}
	res, err := s.Generate(ctx, prompt, maxTokens, temperature)
	if err != nil {
		if IsNotLoaded(err) {
			return notLoadedText
		}
		return "Error: " + err.Error()
	}
	return res.Text
}

// IsLoaded reports whether the session behind h has a loaded model; false
// for invalid handles.
func (t *Table) IsLoaded(h uint64) bool {
	s, ok := t.Get(h)
	return ok && s.IsLoaded()
}

// Unload releases the loaded resources of the session behind h, keeping
// the session alive. No-op on invalid handles.
func (t *Table) Unload(h uint64) {
	if s, ok := t.Get(h); ok {
		s.Unload()
	}
}

// Free retires the session behind h and removes it from the table. No-op
// on invalid handles; safe to call twice.
func (t *Table) Free(h uint64) {
	t.mu.Lock()
	s, ok := t.sessions[h]
	if ok {
		delete(t.sessions, h)
		t.retiredGens += s.Status().Generations
		sessionsLive.Set(float64(len(t.sessions)))
	}
	t.mu.Unlock()
	if ok {
		s.Free()
	}
}

// ResolvePath maps a registry model id to its on-disk path.
func (t *Table) ResolvePath(modelID string) (string, bool) {
	for _, m := range t.registry {
		if m.ID == modelID {
			return m.Path, true
		}
	}
	return "", false
}

// ListModels returns a copy of the registry.
func (t *Table) ListModels() []types.Model {
	out := make([]types.Model, len(t.registry))
	copy(out, t.registry)
	return out
}

// SessionStatus returns the status projection for the session behind h.
func (t *Table) SessionStatus(h uint64) (types.SessionStatus, bool) {
	s, ok := t.Get(h)
	if !ok {
		return types.SessionStatus{}, false
	}
	return s.Status(), true
}

// Ready reports whether the backend initialized successfully. The first
// call triggers initialization if it has not run yet.
func (t *Table) Ready() bool {
	if err := t.backend.ensure(); err != nil {
		t.mu.Lock()
		t.lastErr = err.Error()
		t.mu.Unlock()
		return false
	}
	return true
}

// Status builds a detailed status response for /status.
func (t *Table) Status() types.StatusResponse {
	state := "ready"
	if !t.Ready() {
		state = "error"
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	resp := types.StatusResponse{
		MaxSessions:      t.maxSessions,
		State:            state,
		LastError:        t.lastErr,
		LoadsTotal:       t.loads,
		GenerationsTotal: t.retiredGens,
		UptimeSeconds:    int64(time.Since(t.startTime).Seconds()),
		ServerTimeUnix:   time.Now().Unix(),
	}
	resp.Sessions = make([]types.SessionStatus, 0, len(t.sessions))
	for _, s := range t.sessions {
		st := s.Status()
		resp.GenerationsTotal += st.Generations
		resp.Sessions = append(resp.Sessions, st)
	}
	return resp
}
