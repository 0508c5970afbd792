package session

import (
	"context"
	"sync"
	"time"

	"inferd/internal/runtime"
	"inferd/pkg/types"
)

// State represents the lifecycle state of a session.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateLoaded        State = "loaded"
	StateUnloaded      State = "unloaded"
	StateFreed         State = "freed"
)

// Finish reasons reported in generation results.
const (
	FinishStop      = "stop"      // end-of-generation token sampled
	FinishLength    = "length"    // token budget exhausted
	FinishTruncated = "truncated" // mid-generation decode failure
)

// Result summarizes one generation.
type Result struct {
	Text         string
	Tokens       int
	FinishReason string
}

// Session owns one loaded model, one execution context (and its KV cache),
// and one sampler pipeline. All operations on a Session are serialized
// internally; callers on separate goroutines get a busy error rather than
// corrupted runtime state. Distinct Sessions are independent and may run
// concurrently.
type Session struct {
	backend *Backend
	cfg     Config

	// gate is the single in-flight generation slot.
	gate chan struct{}

	mu          sync.Mutex
	state       State
	model       runtime.Model
	lctx        runtime.Context
	sampler     runtime.Sampler
	temperature float32
	path        string
	lastUsed    time.Time
	generations uint64

	// id is assigned by the owning Table; zero for standalone sessions.
	id uint64
}

// New constructs an uninitialized session, initializing the process-wide
// backend first if this is the first session.
func New(b *Backend, cfg Config) (*Session, error) {
	if err := b.ensure(); err != nil {
		return nil, err
	}
	return &Session{
		backend:  b,
		cfg:      cfg.withDefaults(),
		gate:     make(chan struct{}, 1),
		state:    StateUninitialized,
		lastUsed: time.Now(),
	}, nil
}

// Load loads the model at path and prepares an execution context and a
// default sampler pipeline. On any failure the session keeps its prior
// state with no partially acquired resources. Loading over an already
// loaded session is unload-then-load, never additive.
func (s *Session) Load(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateFreed {
		return ErrSessionNotFound
	}
	if path == "" {
		return ErrInvalidArgument("empty model path")
	}

	s.publish("load_start", map[string]any{"path": path})
	if s.state == StateLoaded {
		s.releaseLocked()
		s.state = StateUnloaded
	}

	model, err := s.backend.rt.LoadModel(path, runtime.DefaultModelParams())
	if err != nil {
		s.cfg.Logger.Error().Err(err).Str("path", path).Msg("model load failed")
		s.publish("load_error", map[string]any{"path": path, "error": err.Error()})
		return modelLoadError{path: path, err: err}
	}
	lctx, err := model.NewContext(s.cfg.contextParams())
	if err != nil {
		// Unwind the partial acquisition; the session must never be
		// observable half-loaded.
		model.Free()
		s.cfg.Logger.Error().Err(err).Str("path", path).Msg("context create failed")
		s.publish("load_error", map[string]any{"path": path, "error": err.Error()})
		return contextCreateError{err: err}
	}

	s.model = model
	s.lctx = lctx
	s.sampler = model.NewSampler(defaultTemperature, s.cfg.Seed)
	s.temperature = defaultTemperature
	s.path = path
	s.state = StateLoaded
	s.lastUsed = time.Now()
	loadsTotal.Inc()
	s.cfg.Logger.Info().Str("path", path).Msg("model loaded")
	s.publish("load_ready", map[string]any{"path": path})
	return nil
}

// Generate runs the full prefill-plus-sampling loop synchronously and
// returns the accumulated text. See GenerateStream for semantics.
func (s *Session) Generate(ctx context.Context, prompt string, maxTokens int, temperature float32) (Result, error) {
	return s.GenerateStream(ctx, prompt, maxTokens, temperature, nil)
}

// GenerateStream generates up to maxTokens tokens conditioned on prompt,
// invoking onToken (when non-nil) for each decoded text fragment. Every
// call is an independent turn: the KV cache is cleared before the prompt
// is prefilled, so no history carries across calls.
//
// Failures before any output (not loaded, tokenize, prefill) return an
// error with empty text. A decode failure after output has started is a
// soft truncation: the partial text is returned with a nil error and the
// truncated finish reason. Context cancellation mid-loop returns the
// partial text along with ctx.Err().
func (s *Session) GenerateStream(ctx context.Context, prompt string, maxTokens int, temperature float32, onToken func(piece string) error) (Result, error) {
	if maxTokens < 0 {
		return Result{}, ErrInvalidArgument("max tokens must be >= 0")
	}
	if temperature < 0 {
		return Result{}, ErrInvalidArgument("temperature must be >= 0")
	}

	release, err := s.acquire(ctx)
	if err != nil {
		return Result{}, err
	}
	defer release()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateLoaded {
		return Result{}, ErrNotLoaded
	}
	start := time.Now()
	s.publish("generate_start", map[string]any{"max_tokens": maxTokens, "temperature": temperature})

	s.ensureSamplerLocked(temperature)

	toks, err := tokenizePrompt(s.model, prompt, true)
	if err != nil {
		return Result{}, err
	}

	// Stale attention state from a previous turn corrupts results.
	s.lctx.ClearKV()

	res := Result{FinishReason: FinishLength}
	if len(toks) > 0 {
		if err := s.lctx.Decode(toks); err != nil {
			return Result{}, decodeError{err: err}
		}
	}

	var out []byte
	for i := 0; i < maxTokens; i++ {
		if err := ctx.Err(); err != nil {
			res.Text = string(out)
			return res, err
		}
		tok := s.sampler.Sample(s.lctx)
		if s.model.IsEOG(tok) {
			res.FinishReason = FinishStop
			break
		}
		piece := tokenPiece(s.model, tok)
		out = append(out, piece...)
		res.Tokens++
		if onToken != nil && piece != "" {
			if err := onToken(piece); err != nil {
				res.Text = string(out)
				return res, err
			}
		}
		if err := s.lctx.Decode([]runtime.Token{tok}); err != nil {
			s.cfg.Logger.Warn().Err(err).Int("tokens", res.Tokens).Msg("generation truncated")
			s.publish("generate_truncated", map[string]any{"tokens": res.Tokens, "error": err.Error()})
			res.FinishReason = FinishTruncated
			break
		}
	}

	res.Text = string(out)
	s.generations++
	s.lastUsed = time.Now()
	generationsTotal.Inc()
	tokensGeneratedTotal.Add(float64(res.Tokens))
	generateDuration.Observe(time.Since(start).Seconds())
	s.publish("generate_done", map[string]any{"tokens": res.Tokens, "finish": res.FinishReason})
	return res, nil
}

// IsLoaded reports whether the session currently has a loaded model.
func (s *Session) IsLoaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateLoaded
}

// Unload releases the sampler, context, and model, in that order, and is a
// no-op when nothing is loaded. An in-flight generation is allowed up to
// the drain timeout to finish first.
func (s *Session) Unload() {
	release := s.drain()
	defer release()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateLoaded {
		return
	}
	s.releaseLocked()
	s.state = StateUnloaded
	s.cfg.Logger.Info().Msg("model unloaded")
	s.publish("unload_done", nil)
}

// Free retires the session. The release sequence runs defensively even if
// Unload was already called; releasing an already-nil handle is a no-op.
// The session must not be used afterwards.
func (s *Session) Free() {
	release := s.drain()
	defer release()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateFreed {
		return
	}
	s.releaseLocked()
	s.state = StateFreed
	s.publish("free_done", nil)
}

// Status returns a read-only projection of the session.
func (s *Session) Status() types.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return types.SessionStatus{
		Session:     s.id,
		State:       string(s.state),
		ModelPath:   s.path,
		Temperature: float64(s.temperature),
		LastUsed:    s.lastUsed.Unix(),
		Generations: s.generations,
	}
}

// releaseLocked frees sampler, context, and model handles in that order
// and nulls them. Safe to call with any subset already released. mu must
// be held.
func (s *Session) releaseLocked() {
	if s.sampler != nil {
		s.sampler.Free()
		s.sampler = nil
	}
	if s.lctx != nil {
		s.lctx.Free()
		s.lctx = nil
	}
	if s.model != nil {
		s.model.Free()
		s.model = nil
	}
	s.path = ""
	s.temperature = 0
}

// acquire reserves the single in-flight slot, waiting up to MaxWait.
func (s *Session) acquire(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	timer := time.NewTimer(s.cfg.MaxWait)
	defer timer.Stop()
	select {
	case s.gate <- struct{}{}:
		return func() { <-s.gate }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, busyError{}
	}
}

// drain tries to acquire the in-flight slot for up to DrainTimeout so an
// in-flight generation can finish before a lifecycle transition. On
// timeout the transition proceeds anyway; the state mutex still serializes
// against the running loop.
func (s *Session) drain() func() {
	timer := time.NewTimer(s.cfg.DrainTimeout)
	defer timer.Stop()
	select {
	case s.gate <- struct{}{}:
		return func() { <-s.gate }
	case <-timer.C:
		return func() {}
	}
}

func (s *Session) publish(name string, fields map[string]any) {
	if fields == nil {
		fields = map[string]any{}
	}
	s.cfg.Publisher.Publish(Event{Name: name, Session: s.id, Fields: fields})
}
