// Package runtimetest provides a scriptable in-memory model runtime for
// tests. It tracks live handle counts so tests can assert that release
// paths never leak and never double-free.
package runtimetest

import (
	"errors"
	"sync"

	"inferd/internal/runtime"
)

// EOG is the fake vocabulary's end-of-generation token.
const EOG runtime.Token = 2

// SamplerConfig records the parameters a sampler pipeline was built with.
type SamplerConfig struct {
	Temperature float32
	Seed        uint32
}

// Fake implements runtime.Runtime. The zero value is usable: every model
// load succeeds, prompts tokenize to one token per byte, sampling returns
// EOG immediately, and every token detokenizes to the empty string.
type Fake struct {
	mu sync.Mutex

	// Failure injection.
	InitErr    error
	LoadErr    error
	ContextErr error
	// DecodeFailAt fails the Nth Decode call (0 = prefill). -1 disables.
	DecodeFailAt int

	// TokenizeFn overrides prompt tokenization. The default encodes one
	// token per byte of the prompt.
	TokenizeFn func(text string) []runtime.Token
	// Script holds the tokens returned by successive Sample calls. When
	// exhausted, Sample returns EOG.
	Script []runtime.Token
	// Pieces maps tokens to their text fragments.
	Pieces map[runtime.Token]string

	// Counters.
	InitCalls     int
	ShutdownCalls int
	ModelsLive    int
	ContextsLive  int
	SamplersLive  int
	DoubleFrees   int
	ClearKVCalls  int
	DecodeCalls   [][]runtime.Token
	Samplers      []SamplerConfig

	scriptPos int
}

// New returns a Fake with DecodeFailAt disabled.
func New() *Fake {
	return &Fake{DecodeFailAt: -1}
}

func (f *Fake) Init() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.InitCalls++
	return f.InitErr
}

func (f *Fake) Shutdown() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ShutdownCalls++
}

func (f *Fake) LoadModel(path string, params runtime.ModelParams) (runtime.Model, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.LoadErr != nil {
		return nil, f.LoadErr
	}
	f.ModelsLive++
	return &fakeModel{f: f}, nil
}

func (f *Fake) tokenize(text string) []runtime.Token {
	if f.TokenizeFn != nil {
		return f.TokenizeFn(text)
	}
	toks := make([]runtime.Token, len(text))
	for i := range text {
		toks[i] = runtime.Token(100 + int32(text[i]))
	}
	return toks
}

// Locked returns counter snapshots safely while generation may be running.
func (f *Fake) Locked(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn()
}

type fakeModel struct {
	f     *Fake
	freed bool
}

func (m *fakeModel) NewContext(params runtime.ContextParams) (runtime.Context, error) {
	m.f.mu.Lock()
	defer m.f.mu.Unlock()
	if m.f.ContextErr != nil {
		return nil, m.f.ContextErr
	}
	m.f.ContextsLive++
	return &fakeContext{f: m.f}, nil
}

func (m *fakeModel) NewSampler(temperature float32, seed uint32) runtime.Sampler {
	m.f.mu.Lock()
	defer m.f.mu.Unlock()
	m.f.SamplersLive++
	m.f.Samplers = append(m.f.Samplers, SamplerConfig{Temperature: temperature, Seed: seed})
	return &fakeSampler{f: m.f}
}

func (m *fakeModel) Tokenize(text string, buf []runtime.Token, addSpecial bool) int {
	toks := m.f.tokenize(text)
	if len(toks) > len(buf) {
		return -len(toks)
	}
	copy(buf, toks)
	return len(toks)
}

func (m *fakeModel) TokenToPiece(tok runtime.Token, buf []byte) int {
	piece, ok := m.f.Pieces[tok]
	if !ok {
		return 0
	}
	if len(piece) >= len(buf) {
		return len(piece)
	}
	copy(buf, piece)
	return len(piece)
}

func (m *fakeModel) IsEOG(tok runtime.Token) bool { return tok == EOG }

func (m *fakeModel) Free() {
	m.f.mu.Lock()
	defer m.f.mu.Unlock()
	if m.freed {
		m.f.DoubleFrees++
		return
	}
	m.freed = true
	m.f.ModelsLive--
}

type fakeContext struct {
	f     *Fake
	freed bool
}

var errDecode = errors.New("decode failed")

func (c *fakeContext) Decode(tokens []runtime.Token) error {
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	n := len(c.f.DecodeCalls)
	c.f.DecodeCalls = append(c.f.DecodeCalls, append([]runtime.Token(nil), tokens...))
	if c.f.DecodeFailAt >= 0 && n == c.f.DecodeFailAt {
		return errDecode
	}
	return nil
}

func (c *fakeContext) ClearKV() {
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	c.f.ClearKVCalls++
}

func (c *fakeContext) Free() {
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	if c.freed {
		c.f.DoubleFrees++
		return
	}
	c.freed = true
	c.f.ContextsLive--
}

type fakeSampler struct {
	f     *Fake
	freed bool
}

func (s *fakeSampler) Sample(ctx runtime.Context) runtime.Token {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	if s.f.scriptPos >= len(s.f.Script) {
		return EOG
	}
	tok := s.f.Script[s.f.scriptPos]
	s.f.scriptPos++
	return tok
}

func (s *fakeSampler) Free() {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	if s.freed {
		s.f.DoubleFrees++
		return
	}
	s.freed = true
	s.f.SamplersLive--
}
