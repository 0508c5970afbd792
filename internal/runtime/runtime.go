// Package runtime abstracts the native model runtime (llama.cpp) behind a
// small interface set so the session layer can be exercised without FFI.
//
// The contracts deliberately mirror the underlying C API:
//
//   - Tokenize returns the actual token count on success, or a negative
//     value whose magnitude is the required buffer capacity when the
//     provided buffer is too small.
//   - TokenToPiece returns the number of bytes written when the piece fits
//     (0 < n < len(buf)); a result >= len(buf) means the caller must retry
//     with a buffer of at least n+1 bytes.
//
// Build tags select the concrete implementation: `llama` enables the real
// yzma-backed bindings (runtime_llama.go); default builds get a stub that
// fails fast on model load (runtime_stub.go).
package runtime

import "errors"

// Token is a vocabulary token id.
type Token int32

// ModelParams configures model loading.
type ModelParams struct {
	// GPULayers is the number of layers to offload (-1 = all, 0 = CPU only).
	GPULayers int
}

// ContextParams configures execution context creation.
type ContextParams struct {
	// CtxSize is the context window in tokens.
	CtxSize int
	// Batch is the maximum tokens submitted in one decode call.
	Batch int
	// Threads is the CPU worker thread count for tensor computation.
	Threads int
}

// DefaultModelParams returns CPU-only model defaults.
func DefaultModelParams() ModelParams {
	return ModelParams{GPULayers: 0}
}

// DefaultContextParams returns context defaults sized for short completions
// on CPU.
func DefaultContextParams() ContextParams {
	return ContextParams{CtxSize: 2048, Batch: 512, Threads: 4}
}

// ErrNotBuilt is returned by the stub runtime when llama support was not
// compiled in (missing 'llama' build tag).
var ErrNotBuilt = errors.New("llama support not built (missing 'llama' build tag)")

// Runtime is the process-wide entry point to the native runtime.
// Init must be called once before any LoadModel; Shutdown releases global
// backend state on clean process exit.
type Runtime interface {
	Init() error
	Shutdown()
	// LoadModel loads model weights from path. No automatic retry is
	// performed; a nil Model with an error means the runtime rejected the
	// file (missing, corrupt, unsupported format).
	LoadModel(path string, params ModelParams) (Model, error)
}

// Model is a loaded set of weights plus its vocabulary.
type Model interface {
	// NewContext creates an execution context (including its KV cache)
	// from this model.
	NewContext(params ContextParams) (Context, error)
	// NewSampler builds a sampler pipeline: a temperature stage followed
	// by a seeded stochastic-selection stage.
	NewSampler(temperature float32, seed uint32) Sampler
	// Tokenize encodes text into buf. See the package doc for the
	// negative-count contract.
	Tokenize(text string, buf []Token, addSpecial bool) int
	// TokenToPiece decodes one token into buf. See the package doc for
	// the n >= len(buf) contract.
	TokenToPiece(tok Token, buf []byte) int
	// IsEOG reports whether tok is an end-of-generation marker.
	IsEOG(tok Token) bool
	Free()
}

// Context is an execution context owning a KV cache. Decode accepts a batch
// of one or more tokens; ClearKV drops all cached attention state.
type Context interface {
	Decode(tokens []Token) error
	ClearKV()
	Free()
}

// Sampler chooses one token from the model state at the most recently
// decoded position.
type Sampler interface {
	Sample(ctx Context) Token
	Free()
}
