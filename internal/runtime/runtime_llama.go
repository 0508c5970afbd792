//go:build llama

package runtime

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hybridgroup/yzma/pkg/llama"

	"inferd/internal/common/fsutil"
)

// llamaRuntime binds the interface set to llama.cpp through yzma's purego
// FFI, so no CGO toolchain is needed at build time. The shared libraries
// are loaded at Init from INFERD_LIB (default ./lib/llama).

type llamaRuntime struct{}

// New returns the runtime selected by build tags.
func New() Runtime { return llamaRuntime{} }

func (llamaRuntime) Init() error {
	libPath := os.Getenv("INFERD_LIB")
	if libPath == "" {
		libPath = "./lib/llama"
	}
	if abs, err := filepath.Abs(libPath); err == nil {
		libPath = abs
	}
	if err := llama.Load(libPath); err != nil {
		return fmt.Errorf("load llama libraries from %s: %w", libPath, err)
	}
	llama.Init()
	return nil
}

func (llamaRuntime) Shutdown() {
	llama.BackendFree()
}

func (llamaRuntime) LoadModel(path string, params ModelParams) (Model, error) {
	// Reject bad paths before handing them to the native loader; its error
	// reporting for missing files is poor.
	if !fsutil.IsRegularFile(path) {
		return nil, fmt.Errorf("model file not found: %s", path)
	}
	mp := llama.ModelDefaultParams()
	mp.NGpuLayers = int32(params.GPULayers)
	m, err := llama.ModelLoadFromFile(path, mp)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", path, err)
	}
	return &llamaModel{model: m, vocab: llama.ModelGetVocab(m)}, nil
}

type llamaModel struct {
	model llama.Model
	vocab llama.Vocab
}

func (m *llamaModel) NewContext(params ContextParams) (Context, error) {
	cp := llama.ContextDefaultParams()
	cp.NCtx = uint32(params.CtxSize)
	cp.NBatch = uint32(params.Batch)
	cp.NThreads = int32(params.Threads)
	cp.NThreadsBatch = int32(params.Threads)
	lctx, err := llama.InitFromModel(m.model, cp)
	if err != nil {
		return nil, fmt.Errorf("create context: %w", err)
	}
	return &llamaContext{ctx: lctx}, nil
}

func (m *llamaModel) NewSampler(temperature float32, seed uint32) Sampler {
	sp := llama.DefaultSamplerParams()
	sp.Temp = temperature
	sp.Seed = seed
	return &llamaSampler{sampler: llama.NewSampler(m.model, llama.DefaultSamplers, sp)}
}

func (m *llamaModel) Tokenize(text string, buf []Token, addSpecial bool) int {
	toks := llama.Tokenize(m.vocab, text, addSpecial, false)
	if len(toks) > len(buf) {
		return -len(toks)
	}
	for i, t := range toks {
		buf[i] = Token(t)
	}
	return len(toks)
}

func (m *llamaModel) TokenToPiece(tok Token, buf []byte) int {
	return int(llama.TokenToPiece(m.vocab, llama.Token(tok), buf, 0, true))
}

func (m *llamaModel) IsEOG(tok Token) bool {
	return llama.VocabIsEOG(m.vocab, llama.Token(tok))
}

func (m *llamaModel) Free() {
	llama.ModelFree(m.model)
}

type llamaContext struct {
	ctx llama.Context
}

func (c *llamaContext) Decode(tokens []Token) error {
	toks := make([]llama.Token, len(tokens))
	for i, t := range tokens {
		toks[i] = llama.Token(t)
	}
	// BatchGetOne batches are stack-allocated; they must not be freed.
	batch := llama.BatchGetOne(toks)
	if _, err := llama.Decode(c.ctx, batch); err != nil {
		return err
	}
	return nil
}

func (c *llamaContext) ClearKV() {
	llama.MemoryClear(llama.GetMemory(c.ctx), true)
}

func (c *llamaContext) Free() {
	llama.Free(c.ctx)
}

type llamaSampler struct {
	sampler llama.Sampler
}

func (s *llamaSampler) Sample(ctx Context) Token {
	lc := ctx.(*llamaContext)
	return Token(llama.SamplerSample(s.sampler, lc.ctx, -1))
}

func (s *llamaSampler) Free() {
	llama.SamplerFree(s.sampler)
}
