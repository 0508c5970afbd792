//go:build !llama

package runtime

// This file provides a no-FFI stub so default builds and CI stay free of
// native library requirements. The real binding lives in runtime_llama.go
// (build tag 'llama'). The stub refuses to load models rather than mock
// inference behavior.

type stubRuntime struct{}

// New returns the runtime selected by build tags.
func New() Runtime { return stubRuntime{} }

func (stubRuntime) Init() error { return nil }

func (stubRuntime) Shutdown() {}

func (stubRuntime) LoadModel(path string, params ModelParams) (Model, error) {
	return nil, ErrNotBuilt
}
