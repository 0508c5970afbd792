package session

import (
	"time"

	"github.com/rs/zerolog"

	"inferd/internal/runtime"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultCtxSize      = 2048
	defaultBatch        = 512
	defaultThreads      = 4
	defaultMaxWait      = 30 * time.Second
	defaultDrainTimeout = 5 * time.Second

	// defaultTemperature matches the runtime's stock sampling temperature;
	// the pipeline built at load time uses it until a generate call asks
	// for something else.
	defaultTemperature float32 = 0.8
	// defaultSeed is the runtime's "pick a seed" sentinel.
	defaultSeed uint32 = 0xFFFFFFFF
)

// Config encapsulates tunables for session construction. The zero value is
// usable; unset fields fall back to package defaults.
type Config struct {
	// Context creation parameters.
	CtxSize int
	Batch   int
	Threads int
	// Seed for the sampler pipeline's stochastic-selection stage.
	Seed uint32
	// MaxWait bounds how long a generate call waits for the single
	// in-flight slot before reporting busy.
	MaxWait time.Duration
	// DrainTimeout bounds how long unload/free wait for an in-flight
	// generation to finish.
	DrainTimeout time.Duration
	// Publisher receives lifecycle events; nil drops them.
	Publisher EventPublisher
	// Logger for structured lifecycle logging; the zero value is discarded
	// output.
	Logger zerolog.Logger
}

func (c Config) withDefaults() Config {
	if c.CtxSize <= 0 {
		c.CtxSize = defaultCtxSize
	}
	if c.Batch <= 0 {
		c.Batch = defaultBatch
	}
	if c.Threads <= 0 {
		c.Threads = defaultThreads
	}
	if c.Seed == 0 {
		c.Seed = defaultSeed
	}
	if c.MaxWait <= 0 {
		c.MaxWait = defaultMaxWait
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = defaultDrainTimeout
	}
	if c.Publisher == nil {
		c.Publisher = noopPublisher{}
	}
	return c
}

func (c Config) contextParams() runtime.ContextParams {
	return runtime.ContextParams{CtxSize: c.CtxSize, Batch: c.Batch, Threads: c.Threads}
}
