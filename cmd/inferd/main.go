package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"inferd/internal/config"
	"inferd/internal/httpapi"
	"inferd/internal/registry"
	"inferd/internal/runtime"
	"inferd/internal/session"
)

func main() {
	// Flags with environment variable defaults
	defaultAddr := ":8080"
	if v := os.Getenv("INFERD_ADDR"); v != "" {
		defaultAddr = v
	}
	addr := flag.String("addr", defaultAddr, "HTTP listen address, e.g. :8080")
	configPath := flag.String("config", os.Getenv("INFERD_CONFIG"), "Optional config file (.yaml/.json/.toml)")
	modelsDir := flag.String("models-dir", "~/models/llm", "Directory to scan for *.gguf model files")
	ctxSize := flag.Int("ctx-size", 0, "Context window size in tokens (0=default)")
	batch := flag.Int("batch", 0, "Prompt processing batch size (0=default)")
	threads := flag.Int("threads", 0, "Worker threads per context (0=default)")
	maxSessions := flag.Int("max-sessions", 0, "Maximum concurrently live sessions (0=default)")
	maxWaitMS := flag.Int("max-wait-ms", 0, "How long a generate call queues before 429 (0=default)")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")
	corsEnabled := flag.Bool("cors-enabled", false, "Enable CORS middleware")
	corsOrigins := flag.String("cors-origins", "*", "Comma-separated allowed CORS origins")
	flag.Parse()

	// File config fills in anything the flags left at their zero value.
	var fileCfg config.Config
	if *configPath != "" {
		c, err := config.Load(*configPath)
		if err != nil {
			l := zerolog.New(os.Stderr)
			l.Fatal().Err(err).Str("path", *configPath).Msg("config load failed")
		}
		fileCfg = c
	}
	if !flagSet("addr") && fileCfg.Addr != "" {
		*addr = fileCfg.Addr
	}
	if !flagSet("models-dir") && fileCfg.ModelsDir != "" {
		*modelsDir = fileCfg.ModelsDir
	}
	if *ctxSize == 0 {
		*ctxSize = fileCfg.CtxSize
	}
	if *batch == 0 {
		*batch = fileCfg.Batch
	}
	if *threads == 0 {
		*threads = fileCfg.Threads
	}
	if *maxSessions == 0 {
		*maxSessions = fileCfg.MaxSessions
	}
	if *maxWaitMS == 0 {
		*maxWaitMS = fileCfg.MaxWaitMS
	}
	if *logLevel == "" {
		*logLevel = fileCfg.LogLevel
	}

	logger := newLogger(*logLevel)

	// Load registry by scanning modelsDir for *.gguf
	reg, err := registry.LoadDir(*modelsDir)
	if err != nil {
		logger.Fatal().Err(err).Str("dir", *modelsDir).Msg("failed to load models")
	}

	backend := session.NewBackend(runtime.New())
	defer backend.Shutdown()
	tbl := session.NewTable(backend, session.TableConfig{
		Session: session.Config{
			CtxSize: *ctxSize,
			Batch:   *batch,
			Threads: *threads,
			MaxWait: time.Duration(*maxWaitMS) * time.Millisecond,
			Logger:  logger,
		},
		MaxSessions: *maxSessions,
		Registry:    reg,
	})

	httpapi.SetLogger(logger)
	if *corsEnabled {
		httpapi.SetCORSOptions(true,
			strings.Split(*corsOrigins, ","),
			[]string{"GET", "POST", "DELETE", "OPTIONS"},
			[]string{"Accept", "Content-Type", "X-Log-Level"})
	}

	// Base context canceled on shutdown so in-flight generations stop.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetBaseContext(baseCtx)

	mux := httpapi.NewMux(tbl)
	srv := &http.Server{Addr: *addr, Handler: mux}

	go func() {
		logger.Info().Str("addr", *addr).Str("models_dir", *modelsDir).Int("models", len(reg)).Msg("inferd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	cancelBase()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown error")
	}
}

// flagSet reports whether the named flag was given explicitly.
func flagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func newLogger(level string) zerolog.Logger {
	lvl := zerolog.InfoLevel
	if level != "" {
		if parsed, err := zerolog.ParseLevel(level); err == nil {
			lvl = parsed
		}
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}
