// Package session owns the inference session lifecycle over a model
// runtime. It is structured into small files by concern:
//
//   - backend.go: process-wide one-time runtime init/shutdown (Backend).
//   - session.go: the Session state machine (uninitialized -> loaded ->
//     unloaded, freed terminal) and the autoregressive generation loop.
//   - tokenize.go: buffer negotiation between text and token sequences
//     (speculative buffer, one exact-size retry).
//   - sampler.go: sampler pipeline rebuild on temperature change.
//   - table.go: the handle table forming the call boundary; operations on
//     invalid handles are safe no-ops.
//   - stream.go: NDJSON streaming form of generate for the HTTP layer.
//   - config.go: Config and package defaults.
//   - errors.go: error types and Is* helpers for status mapping.
//   - events.go / eventpub_memory.go: lifecycle event publishing.
//   - metrics.go: prometheus collectors.
//
// Build tags select the model runtime: default builds use a stub that
// refuses to load models, `-tags=llama` binds the real llama.cpp
// libraries. See internal/runtime.
//
// External packages should treat this package as the orchestration layer
// and use public methods only (NewBackend, New, NewTable and the Session
// and Table surfaces). Internal types are subject to change.
package session
