package types

// CreateSessionResponse is returned by POST /sessions.
type CreateSessionResponse struct {
	// Opaque handle identifying the new session.
	// example: 1
	Session uint64 `json:"session" example:"1"`
}

// LoadRequest asks a session to load the model at Path.
type LoadRequest struct {
	// Absolute path to a GGUF model file.
	// example: /home/user/models/TinyLlama.Q4_K_M.gguf
	Path string `json:"path" example:"/home/user/models/TinyLlama.Q4_K_M.gguf"`
	// Optional registry model id; resolved to a path server-side when Path is empty.
	// example: tinyllama-q4
	Model string `json:"model,omitempty" example:"tinyllama-q4"`
}

// LoadResponse is returned by POST /sessions/{id}/load.
type LoadResponse struct {
	// Whether the session now has a loaded model.
	// example: true
	Loaded bool `json:"loaded" example:"true"`
}

// GenerateRequest is the payload for POST /sessions/{id}/generate.
type GenerateRequest struct {
	// Required prompt text to complete.
	// example: Write a haiku about the ocean.
	Prompt string `json:"prompt" example:"Write a haiku about the ocean."`
	// Maximum number of new tokens to generate.
	// example: 128
	MaxTokens int `json:"max_tokens,omitempty" example:"128"`
	// Sampling temperature (higher = more random; 0 is near-deterministic).
	// example: 0.7
	Temperature float64 `json:"temperature,omitempty" example:"0.7"`
	// If true, stream tokens as NDJSON lines before the final summary line.
	// example: true
	Stream bool `json:"stream,omitempty" example:"true"`
}

// GenerateResponse is the non-streaming result of a generate call.
type GenerateResponse struct {
	// Generated text; may be empty (immediate end-of-generation) or partial
	// (mid-generation decode failure truncates rather than fails).
	Text string `json:"text"`
	// Number of tokens produced.
	// example: 42
	Tokens int `json:"tokens" example:"42"`
	// Why generation stopped: stop, length, or truncated.
	// example: stop
	FinishReason string `json:"finish_reason" example:"stop"`
}

// SessionStatus summarizes one live session for /status and GET /sessions/{id}.
type SessionStatus struct {
	// Session handle.
	// example: 1
	Session uint64 `json:"session" example:"1"`
	// Lifecycle state: uninitialized, loaded, or unloaded.
	// example: loaded
	State string `json:"state" example:"loaded"`
	// Path of the currently loaded model, empty when not loaded.
	ModelPath string `json:"model_path,omitempty"`
	// Temperature the active sampler pipeline was built with.
	// example: 0.7
	Temperature float64 `json:"temperature" example:"0.7"`
	// Last time this session served a request (unix seconds).
	// example: 1700000000
	LastUsed int64 `json:"last_used_unix" example:"1700000000"`
	// Total generate calls served by this session.
	// example: 3
	Generations uint64 `json:"generations" example:"3"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Live sessions.
	Sessions []SessionStatus `json:"sessions"`
	// Maximum concurrent sessions allowed.
	// example: 16
	MaxSessions int `json:"max_sessions" example:"16"`
	// Overall backend state (ready or error).
	// example: ready
	State string `json:"state" example:"ready"`
	// Last backend error observed, if any.
	LastError string `json:"last_error,omitempty"`
	// Total successful model loads.
	// example: 12
	LoadsTotal uint64 `json:"loads_total" example:"12"`
	// Total generate calls served.
	// example: 87
	GenerationsTotal uint64 `json:"generations_total" example:"87"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}

// ModelsResponse wraps the list of models returned by GET /models.
type ModelsResponse struct {
	// List of available models.
	Models []Model `json:"models"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}
