package session

// invalidArgumentError signals a rejected input (empty path, negative
// budget) so the HTTP layer can return 400.
type invalidArgumentError struct{ msg string }

func (e invalidArgumentError) Error() string { return "invalid argument: " + e.msg }

// ErrInvalidArgument constructs an invalidArgumentError.
func ErrInvalidArgument(msg string) error { return invalidArgumentError{msg: msg} }

// IsInvalidArgument reports whether err indicates a rejected input.
func IsInvalidArgument(err error) bool {
	_, ok := err.(invalidArgumentError)
	return ok
}

// modelLoadError signals that the runtime returned no model for a path.
type modelLoadError struct {
	path string
	err  error
}

func (e modelLoadError) Error() string { return "model load failed: " + e.path + ": " + e.err.Error() }
func (e modelLoadError) Unwrap() error { return e.err }

// IsModelLoad reports whether err indicates a failed model load.
func IsModelLoad(err error) bool {
	_, ok := err.(modelLoadError)
	return ok
}

// contextCreateError signals context creation failed after a successful
// model load; the load path releases the model before returning this.
type contextCreateError struct{ err error }

func (e contextCreateError) Error() string { return "context create failed: " + e.err.Error() }
func (e contextCreateError) Unwrap() error { return e.err }

// IsContextCreate reports whether err indicates failed context creation.
func IsContextCreate(err error) bool {
	_, ok := err.(contextCreateError)
	return ok
}

// tokenizeError signals buffer negotiation was exhausted after one retry.
type tokenizeError struct{ err error }

func (e tokenizeError) Error() string { return "tokenize failed: " + e.err.Error() }
func (e tokenizeError) Unwrap() error { return e.err }

// IsTokenize reports whether err indicates a tokenization failure.
func IsTokenize(err error) bool {
	_, ok := err.(tokenizeError)
	return ok
}

// decodeError signals the prefill decode step failed before any token was
// produced. Mid-generation decode failures truncate instead.
type decodeError struct{ err error }

func (e decodeError) Error() string { return "decode failed: " + e.err.Error() }
func (e decodeError) Unwrap() error { return e.err }

// IsDecode reports whether err indicates a failed prefill.
func IsDecode(err error) bool {
	_, ok := err.(decodeError)
	return ok
}

// notLoadedError signals generate was called before a successful load.
type notLoadedError struct{}

func (notLoadedError) Error() string { return "model not loaded" }

// ErrNotLoaded is the singleton not-loaded error.
var ErrNotLoaded error = notLoadedError{}

// IsNotLoaded reports whether err indicates a session without a model.
func IsNotLoaded(err error) bool {
	_, ok := err.(notLoadedError)
	return ok
}

// busyError signals the single in-flight gate could not be acquired within
// the configured wait, for 429 mapping.
type busyError struct{}

func (busyError) Error() string { return "session busy" }

// IsBusy reports whether err indicates backpressure (return 429).
func IsBusy(err error) bool {
	_, ok := err.(busyError)
	return ok
}

// notFoundError signals an unknown or already-freed session handle.
type notFoundError struct{}

func (notFoundError) Error() string { return "session not found" }

// ErrSessionNotFound is the singleton unknown-handle error.
var ErrSessionNotFound error = notFoundError{}

// IsSessionNotFound reports whether err indicates an invalid handle.
func IsSessionNotFound(err error) bool {
	_, ok := err.(notFoundError)
	return ok
}
