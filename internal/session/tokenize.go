package session

import (
	"errors"

	"inferd/internal/runtime"
)

const (
	// tokenizeHeadroom pads the speculative tokenize buffer beyond the
	// prompt length; text tokenizes at roughly 3-4 characters per token,
	// so prompt length plus headroom covers special tokens comfortably.
	tokenizeHeadroom = 256
	// pieceBufSize is the speculative detokenize buffer size in bytes.
	pieceBufSize = 512
)

var errNegotiation = errors.New("buffer undersized after retry")

// negotiate runs attempt against a buffer of the estimated capacity.
// attempt reports (n, 0) on success with n elements valid, or (_, needed)
// to request a single retry with a buffer of exactly needed capacity. A
// second undersized report surfaces errNegotiation instead of looping.
func negotiate[T any](estimate int, attempt func(buf []T) (n, needed int)) ([]T, error) {
	buf := make([]T, estimate)
	n, needed := attempt(buf)
	if needed > 0 {
		buf = make([]T, needed)
		n, needed = attempt(buf)
		if needed > 0 {
			return nil, errNegotiation
		}
	}
	return buf[:n], nil
}

// tokenizePrompt encodes text against a tokenizer whose output length is
// unknown up front. The returned slice length is the true token count,
// never the allocated capacity.
func tokenizePrompt(m runtime.Model, text string, addSpecial bool) ([]runtime.Token, error) {
	toks, err := negotiate(len(text)+tokenizeHeadroom, func(buf []runtime.Token) (int, int) {
		n := m.Tokenize(text, buf, addSpecial)
		if n < 0 {
			return 0, -n
		}
		return n, 0
	})
	if err != nil {
		return nil, tokenizeError{err: err}
	}
	return toks, nil
}

// tokenPiece decodes one token to its text fragment. A token that cannot be
// decoded contributes the empty string; a single undecodable token must not
// fail an entire generation.
func tokenPiece(m runtime.Model, tok runtime.Token) string {
	piece, err := negotiate(pieceBufSize, func(buf []byte) (int, int) {
		n := m.TokenToPiece(tok, buf)
		if n >= len(buf) {
			return 0, n + 1
		}
		if n < 0 {
			return 0, 0
		}
		return n, 0
	})
	if err != nil {
		return ""
	}
	return string(piece)
}
