package session

import (
	"context"
	"encoding/json"
	"io"

	"inferd/pkg/types"
)

// GenerateNDJSON runs a generation for the session behind h and streams
// NDJSON token lines to w, followed by a final summary line. flush, when
// non-nil, is invoked after each line so chunked HTTP responses deliver
// tokens as they are produced.
func (t *Table) GenerateNDJSON(ctx context.Context, h uint64, req types.GenerateRequest, w io.Writer, flush func()) error {
	s, ok := t.Get(h)
	if !ok {
		return ErrSessionNotFound
	}
	onTok := func(piece string) error {
		if _, err := w.Write(tokenLineJSON(piece)); err != nil {
			return err
		}
		if flush != nil {
			flush()
		}
		return nil
	}
	res, err := s.GenerateStream(ctx, req.Prompt, req.MaxTokens, float32(req.Temperature), onTok)
	if err != nil {
		return err
	}
	end := map[string]any{
		"done":          true,
		"text":          res.Text,
		"tokens":        res.Tokens,
		"finish_reason": res.FinishReason,
	}
	jb, _ := json.Marshal(end)
	if _, err := w.Write(append(jb, '\n')); err != nil {
		return err
	}
	if flush != nil {
		flush()
	}
	return nil
}

// GenerateResponse runs a non-streaming generation for the session behind
// h and returns the JSON response body.
func (t *Table) GenerateResponse(ctx context.Context, h uint64, req types.GenerateRequest) (types.GenerateResponse, error) {
	s, ok := t.Get(h)
	if !ok {
		return types.GenerateResponse{}, ErrSessionNotFound
	}
	res, err := s.Generate(ctx, req.Prompt, req.MaxTokens, float32(req.Temperature))
	if err != nil {
		return types.GenerateResponse{}, err
	}
	return types.GenerateResponse{Text: res.Text, Tokens: res.Tokens, FinishReason: res.FinishReason}, nil
}

// tokenLineJSON formats a token NDJSON line using json.Marshal for correctness.
func tokenLineJSON(tok string) []byte {
	type tokenMsg struct {
		Token string `json:"token"`
	}
	b, _ := json.Marshal(tokenMsg{Token: tok})
	return append(b, '\n')
}
