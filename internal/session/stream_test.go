package session

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"inferd/internal/runtime"
	"inferd/internal/runtime/runtimetest"
	"inferd/pkg/types"
)

func TestGenerateNDJSON(t *testing.T) {
	f := runtimetest.New()
	f.Script = []runtime.Token{7, 8, runtimetest.EOG}
	f.Pieces = map[runtime.Token]string{7: "he", 8: "llo"}
	tbl := newTestTable(f, TableConfig{})
	h, err := tbl.Create()
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := tbl.LoadSession(h, "/models/test.gguf"); err != nil {
		t.Fatalf("load: %v", err)
	}

	var buf bytes.Buffer
	flushes := 0
	req := types.GenerateRequest{Prompt: "hi", MaxTokens: 8, Temperature: 0.7}
	if err := tbl.GenerateNDJSON(context.Background(), h, req, &buf, func() { flushes++ }); err != nil {
		t.Fatalf("stream: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 2 token lines plus summary, got %d: %q", len(lines), buf.String())
	}
	var tok struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal([]byte(lines[0]), &tok); err != nil || tok.Token != "he" {
		t.Fatalf("bad first token line %q: %v", lines[0], err)
	}
	var end struct {
		Done         bool   `json:"done"`
		Text         string `json:"text"`
		Tokens       int    `json:"tokens"`
		FinishReason string `json:"finish_reason"`
	}
	if err := json.Unmarshal([]byte(lines[2]), &end); err != nil {
		t.Fatalf("bad summary line %q: %v", lines[2], err)
	}
	if !end.Done || end.Text != "hello" || end.Tokens != 2 || end.FinishReason != FinishStop {
		t.Fatalf("unexpected summary %+v", end)
	}
	// One flush per token line and one for the summary.
	if flushes != 3 {
		t.Fatalf("expected 3 flushes, got %d", flushes)
	}
}

func TestGenerateNDJSONUnknownHandle(t *testing.T) {
	f := runtimetest.New()
	tbl := newTestTable(f, TableConfig{})
	err := tbl.GenerateNDJSON(context.Background(), 42, types.GenerateRequest{Prompt: "hi"}, &bytes.Buffer{}, nil)
	if !IsSessionNotFound(err) {
		t.Fatalf("expected session not found, got %v", err)
	}
}
