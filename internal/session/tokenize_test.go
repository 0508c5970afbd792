package session

import (
	"context"
	"strings"
	"testing"

	"inferd/internal/runtime"
	"inferd/internal/runtime/runtimetest"
)

func TestNegotiateFirstAttemptFits(t *testing.T) {
	calls := 0
	got, err := negotiate(8, func(buf []int) (int, int) {
		calls++
		buf[0], buf[1] = 10, 20
		return 2, 0
	})
	if err != nil {
		t.Fatalf("negotiate: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected single attempt, got %d", calls)
	}
	if len(got) != 2 || got[0] != 10 || got[1] != 20 {
		t.Fatalf("unexpected result %v", got)
	}
}

func TestNegotiateRetriesExactlyOnce(t *testing.T) {
	var sizes []int
	got, err := negotiate(4, func(buf []int) (int, int) {
		sizes = append(sizes, len(buf))
		if len(buf) < 9 {
			return 0, 9
		}
		for i := range buf {
			buf[i] = i
		}
		return 9, 0
	})
	if err != nil {
		t.Fatalf("negotiate: %v", err)
	}
	if len(sizes) != 2 || sizes[0] != 4 || sizes[1] != 9 {
		t.Fatalf("expected retry with exact capacity, got attempts %v", sizes)
	}
	if len(got) != 9 {
		t.Fatalf("expected 9 elements, got %d", len(got))
	}
}

func TestNegotiateGivesUpAfterSecondShortfall(t *testing.T) {
	calls := 0
	_, err := negotiate(4, func(buf []int) (int, int) {
		calls++
		return 0, len(buf) + 1
	})
	if err != errNegotiation {
		t.Fatalf("expected errNegotiation, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected exactly two attempts, got %d", calls)
	}
}

// A prompt that tokenizes past the speculative estimate must still succeed
// through the single retry.
func TestGenerateLongTokenizationRetries(t *testing.T) {
	f := runtimetest.New()
	long := make([]runtime.Token, 3000)
	for i := range long {
		long[i] = 42
	}
	f.TokenizeFn = func(string) []runtime.Token { return long }
	f.Script = []runtime.Token{runtimetest.EOG}
	s := newLoadedSession(t, f)

	res, err := s.Generate(context.Background(), "hi", 1, 0.7)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.FinishReason != FinishStop {
		t.Fatalf("expected finish=stop, got %s", res.FinishReason)
	}
	f.Locked(func() {
		if len(f.DecodeCalls) == 0 || len(f.DecodeCalls[0]) != 3000 {
			t.Fatalf("expected 3000-token prefill, got %v calls", len(f.DecodeCalls))
		}
	})
}

func TestGenerateTokenizeFailure(t *testing.T) {
	f := runtimetest.New()
	// Grow the requirement on every attempt so the retry is undersized too.
	n := 2000
	f.TokenizeFn = func(string) []runtime.Token {
		toks := make([]runtime.Token, n)
		n += 1000
		return toks
	}
	s := newLoadedSession(t, f)

	_, err := s.Generate(context.Background(), "hi", 1, 0.7)
	if err == nil || !IsTokenize(err) {
		t.Fatalf("expected tokenize error, got %v", err)
	}
}

// A piece larger than the speculative buffer is recovered through the
// exact-size retry rather than truncated.
func TestOversizedPieceRetried(t *testing.T) {
	f := runtimetest.New()
	big := strings.Repeat("x", pieceBufSize+100)
	f.Script = []runtime.Token{9, runtimetest.EOG}
	f.Pieces = map[runtime.Token]string{9: big}
	s := newLoadedSession(t, f)

	res, err := s.Generate(context.Background(), "hi", 5, 0.7)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Text != big {
		t.Fatalf("oversized piece mangled: got %d bytes, want %d", len(res.Text), len(big))
	}
}

// Tokens with no textual form contribute nothing but do not fail the turn.
func TestUndecodableTokenContributesNothing(t *testing.T) {
	f := runtimetest.New()
	f.Script = []runtime.Token{9, 7, runtimetest.EOG}
	f.Pieces = map[runtime.Token]string{7: "ok"} // token 9 has no piece
	s := newLoadedSession(t, f)

	res, err := s.Generate(context.Background(), "hi", 5, 0.7)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Text != "ok" {
		t.Fatalf("expected %q, got %q", "ok", res.Text)
	}
	if res.Tokens != 2 {
		t.Fatalf("undecodable token still counts toward the budget, got %d", res.Tokens)
	}
}
