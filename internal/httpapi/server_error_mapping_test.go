package httpapi

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"inferd/internal/runtime"
	"inferd/internal/runtime/runtimetest"
	"inferd/internal/session"
)

type mockHTTPError struct {
	msg  string
	code int
}

func (e mockHTTPError) Error() string   { return e.msg }
func (e mockHTTPError) StatusCode() int { return e.code }

func TestGenerateErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid argument", session.ErrInvalidArgument("max tokens must be >= 0"), http.StatusBadRequest},
		{"not loaded", session.ErrNotLoaded, http.StatusConflict},
		{"unknown session", session.ErrSessionNotFound, http.StatusNotFound},
		{"runtime not built", runtime.ErrNotBuilt, http.StatusServiceUnavailable},
		{"http error", mockHTTPError{msg: "teapot", code: http.StatusTeapot}, http.StatusTeapot},
		{"opaque", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r := NewMux(&mockService{generateErr: c.err})
			w := postJSON(t, r, "/sessions/1/generate", `{"prompt":"hi"}`)
			if w.Code != c.want {
				t.Fatalf("expected %d, got %d (body %s)", c.want, w.Code, w.Body.String())
			}
		})
	}
}

// Exercise the real table through the mux: a full table maps to 429.
func TestCreateSessionCapacityMaps429(t *testing.T) {
	tbl := session.NewTable(session.NewBackend(runtimetest.New()), session.TableConfig{MaxSessions: 1})
	r := NewMux(tbl)
	w := postJSON(t, r, "/sessions", "")
	if w.Code != http.StatusCreated {
		t.Fatalf("first create status=%d", w.Code)
	}
	w = postJSON(t, r, "/sessions", "")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
}

// A load failure surfaces as 500 through the real table.
func TestLoadFailureMaps500(t *testing.T) {
	f := runtimetest.New()
	f.LoadErr = errors.New("corrupt weights")
	tbl := session.NewTable(session.NewBackend(f), session.TableConfig{})
	r := NewMux(tbl)
	w := postJSON(t, r, "/sessions", "")
	if w.Code != http.StatusCreated {
		t.Fatalf("create status=%d", w.Code)
	}
	w = postJSON(t, r, "/sessions/1/load", `{"path":"/models/bad.gguf"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d (body %s)", w.Code, w.Body.String())
	}
}

func TestRoutePatternOrPathFallback(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/plain", nil)
	if got := routePatternOrPath(req); got != "/plain" {
		t.Fatalf("got %q", got)
	}
}

func TestItoa(t *testing.T) {
	for n, want := range map[int]string{0: "0", 7: "7", 204: "204", 429: "429"} {
		if got := itoa(n); got != want {
			t.Errorf("itoa(%d) = %q, want %q", n, got, want)
		}
	}
}
