package e2e

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"inferd/internal/httpapi"
	"inferd/internal/registry"
	"inferd/internal/runtime"
	"inferd/internal/runtime/runtimetest"
	"inferd/internal/session"
	"inferd/pkg/types"
)

// createTempModelsDir creates a temporary directory populated with empty
// .gguf files and returns the directory path.
func createTempModelsDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte(""), 0o644); err != nil {
			t.Fatalf("write temp model: %v", err)
		}
	}
	return dir
}

func newServer(t *testing.T, f *runtimetest.Fake, modelsDir string) *httptest.Server {
	t.Helper()
	reg, err := registry.LoadDir(modelsDir)
	if err != nil {
		t.Fatalf("scan models: %v", err)
	}
	tbl := session.NewTable(session.NewBackend(f), session.TableConfig{Registry: reg})
	srv := httptest.NewServer(httpapi.NewMux(tbl))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}

func decodeInto(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

// Full session lifecycle over HTTP: create, load by model id, generate
// (both forms), inspect, unload, free.
func TestSessionLifecycleOverHTTP(t *testing.T) {
	f := runtimetest.New()
	f.Script = []runtime.Token{7, 8, runtimetest.EOG, 7, runtimetest.EOG}
	f.Pieces = map[runtime.Token]string{7: "ha", 8: "iku"}
	dir := createTempModelsDir(t, "alpha.gguf")
	srv := newServer(t, f, dir)

	// create
	var created types.CreateSessionResponse
	resp := postJSON(t, srv.URL+"/sessions", "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status=%d", resp.StatusCode)
	}
	decodeInto(t, resp, &created)
	sURL := srv.URL + "/sessions/" + strconv.FormatUint(created.Session, 10)

	// load by registry id
	resp = postJSON(t, sURL+"/load", `{"model":"alpha.gguf"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("load status=%d", resp.StatusCode)
	}
	var loaded types.LoadResponse
	decodeInto(t, resp, &loaded)
	if !loaded.Loaded {
		t.Fatalf("expected loaded=true")
	}

	// non-streaming generate
	resp = postJSON(t, sURL+"/generate", `{"prompt":"write a haiku","max_tokens":16}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("generate status=%d", resp.StatusCode)
	}
	var gen types.GenerateResponse
	decodeInto(t, resp, &gen)
	if gen.Text != "haiku" || gen.Tokens != 2 || gen.FinishReason != "stop" {
		t.Fatalf("unexpected generation: %+v", gen)
	}

	// streaming generate
	resp = postJSON(t, sURL+"/generate", `{"prompt":"again","max_tokens":16,"stream":true}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stream status=%d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 1 token line plus summary, got %d: %q", len(lines), body)
	}
	if !strings.Contains(lines[len(lines)-1], `"done":true`) {
		t.Fatalf("missing done line: %q", lines[len(lines)-1])
	}

	// session status
	resp, err := http.Get(sURL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var st types.SessionStatus
	decodeInto(t, resp, &st)
	if st.State != "loaded" || st.Generations != 2 {
		t.Fatalf("unexpected status: %+v", st)
	}

	// unload, then generate conflicts
	resp = postJSON(t, sURL+"/unload", "")
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("unload status=%d", resp.StatusCode)
	}
	resp = postJSON(t, sURL+"/generate", `{"prompt":"hi"}`)
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("generate after unload status=%d", resp.StatusCode)
	}

	// free, then the handle is gone
	req, _ := http.NewRequest(http.MethodDelete, sURL, nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status=%d", resp.StatusCode)
	}
	resp, err = http.Get(sURL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("freed session status=%d", resp.StatusCode)
	}

	f.Locked(func() {
		if f.ModelsLive != 0 || f.ContextsLive != 0 || f.SamplersLive != 0 {
			t.Fatalf("resources leaked: %d/%d/%d", f.ModelsLive, f.ContextsLive, f.SamplersLive)
		}
	})
}

func TestModelsDiscoveredOverHTTP(t *testing.T) {
	dir := createTempModelsDir(t, "alpha-q4_k_m.gguf", "beta.gguf", "notes.txt")
	srv := newServer(t, runtimetest.New(), dir)
	resp, err := http.Get(srv.URL + "/models")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var models types.ModelsResponse
	decodeInto(t, resp, &models)
	if len(models.Models) != 2 {
		t.Fatalf("expected 2 models, got %+v", models.Models)
	}
}

func TestStatusAndProbesOverHTTP(t *testing.T) {
	dir := createTempModelsDir(t, "alpha.gguf")
	srv := newServer(t, runtimetest.New(), dir)
	for _, probe := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(srv.URL + probe)
		if err != nil {
			t.Fatalf("get %s: %v", probe, err)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s status=%d", probe, resp.StatusCode)
		}
	}
	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatalf("get /status: %v", err)
	}
	var st types.StatusResponse
	decodeInto(t, resp, &st)
	if st.State != "ready" {
		t.Fatalf("state=%s", st.State)
	}
}
