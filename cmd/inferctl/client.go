package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"inferd/pkg/types"
)

// client wraps the inferd HTTP API. Generate requests get no client-side
// timeout; generation length is bounded server-side.
type client struct {
	addr string
}

func (c *client) http(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

func (c *client) url(path string) string {
	return strings.TrimRight(c.addr, "/") + path
}

func (c *client) getJSON(path string, out any) error {
	resp, err := c.http(10 * time.Second).Get(c.url(path))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *client) postJSON(path string, body, out any, timeout time.Duration) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(http.MethodPost, c.url(path), rd)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http(timeout).Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return apiError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func apiError(resp *http.Response) error {
	var e types.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&e); err == nil && e.Error != "" {
		return fmt.Errorf("%s (HTTP %d)", e.Error, resp.StatusCode)
	}
	return fmt.Errorf("HTTP %d", resp.StatusCode)
}

func (c *client) models(w io.Writer) error {
	var resp types.ModelsResponse
	if err := c.getJSON("/models", &resp); err != nil {
		return err
	}
	for _, m := range resp.Models {
		line := m.ID
		if m.Quant != "" {
			line += "\t" + m.Quant
		}
		fmt.Fprintln(w, line)
	}
	return nil
}

func (c *client) status(w io.Writer) error {
	var resp types.StatusResponse
	if err := c.getJSON("/status", &resp); err != nil {
		return err
	}
	fmt.Fprintf(w, "state: %s\n", resp.State)
	fmt.Fprintf(w, "sessions: %d/%d\n", len(resp.Sessions), resp.MaxSessions)
	fmt.Fprintf(w, "loads: %d  generations: %d\n", resp.LoadsTotal, resp.GenerationsTotal)
	fmt.Fprintf(w, "uptime: %ds\n", resp.UptimeSeconds)
	if resp.LastError != "" {
		fmt.Fprintf(w, "last error: %s\n", resp.LastError)
	}
	return nil
}

func (c *client) create(w io.Writer) error {
	var resp types.CreateSessionResponse
	if err := c.postJSON("/sessions", nil, &resp, 10*time.Second); err != nil {
		return err
	}
	fmt.Fprintln(w, resp.Session)
	return nil
}

func (c *client) load(w io.Writer, h uint64, ref string) error {
	req := types.LoadRequest{}
	// A ref with a path separator or .gguf suffix is a path; anything else
	// is a registry model id.
	if strings.ContainsAny(ref, "/\\") || strings.HasSuffix(strings.ToLower(ref), ".gguf") {
		req.Path = ref
	} else {
		req.Model = ref
	}
	var resp types.LoadResponse
	if err := c.postJSON(fmt.Sprintf("/sessions/%d/load", h), req, &resp, 10*time.Minute); err != nil {
		return err
	}
	fmt.Fprintln(w, "loaded")
	return nil
}

func (c *client) generate(w io.Writer, h uint64, prompt string, maxTokens int, temperature float64, stream bool) error {
	req := types.GenerateRequest{Prompt: prompt, MaxTokens: maxTokens, Temperature: temperature, Stream: stream}
	path := fmt.Sprintf("/sessions/%d/generate", h)
	if !stream {
		var resp types.GenerateResponse
		if err := c.postJSON(path, req, &resp, 0); err != nil {
			return err
		}
		fmt.Fprintln(w, resp.Text)
		return nil
	}

	b, err := json.Marshal(req)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequest(http.MethodPost, c.url(path), bytes.NewReader(b))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := c.http(0).Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		var line struct {
			Token string `json:"token"`
			Done  bool   `json:"done"`
		}
		if err := json.Unmarshal(sc.Bytes(), &line); err != nil {
			continue
		}
		if line.Done {
			fmt.Fprintln(w)
			return sc.Err()
		}
		fmt.Fprint(w, line.Token)
	}
	return sc.Err()
}

func (c *client) sessionStatus(w io.Writer, h uint64) error {
	var st types.SessionStatus
	if err := c.getJSON(fmt.Sprintf("/sessions/%d", h), &st); err != nil {
		return err
	}
	fmt.Fprintf(w, "session: %d\n", st.Session)
	fmt.Fprintf(w, "state: %s\n", st.State)
	if st.ModelPath != "" {
		fmt.Fprintf(w, "model: %s\n", st.ModelPath)
		fmt.Fprintf(w, "temperature: %.2f\n", st.Temperature)
	}
	fmt.Fprintf(w, "generations: %d\n", st.Generations)
	return nil
}

func (c *client) unload(h uint64) error {
	return c.postJSON(fmt.Sprintf("/sessions/%d/unload", h), nil, nil, 30*time.Second)
}

func (c *client) free(h uint64) error {
	req, err := http.NewRequest(http.MethodDelete, c.url(fmt.Sprintf("/sessions/%d", h)), nil)
	if err != nil {
		return err
	}
	resp, err := c.http(30 * time.Second).Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return apiError(resp)
	}
	return nil
}
