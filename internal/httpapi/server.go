package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"inferd/internal/session"
	"inferd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Create() (uint64, error)
	LoadSession(h uint64, path string) error
	ResolvePath(modelID string) (string, bool)
	GenerateNDJSON(ctx context.Context, h uint64, req types.GenerateRequest, w io.Writer, flush func()) error
	GenerateResponse(ctx context.Context, h uint64, req types.GenerateRequest) (types.GenerateResponse, error)
	SessionStatus(h uint64) (types.SessionStatus, bool)
	Unload(h uint64)
	Free(h uint64)
	ListModels() []types.Model
	Status() types.StatusResponse
	Ready() bool
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Post("/sessions", func(w http.ResponseWriter, r *http.Request) {
		h, err := svc.Create()
		if err != nil {
			writeSessionError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, types.CreateSessionResponse{Session: h})
	})

	r.Get("/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		h, ok := sessionHandle(r)
		if !ok {
			writeJSONError(w, http.StatusNotFound, "unknown session")
			return
		}
		st, ok := svc.SessionStatus(h)
		if !ok {
			writeJSONError(w, http.StatusNotFound, "unknown session")
			return
		}
		writeJSON(w, http.StatusOK, st)
	})

	r.Post("/sessions/{id}/load", func(w http.ResponseWriter, r *http.Request) {
		h, ok := sessionHandle(r)
		if !ok {
			writeJSONError(w, http.StatusNotFound, "unknown session")
			return
		}
		var req types.LoadRequest
		if !decodeJSONBody(w, r, &req) {
			return
		}
		path := req.Path
		if path == "" && req.Model != "" {
			p, ok := svc.ResolvePath(req.Model)
			if !ok {
				writeJSONError(w, http.StatusNotFound, "unknown model id: "+req.Model)
				return
			}
			path = p
		}
		if path == "" {
			writeJSONError(w, http.StatusBadRequest, "path or model is required")
			return
		}
		if err := svc.LoadSession(h, path); err != nil {
			writeSessionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, types.LoadResponse{Loaded: true})
	})

	r.Post("/sessions/{id}/generate", func(w http.ResponseWriter, r *http.Request) {
		h, ok := sessionHandle(r)
		if !ok {
			writeJSONError(w, http.StatusNotFound, "unknown session")
			return
		}
		var req types.GenerateRequest
		if !decodeJSONBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Prompt) == "" {
			writeJSONError(w, http.StatusBadRequest, "prompt is required")
			return
		}

		// Join server base context with request context so shutdown cancels work too.
		joinedCtx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		if sec := generateTimeout; sec > 0 {
			var tcancel context.CancelFunc
			joinedCtx, tcancel = context.WithTimeout(joinedCtx, time.Duration(sec)*time.Second)
			defer tcancel()
		}

		start := time.Now()
		lvl := requestLogLevel(r)
		if lvl >= LevelInfo {
			logGenerate(r, "generate start", 0, 0)
		}

		if !req.Stream {
			resp, err := svc.GenerateResponse(joinedCtx, h, req)
			if err != nil {
				if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
					return
				}
				writeSessionError(w, err)
				if lvl >= LevelInfo {
					logGenerate(r, "generate end", statusForError(err), time.Since(start))
				}
				return
			}
			writeJSON(w, http.StatusOK, resp)
			if lvl >= LevelInfo {
				logGenerate(r, "generate end", http.StatusOK, time.Since(start))
			}
			return
		}

		w.Header().Set("Content-Type", "application/x-ndjson")
		var flush func()
		if f, ok := w.(http.Flusher); ok {
			flush = f.Flush
		}
		writer := io.Writer(w)
		if lvl >= LevelDebug {
			writer = io.MultiWriter(w, &loggingLineWriter{})
		}
		if err := svc.GenerateNDJSON(joinedCtx, h, req, writer, flush); err != nil {
			// If context was canceled (client disconnect), just return.
			if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
				return
			}
			writeSessionError(w, err)
			if lvl >= LevelInfo {
				logGenerate(r, "generate end", statusForError(err), time.Since(start))
			}
			return
		}
		if lvl >= LevelInfo {
			logGenerate(r, "generate end", http.StatusOK, time.Since(start))
		}
	})

	r.Post("/sessions/{id}/unload", func(w http.ResponseWriter, r *http.Request) {
		h, ok := sessionHandle(r)
		if !ok {
			writeJSONError(w, http.StatusNotFound, "unknown session")
			return
		}
		if _, ok := svc.SessionStatus(h); !ok {
			writeJSONError(w, http.StatusNotFound, "unknown session")
			return
		}
		svc.Unload(h)
		w.WriteHeader(http.StatusNoContent)
	})

	r.Delete("/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		h, ok := sessionHandle(r)
		if !ok {
			writeJSONError(w, http.StatusNotFound, "unknown session")
			return
		}
		// Free is a safe no-op for unknown handles; DELETE is idempotent.
		svc.Free(h)
		w.WriteHeader(http.StatusNoContent)
	})

	r.Get("/models", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, types.ModelsResponse{Models: svc.ListModels()})
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Status())
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("loading"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

// sessionHandle parses the {id} route parameter; malformed handles are
// treated like unknown ones.
func sessionHandle(r *http.Request) (uint64, bool) {
	h, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	return h, err == nil
}

// decodeJSONBody enforces the JSON content type and body limit and decodes
// into dst, writing the error response itself on failure.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		// If exceeded size, MaxBytesReader may cause an error; still return 400 to avoid size leak details
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// logGenerate emits one structured line per generate request phase.
func logGenerate(r *http.Request, msg string, status int, dur time.Duration) {
	if zlog == nil {
		return
	}
	z := zlog.Info().Str("path", r.URL.Path)
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		z = z.Str("request_id", rid)
	}
	if status > 0 {
		z = z.Int("status", status).Dur("dur", dur)
	}
	z.Msg(msg)
}

var _ Service = (*session.Table)(nil)
