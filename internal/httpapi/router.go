package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/satya-2810/AI-Voice-Agent/internal/agent"
	"github.com/satya-2810/AI-Voice-Agent/internal/stt"
)

type RouterConfig struct {
	// AssemblyAI streaming (the /media WebSocket)
	AssemblyAIAPIKey string
	RealtimeURL      string // Override for tests; empty means the public endpoint
	SampleRate       int    // PCM sample rate expected on /media (default 16000)
	AudioEncoding    string // e.g. "pcm_s16le"

	// Upload handling
	TempDir        string // Where chat uploads are spooled; empty means os.TempDir
	MaxUploadBytes int64  // Multipart memory/size cap (default 32 MiB)
}

// streamDialer opens a streaming recognition connection. Swappable so
// tests can point the WebSocket path at a local server.
type streamDialer func(ctx context.Context, cfg stt.RealtimeConfig) (stt.StreamClient, error)

type Router struct {
	cfg        RouterConfig
	logger     *log.Logger
	agent      *agent.Orchestrator
	registry   *agent.StreamRegistry
	dialStream streamDialer
	mux        *http.ServeMux
}

func NewRouter(cfg RouterConfig, logger *log.Logger, orch *agent.Orchestrator, registry *agent.StreamRegistry) http.Handler {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 32 << 20
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.AudioEncoding == "" {
		cfg.AudioEncoding = "pcm_s16le"
	}

	r := &Router{
		cfg:      cfg,
		logger:   logger,
		agent:    orch,
		registry: registry,
		dialStream: func(ctx context.Context, rtCfg stt.RealtimeConfig) (stt.StreamClient, error) {
			return stt.NewRealtimeClient(ctx, rtCfg)
		},
		mux: http.NewServeMux(),
	}

	r.routes()
	return withSentryRecovery(withCORS(r.mux))
}

func (r *Router) routes() {
	// Health check
	r.mux.HandleFunc("GET /healthz", r.handleHealthz)

	// Batch voice turn + session management
	r.mux.HandleFunc("POST /agent/chat/{sessionID}", r.handleAgentChat)
	r.mux.HandleFunc("GET /agent/history/{sessionID}", r.handleAgentHistory)
	r.mux.HandleFunc("DELETE /agent/chat/{sessionID}", r.handleAgentClear)
	r.mux.HandleFunc("GET /agent/sessions", r.handleAgentSessions)

	// Text-only generation, no session history
	r.mux.HandleFunc("POST /llm/query", r.handleLLMQuery)

	// Streaming ingress
	r.mux.HandleFunc("GET /media", r.handleMediaWS)
}

func (r *Router) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func withSentryRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				hub := sentry.CurrentHub().Clone()
				hub.Scope().SetRequest(req)
				hub.RecoverWithContext(req.Context(), err)
				hub.Flush(2 * time.Second)
				http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, req)
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if req.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, req)
	})
}

// captureError sends an error to Sentry with request context
func captureError(req *http.Request, err error, msg string) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetRequest(req)
		scope.SetExtra("message", msg)
		sentry.CaptureException(err)
	})
}
