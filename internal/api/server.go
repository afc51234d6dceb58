package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MikeSquared-Agency/reckon/internal/llm"
	"github.com/MikeSquared-Agency/reckon/internal/workflow"
)

// RunStarter begins a reconciliation for a session.
type RunStarter interface {
	StartRun(ctx context.Context, session string) (workflow.Reply, error)
}

// Dispatcher is the provider registry as seen by the API.
type Dispatcher interface {
	Names() []string
	Default() string
	Chat(ctx context.Context, userText, systemPrompt, name string) (*llm.Result, error)
	ClearHistory(name string)
}

// Deps are the server's collaborators. Any of them may be nil; the routes
// that need a missing one answer 503.
type Deps struct {
	Runs    RunStarter
	LLM     Dispatcher
	NextRun func() []time.Time
}

type Server struct {
	router   *chi.Mux
	port     int
	apiToken string
	deps     Deps
	logger   *slog.Logger
	srv      *http.Server
}

func NewServer(port int, apiToken string, deps Deps, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:   router,
		port:     port,
		apiToken: apiToken,
		deps:     deps,
		logger:   logger,
	}

	router.Get("/health", s.health)
	router.Route("/api/v1/reckon", func(r chi.Router) {
		r.Get("/status", s.status)
		r.Get("/providers", s.providers)

		r.Group(func(r chi.Router) {
			r.Use(BearerAuthMiddleware(apiToken))
			r.Post("/runs", s.startRun)
			r.Post("/chat", s.chat)
			r.Delete("/chat/history", s.clearHistory)
		})
	})

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("API server starting", "addr", addr)
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// BearerAuthMiddleware rejects requests without the configured bearer token.
// With no token configured the protected routes are closed.
func BearerAuthMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				writeError(w, http.StatusServiceUnavailable, "api token not configured")
				return
			}
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"agent":  "reckon",
		"status": "ok",
	}
	if s.deps.LLM != nil {
		body["providers"] = len(s.deps.LLM.Names())
		body["default_provider"] = s.deps.LLM.Default()
	}
	if s.deps.NextRun != nil {
		var next []string
		for _, t := range s.deps.NextRun() {
			next = append(next, t.Format(time.RFC3339))
		}
		body["next_runs"] = next
	}
	writeJSON(w, http.StatusOK, body)
}

type providerView struct {
	Name    string `json:"name"`
	Default bool   `json:"default"`
}

func (s *Server) providers(w http.ResponseWriter, r *http.Request) {
	if s.deps.LLM == nil {
		writeError(w, http.StatusServiceUnavailable, llm.ErrNoProvider.Error())
		return
	}
	def := s.deps.LLM.Default()
	out := []providerView{}
	for _, n := range s.deps.LLM.Names() {
		out = append(out, providerView{Name: n, Default: n == def})
	}
	writeJSON(w, http.StatusOK, map[string]any{"providers": out, "count": len(out)})
}

// RunRequest starts a run for a session (Slack channel). An empty session
// uses the configured report channel.
type RunRequest struct {
	Session string `json:"session"`
}

func (s *Server) startRun(w http.ResponseWriter, r *http.Request) {
	if s.deps.Runs == nil {
		writeError(w, http.StatusServiceUnavailable, "reconciliation not configured")
		return
	}
	var req RunRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
			return
		}
	}

	reply, err := s.deps.Runs.StartRun(r.Context(), req.Session)
	if err != nil {
		s.logger.Error("run via api failed", "session", req.Session, "error", err)
		writeError(w, http.StatusInternalServerError, "run failed")
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

// ChatRequest is one ad-hoc turn against a provider's rolling history.
type ChatRequest struct {
	Message      string `json:"message"`
	SystemPrompt string `json:"system_prompt,omitempty"`
	Provider     string `json:"provider,omitempty"`
}

// ChatResponse mirrors llm.Result.
type ChatResponse struct {
	Content      string  `json:"content"`
	Model        string  `json:"model"`
	TokensUsed   int     `json:"tokens_used"`
	FinishReason string  `json:"finish_reason"`
	ProcessingMS int64   `json:"processing_ms"`
	CostUSD      float64 `json:"cost_usd"`
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	if s.deps.LLM == nil {
		writeError(w, http.StatusServiceUnavailable, llm.ErrNoProvider.Error())
		return
	}
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	res, err := s.deps.LLM.Chat(r.Context(), req.Message, req.SystemPrompt, req.Provider)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, llm.ErrNoProvider) {
			status = http.StatusServiceUnavailable
		}
		s.logger.Warn("chat failed", "provider", req.Provider, "error", err)
		writeError(w, status, truncate(err.Error(), 200))
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		Content:      res.Content,
		Model:        res.Model,
		TokensUsed:   res.TokensUsed,
		FinishReason: res.FinishReason,
		ProcessingMS: res.ProcessingTime.Milliseconds(),
		CostUSD:      res.Cost(),
	})
}

func (s *Server) clearHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.LLM == nil {
		writeError(w, http.StatusServiceUnavailable, llm.ErrNoProvider.Error())
		return
	}
	s.deps.LLM.ClearHistory(r.URL.Query().Get("provider"))
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
