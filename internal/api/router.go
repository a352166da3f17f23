package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"playhead/internal/agent"
	"playhead/internal/config"
	"playhead/internal/session"
)

// Server holds all dependencies for the HTTP server.
type Server struct {
	config *config.Config
	store  *session.Store
	agent  *agent.Service
}

// NewServer creates a new server with all dependencies.
func NewServer(cfg *config.Config) (*Server, error) {
	store, err := session.NewStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	runtime := agent.NewOpenAIRuntime(cfg.OpenAIBaseURL, cfg.OpenAIKey)
	agentSvc := agent.NewService(runtime, store, agent.ServiceOptions{
		ChatModel:      cfg.ChatModel,
		TitleModel:     cfg.TitleModel,
		MaxToolCalls:   cfg.AgentMaxToolCallsPerRun,
		MaxRunDuration: cfg.AgentMaxRunDuration,
	})

	return &Server{
		config: cfg,
		store:  store,
		agent:  agentSvc,
	}, nil
}

// NewServerWithDependencies creates a server over preconstructed dependencies.
func NewServerWithDependencies(cfg *config.Config, store *session.Store, agentSvc *agent.Service) *Server {
	return &Server{
		config: cfg,
		store:  store,
		agent:  agentSvc,
	}
}

// Close releases server resources.
func (s *Server) Close() error {
	return s.store.Close()
}

// NewRouter creates the HTTP router with all routes configured.
func NewRouter(srv *Server) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(RecovererMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Playhead-User"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(AuthMiddleware(srv.config.Token))
	r.Use(UserMiddleware(srv.config.ValidUsers))

	// Chat routes
	r.Post("/api/chat", srv.handleChat)
	r.Post("/api/chat/stream", srv.handleChatStream)

	// Playback state routes
	r.Get("/api/state", srv.handleGetState)
	r.Post("/api/state/sync", srv.handleSyncState)
	r.Post("/api/action/{action}", srv.handleAction)

	// Conversation routes
	r.Get("/api/conversations", srv.handleListConversations)
	r.Get("/api/conversations/{id}/history", srv.handleConversationHistory)

	r.Get("/api/health", srv.handleHealth)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
