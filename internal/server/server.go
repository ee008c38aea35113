// Package server exposes the gateway over HTTP: a streaming and a
// non-streaming query endpoint, approval resolution, and conversation
// management.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/codefionn/modelgate/internal/approval"
	"github.com/codefionn/modelgate/internal/budget"
	"github.com/codefionn/modelgate/internal/config"
	"github.com/codefionn/modelgate/internal/history"
	"github.com/codefionn/modelgate/internal/llm"
	"github.com/codefionn/modelgate/internal/logger"
	"github.com/codefionn/modelgate/internal/orchestrator"
	"github.com/codefionn/modelgate/internal/quota"
	"github.com/codefionn/modelgate/internal/rag"
	"github.com/codefionn/modelgate/internal/store"
)

// Deps are the collaborators the server routes requests to.
type Deps struct {
	Client       llm.Client
	Counter      *budget.Counter
	Store        store.Store
	History      *history.Manager
	Orchestrator *orchestrator.Orchestrator
	Gate         *approval.Gate
	Quota        quota.Reader
	Retriever    rag.Retriever
}

// Server provides the HTTP interface for the gateway
type Server struct {
	mu     sync.RWMutex
	cfg    *config.Config
	deps   Deps
	router *httprouter.Router
	server *http.Server
	log    *logger.Logger
}

// NewServer creates a new gateway server
func NewServer(cfg *config.Config, deps Deps) *Server {
	if deps.Quota == nil {
		deps.Quota = quota.NewStaticReader(nil)
	}
	if deps.Retriever == nil {
		deps.Retriever = rag.NoopRetriever{}
	}

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		router: httprouter.New(),
		log:    logger.Global().WithPrefix("server"),
	}

	s.setupRoutes()
	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    s.config().ListenAddr,
		Handler: s.router,
	}

	s.log.Info("listening on %s", s.server.Addr)
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// UpdateConfig swaps the active configuration. Requests already in flight
// keep the settings they started with.
func (s *Server) UpdateConfig(cfg *config.Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

func (s *Server) config() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	s.router.POST("/v1/query", s.handleQuery)
	s.router.POST("/v1/streaming_query", s.handleStreamingQuery)
	s.router.POST("/v1/approvals/:id", s.handleApproval)

	s.router.GET("/v1/conversations/:id", s.handleConversationGet)
	s.router.DELETE("/v1/conversations/:id", s.handleConversationDelete)
}
