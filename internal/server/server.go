// Package server exposes the pipeline over a thin JSON HTTP API:
// upload, background analysis with status polling, projection reads,
// chat and campaign management. Handlers do transport work only; all
// behavior lives in the service packages.
package server

import (
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/churnlabs/churnguard/internal/analysis"
	"github.com/churnlabs/churnguard/internal/campaign"
	"github.com/churnlabs/churnguard/internal/ingest"
	"github.com/churnlabs/churnguard/internal/nlq"
	"github.com/churnlabs/churnguard/internal/projection"
	"github.com/churnlabs/churnguard/internal/storage"
)

// defaultUserID backs requests without tenant identification; real
// authentication fronts this service.
const defaultUserID = "demo_user"

// AgentFactory builds a fresh query agent for a tenant.
type AgentFactory func() *nlq.Agent

type Server struct {
	store           storage.Store
	validator       *ingest.Validator
	headerValidator *analysis.HeaderValidator
	runner          *analysis.Runner
	projections     *projection.Builder
	campaigns       *campaign.Builder
	newAgent        AgentFactory
	logger          *zap.Logger

	agentsMu sync.Mutex
	agents   map[string]*nlq.Agent
}

func New(
	store storage.Store,
	validator *ingest.Validator,
	headerValidator *analysis.HeaderValidator,
	runner *analysis.Runner,
	projections *projection.Builder,
	campaigns *campaign.Builder,
	newAgent AgentFactory,
	logger *zap.Logger,
) *Server {
	return &Server{
		store:           store,
		validator:       validator,
		headerValidator: headerValidator,
		runner:          runner,
		projections:     projections,
		campaigns:       campaigns,
		newAgent:        newAgent,
		logger:          logger,
		agents:          make(map[string]*nlq.Agent),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/upload", s.handleUpload)
		r.Post("/analyze", s.handleAnalyze)
		r.Get("/analysis/status", s.handleAnalysisStatus)
		r.Get("/analysis/latest", s.handleLatestAnalysis)
		r.Get("/projection", s.handleProjection)
		r.Post("/chat", s.handleChat)
		r.Post("/campaigns", s.handleCreateCampaign)
		r.Get("/campaigns", s.handleListCampaigns)
		r.Get("/limits", s.handleLimits)
		r.Post("/reset", s.handleReset)
	})

	return r
}

func userID(r *http.Request) string {
	if id := r.Header.Get("X-User-ID"); id != "" {
		return id
	}
	return defaultUserID
}

// agentFor returns the tenant's query agent, creating it on first use.
func (s *Server) agentFor(user string) *nlq.Agent {
	s.agentsMu.Lock()
	defer s.agentsMu.Unlock()
	agent, ok := s.agents[user]
	if !ok {
		agent = s.newAgent()
		s.agents[user] = agent
	}
	return agent
}
