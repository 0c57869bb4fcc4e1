// Package server exposes the scheduler, analytics loop and draft pipeline
// over HTTP: cron triggers guarded by a bearer secret, authoring and admin
// endpoints guarded by an admin session, a websocket feed of run reports,
// and a gRPC health service.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"

	"github.com/teranos/postpulse/auth"
	"github.com/teranos/postpulse/content"
	"github.com/teranos/postpulse/generation"
	"github.com/teranos/postpulse/logger"
	"github.com/teranos/postpulse/pulse/analytics"
	"github.com/teranos/postpulse/pulse/posting"
)

// AnalyticsRunner runs one snapshot pass.
type AnalyticsRunner interface {
	Run(ctx context.Context) (*analytics.Report, error)
}

// ContentStore is the content repository the admin endpoints write to.
type ContentStore interface {
	CreateAccount(ctx context.Context, a *content.Account) error
	CreateItem(ctx context.Context, item *content.Item) error
	GetItem(ctx context.Context, id string) (*content.Item, error)
}

// JobStore creates and lists posting jobs.
type JobStore interface {
	CreateJob(ctx context.Context, job *posting.Job) error
	ListJobs(ctx context.Context, status *posting.JobStatus, limit int) ([]posting.Job, error)
}

// Deps are the services the server routes to. Nil services disable the
// routes that need them (503).
type Deps struct {
	Auth      *auth.Service
	Posting   posting.Invoker
	Options   posting.Options // defaults for cron runs
	Analytics AnalyticsRunner
	Pipeline  *generation.Pipeline
	Content   ContentStore
	Jobs      JobStore

	AllowedOrigins []string
}

// Server is the postpulse HTTP surface.
type Server struct {
	deps   Deps
	router chi.Router
	hub    *Hub
	log    *zap.SugaredLogger

	health     *health.Server
	httpServer *http.Server
	grpcServer *grpc.Server

	wg       sync.WaitGroup
	started  time.Time
	shutdown time.Duration
}

// New builds the router. Call Start to listen.
func New(deps Deps, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = logger.ComponentLogger("server")
	}
	s := &Server{
		deps:     deps,
		hub:      NewHub(deps.AllowedOrigins, log.Named("live")),
		log:      log,
		health:   health.NewServer(),
		started:  time.Now(),
		shutdown: 10 * time.Second,
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the live-feed hub. Pass it to the posting ticker so ticker
// runs reach subscribers.
func (s *Server) Hub() *Hub {
	return s.hub
}
