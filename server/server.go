package server

import (
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/pressline/go-content-server/articles"
	"github.com/pressline/go-content-server/campaigns"
	"github.com/pressline/go-content-server/internal/config"
	"github.com/pressline/go-content-server/token"
	"github.com/pressline/go-content-server/users"
)

// Services bundles the domain collaborators the HTTP surface exposes.
type Services struct {
	Tokens    *token.Manager
	Users     users.Repo
	Articles  *articles.Service
	Campaigns *campaigns.Service
}

type Server struct {
	env    string
	mux    *http.ServeMux
	routes []string
	config config.Config
	logger zerolog.Logger

	tokens    *token.Manager
	users     users.Repo
	articles  *articles.Service
	campaigns *campaigns.Service

	nowFunc func() time.Time
}

type Option func(*Server)

// WithNowFunc overrides the clock used by the usage-stamp throttle, used in tests.
func WithNowFunc(now func() time.Time) Option {
	return func(s *Server) {
		s.nowFunc = now
	}
}

func New(cfg config.Config, services Services, logger zerolog.Logger, options ...Option) (*Server, error) {
	s := &Server{
		mux:       http.NewServeMux(),
		env:       cfg.Env,
		config:    cfg,
		logger:    logger,
		tokens:    services.Tokens,
		users:     services.Users,
		articles:  services.Articles,
		campaigns: services.Campaigns,
	}
	for _, opt := range options {
		opt(s)
	}
	if s.nowFunc == nil {
		s.nowFunc = time.Now
	}

	graphqlHandler, err := s.graphqlHandler()
	if err != nil {
		return nil, errors.Wrap(err, "[Server New] failed to build graphql schema")
	}

	s.initRoutes(graphqlHandler)
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	for _, route := range s.routes {
		s.logger.Debug().Str("route", route).Msg("registered route")
	}
}

// HealthHandler reports liveness. No authentication on purpose.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "app": s.config.AppName})
	}
}
