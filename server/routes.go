package server

import (
	"net/http"

	"github.com/pressline/go-content-server/token"
)

const (
	RouteHealth  = "/healthz"
	RouteGraphQL = "/graphql"

	RouteAdminTokens        = "/admin/tokens"
	RouteAdminTokenInfo     = "/admin/tokens/{id}"
	RouteAdminTokensRotate  = "/admin/tokens/rotate"
	RouteAdminTokensCleanup = "/admin/tokens/cleanup"
)

func (s *Server) initRoutes(graphql http.Handler) {
	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())

	// GraphQL content API, any valid token
	s.RegisterRouteHandler("POST "+RouteGraphQL, ChainMiddleware(graphql.ServeHTTP, s.APIMiddleware(s.RequireToken())...))
	if s.config.IsDev() {
		// GraphiQL playground
		s.RegisterRouteHandler("GET "+RouteGraphQL, ChainMiddleware(graphql.ServeHTTP, s.APIMiddleware(s.RequireToken())...))
	}

	// Token administration, restricted to full-ability tokens
	admin := s.APIMiddleware(s.RequireToken(), s.RequireAbility(token.AbilityAll))
	s.RegisterRouteHandler("POST "+RouteAdminTokens, ChainMiddleware(s.CreateTokenHandler(), admin...))
	s.RegisterRouteHandler("GET "+RouteAdminTokens, ChainMiddleware(s.ListTokensHandler(), admin...))
	s.RegisterRouteHandler("DELETE "+RouteAdminTokens, ChainMiddleware(s.RevokeTokenHandler(), admin...))
	s.RegisterRouteHandler("POST "+RouteAdminTokensRotate, ChainMiddleware(s.RotateTokenHandler(), admin...))
	s.RegisterRouteHandler("POST "+RouteAdminTokensCleanup, ChainMiddleware(s.CleanupTokensHandler(), admin...))
	s.RegisterRouteHandler("GET "+RouteAdminTokenInfo, ChainMiddleware(s.TokenInfoHandler(), admin...))
}
