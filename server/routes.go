package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) initRoutes() {
	// OpenID Connect
	s.RegisterRouteHandler("GET "+RouteWellKnownOpenIDConfig, ChainMiddleware(s.WellKnownOpenIDConfig(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteCerts, ChainMiddleware(s.JWKS(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteToken, ChainMiddleware(s.Token(), s.TokenMiddleware()...))
	s.RegisterRouteHandler("OPTIONS "+RouteWellKnownOpenIDConfig, ChainMiddleware(noContent, s.APIMiddleware()...))
	s.RegisterRouteHandler("OPTIONS "+RouteCerts, ChainMiddleware(noContent, s.APIMiddleware()...))

	// Account (bearer access token of the realm; the user is the token subject)
	s.RegisterRouteHandler("GET "+RouteAccountApplications, ChainMiddleware(s.GrantedApplications(), s.APIMiddleware(s.RequireAuth)...))
	s.RegisterRouteHandler("DELETE "+RouteAccountApplication, ChainMiddleware(s.RevokeGrant(), s.APIMiddleware(s.RequireAuth)...))

	// Operations
	s.RegisterRouteHandler("GET "+RouteMetrics, promhttp.Handler())
	s.RegisterRouteFunc("GET "+RouteHealth, s.Health())
}

func noContent(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
