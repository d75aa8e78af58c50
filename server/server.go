package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-token-exchange/auth"
	"github.com/jrsteele09/go-token-exchange/internal/config"
	apperrors "github.com/jrsteele09/go-token-exchange/internal/errors"
	"github.com/jrsteele09/go-token-exchange/oauth2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type Server struct {
	env     string // Environment (e.g. "DEV", "prod")
	mux     *http.ServeMux
	routes  []string
	config  config.Config
	auth    *auth.AuthorizationService
	limiter *RateLimiter // nil when rate limiting is disabled
	proxies oauth2.TrustedProxies
}

func New(config config.Config, authService *auth.AuthorizationService) (*Server, error) {
	if authService == nil {
		return nil, errors.New("[Server New] authorization service is required")
	}

	proxies, err := oauth2.ParseTrustedProxies(config.GetTrustedProxies())
	if err != nil {
		return nil, apperrors.ConfigError("TRUSTED_PROXIES: %v", err)
	}

	s := &Server{
		env:     config.GetEnv(),
		mux:     http.NewServeMux(),
		config:  config,
		auth:    authService,
		proxies: proxies,
	}
	if config.GetEnableRateLimiting() {
		s.limiter = NewRateLimiter(config.GetRateLimitPerMinute())
	}

	s.initRoutes()
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

func (s *Server) isDev() bool {
	return strings.EqualFold(s.env, "DEV")
}

func (s *Server) logRoutes() {
	if !s.isDev() {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	log.Debug().Msg(fmt.Sprintf("[%-19s] %s", colouredMethod(method), path))
}

func logError(method, path, message string) {
	log.Warn().Msg(fmt.Sprintf("[%-19s] %s %s", colouredMethod(method), path, Red+message+ResetColor))
}

func colouredMethod(method string) string {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		return color + paddedMethod + ResetColor
	}
	return Gray + paddedMethod + ResetColor
}
