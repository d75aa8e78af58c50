package server

// Route path constants. {realm} is the realm id.
const (
	RouteRealmPrefix = "/realms/{realm}"

	// OpenID Connect
	RouteWellKnownOpenIDConfig = RouteRealmPrefix + "/.well-known/openid-configuration"
	RouteOIDCPrefix            = RouteRealmPrefix + "/protocol/openid-connect"
	RouteToken                 = RouteOIDCPrefix + "/token"
	RouteCerts                 = RouteOIDCPrefix + "/certs"
	RouteAuth                  = RouteOIDCPrefix + "/auth"

	// Account
	RouteAccountApplications = RouteRealmPrefix + "/account/applications"
	RouteAccountApplication  = RouteAccountApplications + "/{client}"

	// Operations
	RouteMetrics = "/metrics"
	RouteHealth  = "/health"
)
