package handlers

import (
	"net/http"

	"github.com/go-tollgate/tollgate/internal/config"
	"github.com/go-tollgate/tollgate/internal/metrics"
	"github.com/go-tollgate/tollgate/internal/middleware"
	"github.com/go-tollgate/tollgate/internal/services"
	"github.com/go-tollgate/tollgate/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterOptions collects everything the HTTP surface needs.
type RouterOptions struct {
	Config        *config.Config
	Store         *store.Store
	Metrics       metrics.Recorder
	Authenticator Authenticator
	// ConsentURL is where the authorization endpoint sends users for
	// consent; empty means the pending request is described as JSON.
	ConsentURL string
	// Extra assertion types beyond JWT bearer.
	AssertionHandlers map[string]services.AssertionHandler
}

// NewRouter builds the gin engine with the OAuth endpoints, the
// administration API, and resource protection on everything else.
func NewRouter(opts RouterOptions) (*gin.Engine, error) {
	cfg := opts.Config
	m := opts.Metrics
	if m == nil {
		m = metrics.NewNoopMetrics()
	}

	clients := services.NewClientService(opts.Store, m)
	tokens := services.NewTokenService(opts.Store, m)
	grants := services.NewGrantService(opts.Store, tokens, m)
	authorize := services.NewAuthorizationService(
		opts.Store, clients, grants, tokens, m,
		cfg.SupportedResponseTypes, cfg.GrantTTL, cfg.AccessTokenTTL,
	)
	assertions := services.NewAssertionService(opts.Store, cfg.BaseURL+cfg.AccessTokenPath)
	for assertionType, handler := range opts.AssertionHandlers {
		assertions.RegisterHandler(assertionType, handler)
	}

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(metrics.HTTPMetricsMiddleware(m))

	if cfg.RateLimitEnabled {
		limit, err := middleware.NewRateLimiter(middleware.RateLimitConfig{
			Period:    cfg.RateLimitPeriod,
			Limit:     cfg.RateLimitCount,
			RedisAddr: cfg.RedisAddr,
		})
		if err != nil {
			return nil, err
		}
		router.Use(limit)
	}

	realm := cfg.RealmOrDefault()
	router.Use(middleware.ResourceProtection(tokens, middleware.ResourceOptions{
		Realm:               realm,
		ParamAuthentication: cfg.ParamAuthentication,
		RestrictedPaths:     cfg.RestrictedPaths,
		SkipPaths:           []string{cfg.AuthorizePath, cfg.AccessTokenPath, "/health", "/metrics"},
	}))

	authorization := NewAuthorizationHandler(authorize, clients, cfg, opts.ConsentURL)
	router.GET(cfg.AuthorizePath, authorization.Authorize)
	router.POST(cfg.AuthorizePath, authorization.Authorize)
	router.GET(cfg.AuthorizePath+"/show", authorization.Show)
	router.POST(cfg.AuthorizePath+"/decision", authorization.Decision)

	token := NewTokenHandler(clients, tokens, grants, assertions, opts.Authenticator, cfg)
	router.Any(cfg.AccessTokenPath, token.Token)

	admin := NewAdminHandler(clients, tokens, assertions)
	adminGroup := router.Group("/oauth/admin", middleware.RequireScope(AdminScope, realm))
	{
		adminGroup.GET("/clients", admin.ListClients)
		adminGroup.POST("/clients", admin.CreateClient)
		adminGroup.GET("/clients/:id", admin.GetClient)
		adminGroup.PUT("/clients/:id", admin.UpdateClient)
		adminGroup.DELETE("/clients/:id", admin.DeleteClient)
		adminGroup.POST("/clients/:id/revoke", admin.RevokeClient)

		adminGroup.GET("/tokens", admin.ListTokens)
		adminGroup.POST("/tokens/:token/revoke", admin.RevokeToken)
		adminGroup.GET("/stats/tokens", admin.TokenStats)
		adminGroup.GET("/stats/tokens/history", admin.TokenHistory)

		adminGroup.GET("/issuers", admin.ListIssuers)
		adminGroup.GET("/issuer", admin.GetIssuer)
		adminGroup.PUT("/issuers", admin.SaveIssuer)
	}

	router.GET("/health", func(c *gin.Context) {
		if err := opts.Store.Health(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if cfg.MetricsEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	return router, nil
}
