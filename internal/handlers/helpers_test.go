package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-tollgate/tollgate/internal/config"
	"github.com/go-tollgate/tollgate/internal/metrics"
	"github.com/go-tollgate/tollgate/internal/models"
	"github.com/go-tollgate/tollgate/internal/services"
	"github.com/go-tollgate/tollgate/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type testApp struct {
	router  *gin.Engine
	store   *store.Store
	config  *config.Config
	clients *services.ClientService
	tokens  *services.TokenService
	grants  *services.GrantService
}

type appOption func(*RouterOptions)

func withConsentURL(u string) appOption {
	return func(opts *RouterOptions) { opts.ConsentURL = u }
}

func withAuthenticator(a Authenticator) appOption {
	return func(opts *RouterOptions) { opts.Authenticator = a }
}

func withAccessTokenTTL(ttl time.Duration) appOption {
	return func(opts *RouterOptions) { opts.Config.AccessTokenTTL = ttl }
}

func newTestApp(t *testing.T, options ...appOption) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", filepath.Join(t.TempDir(), "test.db"))
	s, err := store.New("sqlite", dsn)
	require.NoError(t, err)

	cfg := &config.Config{
		ServerAddr:             ":8080",
		BaseURL:                "https://auth.example.com",
		AuthorizePath:          "/oauth/authorize",
		AccessTokenPath:        "/oauth/access_token",
		SupportedResponseTypes: []string{"code", "token"},
		GrantTTL:               5 * time.Minute,
	}

	opts := RouterOptions{Config: cfg, Store: s}
	for _, option := range options {
		option(&opts)
	}
	router, err := NewRouter(opts)
	require.NoError(t, err)

	m := metrics.NewNoopMetrics()
	clients := services.NewClientService(s, m)
	tokens := services.NewTokenService(s, m)
	grants := services.NewGrantService(s, tokens, m)

	return &testApp{
		router:  router,
		store:   s,
		config:  cfg,
		clients: clients,
		tokens:  tokens,
		grants:  grants,
	}
}

func (app *testApp) registerClient(t *testing.T, scope string) *models.Client {
	t.Helper()
	client, err := app.clients.Register(services.ClientRegistration{
		DisplayName: "Handler Test App",
		Link:        "https://app.example.com",
		RedirectURI: "https://app.example.com/callback",
		Scope:       scope,
	})
	require.NoError(t, err)
	return client
}

func (app *testApp) issueGrant(t *testing.T, client *models.Client, identity, scope string) *models.AccessGrant {
	t.Helper()
	grant, err := app.grants.Create(identity, client, scope, client.RedirectURI, 5*time.Minute)
	require.NoError(t, err)
	return grant
}

// postToken posts a form to the token endpoint with Basic client
// authentication.
func (app *testApp) postToken(t *testing.T, client *models.Client, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, app.config.AccessTokenPath, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if client != nil {
		req.SetBasicAuth(client.ID, client.Secret)
	}
	app.router.ServeHTTP(w, req)
	return w
}

func (app *testApp) get(t *testing.T, path, authorization string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	app.router.ServeHTTP(w, req)
	return w
}
