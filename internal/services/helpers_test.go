package services

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-tollgate/tollgate/internal/metrics"
	"github.com/go-tollgate/tollgate/internal/store"

	"github.com/stretchr/testify/require"
)

const testAudience = "https://auth.example.com/oauth/access_token"

type testServices struct {
	store      *store.Store
	clients    *ClientService
	tokens     *TokenService
	grants     *GrantService
	authorize  *AuthorizationService
	assertions *AssertionService
}

func newTestServices(t *testing.T) *testServices {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", filepath.Join(t.TempDir(), "test.db"))
	s, err := store.New("sqlite", dsn)
	require.NoError(t, err)

	m := metrics.NewNoopMetrics()
	clients := NewClientService(s, m)
	tokens := NewTokenService(s, m)
	grants := NewGrantService(s, tokens, m)
	authorize := NewAuthorizationService(
		s, clients, grants, tokens, m,
		[]string{"code", "token"}, 5*time.Minute, 0,
	)
	assertions := NewAssertionService(s, testAudience)

	return &testServices{
		store:      s,
		clients:    clients,
		tokens:     tokens,
		grants:     grants,
		authorize:  authorize,
		assertions: assertions,
	}
}

func (ts *testServices) registerClient(t *testing.T, scope string) *clientFixture {
	t.Helper()
	client, err := ts.clients.Register(ClientRegistration{
		DisplayName: "Fixture App",
		Link:        "https://app.example.com",
		RedirectURI: "https://app.example.com/callback",
		Scope:       scope,
	})
	require.NoError(t, err)
	return &clientFixture{ID: client.ID, Secret: client.Secret, RedirectURI: client.RedirectURI}
}

type clientFixture struct {
	ID          string
	Secret      string
	RedirectURI string
}
