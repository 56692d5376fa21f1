package services

import (
	"testing"
	"time"

	"github.com/go-tollgate/tollgate/internal/models"
	"github.com/go-tollgate/tollgate/internal/oauth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (ts *testServices) issueGrant(t *testing.T, fixture *clientFixture, identity, scope string) *models.AccessGrant {
	t.Helper()
	client, err := ts.store.GetClient(fixture.ID)
	require.NoError(t, err)
	grant, err := ts.grants.Create(identity, client, scope, fixture.RedirectURI, 5*time.Minute)
	require.NoError(t, err)
	return grant
}

func TestGrantCreate(t *testing.T) {
	ts := newTestServices(t)
	fixture := ts.registerClient(t, "read write")

	t.Run("Success", func(t *testing.T) {
		grant := ts.issueGrant(t, fixture, "alice", "read")
		assert.Len(t, grant.Code, 64)
		assert.Equal(t, "read", grant.Scope)
		assert.False(t, grant.IsExpired())
	})

	t.Run("ScopeIntersectedWithClientScope", func(t *testing.T) {
		client, err := ts.store.GetClient(fixture.ID)
		require.NoError(t, err)
		grant, err := ts.grants.Create("alice", client, "read admin", fixture.RedirectURI, 5*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, "read", grant.Scope)
	})

	t.Run("RequiresIdentity", func(t *testing.T) {
		client, err := ts.store.GetClient(fixture.ID)
		require.NoError(t, err)
		_, err = ts.grants.Create("", client, "read", fixture.RedirectURI, 5*time.Minute)
		assert.ErrorIs(t, err, oauth.ErrInvalidRequest)
	})
}

func TestGrantAuthorize(t *testing.T) {
	ts := newTestServices(t)
	fixture := ts.registerClient(t, "read write")

	t.Run("Success", func(t *testing.T) {
		grant := ts.issueGrant(t, fixture, "alice", "read")

		token, err := ts.grants.Authorize(grant.Code, fixture.RedirectURI, 0)
		require.NoError(t, err)
		assert.Equal(t, "alice", token.Identity)
		assert.Equal(t, "read", token.Scope)
	})

	t.Run("SecondRedemptionFails", func(t *testing.T) {
		grant := ts.issueGrant(t, fixture, "bob", "read")

		_, err := ts.grants.Authorize(grant.Code, fixture.RedirectURI, 0)
		require.NoError(t, err)

		_, err = ts.grants.Authorize(grant.Code, fixture.RedirectURI, 0)
		assert.ErrorIs(t, err, oauth.ErrInvalidGrant)
	})

	t.Run("UnknownCode", func(t *testing.T) {
		_, err := ts.grants.Authorize("no-such-code", fixture.RedirectURI, 0)
		assert.ErrorIs(t, err, oauth.ErrInvalidGrant)
	})

	t.Run("ExpiredGrant", func(t *testing.T) {
		client, err := ts.store.GetClient(fixture.ID)
		require.NoError(t, err)
		grant, err := ts.grants.Create("carol", client, "read", fixture.RedirectURI, -time.Minute)
		require.NoError(t, err)

		_, err = ts.grants.Authorize(grant.Code, fixture.RedirectURI, 0)
		assert.ErrorIs(t, err, oauth.ErrInvalidGrant)
	})

	t.Run("RedirectURIMismatch", func(t *testing.T) {
		grant := ts.issueGrant(t, fixture, "dave", "read")

		_, err := ts.grants.Authorize(grant.Code, "https://evil.example.com/callback", 0)
		assert.ErrorIs(t, err, oauth.ErrInvalidGrant)
	})

	t.Run("RevokedGrant", func(t *testing.T) {
		grant := ts.issueGrant(t, fixture, "erin", "read")
		require.NoError(t, ts.grants.Revoke(grant.Code))

		_, err := ts.grants.Authorize(grant.Code, fixture.RedirectURI, 0)
		assert.ErrorIs(t, err, oauth.ErrInvalidGrant)
	})

	t.Run("RevokedClient", func(t *testing.T) {
		other := ts.registerClient(t, "read")
		grant := ts.issueGrant(t, other, "frank", "read")
		require.NoError(t, ts.clients.Revoke(other.ID))

		_, err := ts.grants.Authorize(grant.Code, other.RedirectURI, 0)
		assert.ErrorIs(t, err, oauth.ErrInvalidGrant)
	})

	t.Run("ReusesExistingTokenForTriple", func(t *testing.T) {
		existing, err := ts.tokens.GetOrCreate("grace", fixture.ID, "read", "password", 0)
		require.NoError(t, err)

		grant := ts.issueGrant(t, fixture, "grace", "read")
		token, err := ts.grants.Authorize(grant.Code, fixture.RedirectURI, 0)
		require.NoError(t, err)
		assert.Equal(t, existing.Token, token.Token)
	})
}
