package services

import (
	"testing"

	"github.com/go-tollgate/tollgate/internal/oauth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientRegister(t *testing.T) {
	ts := newTestServices(t)

	t.Run("GeneratesIDAndSecret", func(t *testing.T) {
		client, err := ts.clients.Register(ClientRegistration{
			DisplayName: "My App",
			Link:        "https://myapp.example.com",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, client.ID)
		assert.Len(t, client.Secret, 64)
	})

	t.Run("RequiresNameAndLink", func(t *testing.T) {
		_, err := ts.clients.Register(ClientRegistration{DisplayName: "No Link"})
		assert.ErrorIs(t, err, oauth.ErrInvalidRequest)
	})

	t.Run("RejectsRelativeRedirectURI", func(t *testing.T) {
		_, err := ts.clients.Register(ClientRegistration{
			DisplayName: "Bad Redirect",
			Link:        "https://bad.example.com",
			RedirectURI: "/callback",
		})
		assert.ErrorIs(t, err, oauth.ErrInvalidRequest)
	})

	t.Run("NormalizesScope", func(t *testing.T) {
		client, err := ts.clients.Register(ClientRegistration{
			DisplayName: "Scoped App",
			Link:        "https://scoped.example.com",
			Scope:       "write  read write",
		})
		require.NoError(t, err)
		assert.Equal(t, "read write", client.Scope)
	})
}

func TestClientAuthenticate(t *testing.T) {
	ts := newTestServices(t)
	fixture := ts.registerClient(t, "read write")

	t.Run("Success", func(t *testing.T) {
		client, err := ts.clients.Authenticate(fixture.ID, fixture.Secret)
		require.NoError(t, err)
		assert.Equal(t, fixture.ID, client.ID)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		_, err := ts.clients.Authenticate(fixture.ID, "wrong")
		assert.ErrorIs(t, err, oauth.ErrInvalidClient)
	})

	t.Run("UnknownClient", func(t *testing.T) {
		_, err := ts.clients.Authenticate("nope", "secret")
		assert.ErrorIs(t, err, oauth.ErrInvalidClient)
	})

	t.Run("RevokedClient", func(t *testing.T) {
		revoked := ts.registerClient(t, "")
		require.NoError(t, ts.clients.Revoke(revoked.ID))

		_, err := ts.clients.Authenticate(revoked.ID, revoked.Secret)
		assert.ErrorIs(t, err, oauth.ErrInvalidClient)
	})
}

func TestClientRevokeCascadesToTokens(t *testing.T) {
	ts := newTestServices(t)
	fixture := ts.registerClient(t, "read")

	token, err := ts.tokens.GetOrCreate("alice", fixture.ID, "read", "password", 0)
	require.NoError(t, err)

	require.NoError(t, ts.clients.Revoke(fixture.ID))

	_, err = ts.tokens.FromToken(token.Token)
	assert.ErrorIs(t, err, oauth.ErrInvalidToken)
}
