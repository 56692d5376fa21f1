package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-tollgate/tollgate/internal/models"
	"github.com/go-tollgate/tollgate/internal/oauth"
	"github.com/go-tollgate/tollgate/internal/services"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	Scope            string `json:"scope"`
	ExpiresIn        int64  `json:"expires_in"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func decodeToken(t *testing.T, w *httptest.ResponseRecorder) tokenResponse {
	t.Helper()
	var resp tokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestTokenEndpointMethodAndClientAuth(t *testing.T) {
	app := newTestApp(t)
	client := app.registerClient(t, "read write")

	t.Run("GetIsMethodNotAllowed", func(t *testing.T) {
		w := app.get(t, app.config.AccessTokenPath, "")
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
		assert.Equal(t, http.MethodPost, w.Header().Get("Allow"))
	})

	t.Run("MissingClient", func(t *testing.T) {
		w := app.postToken(t, nil, url.Values{"grant_type": {"none"}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid_request", decodeToken(t, w).Error)
	})

	t.Run("BadSecretWithBasicGetsChallenge", func(t *testing.T) {
		w := httptest.NewRecorder()
		form := url.Values{"grant_type": {"none"}}
		req := httptest.NewRequest(http.MethodPost, app.config.AccessTokenPath, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.SetBasicAuth(client.ID, "wrong")
		app.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		header := w.Header().Get("WWW-Authenticate")
		assert.Contains(t, header, `OAuth realm="auth.example.com"`)
		assert.Contains(t, header, `error="invalid_client"`)
	})

	t.Run("BadSecretInFormGetsPlainError", func(t *testing.T) {
		w := httptest.NewRecorder()
		form := url.Values{
			"grant_type":    {"none"},
			"client_id":     {client.ID},
			"client_secret": {"wrong"},
		}
		req := httptest.NewRequest(http.MethodPost, app.config.AccessTokenPath, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		app.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Empty(t, w.Header().Get("WWW-Authenticate"))
		assert.Equal(t, "invalid_client", decodeToken(t, w).Error)
	})

	t.Run("CredentialsInQuery", func(t *testing.T) {
		w := httptest.NewRecorder()
		path := app.config.AccessTokenPath + "?client_id=" + client.ID + "&client_secret=" + client.Secret
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader("grant_type=none"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		app.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, decodeToken(t, w).AccessToken)
	})

	t.Run("UnsupportedGrantType", func(t *testing.T) {
		w := app.postToken(t, client, url.Values{"grant_type": {"refresh_token"}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "unsupported_grant_type", decodeToken(t, w).Error)
	})
}

func TestTokenEndpointAuthorizationCode(t *testing.T) {
	app := newTestApp(t)
	client := app.registerClient(t, "read write")

	t.Run("Exchange", func(t *testing.T) {
		grant := app.issueGrant(t, client, "alice", "read")

		w := app.postToken(t, client, url.Values{
			"grant_type":   {"authorization_code"},
			"code":         {grant.Code},
			"redirect_uri": {client.RedirectURI},
		})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
		assert.Equal(t, "no-cache", w.Header().Get("Pragma"))

		resp := decodeToken(t, w)
		assert.NotEmpty(t, resp.AccessToken)
		assert.Equal(t, "read", resp.Scope)
	})

	t.Run("CodeIsSingleUse", func(t *testing.T) {
		grant := app.issueGrant(t, client, "bob", "read")
		form := url.Values{
			"grant_type":   {"authorization_code"},
			"code":         {grant.Code},
			"redirect_uri": {client.RedirectURI},
		}

		w := app.postToken(t, client, form)
		require.Equal(t, http.StatusOK, w.Code)

		w = app.postToken(t, client, form)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeToken(t, w)
		assert.Equal(t, "invalid_grant", resp.Error)
		assert.Equal(t, "This access grant is no longer valid.", resp.ErrorDescription)
	})

	t.Run("MissingCode", func(t *testing.T) {
		w := app.postToken(t, client, url.Values{"grant_type": {"authorization_code"}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid_request", decodeToken(t, w).Error)
	})

	t.Run("CodeBelongsToOtherClient", func(t *testing.T) {
		other, err := app.clients.Register(services.ClientRegistration{
			DisplayName: "Other App",
			Link:        "https://other.example.com",
		})
		require.NoError(t, err)
		grant := app.issueGrant(t, client, "carol", "read")

		w := app.postToken(t, other, url.Values{
			"grant_type":   {"authorization_code"},
			"code":         {grant.Code},
			"redirect_uri": {client.RedirectURI},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid_grant", decodeToken(t, w).Error)
	})
}

func TestTokenEndpointPassword(t *testing.T) {
	authenticator := func(username, password, clientID, scope string) (string, error) {
		if username == "alice" && password == "open-sesame" {
			return "alice", nil
		}
		return "", oauth.ErrInvalidGrant
	}

	t.Run("Success", func(t *testing.T) {
		app := newTestApp(t, withAuthenticator(authenticator))
		client := app.registerClient(t, "read write")

		w := app.postToken(t, client, url.Values{
			"grant_type": {"password"},
			"username":   {"alice"},
			"password":   {"open-sesame"},
			"scope":      {"read"},
		})
		require.Equal(t, http.StatusOK, w.Code)
		resp := decodeToken(t, w)
		assert.NotEmpty(t, resp.AccessToken)
		assert.Equal(t, "read", resp.Scope)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		app := newTestApp(t, withAuthenticator(authenticator))
		client := app.registerClient(t, "read")

		w := app.postToken(t, client, url.Values{
			"grant_type": {"password"},
			"username":   {"alice"},
			"password":   {"wrong"},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid_grant", decodeToken(t, w).Error)
	})

	t.Run("ScopeOutsideClient", func(t *testing.T) {
		app := newTestApp(t, withAuthenticator(authenticator))
		client := app.registerClient(t, "read")

		w := app.postToken(t, client, url.Values{
			"grant_type": {"password"},
			"username":   {"alice"},
			"password":   {"open-sesame"},
			"scope":      {"admin"},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid_scope", decodeToken(t, w).Error)
	})

	t.Run("DisabledWithoutAuthenticator", func(t *testing.T) {
		app := newTestApp(t)
		client := app.registerClient(t, "read")

		w := app.postToken(t, client, url.Values{
			"grant_type": {"password"},
			"username":   {"alice"},
			"password":   {"open-sesame"},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "unsupported_grant_type", decodeToken(t, w).Error)
	})
}

func TestTokenEndpointClientGrant(t *testing.T) {
	app := newTestApp(t)
	client := app.registerClient(t, "read")

	t.Run("NoneMintsFreshTokens", func(t *testing.T) {
		first := decodeToken(t, app.postToken(t, client, url.Values{"grant_type": {"none"}}))
		second := decodeToken(t, app.postToken(t, client, url.Values{"grant_type": {"none"}}))
		assert.NotEmpty(t, first.AccessToken)
		assert.NotEmpty(t, second.AccessToken)
		assert.NotEqual(t, first.AccessToken, second.AccessToken)
	})

	t.Run("ClientCredentialsAlias", func(t *testing.T) {
		w := app.postToken(t, client, url.Values{
			"grant_type": {"client_credentials"},
			"scope":      {"read"},
		})
		require.Equal(t, http.StatusOK, w.Code)
		resp := decodeToken(t, w)
		assert.Equal(t, "read", resp.Scope)

		// The token belongs to the client itself.
		token, err := app.tokens.FromToken(resp.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, client.ID, token.Identity)
	})
}

func TestTokenEndpointJWTBearer(t *testing.T) {
	app := newTestApp(t)
	client := app.registerClient(t, "read")

	issuer := &models.Issuer{
		Identifier: "https://idp.example.com",
		HMACSecret: "idp-secret",
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	require.NoError(t, app.store.CreateIssuer(issuer))

	sign := func(claims jwt.MapClaims) string {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		signed, err := token.SignedString([]byte("idp-secret"))
		require.NoError(t, err)
		return signed
	}
	audience := app.config.BaseURL + app.config.AccessTokenPath

	t.Run("Success", func(t *testing.T) {
		assertion := sign(jwt.MapClaims{
			"iss": issuer.Identifier,
			"aud": audience,
			"prn": "dave@example.com",
			"exp": time.Now().Add(time.Minute).Unix(),
		})

		w := app.postToken(t, client, url.Values{
			"grant_type": {"urn:ietf:params:oauth:grant-type:jwt-bearer"},
			"assertion":  {assertion},
			"scope":      {"read"},
		})
		require.Equal(t, http.StatusOK, w.Code)

		token, err := app.tokens.FromToken(decodeToken(t, w).AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "dave@example.com", token.Identity)
	})

	t.Run("BadSignature", func(t *testing.T) {
		forged := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"iss": issuer.Identifier,
			"aud": audience,
			"prn": "dave@example.com",
			"exp": time.Now().Add(time.Minute).Unix(),
		})
		signed, err := forged.SignedString([]byte("not-the-secret"))
		require.NoError(t, err)

		w := app.postToken(t, client, url.Values{
			"grant_type": {"urn:ietf:params:oauth:grant-type:jwt-bearer"},
			"assertion":  {signed},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid_grant", decodeToken(t, w).Error)
	})

	t.Run("MissingAssertion", func(t *testing.T) {
		w := app.postToken(t, client, url.Values{
			"grant_type": {"urn:ietf:params:oauth:grant-type:jwt-bearer"},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid_request", decodeToken(t, w).Error)
	})
}

func TestTokenEndpointAssertionGrant(t *testing.T) {
	app := newTestApp(t)
	client := app.registerClient(t, "read")

	issuer := &models.Issuer{
		Identifier: "https://idp.example.com",
		HMACSecret: "idp-secret",
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	require.NoError(t, app.store.CreateIssuer(issuer))

	sign := func(claims jwt.MapClaims) string {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		signed, err := token.SignedString([]byte("idp-secret"))
		require.NoError(t, err)
		return signed
	}

	t.Run("AssertionTypeParameter", func(t *testing.T) {
		assertion := sign(jwt.MapClaims{
			"iss": issuer.Identifier,
			"aud": app.config.BaseURL + app.config.AccessTokenPath,
			"prn": "grace@example.com",
			"exp": time.Now().Add(time.Minute).Unix(),
		})

		w := app.postToken(t, client, url.Values{
			"grant_type":     {"assertion"},
			"assertion_type": {"urn:ietf:params:oauth:grant-type:jwt-bearer"},
			"assertion":      {assertion},
			"scope":          {"read"},
		})
		require.Equal(t, http.StatusOK, w.Code)

		token, err := app.tokens.FromToken(decodeToken(t, w).AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "grace@example.com", token.Identity)
	})

	t.Run("UnknownAssertionType", func(t *testing.T) {
		w := app.postToken(t, client, url.Values{
			"grant_type":     {"assertion"},
			"assertion_type": {"urn:example:nobody-handles-this"},
			"assertion":      {"anything"},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid_grant", decodeToken(t, w).Error)
	})

	t.Run("MissingAssertionType", func(t *testing.T) {
		w := app.postToken(t, client, url.Values{
			"grant_type": {"assertion"},
			"assertion":  {"anything"},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid_request", decodeToken(t, w).Error)
	})
}

func TestTokenEndpointExpiringTokens(t *testing.T) {
	app := newTestApp(t, withAccessTokenTTL(time.Hour))
	client := app.registerClient(t, "read")

	w := app.postToken(t, client, url.Values{
		"grant_type": {"none"},
		"scope":      {"read"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeToken(t, w)
	assert.InDelta(t, time.Hour.Seconds(), float64(resp.ExpiresIn), 60)

	token, err := app.tokens.FromToken(resp.AccessToken)
	require.NoError(t, err)
	require.NotNil(t, token.ExpiresAt)
}
