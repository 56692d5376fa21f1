package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-tollgate/tollgate/internal/config"
	"github.com/go-tollgate/tollgate/internal/models"
	"github.com/go-tollgate/tollgate/internal/oauth"
	"github.com/go-tollgate/tollgate/internal/scope"
	"github.com/go-tollgate/tollgate/internal/services"

	"github.com/gin-gonic/gin"
)

const (
	// https://datatracker.ietf.org/doc/html/rfc6749#section-4.1
	GrantTypeAuthorizationCode = "authorization_code"
	// https://datatracker.ietf.org/doc/html/rfc6749#section-4.3
	GrantTypePassword = "password"
	// Client-only grant, "none" in the original draft and
	// "client_credentials" in the final RFC.
	GrantTypeNone              = "none"
	GrantTypeClientCredentials = "client_credentials"
	// Assertion grant: assertion_type and assertion parameters carry
	// the credential. https://datatracker.ietf.org/doc/html/draft-ietf-oauth-v2-10#section-4.1.3
	GrantTypeAssertion = "assertion"
)

// Authenticator verifies resource owner credentials for the password
// grant and returns the identity they belong to. A nil Authenticator
// disables the grant.
type Authenticator func(username, password, clientID, scope string) (identity string, err error)

type TokenHandler struct {
	clients       *services.ClientService
	tokens        *services.TokenService
	grants        *services.GrantService
	assertions    *services.AssertionService
	authenticator Authenticator
	config        *config.Config
}

func NewTokenHandler(
	clients *services.ClientService,
	tokens *services.TokenService,
	grants *services.GrantService,
	assertions *services.AssertionService,
	authenticator Authenticator,
	cfg *config.Config,
) *TokenHandler {
	return &TokenHandler{
		clients:       clients,
		tokens:        tokens,
		grants:        grants,
		assertions:    assertions,
		authenticator: authenticator,
		config:        cfg,
	}
}

// Token is the token endpoint: it authenticates the client and
// exchanges a grant for an access token. POST only.
func (h *TokenHandler) Token(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		c.Header("Allow", http.MethodPost)
		c.String(http.StatusMethodNotAllowed, "")
		return
	}

	id, secret, basic := oauth.ClientCredentials(c.Request)
	if id == "" {
		respondError(c, oauth.BadRequest("Missing client identifier."))
		return
	}
	client, err := h.clients.Authenticate(id, secret)
	if err != nil {
		respondClientAuthError(c, h.config.RealmOrDefault(), basic, err)
		return
	}

	grantType := c.PostForm("grant_type")
	switch {
	case grantType == GrantTypeAuthorizationCode:
		h.handleAuthorizationCodeGrant(c, client)
	case grantType == GrantTypePassword:
		h.handlePasswordGrant(c, client)
	case grantType == GrantTypeNone || grantType == GrantTypeClientCredentials:
		h.handleClientGrant(c, client)
	case grantType == GrantTypeAssertion:
		h.handleAssertionGrant(c, client, c.PostForm("assertion_type"))
	// An assertion type offered directly as the grant_type, the way
	// RFC 7523 clients send jwt-bearer.
	case h.assertions.Supports(grantType):
		h.handleAssertionGrant(c, client, grantType)
	default:
		respondError(c, oauth.ErrUnsupportedGrantType)
	}
}

func (h *TokenHandler) handleAuthorizationCodeGrant(c *gin.Context, client *models.Client) {
	code := c.PostForm("code")
	if code == "" {
		respondError(c, oauth.BadRequest("Missing authorization code."))
		return
	}

	grant, err := h.grants.FromCode(code)
	if err != nil {
		respondError(c, err)
		return
	}
	// A code can only be redeemed by the client it was issued to.
	if grant.ClientID != client.ID {
		respondError(c, oauth.ErrInvalidGrant)
		return
	}

	token, err := h.grants.Authorize(code, c.PostForm("redirect_uri"), h.config.AccessTokenTTL)
	if err != nil {
		respondError(c, err)
		return
	}
	h.respondToken(c, token)
}

func (h *TokenHandler) handlePasswordGrant(c *gin.Context, client *models.Client) {
	if h.authenticator == nil {
		respondError(c, oauth.ErrUnsupportedGrantType)
		return
	}
	username := c.PostForm("username")
	password := c.PostForm("password")
	if username == "" || password == "" {
		respondError(c, oauth.BadRequest("Missing username or password."))
		return
	}

	requested := scope.String(c.PostForm("scope"))
	if !scope.Subset(requested, client.Scope) {
		respondError(c, oauth.ErrInvalidScope)
		return
	}

	identity, err := h.authenticator(username, password, client.ID, requested)
	if err != nil || identity == "" {
		respondError(c, oauth.ErrInvalidGrant)
		return
	}

	token, err := h.tokens.GetOrCreate(identity, client.ID, requested, GrantTypePassword, h.config.AccessTokenTTL)
	if err != nil {
		respondError(c, err)
		return
	}
	h.respondToken(c, token)
}

// handleClientGrant issues a token to the client itself. These tokens
// are minted fresh on every exchange, never reused.
func (h *TokenHandler) handleClientGrant(c *gin.Context, client *models.Client) {
	requested := scope.String(c.PostForm("scope"))
	if !scope.Subset(requested, client.Scope) {
		respondError(c, oauth.ErrInvalidScope)
		return
	}

	token, err := h.tokens.CreateFor(client.ID, client.ID, requested, GrantTypeNone, h.config.AccessTokenTTL)
	if err != nil {
		respondError(c, err)
		return
	}
	h.respondToken(c, token)
}

func (h *TokenHandler) handleAssertionGrant(c *gin.Context, client *models.Client, assertionType string) {
	if assertionType == "" {
		respondError(c, oauth.BadRequest("Missing assertion type."))
		return
	}
	assertion := strings.TrimSpace(c.PostForm("assertion"))
	if assertion == "" {
		respondError(c, oauth.BadRequest("Missing assertion."))
		return
	}

	requested := scope.String(c.PostForm("scope"))
	if !scope.Subset(requested, client.Scope) {
		respondError(c, oauth.ErrInvalidScope)
		return
	}

	identity, err := h.assertions.Process(assertionType, client.ID, assertion, requested)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := h.tokens.GetOrCreate(identity, client.ID, requested, GrantTypeAssertion, h.config.AccessTokenTTL)
	if err != nil {
		respondError(c, err)
		return
	}
	h.respondToken(c, token)
}

func (h *TokenHandler) respondToken(c *gin.Context, token *models.AccessToken) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	body := gin.H{
		"access_token": token.Token,
		"scope":        token.Scope,
	}
	if token.ExpiresAt != nil {
		body["expires_in"] = int64(time.Until(*token.ExpiresAt).Seconds())
	}
	c.JSON(http.StatusOK, body)
}
