package handlers

import (
	"net/http"
	"net/url"

	"github.com/go-tollgate/tollgate/internal/config"
	"github.com/go-tollgate/tollgate/internal/oauth"
	"github.com/go-tollgate/tollgate/internal/services"

	"github.com/gin-gonic/gin"
)

// AuthorizationHandler drives the two-phase authorization flow. The
// first request validates and parks the authorization as a pending
// request, then sends the user agent to the consent page with the
// request handle. The consent page settles it through Decision.
type AuthorizationHandler struct {
	authorize *services.AuthorizationService
	clients   *services.ClientService
	config    *config.Config
	// Where to send the user for consent. The handle is appended as
	// the "authorization" query parameter.
	consentURL string
}

func NewAuthorizationHandler(
	authorize *services.AuthorizationService,
	clients *services.ClientService,
	cfg *config.Config,
	consentURL string,
) *AuthorizationHandler {
	return &AuthorizationHandler{
		authorize:  authorize,
		clients:    clients,
		config:     cfg,
		consentURL: consentURL,
	}
}

// Authorize is the authorization endpoint. Client and redirect URI
// problems are shown to the user directly, never redirected; once the
// redirect URI is trusted, protocol errors go back to the client
// application through it.
func (h *AuthorizationHandler) Authorize(c *gin.Context) {
	params := services.AuthorizationParams{
		ClientID:     c.Query("client_id"),
		RedirectURI:  c.Query("redirect_uri"),
		ResponseType: c.Query("response_type"),
		Scope:        c.Query("scope"),
		State:        c.Query("state"),
	}

	request, redirectURI, err := h.authorize.ValidateRequest(params)
	if err != nil {
		perr := oauth.AsError(err)
		if perr == nil {
			c.String(http.StatusInternalServerError, "Something went wrong.")
			return
		}
		if redirectURI == nil {
			c.String(perr.Status, perr.Description)
			return
		}
		location := services.ErrorRedirect(redirectURI, params.ResponseType, params.State, perr)
		c.Redirect(http.StatusSeeOther, location)
		return
	}

	if h.consentURL == "" {
		h.describeRequest(c, request.ID)
		return
	}
	consent, err := url.Parse(h.consentURL)
	if err != nil {
		c.String(http.StatusInternalServerError, "Something went wrong.")
		return
	}
	query := consent.Query()
	query.Set("authorization", request.ID)
	consent.RawQuery = query.Encode()
	c.Redirect(http.StatusSeeOther, consent.String())
}

// describeRequest returns the pending request as JSON so a headless
// consent flow can present it without a redirect hop.
func (h *AuthorizationHandler) describeRequest(c *gin.Context, id string) {
	request, err := h.authorize.GetRequest(id)
	if err != nil {
		respondError(c, err)
		return
	}
	client, err := h.clients.Resolve(request.ClientID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"authorization": request.ID,
		"client":        client.DisplayName,
		"client_id":     client.ID,
		"scope":         request.Scope,
		"response_type": request.ResponseType,
	})
}

// Show returns the pending authorization identified by the
// "authorization" parameter, for consent pages that arrived via
// redirect.
func (h *AuthorizationHandler) Show(c *gin.Context) {
	id := c.Query("authorization")
	if id == "" {
		respondError(c, oauth.BadRequest("Missing authorization handle."))
		return
	}
	h.describeRequest(c, id)
}

// Decision settles a pending authorization. The consent page POSTs the
// handle, the authenticated identity, and grant or deny; the response
// redirects the user agent back to the client application. This
// endpoint trusts its caller to have authenticated the user, so it
// must only be reachable from the consent application.
func (h *AuthorizationHandler) Decision(c *gin.Context) {
	id := c.PostForm("authorization")
	if id == "" {
		respondError(c, oauth.BadRequest("Missing authorization handle."))
		return
	}

	var location string
	var err error
	switch c.PostForm("decision") {
	case "grant":
		location, err = h.authorize.Grant(id, c.PostForm("identity"))
	case "deny":
		location, err = h.authorize.Deny(id)
	default:
		respondError(c, oauth.BadRequest("Decision must be grant or deny."))
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, location)
}
