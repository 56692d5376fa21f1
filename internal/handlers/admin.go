package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-tollgate/tollgate/internal/models"
	"github.com/go-tollgate/tollgate/internal/oauth"
	"github.com/go-tollgate/tollgate/internal/services"
	"github.com/go-tollgate/tollgate/internal/store"

	"github.com/gin-gonic/gin"
)

// AdminScope is the scope required for the administration API.
const AdminScope = "oauth-admin"

// AdminHandler exposes the administration API: client registry
// management, token inspection and revocation, issuance statistics,
// and assertion issuer management.
type AdminHandler struct {
	clients    *services.ClientService
	tokens     *services.TokenService
	assertions *services.AssertionService
}

func NewAdminHandler(
	clients *services.ClientService,
	tokens *services.TokenService,
	assertions *services.AssertionService,
) *AdminHandler {
	return &AdminHandler{clients: clients, tokens: tokens, assertions: assertions}
}

type clientRequest struct {
	DisplayName string `json:"display_name"`
	Link        string `json:"link"`
	ImageURL    string `json:"image_url"`
	RedirectURI string `json:"redirect_uri"`
	Scope       string `json:"scope"`
	Notes       string `json:"notes"`
}

func clientJSON(client *models.Client) gin.H {
	return gin.H{
		"id":             client.ID,
		"secret":         client.Secret,
		"display_name":   client.DisplayName,
		"link":           client.Link,
		"image_url":      client.ImageURL,
		"redirect_uri":   client.RedirectURI,
		"scope":          client.Scope,
		"notes":          client.Notes,
		"created_at":     client.CreatedAt,
		"revoked":        client.Revoked,
		"tokens_granted": client.TokensGranted,
		"tokens_revoked": client.TokensRevoked,
	}
}

func (h *AdminHandler) ListClients(c *gin.Context) {
	clients, err := h.clients.List()
	if err != nil {
		respondError(c, err)
		return
	}
	list := make([]gin.H, 0, len(clients))
	for i := range clients {
		list = append(list, clientJSON(&clients[i]))
	}
	c.JSON(http.StatusOK, gin.H{"list": list})
}

func (h *AdminHandler) CreateClient(c *gin.Context) {
	var req clientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, oauth.BadRequest("Malformed client registration."))
		return
	}
	client, err := h.clients.Register(services.ClientRegistration{
		DisplayName: req.DisplayName,
		Link:        req.Link,
		ImageURL:    req.ImageURL,
		RedirectURI: req.RedirectURI,
		Scope:       req.Scope,
		Notes:       req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, clientJSON(client))
}

func (h *AdminHandler) GetClient(c *gin.Context) {
	client, err := h.clients.Lookup(c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, clientJSON(client))
}

func (h *AdminHandler) UpdateClient(c *gin.Context) {
	var req clientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, oauth.BadRequest("Malformed client registration."))
		return
	}
	client, err := h.clients.Update(c.Param("id"), services.ClientRegistration{
		DisplayName: req.DisplayName,
		Link:        req.Link,
		ImageURL:    req.ImageURL,
		RedirectURI: req.RedirectURI,
		Scope:       req.Scope,
		Notes:       req.Notes,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, clientJSON(client))
}

func (h *AdminHandler) DeleteClient(c *gin.Context) {
	if err := h.clients.Delete(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AdminHandler) RevokeClient(c *gin.Context) {
	if err := h.clients.Revoke(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListTokens returns an identity's tokens with owning client names.
func (h *AdminHandler) ListTokens(c *gin.Context) {
	identity := c.Query("identity")
	if identity == "" {
		respondError(c, oauth.BadRequest("Missing identity."))
		return
	}
	tokens, err := h.tokens.ListForIdentity(identity)
	if err != nil {
		respondError(c, err)
		return
	}
	list := make([]gin.H, 0, len(tokens))
	for _, token := range tokens {
		list = append(list, gin.H{
			"token":       token.Token,
			"identity":    token.Identity,
			"client_id":   token.ClientID,
			"client_name": token.ClientName,
			"scope":       token.Scope,
			"created_at":  token.CreatedAt,
			"expires_at":  token.ExpiresAt,
			"revoked":     token.Revoked,
			"last_access": token.LastAccess,
			"prev_access": token.PrevAccess,
		})
	}
	c.JSON(http.StatusOK, gin.H{"list": list})
}

func (h *AdminHandler) RevokeToken(c *gin.Context) {
	err := h.tokens.Revoke(c.Param("token"), "admin")
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
			return
		}
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func tokenFilterFromQuery(c *gin.Context) store.TokenFilter {
	days, _ := strconv.Atoi(c.Query("days"))
	return store.TokenFilter{
		ClientID: c.Query("client_id"),
		Days:     days,
		Revoked:  c.Query("revoked") == "true",
	}
}

// TokenStats returns the number of tokens matching the filter.
func (h *AdminHandler) TokenStats(c *gin.Context) {
	count, err := h.tokens.Count(tokenFilterFromQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": count})
}

// TokenHistory returns the day-bucketed issuance series.
func (h *AdminHandler) TokenHistory(c *gin.Context) {
	series, err := h.tokens.Historical(tokenFilterFromQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": series})
}

type issuerRequest struct {
	Identifier string `json:"identifier"`
	HMACSecret string `json:"hmac_secret"`
	PublicKey  string `json:"public_key"`
	Notes      string `json:"notes"`
}

func (h *AdminHandler) ListIssuers(c *gin.Context) {
	issuers, err := h.assertions.ListIssuers()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"list": issuers})
}

func (h *AdminHandler) SaveIssuer(c *gin.Context) {
	var req issuerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, oauth.BadRequest("Malformed issuer."))
		return
	}
	if req.Identifier == "" {
		respondError(c, oauth.BadRequest("Issuer requires an identifier."))
		return
	}
	if req.HMACSecret == "" && req.PublicKey == "" {
		respondError(c, oauth.BadRequest("Issuer requires an HMAC secret or a public key."))
		return
	}
	issuer := &models.Issuer{
		Identifier: req.Identifier,
		HMACSecret: req.HMACSecret,
		PublicKey:  req.PublicKey,
		Notes:      req.Notes,
	}
	if err := h.assertions.SaveIssuer(issuer); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, issuer)
}

// GetIssuer looks an issuer up by the "identifier" query parameter;
// identifiers are URLs, so they cannot live in the path.
func (h *AdminHandler) GetIssuer(c *gin.Context) {
	identifier := c.Query("identifier")
	if identifier == "" {
		respondError(c, oauth.BadRequest("Missing issuer identifier."))
		return
	}
	issuer, err := h.assertions.GetIssuer(identifier)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, issuer)
}
