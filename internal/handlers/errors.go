package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-tollgate/tollgate/internal/oauth"

	"github.com/gin-gonic/gin"
)

// respondError turns a service error into the protocol response: the
// taxonomy error as a JSON body with its mapped status, or a bare 500
// for infrastructure failures that must not leak details.
func respondError(c *gin.Context, err error) {
	perr := oauth.AsError(err)
	if perr == nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":             "server_error",
			"error_description": "Something went wrong.",
		})
		return
	}
	c.JSON(perr.Status, gin.H{
		"error":             perr.Code,
		"error_description": perr.Description,
	})
}

// respondClientAuthError handles a failed client authentication. Only
// clients that attempted HTTP Basic get the 401 challenge; everyone
// else gets the plain JSON error.
func respondClientAuthError(c *gin.Context, realm string, basic bool, err error) {
	perr := oauth.AsError(err)
	if perr != nil && basic && perr.Code == oauth.ErrInvalidClient.Code {
		c.Header("WWW-Authenticate", fmt.Sprintf(
			"OAuth realm=%q, error=%q, error_description=%q",
			realm, perr.Code, perr.Description))
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":             perr.Code,
			"error_description": perr.Description,
		})
		return
	}
	respondError(c, err)
}
