package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-tollgate/tollgate/internal/oauth"
	"github.com/go-tollgate/tollgate/internal/scope"
	"github.com/go-tollgate/tollgate/internal/services"

	"github.com/gin-gonic/gin"
)

// Context keys set by ResourceProtection when a request carries a
// valid bearer token.
const (
	ContextIdentity = "oauth_identity"
	ContextScope    = "oauth_scope"
	ContextClientID = "oauth_client_id"
)

// ResourceOptions configures the resource protection middleware.
type ResourceOptions struct {
	Realm string
	// Accept "oauth_token" in query/form parameters in addition to the
	// Authorization header.
	ParamAuthentication bool
	// Path prefixes that reject requests carrying no token at all.
	RestrictedPaths []string
	// Exact paths the middleware never touches (the OAuth endpoints
	// themselves).
	SkipPaths []string
}

// ResourceProtection authenticates bearer tokens on incoming requests.
// A request with a valid token proceeds with identity, scope, and
// client recorded in the context; a bad token is rejected with a 401
// challenge naming the error; a missing token passes through unless the
// path is restricted.
func ResourceProtection(tokens *services.TokenService, opts ResourceOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, skip := range opts.SkipPaths {
			if path == skip {
				c.Next()
				return
			}
		}

		value, provided := bearerToken(c, opts.ParamAuthentication)
		if !provided {
			if restricted(path, opts.RestrictedPaths) {
				Challenge(c, opts.Realm, nil)
				return
			}
			c.Next()
			return
		}

		token, err := tokens.FromToken(value)
		if err != nil {
			perr := oauth.AsError(err)
			if perr == nil {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			Challenge(c, opts.Realm, perr)
			return
		}

		c.Set(ContextIdentity, token.Identity)
		c.Set(ContextScope, token.Scope)
		c.Set(ContextClientID, token.ClientID)
		// Usage tracking never blocks the request.
		_ = tokens.Access(token.Token)

		c.Next()
	}
}

// bearerToken pulls the token from the Authorization header, or from
// the oauth_token parameter when enabled. Requests carrying an
// oauth_verifier are OAuth 1.0 signatures, not ours.
func bearerToken(c *gin.Context, paramAuth bool) (string, bool) {
	creds := oauth.ParseAuthorization(c.GetHeader("Authorization"))
	if creds.Kind == oauth.CredentialsBearer {
		return creds.Token, true
	}
	if !paramAuth || creds.Kind != oauth.CredentialsNone {
		return "", false
	}
	if c.Query("oauth_verifier") != "" || c.PostForm("oauth_verifier") != "" {
		return "", false
	}
	for _, param := range []string{"oauth_token", "access_token"} {
		if token := c.PostForm(param); token != "" {
			return token, true
		}
		if token := c.Query(param); token != "" {
			return token, true
		}
	}
	return "", false
}

func restricted(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Challenge rejects the request with a 401 and a WWW-Authenticate
// header. The error attributes appear only when the client actually
// presented a (bad) token.
func Challenge(c *gin.Context, realm string, perr *oauth.Error) {
	header := fmt.Sprintf("OAuth realm=%q", realm)
	body := ""
	if perr != nil {
		header += fmt.Sprintf(", error=%q, error_description=%q", perr.Code, perr.Description)
		body = perr.Description
	}
	c.Header("WWW-Authenticate", header)
	c.String(http.StatusUnauthorized, body)
	c.Abort()
}

// RequireScope rejects requests whose token does not carry the named
// scope. Unauthenticated requests get the plain 401 challenge;
// authenticated ones missing the scope get 403 insufficient_scope with
// the required scope in the challenge.
func RequireScope(required, realm string) gin.HandlerFunc {
	return func(c *gin.Context) {
		granted, authenticated := c.Get(ContextScope)
		if !authenticated {
			Challenge(c, realm, nil)
			return
		}
		if !scope.Contains(granted.(string), required) {
			c.Header("WWW-Authenticate", fmt.Sprintf(
				"OAuth realm=%q, error=\"insufficient_scope\", scope=%q", realm, required))
			c.String(http.StatusForbidden, "You do not have permission to access this resource.")
			c.Abort()
			return
		}
		c.Next()
	}
}

// Identity returns the authenticated identity, or "" when the request
// carried no valid token.
func Identity(c *gin.Context) string {
	if v, ok := c.Get(ContextIdentity); ok {
		return v.(string)
	}
	return ""
}

// Scope returns the authenticated token's scope.
func Scope(c *gin.Context) string {
	if v, ok := c.Get(ContextScope); ok {
		return v.(string)
	}
	return ""
}

// ClientID returns the authenticated token's owning client.
func ClientID(c *gin.Context) string {
	if v, ok := c.Get(ContextClientID); ok {
		return v.(string)
	}
	return ""
}

// Authenticated reports whether the request carried a valid token.
func Authenticated(c *gin.Context) bool {
	_, ok := c.Get(ContextIdentity)
	return ok
}
