package services

import (
	"errors"
	"net/url"
	"time"

	"github.com/go-tollgate/tollgate/internal/metrics"
	"github.com/go-tollgate/tollgate/internal/models"
	"github.com/go-tollgate/tollgate/internal/oauth"
	"github.com/go-tollgate/tollgate/internal/scope"
	"github.com/go-tollgate/tollgate/internal/store"

	"github.com/google/uuid"
)

// AuthorizationParams are the query parameters of an authorization
// endpoint request.
type AuthorizationParams struct {
	ClientID     string
	RedirectURI  string
	ResponseType string
	Scope        string
	State        string
}

type AuthorizationService struct {
	store         *store.Store
	clients       *ClientService
	grants        *GrantService
	tokens        *TokenService
	metrics       metrics.Recorder
	responseTypes []string
	grantTTL      time.Duration
	tokenTTL      time.Duration
}

func NewAuthorizationService(
	s *store.Store,
	clients *ClientService,
	grants *GrantService,
	tokens *TokenService,
	m metrics.Recorder,
	responseTypes []string,
	grantTTL time.Duration,
	tokenTTL time.Duration,
) *AuthorizationService {
	return &AuthorizationService{
		store:         s,
		clients:       clients,
		grants:        grants,
		tokens:        tokens,
		metrics:       m,
		responseTypes: responseTypes,
		grantTTL:      grantTTL,
		tokenTTL:      tokenTTL,
	}
}

func (s *AuthorizationService) supportsResponseType(rt string) bool {
	for _, t := range s.responseTypes {
		if t == rt {
			return true
		}
	}
	return false
}

// ValidateRequest checks an incoming authorization request and records
// it as a pending AuthRequest. Client and redirect URI problems come
// back with a nil redirect URL and must be shown to the user directly;
// once the redirect URI is trusted, protocol errors come back alongside
// it so the caller can deliver them to the client application.
func (s *AuthorizationService) ValidateRequest(p AuthorizationParams) (*models.AuthRequest, *url.URL, error) {
	if p.ClientID == "" {
		return nil, nil, oauth.BadRequest("Missing client identifier.")
	}
	client, err := s.clients.Resolve(p.ClientID)
	if err != nil {
		s.metrics.RecordAuthorizationRequest(p.ResponseType, "error")
		return nil, nil, err
	}

	// Establish the redirect URI before anything else: errors found
	// after this point are delivered through it.
	raw := p.RedirectURI
	if raw == "" {
		raw = client.RedirectURI
	}
	if raw == "" {
		s.metrics.RecordAuthorizationRequest(p.ResponseType, "error")
		return nil, nil, oauth.BadRequest("Missing redirect URI.")
	}
	redirectURI, err := oauth.ParseRedirectURI(raw)
	if err != nil {
		s.metrics.RecordAuthorizationRequest(p.ResponseType, "error")
		return nil, nil, err
	}
	// A client that registered a redirect URI only ever gets sent there.
	if client.RedirectURI != "" && p.RedirectURI != "" && client.RedirectURI != redirectURI.String() {
		s.metrics.RecordAuthorizationRequest(p.ResponseType, "error")
		return nil, nil, oauth.ErrRedirectURIMismatch
	}

	if p.ResponseType == "" {
		s.metrics.RecordAuthorizationRequest(p.ResponseType, "redirect_error")
		return nil, redirectURI, oauth.BadRequest("Missing response type.")
	}
	if !s.supportsResponseType(p.ResponseType) {
		s.metrics.RecordAuthorizationRequest(p.ResponseType, "redirect_error")
		return nil, redirectURI, oauth.ErrUnsupportedResponseType
	}

	canonical := scope.String(p.Scope)
	if !scope.Subset(canonical, client.Scope) {
		s.metrics.RecordAuthorizationRequest(p.ResponseType, "redirect_error")
		return nil, redirectURI, oauth.ErrInvalidScope
	}

	request := &models.AuthRequest{
		ID:           uuid.New().String(),
		ClientID:     client.ID,
		Scope:        canonical,
		RedirectURI:  redirectURI.String(),
		State:        p.State,
		ResponseType: p.ResponseType,
		CreatedAt:    time.Now(),
	}
	if err := s.store.CreateAuthRequest(request); err != nil {
		return nil, redirectURI, err
	}
	s.metrics.RecordAuthorizationRequest(p.ResponseType, "accepted")
	return request, redirectURI, nil
}

// GetRequest returns the pending request by handle. Unknown and
// revoked handles are invalid_request.
func (s *AuthorizationService) GetRequest(id string) (*models.AuthRequest, error) {
	request, err := s.store.GetAuthRequest(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, oauth.BadRequest("Invalid authorization request.")
		}
		return nil, err
	}
	if request.IsRevoked() {
		return nil, oauth.BadRequest("Invalid authorization request.")
	}
	return request, nil
}

// Grant settles the request in the identity's favor and returns the
// location to send the user agent to: an authorization code in the
// query for the code flow, the token itself in the fragment for the
// token flow. A request can only be settled once.
func (s *AuthorizationService) Grant(requestID, identity string) (string, error) {
	request, err := s.GetRequest(requestID)
	if err != nil {
		return "", err
	}
	if identity == "" {
		return "", oauth.BadRequest("Authorization request is missing the identity.")
	}
	redirectURI, err := url.Parse(request.RedirectURI)
	if err != nil {
		return "", err
	}

	client, err := s.clients.Resolve(request.ClientID)
	if err != nil {
		return "", err
	}

	switch request.ResponseType {
	case models.ResponseTypeCode:
		grant, err := s.grants.Create(identity, client, request.Scope, request.RedirectURI, s.grantTTL)
		if err != nil {
			return "", err
		}
		if err := s.store.GrantAuthRequestCode(request.ID, grant.Code, time.Now()); err != nil {
			return "", settlementError(err)
		}
		s.metrics.RecordAuthorizationDecision("granted")
		params := oauth.RedirectParams{"code": grant.Code, "scope": request.Scope}
		if request.State != "" {
			params["state"] = request.State
		}
		return oauth.AppendQuery(redirectURI, params), nil

	case models.ResponseTypeToken:
		token, err := s.tokens.GetOrCreate(identity, client.ID, request.Scope, "token", s.tokenTTL)
		if err != nil {
			return "", err
		}
		if err := s.store.GrantAuthRequestToken(request.ID, token.Token, time.Now()); err != nil {
			return "", settlementError(err)
		}
		s.metrics.RecordAuthorizationDecision("granted")
		params := oauth.RedirectParams{"access_token": token.Token, "scope": token.Scope}
		if request.State != "" {
			params["state"] = request.State
		}
		return oauth.AppendFragment(redirectURI, params), nil

	default:
		return "", oauth.ErrUnsupportedResponseType
	}
}

// Deny settles the request against the client and returns the location
// carrying the access_denied error.
func (s *AuthorizationService) Deny(requestID string) (string, error) {
	request, err := s.GetRequest(requestID)
	if err != nil {
		return "", err
	}
	if err := s.store.DenyAuthRequest(request.ID, time.Now()); err != nil {
		return "", settlementError(err)
	}
	s.metrics.RecordAuthorizationDecision("denied")

	redirectURI, err := url.Parse(request.RedirectURI)
	if err != nil {
		return "", err
	}
	return ErrorRedirect(redirectURI, request.ResponseType, request.State, oauth.ErrAccessDenied), nil
}

// ErrorRedirect builds the redirect location delivering a protocol
// error to the client: query parameters for the code flow, fragment
// for the token flow.
func ErrorRedirect(redirectURI *url.URL, responseType, state string, perr *oauth.Error) string {
	params := oauth.RedirectParams{
		"error":             perr.Code,
		"error_description": perr.Description,
	}
	if state != "" {
		params["state"] = state
	}
	if responseType == models.ResponseTypeToken {
		return oauth.AppendFragment(redirectURI, params)
	}
	return oauth.AppendQuery(redirectURI, params)
}

func settlementError(err error) error {
	if errors.Is(err, store.ErrAlreadyDecided) {
		return oauth.BadRequest("Authorization request has already been decided.")
	}
	return err
}
