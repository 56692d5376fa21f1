package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-tollgate/tollgate/internal/metrics"
	"github.com/go-tollgate/tollgate/internal/models"
	"github.com/go-tollgate/tollgate/internal/oauth"
	"github.com/go-tollgate/tollgate/internal/scope"
	"github.com/go-tollgate/tollgate/internal/store"
	"github.com/go-tollgate/tollgate/internal/util"
)

type GrantService struct {
	store   *store.Store
	tokens  *TokenService
	metrics metrics.Recorder
}

func NewGrantService(s *store.Store, tokens *TokenService, m metrics.Recorder) *GrantService {
	return &GrantService{store: s, tokens: tokens, metrics: m}
}

// Create issues a one-time authorization code for the identity. The
// requested scope is intersected with what the client registered, so
// a grant never carries a scope the client could not hold.
func (s *GrantService) Create(identity string, client *models.Client, scopeStr, redirectURI string, ttl time.Duration) (*models.AccessGrant, error) {
	if identity == "" {
		return nil, oauth.BadRequest("Authorization request is missing the identity.")
	}
	canonical := scope.IntersectString(scopeStr, client.Scope)

	code, err := util.SecureToken()
	if err != nil {
		return nil, fmt.Errorf("generate grant code: %w", err)
	}
	now := time.Now()
	grant := &models.AccessGrant{
		Code:        code,
		Identity:    identity,
		ClientID:    client.ID,
		RedirectURI: redirectURI,
		Scope:       canonical,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
	if err := s.store.CreateAccessGrant(grant); err != nil {
		s.metrics.RecordGrantIssued(false)
		return nil, fmt.Errorf("create access grant: %w", err)
	}
	s.metrics.RecordGrantIssued(true)
	return grant, nil
}

// FromCode resolves an authorization code. Unknown, revoked, and
// expired codes are indistinguishable to the caller: all invalid_grant.
func (s *GrantService) FromCode(code string) (*models.AccessGrant, error) {
	grant, err := s.store.GetAccessGrant(code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, oauth.ErrInvalidGrant
		}
		return nil, err
	}
	if grant.IsExpired() {
		return nil, oauth.ErrInvalidGrant
	}
	return grant, nil
}

// Authorize redeems the code for an access token, exactly once. The
// redemption is a conditional update on the grant row followed by a
// re-read: under concurrent duplicate requests only one caller's token
// lands in the grant, and everyone else gets invalid_grant. A non-zero
// expiresIn caps the lifetime of the issued token.
func (s *GrantService) Authorize(code, redirectURI string, expiresIn time.Duration) (*models.AccessToken, error) {
	grant, err := s.store.GetAccessGrant(code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.metrics.RecordGrantRedemption("invalid")
			return nil, oauth.ErrInvalidGrant
		}
		return nil, err
	}
	if grant.IsExpired() {
		s.metrics.RecordGrantRedemption("expired")
		return nil, oauth.ErrInvalidGrant
	}
	if grant.IsRedeemed() {
		s.metrics.RecordGrantRedemption("redeemed")
		return nil, oauth.ErrInvalidGrant
	}
	client, err := s.store.GetClient(grant.ClientID)
	if err != nil || client.IsRevoked() {
		s.metrics.RecordGrantRedemption("invalid")
		return nil, oauth.ErrInvalidGrant
	}
	// The code is bound to the redirect URI it was issued against.
	if grant.RedirectURI != "" && grant.RedirectURI != redirectURI {
		s.metrics.RecordGrantRedemption("invalid")
		return nil, oauth.ErrInvalidGrant
	}

	token, err := s.tokens.GetOrCreate(grant.Identity, grant.ClientID, grant.Scope, "authorization_code", expiresIn)
	if err != nil {
		return nil, err
	}

	if err := s.store.RedeemAccessGrant(code, token.Token, time.Now()); err != nil {
		if errors.Is(err, store.ErrGrantRedeemed) {
			s.metrics.RecordGrantRedemption("redeemed")
			return nil, oauth.ErrInvalidGrant
		}
		return nil, err
	}

	// Verify this caller's token is the one that landed. With the
	// conditional update above this re-read should always agree, but a
	// disagreement means we lost a race and must not hand out the token.
	settled, err := s.store.GetAccessGrant(code)
	if err != nil {
		return nil, err
	}
	if settled.AccessToken == nil || *settled.AccessToken != token.Token {
		s.metrics.RecordGrantRedemption("redeemed")
		return nil, oauth.ErrInvalidGrant
	}

	s.metrics.RecordGrantRedemption("success")
	return token, nil
}

// Revoke invalidates an unredeemed code.
func (s *GrantService) Revoke(code string) error {
	return s.store.RevokeAccessGrant(code, time.Now())
}
