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

// TokenWithClient combines token and client information for display
type TokenWithClient struct {
	models.AccessToken
	ClientName string
}

type TokenService struct {
	store   *store.Store
	metrics metrics.Recorder
}

func NewTokenService(s *store.Store, m metrics.Recorder) *TokenService {
	return &TokenService{store: s, metrics: m}
}

// GetOrCreate returns the live token for the (identity, scope, client)
// triple, minting one only if none exists or the one that does has
// expired. Scope is normalized before lookup so equivalent scope
// strings share a token. A non-zero expiresIn caps the lifetime of a
// newly minted token; zero means it never expires. Concurrent callers
// may each mint a token for a new triple; duplicates are live tokens
// for the same triple and are harmless.
func (s *TokenService) GetOrCreate(identity, clientID, scopeStr, grantType string, expiresIn time.Duration) (*models.AccessToken, error) {
	if identity == "" {
		return nil, oauth.BadRequest("Authorization request is missing the identity.")
	}
	canonical := scope.String(scopeStr)

	existing, err := s.store.FindAccessToken(identity, canonical, clientID)
	if err == nil && !existing.IsExpired() {
		return existing, nil
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	return s.mint(identity, clientID, canonical, grantType, expiresIn)
}

// CreateFor always mints a fresh token, never reusing an existing one.
// Client-only grants use this so each exchange gets its own token.
func (s *TokenService) CreateFor(identity, clientID, scopeStr, grantType string, expiresIn time.Duration) (*models.AccessToken, error) {
	if identity == "" {
		return nil, oauth.BadRequest("Authorization request is missing the identity.")
	}
	return s.mint(identity, clientID, scope.String(scopeStr), grantType, expiresIn)
}

func (s *TokenService) mint(identity, clientID, canonical, grantType string, expiresIn time.Duration) (*models.AccessToken, error) {
	start := time.Now()
	value, err := util.SecureToken()
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}
	token := &models.AccessToken{
		Token:     value,
		Identity:  identity,
		ClientID:  clientID,
		Scope:     canonical,
		CreatedAt: start,
	}
	if expiresIn != 0 {
		expires := start.Add(expiresIn)
		token.ExpiresAt = &expires
	}
	if err := s.store.CreateAccessToken(token); err != nil {
		return nil, fmt.Errorf("create access token: %w", err)
	}
	if err := s.store.IncrementTokensGranted(clientID); err != nil {
		return nil, err
	}
	s.metrics.RecordTokenIssued(grantType, time.Since(start))
	return token, nil
}

// FromToken resolves a bearer token value into its live record.
// Unknown and revoked tokens are invalid_token; expired ones are
// expired_token so clients know a new authorization will help.
func (s *TokenService) FromToken(value string) (*models.AccessToken, error) {
	token, err := s.store.GetAccessToken(value)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.metrics.RecordTokenValidation("invalid")
			return nil, oauth.ErrInvalidToken
		}
		return nil, err
	}
	if token.IsRevoked() {
		s.metrics.RecordTokenValidation("revoked")
		return nil, oauth.ErrInvalidToken
	}
	if token.IsExpired() {
		s.metrics.RecordTokenValidation("expired")
		return nil, oauth.ErrExpiredToken
	}
	s.metrics.RecordTokenValidation("valid")
	return token, nil
}

// Access records token usage at hour granularity. Failures are
// returned but callers may treat them as non-fatal; usage tracking
// never blocks a request.
func (s *TokenService) Access(value string) error {
	return s.store.TouchAccessToken(value, time.Now().Truncate(time.Hour))
}

// Revoke disables the token and bumps the owning client's revocation
// counter.
func (s *TokenService) Revoke(value, reason string) error {
	token, err := s.store.GetAccessToken(value)
	if err != nil {
		return err
	}
	if token.IsRevoked() {
		return nil
	}
	if err := s.store.RevokeAccessToken(value, time.Now()); err != nil {
		return err
	}
	if err := s.store.IncrementTokensRevoked(token.ClientID); err != nil {
		return err
	}
	s.metrics.RecordTokenRevoked(reason)
	return nil
}

// ListForIdentity returns all tokens held by an identity, newest
// first, with the owning client's display name attached.
func (s *TokenService) ListForIdentity(identity string) ([]TokenWithClient, error) {
	tokens, err := s.store.ListAccessTokensByIdentity(identity)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string)
	result := make([]TokenWithClient, 0, len(tokens))
	for _, token := range tokens {
		name, ok := names[token.ClientID]
		if !ok {
			if client, err := s.store.GetClient(token.ClientID); err == nil {
				name = client.DisplayName
			}
			names[token.ClientID] = name
		}
		result = append(result, TokenWithClient{AccessToken: token, ClientName: name})
	}
	return result, nil
}

// Count returns the number of tokens matching the filter.
func (s *TokenService) Count(f store.TokenFilter) (int64, error) {
	return s.store.CountAccessTokens(f)
}

// Historical returns the day-bucketed issuance series for the filter.
func (s *TokenService) Historical(f store.TokenFilter) ([]store.DayCount, error) {
	return s.store.HistoricalAccessTokens(f)
}
