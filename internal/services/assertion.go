package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-tollgate/tollgate/internal/models"
	"github.com/go-tollgate/tollgate/internal/oauth"
	"github.com/go-tollgate/tollgate/internal/store"

	"github.com/golang-jwt/jwt/v5"
)

// JWTBearerType is the assertion type for JWT bearer grants.
const JWTBearerType = "urn:ietf:params:oauth:grant-type:jwt-bearer"

// AssertionHandler verifies an assertion of a registered type on
// behalf of the authenticated client and returns the identity it
// asserts. Returning an error fails the grant with invalid_grant.
type AssertionHandler func(clientID, assertion, scope string) (identity string, err error)

// AssertionService exchanges signed assertions for identities. JWT
// bearer assertions are built in, verified against registered issuers;
// other assertion types can be plugged in with RegisterHandler.
type AssertionService struct {
	store    *store.Store
	audience string
	handlers map[string]AssertionHandler
}

func NewAssertionService(s *store.Store, audience string) *AssertionService {
	svc := &AssertionService{
		store:    s,
		audience: audience,
		handlers: make(map[string]AssertionHandler),
	}
	svc.handlers[JWTBearerType] = svc.verifyJWTBearer
	return svc
}

// RegisterHandler installs a handler for a custom assertion type.
func (s *AssertionService) RegisterHandler(assertionType string, h AssertionHandler) {
	s.handlers[assertionType] = h
}

// Supports reports whether the assertion type has a handler.
func (s *AssertionService) Supports(assertionType string) bool {
	_, ok := s.handlers[assertionType]
	return ok
}

// Process verifies the assertion and returns the asserted identity.
// An assertion type with no registered handler fails the grant itself,
// not the grant type: the client chose a supported grant and presented
// an assertion nobody can verify.
func (s *AssertionService) Process(assertionType, clientID, assertion, scope string) (string, error) {
	handler, ok := s.handlers[assertionType]
	if !ok {
		return "", &oauth.Error{
			Code:        oauth.ErrInvalidGrant.Code,
			Description: "Unsupported assertion type.",
			Status:      oauth.ErrInvalidGrant.Status,
		}
	}
	return handler(clientID, assertion, scope)
}

// verifyJWTBearer validates a JWT assertion: known issuer, a signature
// the issuer's key verifies, our token endpoint as the audience, an
// expiration within ten minutes of leeway, and a principal claim.
func (s *AssertionService) verifyJWTBearer(_, assertion, _ string) (string, error) {
	parser := jwt.NewParser(
		jwt.WithLeeway(10*time.Minute),
		jwt.WithExpirationRequired(),
		jwt.WithAudience(s.audience),
		jwt.WithValidMethods([]string{
			"HS256", "HS384", "HS512",
			"RS256", "RS384", "RS512",
		}),
	)

	claims := jwt.MapClaims{}
	_, err := parser.ParseWithClaims(assertion, claims, func(token *jwt.Token) (any, error) {
		iss, err := claims.GetIssuer()
		if err != nil || iss == "" {
			return nil, errors.New("assertion has no issuer")
		}
		issuer, err := s.store.GetIssuer(iss)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("unknown issuer %q", iss)
			}
			return nil, err
		}
		if strings.HasPrefix(token.Method.Alg(), "HS") {
			if issuer.HMACSecret == "" {
				return nil, fmt.Errorf("issuer %q has no HMAC secret", iss)
			}
			return []byte(issuer.HMACSecret), nil
		}
		if issuer.PublicKey == "" {
			return nil, fmt.Errorf("issuer %q has no public key", iss)
		}
		return jwt.ParseRSAPublicKeyFromPEM([]byte(issuer.PublicKey))
	})
	if err != nil {
		return "", assertionError(err)
	}

	// "prn" per the JWT bearer draft. Issuers must name the principal
	// explicitly; no fallback to other claims.
	identity, _ := claims["prn"].(string)
	if identity == "" {
		return "", &oauth.Error{
			Code:        oauth.ErrInvalidGrant.Code,
			Description: "Assertion does not identify a principal.",
			Status:      oauth.ErrInvalidGrant.Status,
		}
	}
	return identity, nil
}

func assertionError(err error) error {
	return &oauth.Error{
		Code:        oauth.ErrInvalidGrant.Code,
		Description: "Invalid assertion: " + err.Error(),
		Status:      oauth.ErrInvalidGrant.Status,
	}
}

// SaveIssuer registers or updates an assertion issuer.
func (s *AssertionService) SaveIssuer(issuer *models.Issuer) error {
	now := time.Now()
	existing, err := s.store.GetIssuer(issuer.Identifier)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		issuer.CreatedAt = now
		issuer.UpdatedAt = now
		return s.store.CreateIssuer(issuer)
	}
	issuer.CreatedAt = existing.CreatedAt
	issuer.UpdatedAt = now
	return s.store.UpdateIssuer(issuer)
}

// GetIssuer returns the registered issuer by identifier.
func (s *AssertionService) GetIssuer(identifier string) (*models.Issuer, error) {
	return s.store.GetIssuer(identifier)
}

// ListIssuers returns all registered issuers.
func (s *AssertionService) ListIssuers() ([]models.Issuer, error) {
	return s.store.ListIssuers()
}
