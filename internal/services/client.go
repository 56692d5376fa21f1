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

	"github.com/google/uuid"
)

// ClientRegistration is the input for registering a new client
// application. ID and Secret are optional; when empty the service
// generates them.
type ClientRegistration struct {
	ID          string
	Secret      string
	DisplayName string
	Link        string
	ImageURL    string
	RedirectURI string
	Scope       string
	Notes       string
}

type ClientService struct {
	store   *store.Store
	metrics metrics.Recorder
}

func NewClientService(s *store.Store, m metrics.Recorder) *ClientService {
	return &ClientService{store: s, metrics: m}
}

// Register creates a new client. DisplayName and Link are required;
// the redirect URI, when present, must be an absolute http(s) URL.
func (s *ClientService) Register(reg ClientRegistration) (*models.Client, error) {
	if reg.DisplayName == "" || reg.Link == "" {
		return nil, oauth.BadRequest("Client requires a display name and a link.")
	}
	if reg.RedirectURI != "" {
		uri, err := oauth.ParseRedirectURI(reg.RedirectURI)
		if err != nil {
			return nil, err
		}
		reg.RedirectURI = uri.String()
	}

	id := reg.ID
	if id == "" {
		id = uuid.New().String()
	}
	secret := reg.Secret
	if secret == "" {
		var err error
		secret, err = util.SecureToken()
		if err != nil {
			return nil, fmt.Errorf("generate client secret: %w", err)
		}
	}

	client := &models.Client{
		ID:          id,
		Secret:      secret,
		DisplayName: reg.DisplayName,
		Link:        reg.Link,
		ImageURL:    reg.ImageURL,
		RedirectURI: reg.RedirectURI,
		Scope:       scope.String(reg.Scope),
		Notes:       reg.Notes,
		CreatedAt:   time.Now(),
	}
	if err := s.store.CreateClient(client); err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return client, nil
}

// Authenticate resolves and verifies client credentials. Unknown ID,
// wrong secret, and revoked client all come back as invalid_client so
// callers cannot probe the registry.
func (s *ClientService) Authenticate(id, secret string) (*models.Client, error) {
	client, err := s.store.GetClient(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, oauth.ErrInvalidClient
		}
		return nil, err
	}
	if !client.SecretMatches(secret) || client.IsRevoked() {
		return nil, oauth.ErrInvalidClient
	}
	return client, nil
}

// Resolve returns the client by ID, treating unknown and revoked
// clients as invalid_client.
func (s *ClientService) Resolve(id string) (*models.Client, error) {
	client, err := s.store.GetClient(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, oauth.ErrInvalidClient
		}
		return nil, err
	}
	if client.IsRevoked() {
		return nil, oauth.ErrInvalidClient
	}
	return client, nil
}

// Lookup finds a client by ID, display name, or link.
func (s *ClientService) Lookup(field string) (*models.Client, error) {
	return s.store.LookupClient(field)
}

func (s *ClientService) List() ([]models.Client, error) {
	return s.store.ListClients()
}

// Update changes the mutable registration fields, leaving ID, secret,
// and counters alone. Zero-value fields keep their current value.
func (s *ClientService) Update(id string, reg ClientRegistration) (*models.Client, error) {
	client, err := s.store.GetClient(id)
	if err != nil {
		return nil, err
	}
	if reg.DisplayName != "" {
		client.DisplayName = reg.DisplayName
	}
	if reg.Link != "" {
		client.Link = reg.Link
	}
	if reg.ImageURL != "" {
		client.ImageURL = reg.ImageURL
	}
	if reg.RedirectURI != "" {
		uri, err := oauth.ParseRedirectURI(reg.RedirectURI)
		if err != nil {
			return nil, err
		}
		client.RedirectURI = uri.String()
	}
	if reg.Scope != "" {
		client.Scope = scope.String(reg.Scope)
	}
	if reg.Notes != "" {
		client.Notes = reg.Notes
	}
	if err := s.store.UpdateClient(client); err != nil {
		return nil, err
	}
	return client, nil
}

// Revoke disables the client and cascades to all of its auth requests,
// grants, and tokens.
func (s *ClientService) Revoke(id string) error {
	tokensRevoked, err := s.store.RevokeClient(id, time.Now())
	if err != nil {
		return err
	}
	s.metrics.RecordClientRevoked(tokensRevoked)
	return nil
}

// Delete removes the client and everything it owns from storage.
func (s *ClientService) Delete(id string) error {
	return s.store.DeleteClient(id)
}
