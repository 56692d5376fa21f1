// Package store is the persistence layer: four keyed collections
// (clients, auth_requests, access_grants, access_tokens) plus issuers,
// backed by GORM. All mutations are single-record updates; the one
// correctness-critical primitive is RedeemAccessGrant's conditional
// update, which makes grant redemption exactly-once across concurrent
// processes sharing this database.
package store

import (
	"errors"
	"time"

	"github.com/go-tollgate/tollgate/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Store struct {
	db *gorm.DB
}

func New(driver, dsn string) (*Store, error) {
	dialector, err := GetDialector(driver, dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(
		&models.Client{},
		&models.AuthRequest{},
		&models.AccessGrant{},
		&models.AccessToken{},
		&models.Issuer{},
	); err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

// Health checks the database connection.
func (s *Store) Health() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// DB returns the underlying GORM database connection.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// Client operations

func (s *Store) CreateClient(client *models.Client) error {
	return s.db.Create(client).Error
}

func (s *Store) GetClient(id string) (*models.Client, error) {
	var client models.Client
	if err := s.db.Where("id = ?", id).First(&client).Error; err != nil {
		return nil, notFound(err)
	}
	return &client, nil
}

// LookupClient finds a client by id, display name, or link URL.
func (s *Store) LookupClient(field string) (*models.Client, error) {
	var client models.Client
	err := s.db.Where("id = ? OR display_name = ? OR link = ?", field, field, field).
		First(&client).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &client, nil
}

func (s *Store) ListClients() ([]models.Client, error) {
	var clients []models.Client
	if err := s.db.Order("display_name").Find(&clients).Error; err != nil {
		return nil, err
	}
	return clients, nil
}

func (s *Store) UpdateClient(client *models.Client) error {
	return s.db.Save(client).Error
}

// DeleteClient removes a client and every record that references it.
// This is the explicit administrative delete; revocation is the normal
// way to retire a client.
func (s *Store) DeleteClient(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{
			&models.AuthRequest{}, &models.AccessGrant{}, &models.AccessToken{},
		} {
			if err := tx.Where("client_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Where("id = ?", id).Delete(&models.Client{}).Error
	})
}

// RevokeClient stamps the client and cascades the revocation to every
// auth request, access grant, and access token it owns. Each record gets
// its own revoked timestamp; already-revoked records are left alone.
// Returns the number of access tokens revoked by the cascade.
func (s *Store) RevokeClient(id string, at time.Time) (int64, error) {
	var tokensRevoked int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Client{}).
			Where("id = ? AND revoked IS NULL", id).
			Update("revoked", at)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Already revoked or unknown; keep the operation idempotent.
			return nil
		}
		if err := tx.Model(&models.AuthRequest{}).
			Where("client_id = ? AND revoked IS NULL", id).
			Update("revoked", at).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.AccessGrant{}).
			Where("client_id = ? AND revoked IS NULL", id).
			Update("revoked", at).Error; err != nil {
			return err
		}
		res = tx.Model(&models.AccessToken{}).
			Where("client_id = ? AND revoked IS NULL", id).
			Update("revoked", at)
		if res.Error != nil {
			return res.Error
		}
		tokensRevoked = res.RowsAffected
		return tx.Model(&models.Client{}).
			Where("id = ?", id).
			Update("tokens_revoked", gorm.Expr("tokens_revoked + ?", tokensRevoked)).Error
	})
	return tokensRevoked, err
}

func (s *Store) IncrementTokensGranted(clientID string) error {
	return s.db.Model(&models.Client{}).
		Where("id = ?", clientID).
		Update("tokens_granted", gorm.Expr("tokens_granted + 1")).Error
}

func (s *Store) IncrementTokensRevoked(clientID string) error {
	return s.db.Model(&models.Client{}).
		Where("id = ?", clientID).
		Update("tokens_revoked", gorm.Expr("tokens_revoked + 1")).Error
}

// Auth request operations

func (s *Store) CreateAuthRequest(request *models.AuthRequest) error {
	return s.db.Create(request).Error
}

func (s *Store) GetAuthRequest(id string) (*models.AuthRequest, error) {
	var request models.AuthRequest
	if err := s.db.Where("id = ?", id).First(&request).Error; err != nil {
		return nil, notFound(err)
	}
	return &request, nil
}

// GrantAuthRequestCode records the code-flow outcome. The guard on
// revoked/authorized_at keeps a second decision from overwriting the
// first; the loser gets ErrAlreadyDecided.
func (s *Store) GrantAuthRequestCode(id, code string, at time.Time) error {
	res := s.db.Model(&models.AuthRequest{}).
		Where("id = ? AND revoked IS NULL AND authorized_at IS NULL", id).
		Updates(map[string]any{"grant_code": code, "authorized_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyDecided
	}
	return nil
}

// GrantAuthRequestToken records the token-flow outcome.
func (s *Store) GrantAuthRequestToken(id, token string, at time.Time) error {
	res := s.db.Model(&models.AuthRequest{}).
		Where("id = ? AND revoked IS NULL AND authorized_at IS NULL AND access_token IS NULL", id).
		Updates(map[string]any{"access_token": token, "authorized_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyDecided
	}
	return nil
}

// DenyAuthRequest records a denial: authorized_at is stamped but no
// outcome field is ever set.
func (s *Store) DenyAuthRequest(id string, at time.Time) error {
	res := s.db.Model(&models.AuthRequest{}).
		Where("id = ? AND revoked IS NULL AND authorized_at IS NULL", id).
		Update("authorized_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyDecided
	}
	return nil
}

// Access grant operations

func (s *Store) CreateAccessGrant(grant *models.AccessGrant) error {
	return s.db.Create(grant).Error
}

// GetAccessGrant returns the grant by code. Revoked grants are treated
// as not found.
func (s *Store) GetAccessGrant(code string) (*models.AccessGrant, error) {
	var grant models.AccessGrant
	err := s.db.Where("code = ? AND revoked IS NULL", code).First(&grant).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &grant, nil
}

// RedeemAccessGrant is the exactly-once redemption primitive: a
// compare-and-swap that sets granted_at and access_token only while
// both access_token and revoked are still NULL. Under concurrent
// duplicate redemptions exactly one caller sees nil; the rest get
// ErrGrantRedeemed.
func (s *Store) RedeemAccessGrant(code, token string, at time.Time) error {
	res := s.db.Model(&models.AccessGrant{}).
		Where("code = ? AND access_token IS NULL AND revoked IS NULL", code).
		Updates(map[string]any{"granted_at": at, "access_token": token})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrGrantRedeemed
	}
	return nil
}

// RevokeAccessGrant stamps the grant revoked; a no-op if already revoked.
func (s *Store) RevokeAccessGrant(code string, at time.Time) error {
	return s.db.Model(&models.AccessGrant{}).
		Where("code = ? AND revoked IS NULL", code).
		Update("revoked", at).Error
}

// Access token operations

func (s *Store) CreateAccessToken(token *models.AccessToken) error {
	return s.db.Create(token).Error
}

// GetAccessToken returns the token record whether or not it is revoked;
// the caller distinguishes revoked from expired to pick the right error.
func (s *Store) GetAccessToken(token string) (*models.AccessToken, error) {
	var t models.AccessToken
	if err := s.db.Where("token = ?", token).First(&t).Error; err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

// FindAccessToken looks up a live token for the (identity, scope,
// client) triple. Scope must already be in canonical normalized form.
func (s *Store) FindAccessToken(identity, scope, clientID string) (*models.AccessToken, error) {
	var t models.AccessToken
	err := s.db.Where(
		"identity = ? AND scope = ? AND client_id = ? AND revoked IS NULL",
		identity, scope, clientID,
	).First(&t).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (s *Store) ListAccessTokensByIdentity(identity string) ([]models.AccessToken, error) {
	var tokens []models.AccessToken
	err := s.db.Where("identity = ?", identity).
		Order("created_at DESC").
		Find(&tokens).Error
	return tokens, err
}

// TouchAccessToken shifts last_access into prev_access and records the
// new hour bucket. The guard makes it a no-op within the same bucket,
// so a busy token costs at most one write per hour.
func (s *Store) TouchAccessToken(token string, bucket time.Time) error {
	return s.db.Model(&models.AccessToken{}).
		Where("token = ? AND (last_access IS NULL OR last_access < ?)", token, bucket).
		Updates(map[string]any{
			"prev_access": gorm.Expr("last_access"),
			"last_access": bucket,
		}).Error
}

func (s *Store) RevokeAccessToken(token string, at time.Time) error {
	return s.db.Model(&models.AccessToken{}).
		Where("token = ? AND revoked IS NULL", token).
		Update("revoked", at).Error
}

// Issuer operations

func (s *Store) CreateIssuer(issuer *models.Issuer) error {
	return s.db.Create(issuer).Error
}

func (s *Store) GetIssuer(identifier string) (*models.Issuer, error) {
	var issuer models.Issuer
	if err := s.db.Where("identifier = ?", identifier).First(&issuer).Error; err != nil {
		return nil, notFound(err)
	}
	return &issuer, nil
}

func (s *Store) UpdateIssuer(issuer *models.Issuer) error {
	return s.db.Save(issuer).Error
}

func (s *Store) ListIssuers() ([]models.Issuer, error) {
	var issuers []models.Issuer
	err := s.db.Order("identifier").Find(&issuers).Error
	return issuers, err
}
