package models

import (
	"crypto/subtle"
	"time"
)

// Client is a registered third-party application. The secret is a long
// random string compared exactly (constant-time); clients are never
// physically deleted except by an explicit administrative delete.
type Client struct {
	ID          string `gorm:"primaryKey"`
	Secret      string `gorm:"not null"`
	DisplayName string `gorm:"index"`
	Link        string `gorm:"index"`
	ImageURL    string
	// Registered redirect URI. Empty means the client did not register
	// one and any URI supplied by the authorization request is trusted.
	RedirectURI string
	// Allowed scope, space-separated and normalized.
	Scope     string `gorm:"not null"`
	Notes     string `gorm:"type:text"`
	CreatedAt time.Time
	// Set-once: a revoked client can still authenticate for reads but no
	// new grants are ever issued for it.
	Revoked *time.Time `gorm:"index"`

	TokensGranted int64 `gorm:"not null;default:0"`
	TokensRevoked int64 `gorm:"not null;default:0"`
}

func (c *Client) IsRevoked() bool {
	return c.Revoked != nil
}

// SecretMatches compares a presented secret against the stored one in
// constant time.
func (c *Client) SecretMatches(secret string) bool {
	return subtle.ConstantTimeCompare([]byte(c.Secret), []byte(secret)) == 1
}

func (Client) TableName() string {
	return "clients"
}
