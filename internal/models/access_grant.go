package models

import "time"

// AccessGrant is a single-use authorization code. The code itself is the
// primary key: a fresh high-entropy nonce per grant, good for redeeming
// exactly one access token. Redemption is guarded by a conditional
// update on (access_token IS NULL AND revoked IS NULL), not by any
// in-process lock, so concurrent duplicate redemptions are safe across
// server processes.
type AccessGrant struct {
	Code     string `gorm:"primaryKey"`
	Identity string `gorm:"not null"`
	ClientID string `gorm:"not null;index"`
	// Redirect URI pinned at issuance; the token endpoint requires the
	// redemption request to present the same one.
	RedirectURI string
	// Intersection of the requested scope and the client's allowed scope.
	Scope     string `gorm:"not null"`
	CreatedAt time.Time
	ExpiresAt time.Time

	GrantedAt *time.Time
	// Token minted on redemption. Set exactly once; a non-nil value means
	// the grant is spent.
	AccessToken *string
	Revoked     *time.Time
}

func (g *AccessGrant) IsExpired() bool {
	return !time.Now().Before(g.ExpiresAt)
}

func (g *AccessGrant) IsRevoked() bool {
	return g.Revoked != nil
}

// IsRedeemed reports whether an access token was already minted from
// this grant.
func (g *AccessGrant) IsRedeemed() bool {
	return g.AccessToken != nil
}

func (AccessGrant) TableName() string {
	return "access_grants"
}
