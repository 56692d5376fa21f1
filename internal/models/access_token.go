package models

import "time"

// AccessToken is the bearer credential clients present to access
// protected resources. The token string is the primary key. A nil
// ExpiresAt means the token never expires; usage timestamps are kept at
// hour granularity to bound write traffic.
type AccessToken struct {
	Token    string `gorm:"primaryKey"`
	Identity string `gorm:"not null;index"`
	ClientID string `gorm:"not null;index"`
	// Granted scope, space-separated and normalized. Issuance is
	// idempotent per (identity, scope, client), so the canonical string
	// form doubles as the lookup key.
	Scope     string `gorm:"not null"`
	CreatedAt time.Time `gorm:"index"`
	ExpiresAt *time.Time
	Revoked   *time.Time `gorm:"index"`

	// Hour-bucket usage timestamps: LastAccess is the current bucket,
	// PrevAccess the one before it.
	LastAccess *time.Time
	PrevAccess *time.Time
}

func (t *AccessToken) IsExpired() bool {
	return t.ExpiresAt != nil && !time.Now().Before(*t.ExpiresAt)
}

func (t *AccessToken) IsRevoked() bool {
	return t.Revoked != nil
}

func (AccessToken) TableName() string {
	return "access_tokens"
}
