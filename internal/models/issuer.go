package models

import "time"

// Issuer is a third party trusted to sign assertions for the JWT-bearer
// grant. It carries an HMAC shared secret for HS* algorithms and/or a
// PEM-encoded RSA public key for RS* algorithms.
type Issuer struct {
	Identifier string `gorm:"primaryKey"`
	HMACSecret string
	PublicKey  string `gorm:"type:text"`
	Notes      string `gorm:"type:text"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (Issuer) TableName() string {
	return "issuers"
}
