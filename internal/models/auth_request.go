package models

import "time"

// Response types an authorization request may ask for.
const (
	ResponseTypeCode  = "code"
	ResponseTypeToken = "token"
)

// AuthRequest holds the state of an in-progress authorization between
// "user asked to authorize" and "user decided". The response type is
// fixed at creation and determines which outcome field grant can ever
// populate: GrantCode for the code flow, AccessToken for the token flow.
// Neither is set after a denial.
type AuthRequest struct {
	ID       string `gorm:"primaryKey"`
	ClientID string `gorm:"not null;index"`
	// Requested scope, a subset of the client's allowed scope.
	Scope       string `gorm:"not null"`
	RedirectURI string `gorm:"not null"`
	// Opaque value the client asked us to echo back on redirect.
	State        string
	ResponseType string `gorm:"not null"`
	CreatedAt    time.Time

	GrantCode    *string
	AccessToken  *string
	AuthorizedAt *time.Time
	Revoked      *time.Time
}

// IsDecided reports whether the request was already granted or denied.
func (r *AuthRequest) IsDecided() bool {
	return r.AuthorizedAt != nil
}

func (r *AuthRequest) IsRevoked() bool {
	return r.Revoked != nil
}

func (AuthRequest) TableName() string {
	return "auth_requests"
}
