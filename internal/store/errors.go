package store

import "errors"

var (
	// ErrNotFound wraps GORM's not found error for consistency.
	ErrNotFound = errors.New("record not found")

	// ErrGrantRedeemed is returned by RedeemAccessGrant when the grant was
	// already spent or revoked by a concurrent request (0 rows updated).
	ErrGrantRedeemed = errors.New("access grant already redeemed")

	// ErrAlreadyDecided is returned when settling an auth request that was
	// revoked or already carries an outcome.
	ErrAlreadyDecided = errors.New("authorization request already decided")
)
