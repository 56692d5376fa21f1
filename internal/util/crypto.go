package util

import (
	"crypto/rand"
	"encoding/hex"
)

// CryptoRandomBytes generates cryptographically secure random bytes
func CryptoRandomBytes(length int64) ([]byte, error) {
	buf := make([]byte, length)
	_, err := rand.Read(buf)
	return buf, err
}

// CryptoRandomString generates a random hex string of the given length
func CryptoRandomString(length int) (string, error) {
	bytes, err := CryptoRandomBytes(int64((length + 1) / 2))
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes)[:length], nil
}

// SecureToken returns a 32-byte random value as 64 hex characters,
// used for access tokens, grant codes, and client secrets.
func SecureToken() (string, error) {
	bytes, err := CryptoRandomBytes(32)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
