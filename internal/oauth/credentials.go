package oauth

import (
	"encoding/base64"
	"net/http"
	"strings"
)

// Credentials are the client or bearer credentials carried by a request.
// Exactly one of the fields groups is populated, indicated by Kind.
type Credentials struct {
	Kind CredentialKind

	// Basic client credentials (Kind == CredentialsBasic).
	ClientID     string
	ClientSecret string

	// Bearer token (Kind == CredentialsBearer).
	Token string
}

type CredentialKind int

const (
	CredentialsNone CredentialKind = iota
	CredentialsBasic
	CredentialsBearer
)

// ParseAuthorization parses the Authorization header into Basic client
// credentials or an OAuth bearer token. An absent, malformed, or
// unrecognized header yields CredentialsNone.
func ParseAuthorization(header string) Credentials {
	header = strings.TrimSpace(strings.ReplaceAll(header, "\n", ""))
	s, rest, found := strings.Cut(header, " ")
	if !found {
		return Credentials{Kind: CredentialsNone}
	}

	switch strings.ToLower(s) {
	case "basic":
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(rest))
		if err != nil {
			return Credentials{Kind: CredentialsNone}
		}
		id, secret, _ := strings.Cut(string(decoded), ":")
		return Credentials{Kind: CredentialsBasic, ClientID: id, ClientSecret: secret}
	case "oauth":
		token := strings.TrimSpace(rest)
		if token == "" {
			return Credentials{Kind: CredentialsNone}
		}
		return Credentials{Kind: CredentialsBearer, Token: token}
	default:
		return Credentials{Kind: CredentialsNone}
	}
}

// ClientCredentials derives (client_id, client_secret) for client
// authentication: HTTP Basic if present, else POST body, else query
// parameters. basic reports whether Basic authentication was attempted,
// which decides between a 401 challenge and a 400 JSON body on failure.
func ClientCredentials(r *http.Request) (id, secret string, basic bool) {
	if creds := ParseAuthorization(r.Header.Get("Authorization")); creds.Kind == CredentialsBasic {
		return creds.ClientID, creds.ClientSecret, true
	}
	if id := r.PostFormValue("client_id"); id != "" {
		return id, r.PostFormValue("client_secret"), false
	}
	query := r.URL.Query()
	return query.Get("client_id"), query.Get("client_secret"), false
}
