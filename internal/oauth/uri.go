package oauth

import (
	"net/url"
)

// ParseRedirectURI validates and normalizes a client redirect URI.
// The URI must be absolute with an http or https scheme; anything else
// is an invalid_request, because there is no safe location to redirect
// an error to.
func ParseRedirectURI(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, BadRequest("Missing redirect URI.")
	}
	uri, err := url.Parse(raw)
	if err != nil {
		return nil, BadRequest("Redirect URI must be a valid URI.")
	}
	if !uri.IsAbs() || uri.Host == "" {
		return nil, BadRequest("Redirect URI must be an absolute URI.")
	}
	if uri.Scheme != "http" && uri.Scheme != "https" {
		return nil, BadRequest("Redirect URI must point to an HTTP/S location.")
	}
	uri.Fragment = ""
	return uri, nil
}

// RedirectParams are the parameters appended to a terminal redirect.
// Empty values are omitted.
type RedirectParams map[string]string

// AppendQuery merges params into the redirect URI's query string,
// preserving any query parameters the client registered.
func AppendQuery(uri *url.URL, params RedirectParams) string {
	out := *uri
	query := out.Query()
	for key, value := range params {
		if value != "" {
			query.Set(key, value)
		}
	}
	out.RawQuery = query.Encode()
	return out.String()
}

// AppendFragment places params in the URI fragment. Used for the
// implicit (token) response so credentials never reach server logs or
// intermediaries: fragments are not sent over the wire.
func AppendFragment(uri *url.URL, params RedirectParams) string {
	out := *uri
	values := url.Values{}
	for key, value := range params {
		if value != "" {
			values.Set(key, value)
		}
	}
	out.Fragment = ""
	return out.String() + "#" + values.Encode()
}
