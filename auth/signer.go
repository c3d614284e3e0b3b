package auth

import (
	"net/http"

	"github.com/gomodule/oauth1/oauth"
	"github.com/pkg/errors"

	"github.com/telltales/telltales-cli/credentials"
	"github.com/telltales/telltales-cli/version"
)

// Signer is an http.RoundTripper that adds an OAuth 1.0a HMAC-SHA1
// Authorization header to every request. URL query parameters are part of
// the signature. A fresh nonce and timestamp are generated per attempt.
type Signer struct {
	client oauth.Client
	token  *oauth.Credentials
	base   http.RoundTripper
}

// NewSigner signs with the consumer pair and, when token is non-empty, the
// token pair. A nil base selects http.DefaultTransport.
func NewSigner(consumerKey, consumerSecret, token, tokenSecret string, base http.RoundTripper) *Signer {
	if base == nil {
		base = http.DefaultTransport
	}
	s := &Signer{
		client: oauth.Client{
			Credentials:     oauth.Credentials{Token: consumerKey, Secret: consumerSecret},
			SignatureMethod: oauth.HMACSHA1,
		},
		base: base,
	}
	if token != "" {
		s.token = &oauth.Credentials{Token: token, Secret: tokenSecret}
	}
	return s
}

func (s *Signer) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	if r.Header.Get("User-Agent") == "" {
		r.Header.Set("User-Agent", version.UserAgent())
	}
	if err := s.client.SetAuthorizationHeader(r.Header, s.token, r.Method, r.URL, nil); err != nil {
		return nil, errors.Wrap(err, "signing request")
	}
	return s.base.RoundTrip(r)
}

// signedClient returns a shallow copy of base whose transport signs requests.
func signedClient(base *http.Client, consumerKey, consumerSecret, token, tokenSecret string) *http.Client {
	if base == nil {
		base = http.DefaultClient
	}
	c := *base
	c.Transport = NewSigner(consumerKey, consumerSecret, token, tokenSecret, base.Transport)
	return &c
}

// SignedClient returns an http.Client signing with the consumer keys and
// access token pair held in creds.
func SignedClient(base *http.Client, creds credentials.Credentials) *http.Client {
	return signedClient(base, creds.PublicKey, creds.PrivateKey, creds.Token, creds.TokenSecret)
}
