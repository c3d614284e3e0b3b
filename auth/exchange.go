package auth

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/telltales/telltales-cli/credentials"
	"github.com/telltales/telltales-cli/logging"
)

// DefaultBaseURL is the Telldus Live API host.
const DefaultBaseURL = "https://pa-api.telldus.com"

// maxErrorBody caps how much of a failed response ends up in an HTTPStatusError.
const maxErrorBody = 512

// Endpoints are the fixed OAuth and profile URLs of one API host.
type Endpoints struct {
	RequestToken string
	Authorize    string
	AccessToken  string
	Profile      string
}

// EndpointsFor derives the endpoint set from a base URL such as DefaultBaseURL.
func EndpointsFor(baseURL string) Endpoints {
	base := strings.TrimRight(baseURL, "/")
	return Endpoints{
		RequestToken: base + "/oauth/requestToken",
		Authorize:    base + "/oauth/authorize",
		AccessToken:  base + "/oauth/accessToken",
		Profile:      base + "/json/user/profile",
	}
}

// AuthorizeURL is the page the user opens to grant access to token.
func (e Endpoints) AuthorizeURL(token string) string {
	return e.Authorize + "?" + url.Values{"oauth_token": {token}}.Encode()
}

// TempToken is the request-token pair of a single handshake.
type TempToken struct {
	Token  string
	Secret string
}

// RequestToken obtains a TempToken, declaring callbackURL as the redirect target.
func (a *Authenticator) RequestToken(ctx context.Context, creds credentials.Credentials, callbackURL string) (TempToken, error) {
	client := signedClient(a.httpClient, creds.PublicKey, creds.PrivateKey, "", "")
	query := url.Values{"oauth_callback": {callbackURL}}

	body, err := postToken(ctx, client, a.endpoints.RequestToken, query)
	if err != nil {
		return TempToken{}, err
	}
	temp, err := parseTokenResponse(body)
	if err != nil {
		return TempToken{}, err
	}

	logging.Logger(ctx).Debugf("received request token %s", logging.Redact(temp.Token))
	return temp, nil
}

// ExchangeAccessToken redeems temp and verifier for an access token pair.
// The request is sent exactly once.
func (a *Authenticator) ExchangeAccessToken(
	ctx context.Context,
	creds credentials.Credentials,
	temp TempToken,
	verifier string,
) (string, string, error) {
	client := signedClient(a.httpClient, creds.PublicKey, creds.PrivateKey, temp.Token, temp.Secret)
	query := url.Values{"oauth_verifier": {strings.TrimSpace(verifier)}}

	body, err := postToken(ctx, client, a.endpoints.AccessToken, query)
	if err != nil {
		return "", "", err
	}
	access, err := parseTokenResponse(body)
	if err != nil {
		return "", "", err
	}

	logging.Logger(ctx).Debugf("received access token %s", logging.Redact(access.Token))
	return access.Token, access.Secret, nil
}

func postToken(ctx context.Context, client *http.Client, endpoint string, query url.Values) (string, error) {
	target := endpoint + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, nil)
	if err != nil {
		return "", errors.Wrapf(err, "failed to create request for %s", endpoint)
	}

	logging.Logger(ctx).Debugf("POST %s", endpoint)
	resp, err := client.Do(req)
	if err != nil {
		return "", errors.Wrapf(err, "POST %s failed", endpoint)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "failed to read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", newHTTPStatusError(http.MethodPost, endpoint, resp.StatusCode, body)
	}
	return string(body), nil
}

func newHTTPStatusError(method, endpoint string, status int, body []byte) *HTTPStatusError {
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody] + "..."
	}
	return &HTTPStatusError{Method: method, URL: endpoint, StatusCode: status, Body: text}
}

// parseTokenResponse decodes an oauth_token / oauth_token_secret body.
func parseTokenResponse(body string) (TempToken, error) {
	values, err := url.ParseQuery(strings.TrimSpace(body))
	if err != nil {
		return TempToken{}, &ResponseParseError{Err: err}
	}

	if values.Has("oauth_problem") {
		problem := values.Get("oauth_problem")
		if problem == "user_refused" {
			return TempToken{}, ErrAuthorizationDenied
		}
		return TempToken{}, &VerificationFailedError{Reason: problem}
	}

	if !values.Has("oauth_token") {
		return TempToken{}, &MissingFieldError{Field: "oauth_token"}
	}
	if !values.Has("oauth_token_secret") {
		return TempToken{}, &MissingFieldError{Field: "oauth_token_secret"}
	}

	return TempToken{
		Token:  values.Get("oauth_token"),
		Secret: values.Get("oauth_token_secret"),
	}, nil
}
