// Package auth runs the OAuth 1.0a handshake against Telldus Live and keeps
// the stored access token valid.
package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/telltales/telltales-cli/credentials"
	"github.com/telltales/telltales-cli/logging"
	"github.com/telltales/telltales-cli/tui"
)

// Config configures an Authenticator. Zero values select the defaults.
type Config struct {
	BaseURL         string
	HTTPClient      *http.Client
	Displayer       tui.Displayer
	Prompter        tui.Prompter
	CallbackTimeout time.Duration
}

// Authenticator validates credentials and, when needed, obtains new access
// tokens through the three-legged OAuth flow.
type Authenticator struct {
	endpoints       Endpoints
	httpClient      *http.Client
	displayer       tui.Displayer
	prompter        tui.Prompter
	callbackTimeout time.Duration
}

// New creates an Authenticator.
func New(cfg Config) *Authenticator {
	a := &Authenticator{
		endpoints:       EndpointsFor(cfg.BaseURL),
		httpClient:      cfg.HTTPClient,
		displayer:       cfg.Displayer,
		prompter:        cfg.Prompter,
		callbackTimeout: cfg.CallbackTimeout,
	}
	if cfg.BaseURL == "" {
		a.endpoints = EndpointsFor(DefaultBaseURL)
	}
	if a.httpClient == nil {
		a.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if a.displayer == nil {
		a.displayer = tui.NoopDisplayer{}
	}
	if a.callbackTimeout <= 0 {
		a.callbackTimeout = DefaultCallbackTimeout
	}
	return a
}

// Endpoints returns the endpoint set in use.
func (a *Authenticator) Endpoints() Endpoints {
	return a.endpoints
}

// Outcome is the result of Validate. Credentials carries the pair that was
// verified; callers persist it when TokensRefreshed is set.
type Outcome struct {
	TokensRefreshed bool
	AccountName     string
	Credentials     credentials.Credentials
}

// Validate makes sure creds hold a working access token. Without a stored
// token a handshake runs first. When the profile endpoint rejects the token,
// exactly one new handshake is performed and verification is retried once.
// creds itself is never modified.
func (a *Authenticator) Validate(ctx context.Context, creds credentials.Credentials) (Outcome, error) {
	if !creds.IsComplete() {
		return Outcome{}, ErrMissingConsumerKeys
	}

	working := creds
	refreshed := false

	if !working.HasToken() {
		a.displayer.TokensNotFound()
		token, secret, err := a.handshake(ctx, working)
		if err != nil {
			return Outcome{}, err
		}
		working = working.WithToken(token, secret)
		refreshed = true
	} else {
		a.displayer.TokensFound()
	}

	a.displayer.Verifying()
	name, err := a.VerifyProfile(ctx, working)
	if errors.Is(err, ErrUnauthorized) {
		logging.Logger(ctx).Debug("profile returned 401, re-authorizing")
		a.displayer.StoredTokensRejected()

		token, secret, err := a.handshake(ctx, working)
		if err != nil {
			return Outcome{}, err
		}
		working = working.WithToken(token, secret)
		refreshed = true

		a.displayer.Verifying()
		name, err = a.VerifyProfile(ctx, working)
		if err != nil {
			return Outcome{}, err
		}
	} else if err != nil {
		return Outcome{}, err
	}

	a.displayer.VerifyOK(name)
	return Outcome{TokensRefreshed: refreshed, AccountName: name, Credentials: working}, nil
}

// handshake runs request token, verifier acquisition and access-token
// exchange. The callback listener is bound before the request-token call so
// the redirect cannot arrive early, and is closed when the handshake returns.
func (a *Authenticator) handshake(ctx context.Context, creds credentials.Credentials) (string, string, error) {
	ctx = logging.WithHandshakeID(ctx, uuid.New().String())
	logging.Logger(ctx).Debug("starting OAuth handshake")

	listener, err := startCallbackListener(ctx)
	if err != nil {
		return "", "", err
	}
	defer listener.close()

	a.displayer.RequestingToken()
	temp, err := a.RequestToken(ctx, creds, listener.url)
	if err != nil {
		return "", "", errors.Wrap(err, "request token failed")
	}

	deadline := time.Now().Add(a.callbackTimeout)
	a.displayer.AuthorizeURLReady(a.endpoints.AuthorizeURL(temp.Token), listener.url, deadline)

	verifier, err := a.awaitVerifier(ctx, listener)
	if err != nil {
		return "", "", err
	}

	a.displayer.ExchangingToken()
	token, secret, err := a.ExchangeAccessToken(ctx, creds, temp, verifier)
	if err != nil {
		return "", "", errors.Wrap(err, "access token exchange failed")
	}

	a.displayer.AuthSuccess()
	logging.Logger(ctx).Debug("OAuth handshake complete")
	return token, secret, nil
}
