package auth

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telltales/telltales-cli/credentials"
	"github.com/telltales/telltales-cli/tui"
)

func TestValidate_MissingConsumerKeys(t *testing.T) {
	a := New(Config{
		BaseURL:    "http://127.0.0.1:1",
		HTTPClient: &http.Client{Transport: panicTransport{}},
	})

	tests := []struct {
		name  string
		creds credentials.Credentials
	}{
		{"both blank", credentials.Credentials{}},
		{"public blank", credentials.Credentials{PrivateKey: "secret", Token: "t", TokenSecret: "s"}},
		{"private whitespace", credentials.Credentials{PublicKey: "key", PrivateKey: "   "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Validate(context.Background(), tt.creds)
			assert.ErrorIs(t, err, ErrMissingConsumerKeys)
		})
	}
}

func TestValidate_StoredTokensValid(t *testing.T) {
	p := newFakeProvider(t)
	p.allow("stored")
	d := &recordingDisplayer{}

	creds := consumerOnly().WithToken("stored", "stored-secret")
	out, err := p.authenticator(nil, d, time.Minute).Validate(context.Background(), creds)
	require.NoError(t, err)

	assert.False(t, out.TokensRefreshed)
	assert.Equal(t, "Ada Lovelace", out.AccountName)
	assert.Equal(t, creds, out.Credentials)
	assert.Equal(t, int32(0), p.requestTokenHits.Load())
	assert.Equal(t, int32(0), p.accessTokenHits.Load())
	assert.Equal(t, int32(1), p.profileHits.Load())
	assert.Equal(t, []string{"tokens-found"}, d.Events())
}

func TestValidate_NoStoredToken(t *testing.T) {
	p := newFakeProvider(t)
	d := &recordingDisplayer{}

	creds := consumerOnly()
	out, err := p.authenticator(nil, d, time.Minute).Validate(context.Background(), creds)
	require.NoError(t, err)

	assert.True(t, out.TokensRefreshed)
	assert.Equal(t, "Ada Lovelace", out.AccountName)
	assert.Equal(t, "access-1", out.Credentials.Token)
	assert.Equal(t, "access-secret-1", out.Credentials.TokenSecret)
	assert.Equal(t, "consumer-key", out.Credentials.PublicKey)
	assert.Empty(t, creds.Token, "input credentials must not be modified")

	assert.Equal(t, int32(1), p.requestTokenHits.Load())
	assert.Equal(t, int32(1), p.accessTokenHits.Load())
	assert.Equal(t, int32(1), p.profileHits.Load())

	p.mu.Lock()
	callbacks := append([]string(nil), p.callbacks...)
	p.mu.Unlock()
	require.Len(t, callbacks, 1)
	assert.True(t, strings.HasPrefix(callbacks[0], "http://127.0.0.1:"))
	assert.True(t, strings.HasSuffix(callbacks[0], "/callback"))
	assert.Eventually(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return len(p.callbackCodes) == 1 && p.callbackCodes[0] == http.StatusOK
	}, time.Second, 10*time.Millisecond)

	events := d.Events()
	require.Len(t, events, 4)
	assert.Equal(t, "tokens-not-found", events[0])
	assert.Equal(t, "authorize "+p.srv.URL+"/oauth/authorize?oauth_token=temp-1", events[1])
	assert.Equal(t, []string{"callback-received", "auth-success"}, events[2:])
}

func TestValidate_RejectedTokensTriggerOneHandshake(t *testing.T) {
	p := newFakeProvider(t)
	d := &recordingDisplayer{}

	creds := consumerOnly().WithToken("revoked", "revoked-secret")
	out, err := p.authenticator(nil, d, time.Minute).Validate(context.Background(), creds)
	require.NoError(t, err)

	assert.True(t, out.TokensRefreshed)
	assert.Equal(t, "Ada Lovelace", out.AccountName)
	assert.Equal(t, "access-1", out.Credentials.Token)
	assert.Equal(t, "revoked", creds.Token)

	assert.Equal(t, int32(1), p.requestTokenHits.Load())
	assert.Equal(t, int32(1), p.accessTokenHits.Load())
	assert.Equal(t, int32(2), p.profileHits.Load())
	assert.Contains(t, d.Events(), "stored-tokens-rejected")
}

func TestValidate_SecondRejectionPropagates(t *testing.T) {
	p := newFakeProvider(t)
	creds := consumerOnly().WithToken("revoked", "revoked-secret")

	a := p.authenticator(nil, nil, time.Minute)
	a.httpClient = &http.Client{Transport: rejectIssuedTokens{base: http.DefaultTransport}}

	_, err := a.Validate(context.Background(), creds)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)

	assert.Equal(t, int32(1), p.requestTokenHits.Load())
	assert.Equal(t, int32(1), p.accessTokenHits.Load())
	assert.Equal(t, int32(2), p.profileHits.Load())
}

// rejectIssuedTokens strips the Authorization header from profile calls so
// every token looks invalid to the fake provider.
type rejectIssuedTokens struct {
	base http.RoundTripper
}

func (r rejectIssuedTokens) RoundTrip(req *http.Request) (*http.Response, error) {
	if strings.HasSuffix(req.URL.Path, "/json/user/profile") {
		req = req.Clone(req.Context())
		req.Header.Del("Authorization")
	}
	return r.base.RoundTrip(req)
}

func TestValidate_ManualEntryAfterTimeout(t *testing.T) {
	p := newFakeProvider(t)
	p.redirect = false
	d := &recordingDisplayer{}
	prompter := &scriptedPrompter{answers: []string{"  http://127.0.0.1:9/callback?oauth_verifier=v-1  "}}

	out, err := p.authenticator(prompter, d, 50*time.Millisecond).Validate(context.Background(), consumerOnly())
	require.NoError(t, err)

	assert.True(t, out.TokensRefreshed)
	assert.Equal(t, "access-1", out.Credentials.Token)
	assert.Equal(t, []string{"Verification code or redirect URL"}, prompter.labels)
	assert.Contains(t, d.Events(), "callback-timed-out")
	assert.NotContains(t, d.Events(), "callback-received")
}

func TestValidate_LateCallbackAfterManualEntry(t *testing.T) {
	p := newFakeProvider(t)
	p.redirect = false
	d := &recordingDisplayer{}

	var lateStatus int
	prompter := &scriptedPrompter{answers: []string{"v-1"}}
	prompter.beforeAnswer = func() {
		resp, err := http.Get(p.firstCallback() + "?oauth_verifier=late")
		if err != nil {
			t.Errorf("late callback: %v", err)
			return
		}
		resp.Body.Close()
		lateStatus = resp.StatusCode
	}

	out, err := p.authenticator(prompter, d, 20*time.Millisecond).Validate(context.Background(), consumerOnly())
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, lateStatus, "browser still gets the success page")
	assert.Equal(t, "access-1", out.Credentials.Token)
	assert.Equal(t, []string{"v-1"}, p.exchangedVerifiers())
	assert.NotContains(t, d.Events(), "callback-received")
}

func TestValidate_CancelDuringManualEntry(t *testing.T) {
	p := newFakeProvider(t)
	p.redirect = false

	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)

	done := make(chan error, 1)
	go func() {
		_, err := p.authenticator(tui.NewLinePrompter(pr, io.Discard), nil, 20*time.Millisecond).Validate(ctx, consumerOnly())
		done <- err
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Validate kept waiting for input after cancellation")
	}
	assert.Equal(t, int32(0), p.accessTokenHits.Load())
}

func TestValidate_ManualEntryBareCode(t *testing.T) {
	p := newFakeProvider(t)
	p.redirect = false
	prompter := &scriptedPrompter{answers: []string{"v-1"}}

	out, err := p.authenticator(prompter, nil, 10*time.Millisecond).Validate(context.Background(), consumerOnly())
	require.NoError(t, err)
	assert.Equal(t, "access-1", out.Credentials.Token)
}

func TestValidate_ManualEntryWithoutVerifier(t *testing.T) {
	p := newFakeProvider(t)
	p.redirect = false
	prompter := &scriptedPrompter{answers: []string{"http://127.0.0.1:9/callback?foo=1"}}

	_, err := p.authenticator(prompter, nil, 10*time.Millisecond).Validate(context.Background(), consumerOnly())
	assert.ErrorIs(t, err, ErrVerifierNotFound)
	assert.Equal(t, int32(0), p.accessTokenHits.Load(), "no exchange without a verifier")
}

func TestValidate_CallbackWithoutVerifier(t *testing.T) {
	p := newFakeProvider(t)
	p.redirectQuery = "denied=%d"

	_, err := p.authenticator(nil, nil, time.Minute).Validate(context.Background(), consumerOnly())
	require.Error(t, err)

	var lerr *ListenerError
	require.True(t, errors.As(err, &lerr), "expected ListenerError, got %v", err)
	assert.Equal(t, "parse", lerr.Op)
	assert.ErrorIs(t, err, ErrVerifierNotFound)
	assert.Equal(t, int32(0), p.accessTokenHits.Load())

	assert.Eventually(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return len(p.callbackCodes) == 1 && p.callbackCodes[0] == http.StatusBadRequest
	}, time.Second, 10*time.Millisecond)
}

func TestValidate_AuthorizationDenied(t *testing.T) {
	p := newFakeProvider(t)
	p.requestTokenBody = "oauth_problem=user_refused"

	_, err := p.authenticator(nil, nil, time.Minute).Validate(context.Background(), consumerOnly())
	assert.ErrorIs(t, err, ErrAuthorizationDenied)
	assert.Equal(t, int32(0), p.accessTokenHits.Load())
	assert.Equal(t, int32(0), p.profileHits.Load())
}

func TestValidate_ProfileFailureIsNotRetried(t *testing.T) {
	p := newFakeProvider(t)
	p.allow("stored")
	p.profileBody = `{"status":"failure"}`

	_, err := p.authenticator(nil, nil, time.Minute).Validate(
		context.Background(), consumerOnly().WithToken("stored", "stored-secret"))

	var vf *VerificationFailedError
	require.True(t, errors.As(err, &vf))
	assert.Equal(t, "failure", vf.Reason)
	assert.Equal(t, int32(0), p.requestTokenHits.Load())
	assert.Equal(t, int32(1), p.profileHits.Load())
}

func TestValidate_ContextCancelledWhileWaiting(t *testing.T) {
	p := newFakeProvider(t)
	p.redirect = false

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := p.authenticator(nil, nil, time.Minute).Validate(ctx, consumerOnly())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(0), p.accessTokenHits.Load())
}

func TestNew_Defaults(t *testing.T) {
	a := New(Config{})
	assert.Equal(t, EndpointsFor(DefaultBaseURL), a.Endpoints())
	assert.Equal(t, DefaultCallbackTimeout, a.callbackTimeout)
	assert.NotNil(t, a.httpClient)
	assert.NotNil(t, a.displayer)
}
