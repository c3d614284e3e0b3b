package auth

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/telltales/telltales-cli/logging"
)

const (
	callbackPath        = "/callback"
	callbackReadTimeout = 10 * time.Second

	// DefaultCallbackTimeout is how long the browser redirect is awaited before
	// falling back to manual entry.
	DefaultCallbackTimeout = 300 * time.Second

	verifierPromptLabel = "Verification code or redirect URL"
)

const callbackSuccessPage = `<!DOCTYPE html>
<html><head><title>telltales</title></head>
<body><h1>Authorization complete</h1><p>You can close this window and return to the terminal.</p></body>
</html>
`

const callbackErrorPage = `<!DOCTYPE html>
<html><head><title>telltales</title></head>
<body><h1>Authorization failed</h1><p>The redirect did not carry a verification code. Return to the terminal and paste the code manually.</p></body>
</html>
`

type callbackResult struct {
	verifier string
	err      error
}

// callbackListener accepts exactly one redirect from the authorization server.
type callbackListener struct {
	ln     net.Listener
	url    string
	result chan callbackResult
}

// startCallbackListener binds an OS-assigned loopback port and starts
// waiting for the redirect in the background.
func startCallbackListener(ctx context.Context) (*callbackListener, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, &ListenerError{Op: "bind", Err: err}
	}

	port := ln.Addr().(*net.TCPAddr).Port
	l := &callbackListener{
		ln:     ln,
		url:    fmt.Sprintf("http://127.0.0.1:%d%s", port, callbackPath),
		result: make(chan callbackResult, 1),
	}
	logging.Logger(ctx).Debugf("callback listener bound at %s", l.url)

	go l.serve(ctx)
	return l, nil
}

func (l *callbackListener) close() {
	_ = l.ln.Close()
}

func (l *callbackListener) serve(ctx context.Context) {
	conn, err := l.ln.Accept()
	if err != nil {
		l.result <- callbackResult{err: &ListenerError{Op: "accept", Err: err}}
		return
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(callbackReadTimeout))

	verifier, err := readCallback(conn)
	status, page := http.StatusOK, callbackSuccessPage
	if err != nil {
		status, page = http.StatusBadRequest, callbackErrorPage
	}
	if werr := writeCallbackResponse(conn, status, page); werr != nil {
		logging.Logger(ctx).WithError(werr).Debug("failed to answer callback request")
	}

	logging.Logger(ctx).Debugf("callback delivered (status %d)", status)
	l.result <- callbackResult{verifier: verifier, err: err}
}

func readCallback(conn net.Conn) (string, error) {
	req, err := http.ReadRequest(bufio.NewReader(conn))
	if err != nil {
		return "", &ListenerError{Op: "read", Err: err}
	}
	if req.Body != nil {
		req.Body.Close()
	}

	verifier, _ := queryValue(req.URL.RawQuery, "oauth_verifier")
	verifier = strings.TrimSpace(verifier)
	if verifier == "" {
		return "", &ListenerError{Op: "parse", Err: ErrVerifierNotFound}
	}
	return verifier, nil
}

func writeCallbackResponse(w io.Writer, status int, page string) error {
	resp := &http.Response{
		StatusCode:    status,
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        http.Header{"Content-Type": {"text/html; charset=utf-8"}},
		ContentLength: int64(len(page)),
		Body:          io.NopCloser(strings.NewReader(page)),
		Close:         true,
	}
	return resp.Write(w)
}

// awaitVerifier returns whichever verifier arrives first: the browser
// redirect, or manual input once the callback timeout has elapsed. A redirect
// arriving after the fallback started is not consulted.
func (a *Authenticator) awaitVerifier(ctx context.Context, l *callbackListener) (string, error) {
	timer := time.NewTimer(a.callbackTimeout)
	defer timer.Stop()

	select {
	case res := <-l.result:
		if res.err != nil {
			return "", res.err
		}
		a.displayer.CallbackReceived()
		return res.verifier, nil
	case <-timer.C:
		logging.Logger(ctx).Debug("callback wait timed out, asking for manual entry")
		a.displayer.CallbackTimedOut()
		return a.promptVerifier(ctx)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (a *Authenticator) promptVerifier(ctx context.Context) (string, error) {
	if a.prompter == nil {
		return "", errors.New("no prompt available for manual verification entry")
	}
	input, err := a.prompter.Prompt(ctx, verifierPromptLabel, false)
	if err != nil {
		return "", errors.Wrap(err, "reading verification code")
	}
	return ExtractVerifier(input)
}

// ExtractVerifier pulls the oauth_verifier out of manually entered text. The
// input may be the bare code or the full redirect URL.
func ExtractVerifier(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", ErrMissingVerifier
	}

	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return trimmed, nil
	}

	if u.RawQuery == "" {
		return "", ErrVerifierNotFound
	}
	verifier, ok := queryValue(u.RawQuery, "oauth_verifier")
	if !ok {
		return "", ErrVerifierNotFound
	}
	if verifier == "" {
		return "", ErrMissingVerifier
	}
	return verifier, nil
}

// queryValue returns the first value of key in rawQuery. Unlike url.Query it
// keeps pairs with malformed escapes, returning them undecoded.
func queryValue(rawQuery, key string) (string, bool) {
	for _, pair := range strings.Split(rawQuery, "&") {
		k, v, _ := strings.Cut(pair, "=")
		if formUnescape(k) == key {
			return formUnescape(v), true
		}
	}
	return "", false
}

func formUnescape(s string) string {
	if u, err := url.QueryUnescape(s); err == nil {
		return u
	}
	return strings.ReplaceAll(s, "+", " ")
}
