package tui

import (
	"fmt"
	"io"
	"time"

	tea "charm.land/bubbletea/v2"
)

// Displayer abstracts all user-facing output of the authorization flow.
type Displayer interface {
	Banner()
	CredentialsFile(path string)
	TokensFound()
	TokensNotFound()
	RequestingToken()
	AuthorizeURLReady(authorizeURL, callbackURL string, deadline time.Time)
	CallbackReceived()
	CallbackTimedOut()
	ExchangingToken()
	AuthSuccess()
	StoredTokensRejected()
	Verifying()
	VerifyOK(account string)
	TokenSaved(path string)
	TokenSaveFailed(err error)
	Done(account string, refreshed bool)
	Fatal(err error)
}

// PlainDisplayer writes plain text output to w.
// Used when stderr is not a TTY (pipes, CI, SSH without pty).
type PlainDisplayer struct {
	w io.Writer
}

// NewPlainDisplayer creates a PlainDisplayer that writes to w.
func NewPlainDisplayer(w io.Writer) *PlainDisplayer {
	return &PlainDisplayer{w: w}
}

func (p *PlainDisplayer) Banner() {
	fmt.Fprintln(p.w, "=== Telldus Live ===")
	fmt.Fprintln(p.w)
}

func (p *PlainDisplayer) CredentialsFile(path string) {
	fmt.Fprintf(p.w, "Using credentials file at %s\n", path)
}

func (p *PlainDisplayer) TokensFound() {
	fmt.Fprintln(p.w, "Found stored OAuth access token.")
}

func (p *PlainDisplayer) TokensNotFound() {
	fmt.Fprintln(p.w, "No stored OAuth access token, starting authorization...")
}

func (p *PlainDisplayer) RequestingToken() {
	fmt.Fprintln(p.w, "Requesting a temporary token from Telldus Live...")
}

func (p *PlainDisplayer) AuthorizeURLReady(authorizeURL, callbackURL string, deadline time.Time) {
	fmt.Fprintln(p.w, "----------------------------------------")
	fmt.Fprintln(p.w, "Open the following URL in your browser, authorize access, and press \"Confirm\":")
	fmt.Fprintln(p.w, authorizeURL)
	fmt.Fprintln(p.w)
	fmt.Fprintf(p.w, "Telldus Live will redirect your browser to %s and the code is picked up automatically.\n", callbackURL)
	fmt.Fprintf(
		p.w,
		"If nothing happens by %s, you will be asked to paste the verification code or the full redirect URL.\n",
		deadline.Format("15:04:05"),
	)
	fmt.Fprintln(p.w, "----------------------------------------")
}

func (p *PlainDisplayer) CallbackReceived() {
	fmt.Fprintln(p.w, "Received authorization callback from the browser.")
}

func (p *PlainDisplayer) CallbackTimedOut() {
	fmt.Fprintln(p.w, "No browser callback received, falling back to manual entry.")
}

func (p *PlainDisplayer) ExchangingToken() {
	fmt.Fprintln(p.w, "Exchanging verifier for an access token...")
}

func (p *PlainDisplayer) AuthSuccess() {
	fmt.Fprintln(p.w, "Authorization successful!")
}

func (p *PlainDisplayer) StoredTokensRejected() {
	fmt.Fprintln(p.w, "Stored tokens were rejected by Telldus Live; starting OAuth flow.")
}

func (p *PlainDisplayer) Verifying() {
	fmt.Fprintln(p.w, "Verifying credentials with Telldus Live...")
}

func (p *PlainDisplayer) VerifyOK(account string) {
	if account != "" {
		fmt.Fprintf(p.w, "Profile: %s\n", account)
	}
}

func (p *PlainDisplayer) TokenSaved(path string) {
	fmt.Fprintf(p.w, "Stored refreshed OAuth access token in %s.\n", path)
}

func (p *PlainDisplayer) TokenSaveFailed(err error) {
	fmt.Fprintf(p.w, "Warning: failed to save tokens: %v\n", err)
}

func (p *PlainDisplayer) Done(account string, refreshed bool) {
	if account != "" {
		fmt.Fprintf(p.w, "Authenticated as %s.\n", account)
		return
	}
	fmt.Fprintln(p.w, "Credentials verified with Telldus Live.")
}

func (p *PlainDisplayer) Fatal(err error) {
	fmt.Fprintf(p.w, "Error: %v\n", err)
}

// NoopDisplayer is a no-op implementation used in tests.
type NoopDisplayer struct{}

func (NoopDisplayer) Banner()                                    {}
func (NoopDisplayer) CredentialsFile(_ string)                   {}
func (NoopDisplayer) TokensFound()                               {}
func (NoopDisplayer) TokensNotFound()                            {}
func (NoopDisplayer) RequestingToken()                           {}
func (NoopDisplayer) AuthorizeURLReady(_, _ string, _ time.Time) {}
func (NoopDisplayer) CallbackReceived()                          {}
func (NoopDisplayer) CallbackTimedOut()                          {}
func (NoopDisplayer) ExchangingToken()                           {}
func (NoopDisplayer) AuthSuccess()                               {}
func (NoopDisplayer) StoredTokensRejected()                      {}
func (NoopDisplayer) Verifying()                                 {}
func (NoopDisplayer) VerifyOK(_ string)                          {}
func (NoopDisplayer) TokenSaved(_ string)                        {}
func (NoopDisplayer) TokenSaveFailed(_ error)                    {}
func (NoopDisplayer) Done(_ string, _ bool)                      {}
func (NoopDisplayer) Fatal(_ error)                              {}

// ProgramDisplayer sends BubbleTea messages to a running tea.Program.
type ProgramDisplayer struct {
	p *tea.Program
}

// NewProgramDisplayer creates a ProgramDisplayer that sends messages to p.
func NewProgramDisplayer(p *tea.Program) *ProgramDisplayer {
	return &ProgramDisplayer{p: p}
}

func (t *ProgramDisplayer) Banner() {
	t.p.Send(MsgBanner{})
}

func (t *ProgramDisplayer) CredentialsFile(path string) {
	t.p.Send(MsgCredentialsFile{Path: path})
}

func (t *ProgramDisplayer) TokensFound() {
	t.p.Send(MsgTokensFound{})
}

func (t *ProgramDisplayer) TokensNotFound() {
	t.p.Send(MsgTokensNotFound{})
}

func (t *ProgramDisplayer) RequestingToken() {
	t.p.Send(MsgRequestingToken{})
}

func (t *ProgramDisplayer) AuthorizeURLReady(authorizeURL, callbackURL string, deadline time.Time) {
	t.p.Send(MsgAuthorizeURLReady{
		AuthorizeURL: authorizeURL,
		CallbackURL:  callbackURL,
		Deadline:     deadline,
	})
}

func (t *ProgramDisplayer) CallbackReceived() {
	t.p.Send(MsgCallbackReceived{})
}

func (t *ProgramDisplayer) CallbackTimedOut() {
	t.p.Send(MsgCallbackTimedOut{})
}

func (t *ProgramDisplayer) ExchangingToken() {
	t.p.Send(MsgExchangingToken{})
}

func (t *ProgramDisplayer) AuthSuccess() {
	t.p.Send(MsgAuthSuccess{})
}

func (t *ProgramDisplayer) StoredTokensRejected() {
	t.p.Send(MsgStoredTokensRejected{})
}

func (t *ProgramDisplayer) Verifying() {
	t.p.Send(MsgVerifying{})
}

func (t *ProgramDisplayer) VerifyOK(account string) {
	t.p.Send(MsgVerifyOK{Account: account})
}

func (t *ProgramDisplayer) TokenSaved(path string) {
	t.p.Send(MsgTokenSaved{Path: path})
}

func (t *ProgramDisplayer) TokenSaveFailed(err error) {
	t.p.Send(MsgTokenSaveFailed{Err: err})
}

func (t *ProgramDisplayer) Done(account string, refreshed bool) {
	t.p.Send(MsgDone{Account: account, Refreshed: refreshed})
}

func (t *ProgramDisplayer) Fatal(err error) {
	t.p.Send(MsgFatal{Err: err})
}
