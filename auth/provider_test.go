package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/telltales/telltales-cli/credentials"
	"github.com/telltales/telltales-cli/tui"
)

var oauthTokenParam = regexp.MustCompile(`oauth_token="([^"]*)"`)

func headerToken(r *http.Request) string {
	m := oauthTokenParam.FindStringSubmatch(r.Header.Get("Authorization"))
	if m == nil {
		return ""
	}
	return m[1]
}

// fakeProvider mimics the Telldus Live OAuth and profile endpoints.
type fakeProvider struct {
	t   *testing.T
	srv *httptest.Server

	requestTokenHits atomic.Int32
	accessTokenHits  atomic.Int32
	profileHits      atomic.Int32

	// redirect makes the provider hit the callback URL after issuing a request token.
	redirect bool
	// redirectQuery is appended to the callback URL when redirecting.
	redirectQuery string

	requestTokenBody string
	profileBody      string

	mu            sync.Mutex
	validTokens   map[string]bool
	callbacks     []string
	callbackCodes []int
	verifiers     []string
}

func newFakeProvider(t *testing.T) *fakeProvider {
	p := &fakeProvider{
		t:             t,
		redirect:      true,
		redirectQuery: "oauth_verifier=v-%d",
		profileBody:   `{"status":"success","user":{"firstname":"Ada","lastname":"Lovelace"}}`,
		validTokens:   map[string]bool{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/requestToken", p.handleRequestToken)
	mux.HandleFunc("/oauth/accessToken", p.handleAccessToken)
	mux.HandleFunc("/json/user/profile", p.handleProfile)
	p.srv = httptest.NewServer(mux)
	t.Cleanup(p.srv.Close)
	return p
}

func (p *fakeProvider) allow(token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.validTokens[token] = true
}

func (p *fakeProvider) handleRequestToken(w http.ResponseWriter, r *http.Request) {
	n := p.requestTokenHits.Add(1)
	if r.Method != http.MethodPost {
		p.t.Errorf("request token: expected POST, got %s", r.Method)
	}
	if headerToken(r) != "" {
		p.t.Errorf("request token must not carry oauth_token, got %q", headerToken(r))
	}

	callback := r.URL.Query().Get("oauth_callback")
	p.mu.Lock()
	p.callbacks = append(p.callbacks, callback)
	p.mu.Unlock()

	if p.requestTokenBody != "" {
		fmt.Fprint(w, p.requestTokenBody)
		return
	}
	fmt.Fprintf(w, "oauth_token=temp-%d&oauth_token_secret=temp-secret-%d", n, n)

	if p.redirect {
		target := callback + "?" + fmt.Sprintf(p.redirectQuery, n)
		go p.followRedirect(target)
	}
}

func (p *fakeProvider) followRedirect(target string) {
	// Give the handler time to finish writing the request-token response.
	time.Sleep(20 * time.Millisecond)
	resp, err := http.Get(target)
	if err != nil {
		p.t.Errorf("callback request failed: %v", err)
		return
	}
	resp.Body.Close()
	p.mu.Lock()
	p.callbackCodes = append(p.callbackCodes, resp.StatusCode)
	p.mu.Unlock()
}

func (p *fakeProvider) handleAccessToken(w http.ResponseWriter, r *http.Request) {
	p.accessTokenHits.Add(1)
	if r.Method != http.MethodPost {
		p.t.Errorf("access token: expected POST, got %s", r.Method)
	}

	temp := headerToken(r)
	var n int
	if _, err := fmt.Sscanf(temp, "temp-%d", &n); err != nil {
		http.Error(w, "unknown request token", http.StatusUnauthorized)
		return
	}
	got := r.URL.Query().Get("oauth_verifier")
	p.mu.Lock()
	p.verifiers = append(p.verifiers, got)
	p.mu.Unlock()
	if want := fmt.Sprintf("v-%d", n); got != want {
		http.Error(w, "bad verifier "+got, http.StatusUnauthorized)
		return
	}

	token := fmt.Sprintf("access-%d", n)
	p.allow(token)
	fmt.Fprintf(w, "oauth_token=%s&oauth_token_secret=access-secret-%d", token, n)
}

func (p *fakeProvider) exchangedVerifiers() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.verifiers...)
}

func (p *fakeProvider) firstCallback() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.callbacks) == 0 {
		return ""
	}
	return p.callbacks[0]
}

func (p *fakeProvider) handleProfile(w http.ResponseWriter, r *http.Request) {
	p.profileHits.Add(1)
	p.mu.Lock()
	ok := p.validTokens[headerToken(r)]
	p.mu.Unlock()
	if !ok {
		http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, p.profileBody)
}

func (p *fakeProvider) authenticator(prompter tui.Prompter, d tui.Displayer, timeout time.Duration) *Authenticator {
	return New(Config{
		BaseURL:         p.srv.URL,
		HTTPClient:      p.srv.Client(),
		Displayer:       d,
		Prompter:        prompter,
		CallbackTimeout: timeout,
	})
}

func consumerOnly() credentials.Credentials {
	return credentials.Credentials{PublicKey: "consumer-key", PrivateKey: "consumer-secret"}
}

// recordingDisplayer remembers which events were shown.
type recordingDisplayer struct {
	tui.NoopDisplayer

	mu     sync.Mutex
	events []string
}

func (d *recordingDisplayer) record(e string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, e)
}

func (d *recordingDisplayer) Events() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.events...)
}

func (d *recordingDisplayer) TokensFound()          { d.record("tokens-found") }
func (d *recordingDisplayer) TokensNotFound()       { d.record("tokens-not-found") }
func (d *recordingDisplayer) CallbackReceived()     { d.record("callback-received") }
func (d *recordingDisplayer) CallbackTimedOut()     { d.record("callback-timed-out") }
func (d *recordingDisplayer) StoredTokensRejected() { d.record("stored-tokens-rejected") }
func (d *recordingDisplayer) AuthSuccess()          { d.record("auth-success") }

func (d *recordingDisplayer) AuthorizeURLReady(authorizeURL, _ string, _ time.Time) {
	d.record("authorize " + authorizeURL)
}

// scriptedPrompter answers prompts from a fixed list.
type scriptedPrompter struct {
	mu      sync.Mutex
	answers []string
	labels  []string

	// beforeAnswer runs before each answer is handed out.
	beforeAnswer func()
}

func (p *scriptedPrompter) Prompt(_ context.Context, label string, _ bool) (string, error) {
	if p.beforeAnswer != nil {
		p.beforeAnswer()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.labels = append(p.labels, label)
	if len(p.answers) == 0 {
		return "", tui.ErrNoInput
	}
	answer := p.answers[0]
	p.answers = p.answers[1:]
	return answer, nil
}

func (p *scriptedPrompter) PromptSecret(ctx context.Context, label string, allowEmpty bool) (string, error) {
	return p.Prompt(ctx, label, allowEmpty)
}

// panicTransport fails the test if any request is attempted.
type panicTransport struct{}

func (panicTransport) RoundTrip(*http.Request) (*http.Response, error) {
	panic("unexpected network call")
}
