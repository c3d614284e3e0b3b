package tui

import (
	"time"
)

// MsgBanner signals that the banner/title should be displayed.
type MsgBanner struct{}

// MsgCredentialsFile reports which credentials file is in use.
type MsgCredentialsFile struct{ Path string }

// MsgTokensFound signals that a stored access token was found.
type MsgTokensFound struct{}

// MsgTokensNotFound signals that no access token is stored (starting fresh).
type MsgTokensNotFound struct{}

// MsgRequestingToken signals that the request-token call is in progress.
type MsgRequestingToken struct{}

// MsgAuthorizeURLReady signals that the user must open the authorization URL.
type MsgAuthorizeURLReady struct {
	AuthorizeURL string
	CallbackURL  string
	Deadline     time.Time
}

// MsgCallbackReceived signals that the browser redirect delivered a verifier.
type MsgCallbackReceived struct{}

// MsgCallbackTimedOut signals that the callback wait elapsed and manual entry follows.
type MsgCallbackTimedOut struct{}

// MsgPrompt asks the user to type a line on stdin.
type MsgPrompt struct{ Label string }

// MsgPromptAnswered clears the prompt once a line was read.
type MsgPromptAnswered struct{}

// MsgExchangingToken signals that the access-token exchange is in progress.
type MsgExchangingToken struct{}

// MsgAuthSuccess signals that an access token was obtained.
type MsgAuthSuccess struct{}

// MsgStoredTokensRejected signals that Telldus Live rejected the stored tokens.
type MsgStoredTokensRejected struct{}

// MsgVerifying signals that profile verification is in progress.
type MsgVerifying struct{}

// MsgVerifyOK signals that profile verification succeeded.
type MsgVerifyOK struct{ Account string }

// MsgTokenSaved signals that tokens were saved to disk.
type MsgTokenSaved struct{ Path string }

// MsgTokenSaveFailed signals that saving tokens failed.
type MsgTokenSaveFailed struct{ Err error }

// MsgDone signals successful completion of authentication.
type MsgDone struct {
	Account   string
	Refreshed bool
}

// MsgFatal signals a fatal error that should terminate the flow.
type MsgFatal struct{ Err error }
