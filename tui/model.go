package tui

import (
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
)

// tickMsg is fired every second to update the countdown timer.
type tickMsg time.Time

// state represents the current phase of the authorization flow.
type state int

const (
	stateInit       state = iota
	stateRequesting       // request-token call in flight
	stateAuthorize        // authorize URL shown, waiting for the browser callback
	stateManual           // callback timed out, waiting for pasted input
	stateExchanging       // access-token exchange in flight
	stateVerifying        // profile verification in flight
	stateSuccess          // all done
	stateError            // fatal error
)

// statusKind distinguishes line types in the status log.
type statusKind int

const (
	statusOK   statusKind = iota
	statusWarn            // warning / non-fatal
	statusInfo            // neutral info
)

// statusLine is one row in the scrolling status log.
type statusLine struct {
	kind statusKind
	text string
}

// Model is the BubbleTea model for the authorization TUI.
type Model struct {
	state   state
	spinner spinner.Model
	width   int
	height  int

	authorizeURL string
	callbackURL  string
	deadline     time.Time
	remaining    time.Duration
	promptLabel  string

	account   string
	refreshed bool
	errMsg    string

	statusLines []statusLine
}

var (
	styleTitleBox = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("99")).
			Padding(0, 2)

	styleURLBox = lipgloss.NewStyle().
			Foreground(lipgloss.Color("228")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("228")).
			Padding(0, 1)

	styleOK   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleWarn = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	styleErr  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styleDim  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	styleBold = lipgloss.NewStyle().Bold(true)
)

// NewModel creates the initial TUI model.
func NewModel() Model {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))),
	)
	return Model{
		state:   stateInit,
		spinner: s,
	}
}

// Init starts the spinner animation.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles all incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tickMsg:
		if m.state != stateAuthorize {
			return m, nil
		}
		m.remaining = max(time.Until(m.deadline), 0)
		if m.remaining > 0 {
			return m, tickAfterSecond()
		}
		return m, nil

	case tea.KeyPressMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m, nil

	// ── authorization flow messages ─────────────────────────────────────────

	case MsgBanner:
		return m, nil

	case MsgCredentialsFile:
		m.addStatus(statusInfo, "Using credentials file at "+msg.Path)
		return m, nil

	case MsgTokensFound:
		m.addStatus(statusOK, "Found stored OAuth access token")
		return m, nil

	case MsgTokensNotFound:
		m.addStatus(statusInfo, "No stored access token, starting authorization")
		return m, nil

	case MsgRequestingToken:
		m.state = stateRequesting
		return m, nil

	case MsgAuthorizeURLReady:
		m.authorizeURL = msg.AuthorizeURL
		m.callbackURL = msg.CallbackURL
		m.deadline = msg.Deadline
		m.remaining = time.Until(msg.Deadline)
		m.state = stateAuthorize
		m.addStatus(statusInfo, "Temporary token issued")
		return m, tickAfterSecond()

	case MsgCallbackReceived:
		m.addStatus(statusOK, "Browser callback received")
		return m, nil

	case MsgCallbackTimedOut:
		m.state = stateManual
		m.addStatus(statusWarn, "No browser callback received, falling back to manual entry")
		return m, nil

	case MsgPrompt:
		m.state = stateManual
		m.promptLabel = msg.Label
		return m, nil

	case MsgPromptAnswered:
		m.promptLabel = ""
		return m, nil

	case MsgExchangingToken:
		m.state = stateExchanging
		return m, nil

	case MsgAuthSuccess:
		m.addStatus(statusOK, "Authorization successful!")
		return m, nil

	case MsgStoredTokensRejected:
		m.addStatus(statusWarn, "Stored tokens were rejected by Telldus Live, re-authorizing...")
		return m, nil

	case MsgVerifying:
		m.state = stateVerifying
		return m, nil

	case MsgVerifyOK:
		m.addStatus(statusOK, "Credentials verified")
		return m, nil

	case MsgTokenSaved:
		m.addStatus(statusOK, "Tokens saved to "+msg.Path)
		return m, nil

	case MsgTokenSaveFailed:
		m.addStatus(statusWarn, fmt.Sprintf("Warning: failed to save tokens: %v", msg.Err))
		return m, nil

	case MsgDone:
		m.account = msg.Account
		m.refreshed = msg.Refreshed
		m.state = stateSuccess
		return m, nil

	case MsgFatal:
		m.errMsg = msg.Err.Error()
		m.state = stateError
		return m, nil
	}

	return m, nil
}

// View renders the TUI.
func (m Model) View() tea.View {
	switch m.state {
	case stateSuccess:
		return tea.NewView(m.viewSuccess())
	case stateError:
		return tea.NewView(m.viewError())
	default:
		return tea.NewView(m.viewMain())
	}
}

func (m Model) viewMain() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(styleTitleBox.Render("  Telldus Live Authorization  "))
	b.WriteString("\n\n")

	switch m.state {
	case stateAuthorize, stateManual:
		b.WriteString(styleBold.Render("Open this link, authorize access and press \"Confirm\":"))
		b.WriteString("\n")
		b.WriteString(styleURLBox.Render(m.authorizeURL))
		b.WriteString("\n\n")

		if m.state == stateAuthorize {
			b.WriteString(styleDim.Render("The browser is redirected to " + m.callbackURL))
			b.WriteString("\n\n")
			b.WriteString(m.spinner.View())
			b.WriteString(" Waiting for the browser callback...  ")
			b.WriteString(styleDim.Render(formatDuration(m.remaining) + " remaining"))
			b.WriteString("\n")
		} else {
			label := m.promptLabel
			if label == "" {
				label = "Verification code or redirect URL"
			}
			b.WriteString(styleBold.Render(label + ":"))
			b.WriteString("\n")
			b.WriteString(styleDim.Render("Paste it below and press Enter."))
			b.WriteString("\n")
		}

	case stateRequesting:
		b.WriteString(m.spinner.View())
		b.WriteString(" Requesting temporary token...\n")

	case stateExchanging:
		b.WriteString(m.spinner.View())
		b.WriteString(" Exchanging verifier for an access token...\n")

	case stateVerifying:
		b.WriteString(m.spinner.View())
		b.WriteString(" Verifying credentials...\n")

	default:
		b.WriteString(m.spinner.View())
		b.WriteString(" Initializing...\n")
	}

	b.WriteString(m.viewStatusLog())
	return b.String()
}

func (m Model) viewSuccess() string {
	var b strings.Builder

	b.WriteString("\n")
	if m.account != "" {
		b.WriteString(styleOK.Render("  ✓ Authenticated as " + m.account))
	} else {
		b.WriteString(styleOK.Render("  ✓ Credentials verified with Telldus Live"))
	}
	b.WriteString("\n")

	if m.refreshed {
		b.WriteString(styleDim.Render("  A new access token was issued."))
		b.WriteString("\n")
	}

	b.WriteString(m.viewStatusLog())
	return b.String()
}

func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(styleErr.Render("  ✗ Authentication failed"))
	b.WriteString("\n\n")
	b.WriteString(styleDim.Render("  " + m.errMsg))
	b.WriteString("\n")

	b.WriteString(m.viewStatusLog())
	return b.String()
}

func (m Model) viewStatusLog() string {
	if len(m.statusLines) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n")

	for _, line := range m.statusLines {
		switch line.kind {
		case statusOK:
			b.WriteString(styleOK.Render("  ✓ " + line.text))
		case statusWarn:
			b.WriteString(styleWarn.Render("  ⚠ " + line.text))
		default:
			b.WriteString(styleDim.Render("  · " + line.text))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) addStatus(kind statusKind, text string) {
	m.statusLines = append(m.statusLines, statusLine{kind: kind, text: text})
}

func tickAfterSecond() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// formatDuration formats a duration as "Xm Ys" or "Xs".
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
