package ui

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Mohsinsiddi/w3connect/internal/connect"
	"github.com/Mohsinsiddi/w3connect/internal/onboard"
)

// StatusMsg carries an onboarding status into the program.
type StatusMsg onboard.Status

// ConnectionMsg carries a provider connection state into the program.
type ConnectionMsg connect.State

// DebugLinkMsg carries the current debug deep link.
type DebugLinkMsg string

// URIHandler consumes wallet callback URIs pasted by the user.
type URIHandler interface {
	HandleURI(uri string) bool
}

// OnboardModel is the Bubble Tea model for one onboarding attempt. It quits
// on its own once the attempt reaches a terminal status.
type OnboardModel struct {
	Title    string
	Status   onboard.Status
	Conn     connect.State
	Link     string
	Quitting bool

	handler URIHandler
	input   textinput.Model
	spinner spinner.Model
	flash   string

	// Overridable for tests.
	open func(string) error
	copy func(string) error
}

// NewOnboardModel creates the model; pasted callback URIs go to h.
func NewOnboardModel(title string, h URIHandler) OnboardModel {
	ti := textinput.New()
	ti.Placeholder = "paste the wallet callback URI and press enter"
	ti.Prompt = "↩ "
	ti.Width = 64
	ti.PromptStyle = StyleInfo
	ti.PlaceholderStyle = StyleDim
	ti.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = StyleInfo

	return OnboardModel{
		Title:   title,
		handler: h,
		input:   ti,
		spinner: s,
		open:    OpenURL,
		copy:    CopyToClipboard,
	}
}

func (m OnboardModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, textinput.Blink)
}

func (m OnboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.Quitting = true
			return m, tea.Quit
		case "enter":
			m.submit()
			return m, nil
		case "ctrl+o":
			m.flash = m.withLink("Opened in wallet", m.open)
			return m, nil
		case "ctrl+y":
			m.flash = m.withLink("Copied link", m.copy)
			return m, nil
		}

	case StatusMsg:
		m.Status = onboard.Status(msg)
		if m.Status.Terminal() {
			return m, tea.Quit
		}
		return m, nil

	case ConnectionMsg:
		m.Conn = connect.State(msg)
		return m, nil

	case DebugLinkMsg:
		m.Link = string(msg)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *OnboardModel) submit() {
	uri := strings.TrimSpace(m.input.Value())
	if uri == "" {
		return
	}
	m.input.Reset()
	if m.handler != nil && m.handler.HandleURI(uri) {
		m.flash = "Callback accepted"
	} else {
		m.flash = "Callback not for this attempt"
	}
}

func (m OnboardModel) withLink(done string, fn func(string) error) string {
	if m.Link == "" {
		return "No link to use yet"
	}
	if err := fn(m.Link); err != nil {
		return err.Error()
	}
	return done
}

func (m OnboardModel) View() string {
	if m.Quitting {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(StyleTitle.Render(m.Title) + "\n")

	sb.WriteString(m.statusLine() + "\n")
	sb.WriteString(StyleMeta.Render("  connection: ") + m.Conn.Phase.String())
	if p := m.Conn.Peer; p != nil {
		sb.WriteString(StyleMeta.Render("  peer: ") + Brand(p.Name) + " " + Addr(TruncateAddr(p.Address)))
	}
	sb.WriteString("\n")

	if m.Link != "" {
		sb.WriteString("\n" + StyleMeta.Render("  open in your wallet:") + "\n")
		sb.WriteString("  " + StyleInfo.Render(m.Link) + "\n")
	}

	sb.WriteString("\n" + m.input.View() + "\n\n")
	if m.flash != "" {
		sb.WriteString(StyleSuccess.Render("  ✓ "+m.flash) + "\n")
	} else {
		sb.WriteString(onboardControls() + "\n")
	}
	return sb.String()
}

func (m OnboardModel) statusLine() string {
	spin := m.spinner.View()
	s := m.Status
	switch s.Phase {
	case onboard.PhaseStarted:
		return fmt.Sprintf("%s %s", spin, StyleInfo.Render("connecting to wallet…"))
	case onboard.PhaseConnected:
		return fmt.Sprintf("%s %s", spin, StyleInfo.Render("waiting for signature…"))
	case onboard.PhaseInProgress:
		return fmt.Sprintf("%s %s", spin, StyleWarning.Render("retrying signature for "+s.RetryTarget+"…"))
	case onboard.PhaseSigned:
		return Success("signed")
	case onboard.PhaseError:
		if s.Err != nil {
			return Err(s.Err.Error())
		}
		return Err("failed")
	default:
		return StyleMeta.Render("  idle")
	}
}

func onboardControls() string {
	sep := StyleMeta.Render("   ")
	var sb strings.Builder
	sb.WriteString(StyleInfo.Render("[ enter ]"))
	sb.WriteString(StyleMeta.Render(" submit callback"))
	sb.WriteString(sep)
	sb.WriteString(StyleInfo.Render("[ ctrl+o ]"))
	sb.WriteString(StyleMeta.Render(" open link"))
	sb.WriteString(sep)
	sb.WriteString(StyleWarning.Render("[ ctrl+y ]"))
	sb.WriteString(StyleMeta.Render(" copy link"))
	sb.WriteString(sep)
	sb.WriteString(StyleMeta.Render("[ esc ] cancel"))
	return sb.String()
}

// ResultBlock renders a signed onboarding result.
func ResultBlock(r *onboard.Result) string {
	if r == nil {
		return ""
	}
	pairs := [][2]string{
		{"Ethereum address", r.EthereumAddress},
		{"Cosmos address", r.CosmosAddress},
	}
	if r.WalletID != "" {
		pairs = append(pairs, [2]string{"Wallet", r.WalletID})
	}
	for _, prefix := range slices.Sorted(maps.Keys(r.AuxAddresses)) {
		pairs = append(pairs, [2]string{prefix + " address", r.AuxAddresses[prefix]})
	}
	if r.LoginMethod != nil {
		pairs = append(pairs, [2]string{"Login", *r.LoginMethod})
	}
	if r.Email != nil {
		pairs = append(pairs, [2]string{"Email", *r.Email})
	}
	return KeyValueBlock("Onboarded", pairs)
}
