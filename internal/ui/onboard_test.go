package ui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mohsinsiddi/w3connect/internal/connect"
	"github.com/Mohsinsiddi/w3connect/internal/onboard"
	"github.com/Mohsinsiddi/w3connect/internal/werr"
)

type uriRecorder struct {
	accept bool
	got    []string
}

func (r *uriRecorder) HandleURI(uri string) bool {
	r.got = append(r.got, uri)
	return r.accept
}

func typeText(m tea.Model, s string) tea.Model {
	for _, r := range s {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func TestOnboardModelSubmitsCallback(t *testing.T) {
	rec := &uriRecorder{accept: true}
	var m tea.Model = NewOnboardModel("Onboarding", rec)

	m = typeText(m, "w3connect://wc?topic=abc")
	m, _ = m.Update(key("enter"))

	require.Equal(t, []string{"w3connect://wc?topic=abc"}, rec.got)
	om := m.(OnboardModel)
	assert.Empty(t, om.input.Value())
	assert.Contains(t, om.View(), "Callback accepted")
}

func TestOnboardModelRejectedCallback(t *testing.T) {
	rec := &uriRecorder{}
	var m tea.Model = NewOnboardModel("Onboarding", rec)
	m = typeText(m, "other://x")
	m, _ = m.Update(key("enter"))
	assert.Contains(t, m.View(), "not for this attempt")
}

func TestOnboardModelIgnoresEmptyInput(t *testing.T) {
	rec := &uriRecorder{accept: true}
	var m tea.Model = NewOnboardModel("Onboarding", rec)
	m = typeText(m, "   ")
	m, _ = m.Update(key("enter"))
	assert.Empty(t, rec.got)
}

func TestOnboardModelTracksStatus(t *testing.T) {
	var m tea.Model = NewOnboardModel("Onboarding", nil)

	m, cmd := m.Update(StatusMsg{Phase: onboard.PhaseStarted, WalletID: "metamask"})
	assert.Nil(t, cmd)
	assert.Contains(t, m.View(), "connecting")

	m, _ = m.Update(StatusMsg{Phase: onboard.PhaseInProgress, RetryTarget: "MetaMask Wallet"})
	assert.Contains(t, m.View(), "retrying signature for MetaMask Wallet")

	m, cmd = m.Update(StatusMsg{Phase: onboard.PhaseError, Err: werr.ErrUserRejected})
	assert.NotNil(t, cmd, "terminal status quits the program")
	assert.Contains(t, m.View(), "✗")
}

func TestOnboardModelConnectionAndLink(t *testing.T) {
	var m tea.Model = NewOnboardModel("Onboarding", nil)
	m, _ = m.Update(ConnectionMsg{
		Phase: connect.PhaseConnectedToWallet,
		Peer:  &connect.Peer{Name: "Rainbow", Address: "0x1234567890abcdef1234567890abcdef12345678"},
	})
	m, _ = m.Update(DebugLinkMsg("wc:topic@2?relay-protocol=irn"))

	view := m.View()
	assert.Contains(t, view, "connected-to-wallet")
	assert.Contains(t, view, "Rainbow")
	assert.Contains(t, view, "0x1234…5678")
	assert.Contains(t, view, "wc:topic@2?relay-protocol=irn")
}

func TestOnboardModelLinkShortcuts(t *testing.T) {
	om := NewOnboardModel("Onboarding", nil)
	var opened, copied string
	om.open = func(s string) error { opened = s; return nil }
	om.copy = func(string) error { return errors.New("no clipboard") }

	var m tea.Model = om
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlO})
	assert.Contains(t, m.View(), "No link to use yet")

	m, _ = m.Update(DebugLinkMsg("metamask://wc?uri=x"))
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlO})
	assert.Equal(t, "metamask://wc?uri=x", opened)
	assert.Contains(t, m.View(), "Opened in wallet")

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlY})
	assert.Empty(t, copied)
	assert.Contains(t, m.View(), "no clipboard")
}

func TestOnboardModelQuit(t *testing.T) {
	var m tea.Model = NewOnboardModel("Onboarding", nil)
	m, cmd := m.Update(key("esc"))
	require.NotNil(t, cmd)
	assert.True(t, m.(OnboardModel).Quitting)
	assert.Empty(t, m.View())
}

func TestResultBlock(t *testing.T) {
	login := "google"
	out := ResultBlock(&onboard.Result{
		EthereumAddress: "0xabc",
		CosmosAddress:   "dydx1xyz",
		WalletID:        "embedded",
		AuxAddresses:    map[string]string{"osmo": "osmo1b", "noble": "noble1a"},
		LoginMethod:     &login,
	})
	assert.Contains(t, out, "dydx1xyz")
	assert.Contains(t, out, "google")
	assert.NotContains(t, out, "Email")
	assert.Less(t, strings.Index(out, "noble1a"), strings.Index(out, "osmo1b"))

	assert.Empty(t, ResultBlock(nil))
}
