package ui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mohsinsiddi/w3connect/internal/catalog"
)

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestWalletItemsFiltersByFamily(t *testing.T) {
	evm := WalletItems(catalog.Defaults(), catalog.FamilyEVM)
	sol := WalletItems(catalog.Defaults(), catalog.FamilySolana)

	ids := func(items []PickerItem) []string {
		var out []string
		for _, it := range items {
			out = append(out, it.Value)
		}
		return out
	}
	assert.Contains(t, ids(evm), catalog.IDMetaMask)
	assert.Contains(t, ids(sol), catalog.IDPhantom)
	assert.NotContains(t, ids(sol), catalog.IDMetaMask)
}

func TestWalletItemsFallsBackToID(t *testing.T) {
	items := WalletItems([]catalog.Descriptor{{ID: "x", Kind: catalog.KindBypass}}, catalog.FamilyEVM)
	require.Len(t, items, 1)
	assert.Equal(t, "x", items[0].Label)
	assert.Equal(t, "bypass", items[0].SubLabel)
}

func TestPickerNavigatesAndSelects(t *testing.T) {
	var m tea.Model = pickerModel{title: "Wallet", items: []PickerItem{
		{Label: "A", Value: "a"}, {Label: "B", Value: "b"},
	}}
	m, _ = m.Update(key("down"))
	m, _ = m.Update(key("down"))
	m, _ = m.Update(key("k"))
	m, _ = m.Update(key("j"))
	assert.Contains(t, m.View(), "▸")

	m, cmd := m.Update(key("enter"))
	require.NotNil(t, cmd)
	pm := m.(pickerModel)
	require.NotNil(t, pm.selected)
	assert.Equal(t, "b", pm.selected.Value)
}

func TestPickerCancel(t *testing.T) {
	var m tea.Model = pickerModel{items: []PickerItem{{Label: "A"}}}
	m, cmd := m.Update(key("q"))
	require.NotNil(t, cmd)
	assert.True(t, m.(pickerModel).quitting)
	assert.Empty(t, m.View())
}

func TestPickItemRequiresItems(t *testing.T) {
	_, err := PickItem("none", nil)
	assert.Error(t, err)
}
