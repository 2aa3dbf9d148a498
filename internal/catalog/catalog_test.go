package catalog_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Mohsinsiddi/w3connect/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogLookups(t *testing.T) {
	c := catalog.NewDefault()
	s := c.Snapshot()

	d, err := s.Get(catalog.IDMetaMask)
	require.NoError(t, err)
	assert.Equal(t, "MetaMask", d.Name)
	assert.Equal(t, catalog.KindLink, d.Kind)
	assert.True(t, d.HasLink())
	assert.Equal(t, len(catalog.Defaults()), s.Len())
}

func TestGetIsCaseInsensitive(t *testing.T) {
	s := catalog.NewDefault().Snapshot()
	d, err := s.Get("MetaMask")
	require.NoError(t, err)
	assert.Equal(t, catalog.IDMetaMask, d.ID)
}

func TestGetUnknown(t *testing.T) {
	s := catalog.NewDefault().Snapshot()
	_, err := s.Get("nope")
	assert.ErrorIs(t, err, catalog.ErrWalletNotFound)
}

func TestGetReturnsCopy(t *testing.T) {
	s := catalog.NewDefault().Snapshot()
	d, err := s.Get(catalog.IDMetaMask)
	require.NoError(t, err)
	d.PeerNames[0] = "mutated"
	d.Name = "mutated"

	again, err := s.Get(catalog.IDMetaMask)
	require.NoError(t, err)
	assert.Equal(t, "MetaMask", again.Name)
	assert.Equal(t, "MetaMask Wallet", again.PeerNames[0])
}

func TestNewSnapshotValidation(t *testing.T) {
	tests := []struct {
		name string
		ds   []catalog.Descriptor
	}{
		{"empty id", []catalog.Descriptor{{ID: " ", Kind: catalog.KindBypass}}},
		{"duplicate id", []catalog.Descriptor{{ID: "a", Kind: catalog.KindBypass}, {ID: "A", Kind: catalog.KindBypass}}},
		{"link without scheme", []catalog.Descriptor{{ID: "a", Kind: catalog.KindLink}}},
		{"unknown kind", []catalog.Descriptor{{ID: "a", Kind: "carrier-pigeon"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := catalog.NewSnapshot(tt.ds)
			assert.ErrorIs(t, err, catalog.ErrInvalidDescriptor)
		})
	}
}

func TestKindDefaultsToLink(t *testing.T) {
	s, err := catalog.NewSnapshot([]catalog.Descriptor{{ID: "w", NativeScheme: "w://"}})
	require.NoError(t, err)
	d, err := s.Get("w")
	require.NoError(t, err)
	assert.Equal(t, catalog.KindLink, d.Kind)
}

func TestRefreshReplacesWholesale(t *testing.T) {
	c := catalog.NewDefault()
	before := c.Snapshot()

	err := c.Refresh([]catalog.Descriptor{{ID: "only", Kind: catalog.KindBypass}})
	require.NoError(t, err)

	after := c.Snapshot()
	assert.Equal(t, 1, after.Len())
	_, err = after.Get(catalog.IDMetaMask)
	assert.ErrorIs(t, err, catalog.ErrWalletNotFound)

	// A reader holding the old snapshot is unaffected.
	_, err = before.Get(catalog.IDMetaMask)
	assert.NoError(t, err)
}

func TestRefreshErrorKeepsCurrent(t *testing.T) {
	c := catalog.NewDefault()
	err := c.Refresh([]catalog.Descriptor{{ID: ""}})
	require.Error(t, err)
	assert.Equal(t, len(catalog.Defaults()), c.Snapshot().Len())
}

func TestLoadFile(t *testing.T) {
	yml := `
wallets:
  - id: demo-wallet
    name: Demo
    kind: link
    chains: [evm]
    native_scheme: "demo://"
    peer_names: ["Demo Wallet"]
  - id: qa
    kind: bypass
`
	path := filepath.Join(t.TempDir(), "wallets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	c := catalog.NewDefault()
	require.NoError(t, c.LoadFile(path))

	d, err := c.Snapshot().Get("demo-wallet")
	require.NoError(t, err)
	assert.Equal(t, "demo://", d.NativeScheme)
	assert.Equal(t, []string{"Demo Wallet"}, d.PeerNames)
	assert.Equal(t, 2, c.Snapshot().Len())
}

func TestLoadFileMissing(t *testing.T) {
	c := catalog.NewDefault()
	err := c.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseInvalidYAML(t *testing.T) {
	_, err := catalog.Parse([]byte("wallets: [unterminated"))
	assert.Error(t, err)
}

func TestByPeerName(t *testing.T) {
	snap := catalog.NewDefault().Snapshot()

	d, ok := snap.ByPeerName("MetaMask Wallet")
	require.True(t, ok)
	assert.Equal(t, catalog.IDMetaMask, d.ID)

	d, ok = snap.ByPeerName(" rainbow ")
	require.True(t, ok)
	assert.Equal(t, catalog.IDRainbow, d.ID)

	_, ok = snap.ByPeerName("Unknown Wallet")
	assert.False(t, ok)
	_, ok = snap.ByPeerName("")
	assert.False(t, ok)
}

func TestFamilySupport(t *testing.T) {
	assert.True(t, catalog.FamilyEVM.SupportsTypedData())
	assert.False(t, catalog.FamilySolana.SupportsTypedData())

	d := catalog.Descriptor{ID: "x"}
	assert.True(t, d.Supports(catalog.FamilyEVM))
	assert.False(t, d.Supports(catalog.FamilySolana))

	s := catalog.NewDefault().Snapshot()
	phantom, err := s.Get(catalog.IDPhantom)
	require.NoError(t, err)
	assert.True(t, phantom.Supports(catalog.FamilySolana))
}
