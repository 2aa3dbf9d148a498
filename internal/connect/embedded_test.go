package connect

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mohsinsiddi/w3connect/internal/catalog"
	"github.com/Mohsinsiddi/w3connect/internal/typeddata"
	"github.com/Mohsinsiddi/w3connect/internal/werr"
)

const hardhatAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

func newEmbedded(t *testing.T, opts ...EmbeddedOption) (*EmbeddedProvider, *recorder) {
	t.Helper()
	keys := NewInMemoryKeystore()
	_, err := keys.Store(catalog.IDEmbedded, DefaultBypassKey)
	require.NoError(t, err)
	p := NewEmbeddedProvider(keys, opts...)
	rec := &recorder{}
	p.SetDelegate(rec)
	return p, rec
}

func TestEmbeddedConnect(t *testing.T) {
	p, rec := newEmbedded(t, WithLogin("email", "qa@example.com"))

	info, err := p.Connect(context.Background(), Request{Wallet: descriptor(t, catalog.IDEmbedded), ChainID: 1})
	require.NoError(t, err)
	assert.Equal(t, hardhatAddress, info.Address)
	assert.Equal(t, catalog.IDEmbedded, info.WalletID)
	assert.Equal(t, "email", info.LoginMethod)
	assert.Equal(t, "qa@example.com", info.Email)
	assert.Equal(t, []Phase{PhaseConnectedToServer, PhaseConnectedToWallet}, rec.phases())
	assert.Equal(t, "Embedded Wallet", rec.last().Peer.Name)
}

func TestEmbeddedConnectOtherWalletReconnects(t *testing.T) {
	p, rec := newEmbedded(t)
	const otherKey = "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"
	_, err := p.keys.Store("backup", otherKey)
	require.NoError(t, err)

	first, err := p.Connect(context.Background(), Request{Wallet: descriptor(t, catalog.IDEmbedded), ChainID: 1})
	require.NoError(t, err)
	again, err := p.Connect(context.Background(), Request{Wallet: descriptor(t, catalog.IDEmbedded), ChainID: 1})
	require.NoError(t, err)
	assert.Same(t, first, again)

	backup := &catalog.Descriptor{ID: "backup", Name: "Backup Wallet", Kind: catalog.KindEmbedded}
	second, err := p.Connect(context.Background(), Request{Wallet: backup, ChainID: 1})
	require.NoError(t, err)
	assert.Equal(t, "backup", second.WalletID)
	assert.NotEqual(t, first.Address, second.Address)
	assert.Equal(t, []Phase{
		PhaseConnectedToServer, PhaseConnectedToWallet,
		PhaseIdle,
		PhaseConnectedToServer, PhaseConnectedToWallet,
	}, rec.phases())
}

func TestEmbeddedConnectByAddress(t *testing.T) {
	keys := NewInMemoryKeystore()
	_, err := keys.Store(hardhatAddress, DefaultBypassKey)
	require.NoError(t, err)
	p := NewEmbeddedProvider(keys)

	info, err := p.Connect(context.Background(), Request{Address: hardhatAddress, ChainID: 1})
	require.NoError(t, err)
	assert.Equal(t, hardhatAddress, info.Address)
}

func TestEmbeddedConnectMissingKey(t *testing.T) {
	p := NewEmbeddedProvider(NewInMemoryKeystore())
	rec := &recorder{}
	p.SetDelegate(rec)

	_, err := p.Connect(context.Background(), Request{Wallet: descriptor(t, catalog.IDEmbedded), ChainID: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, werr.ErrNoWalletFound)
	assert.Equal(t, PhaseIdle, rec.last().Phase)
}

func TestEmbeddedConnectAddressMismatch(t *testing.T) {
	keys := NewInMemoryKeystore()
	other := "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
	_, err := keys.Store(other, DefaultBypassKey)
	require.NoError(t, err)
	p := NewEmbeddedProvider(keys)

	_, err = p.Connect(context.Background(), Request{Address: other, ChainID: 1})
	assert.ErrorIs(t, err, werr.ErrUnexpectedResponse)
}

func TestEmbeddedConnectNoAccount(t *testing.T) {
	p := NewEmbeddedProvider(NewInMemoryKeystore())
	_, err := p.Connect(context.Background(), Request{ChainID: 1})
	assert.ErrorIs(t, err, werr.ErrNoWalletFound)
}

func TestEmbeddedSignTypedData(t *testing.T) {
	p, _ := newEmbedded(t)
	_, err := p.Connect(context.Background(), Request{Wallet: descriptor(t, catalog.IDEmbedded), ChainID: 1})
	require.NoError(t, err)

	payload := typeddata.Build("dYdX Chain", 1, "dYdX Chain Onboarding")
	sig, err := p.SignTypedData(context.Background(), payload)
	require.NoError(t, err)

	signer, err := RecoverTypedDataSigner(payload, sig)
	require.NoError(t, err)
	assert.Equal(t, hardhatAddress, signer.Hex())
}

func TestEmbeddedSignMessage(t *testing.T) {
	p, _ := newEmbedded(t)
	_, err := p.Connect(context.Background(), Request{Wallet: descriptor(t, catalog.IDEmbedded), ChainID: 1})
	require.NoError(t, err)

	sig, err := p.SignMessage(context.Background(), "hello")
	require.NoError(t, err)
	signer, err := RecoverMessageSigner("hello", sig)
	require.NoError(t, err)
	assert.Equal(t, hardhatAddress, signer.Hex())
}

func TestEmbeddedRejectsInvalidPayload(t *testing.T) {
	p, _ := newEmbedded(t)
	_, err := p.Connect(context.Background(), Request{Wallet: descriptor(t, catalog.IDEmbedded), ChainID: 1})
	require.NoError(t, err)

	payload := typeddata.Build("dYdX Chain", 1, "x")
	payload.Message.Delete(typeddata.ActionField)
	_, err = p.SignTypedData(context.Background(), payload)
	assert.ErrorIs(t, err, werr.ErrLocalValidation)
}

func TestEmbeddedSignWhenDisconnected(t *testing.T) {
	p, rec := newEmbedded(t)
	_, err := p.Connect(context.Background(), Request{Wallet: descriptor(t, catalog.IDEmbedded), ChainID: 1})
	require.NoError(t, err)

	p.Disconnect()
	p.Disconnect()
	assert.Equal(t, PhaseIdle, rec.last().Phase)

	_, err = p.SignMessage(context.Background(), "hello")
	assert.ErrorIs(t, err, werr.ErrNotConnected)
}

func TestEmbeddedSend(t *testing.T) {
	p, _ := newEmbedded(t)
	_, err := p.Connect(context.Background(), Request{Wallet: descriptor(t, catalog.IDEmbedded), ChainID: 1})
	require.NoError(t, err)

	res, err := p.Send(context.Background(), TxRequest{
		ChainID:   1,
		To:        "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		Value:     big.NewInt(1),
		Gas:       21000,
		GasFeeCap: big.NewInt(2),
	})
	require.NoError(t, err)

	raw, err := hexutil.Decode(res.Raw)
	require.NoError(t, err)
	var tx types.Transaction
	require.NoError(t, tx.UnmarshalBinary(raw))
	assert.Equal(t, res.Hash, tx.Hash().Hex())

	from, err := types.Sender(types.NewLondonSigner(big.NewInt(1)), &tx)
	require.NoError(t, err)
	assert.Equal(t, hardhatAddress, from.Hex())
}

func TestEmbeddedSendInvalidRecipient(t *testing.T) {
	p, _ := newEmbedded(t)
	_, err := p.Connect(context.Background(), Request{Wallet: descriptor(t, catalog.IDEmbedded), ChainID: 1})
	require.NoError(t, err)

	_, err = p.Send(context.Background(), TxRequest{ChainID: 1, To: "nope"})
	assert.ErrorIs(t, err, werr.ErrLocalValidation)
}

func TestEmbeddedHandleURI(t *testing.T) {
	p, _ := newEmbedded(t)
	assert.False(t, p.HandleURI("w3connect://wc?address=0x1"))
}

// ---------------------------------------------------------------------------
// Keystore
// ---------------------------------------------------------------------------

func TestInMemoryKeystore(t *testing.T) {
	ks := NewInMemoryKeystore()
	ref, err := ks.Store("alice", "deadbeef")
	require.NoError(t, err)
	assert.Equal(t, "w3connect.alice", ref)

	got, err := ks.Retrieve(ref)
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", got)

	require.NoError(t, ks.Delete(ref))
	_, err = ks.Retrieve(ref)
	assert.Error(t, err)
}

func TestKeyRefDefaultsService(t *testing.T) {
	assert.Equal(t, "w3connect.bob", KeyRef("", "bob"))
	assert.Equal(t, "custom.bob", KeyRef("custom", "bob"))
}
