package derive_test

import (
	"context"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tyler-smith/go-bip39"

	"github.com/Mohsinsiddi/w3connect/internal/derive"
)

// testSignature produces a real 65-byte signature so the fixture does not
// depend on a hard-coded blob.
func testSignature(t *testing.T, msg string) string {
	t.Helper()
	key, err := crypto.HexToECDSA("ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	require.NoError(t, err)
	sig, err := crypto.Sign(crypto.Keccak256([]byte(msg)), key)
	require.NoError(t, err)
	sig[64] += 27
	return "0x" + hex.EncodeToString(sig)
}

func TestDeriveIsDeterministic(t *testing.T) {
	d := derive.NewSignatureDeriver()
	sig := testSignature(t, "onboarding")

	a, err := d.Derive(context.Background(), sig)
	require.NoError(t, err)
	b, err := d.Derive(context.Background(), sig)
	require.NoError(t, err)

	assert.Equal(t, a.Mnemonic, b.Mnemonic)
	assert.Equal(t, a.Address, b.Address)
	assert.Equal(t, a.PublicKey, b.PublicKey)
}

func TestDeriveProducesValidMaterials(t *testing.T) {
	out, err := derive.NewSignatureDeriver().Derive(context.Background(), testSignature(t, "onboarding"))
	require.NoError(t, err)

	assert.True(t, bip39.IsMnemonicValid(out.Mnemonic))
	assert.Len(t, strings.Fields(out.Mnemonic), 24)
	assert.True(t, strings.HasPrefix(out.Address, "dydx1"), out.Address)
	assert.Len(t, out.PublicKey, 33)

	hrp, _, err := bech32.Decode(out.Address)
	require.NoError(t, err)
	assert.Equal(t, "dydx", hrp)
}

func TestDeriveIgnoresRecoveryByte(t *testing.T) {
	sig := testSignature(t, "onboarding")
	raw, err := hex.DecodeString(sig[2:])
	require.NoError(t, err)
	raw[64] ^= 1 // different recovery byte, same r||s

	d := derive.NewSignatureDeriver()
	a, err := d.Derive(context.Background(), sig)
	require.NoError(t, err)
	b, err := d.Derive(context.Background(), hex.EncodeToString(raw))
	require.NoError(t, err)
	assert.Equal(t, a.Address, b.Address)
}

func TestDifferentSignaturesDiffer(t *testing.T) {
	d := derive.NewSignatureDeriver()
	a, err := d.Derive(context.Background(), testSignature(t, "one"))
	require.NoError(t, err)
	b, err := d.Derive(context.Background(), testSignature(t, "two"))
	require.NoError(t, err)
	assert.NotEqual(t, a.Mnemonic, b.Mnemonic)
	assert.NotEqual(t, a.Address, b.Address)
}

func TestDeriveAuxPrefixesShareKey(t *testing.T) {
	d := derive.NewSignatureDeriver(derive.WithAuxPrefixes("noble", "osmo"))
	out, err := d.Derive(context.Background(), testSignature(t, "onboarding"))
	require.NoError(t, err)

	require.Len(t, out.Aux, 2)
	assert.True(t, strings.HasPrefix(out.Aux["noble"], "noble1"))
	assert.True(t, strings.HasPrefix(out.Aux["osmo"], "osmo1"))

	_, primary, err := bech32.Decode(out.Address)
	require.NoError(t, err)
	_, noble, err := bech32.Decode(out.Aux["noble"])
	require.NoError(t, err)
	assert.Equal(t, primary, noble, "same key under different prefixes")
}

func TestDeriveCustomPrefixAndAccount(t *testing.T) {
	sig := testSignature(t, "onboarding")
	base, err := derive.NewSignatureDeriver().Derive(context.Background(), sig)
	require.NoError(t, err)

	other, err := derive.NewSignatureDeriver(derive.WithPrefix("cosmos"), derive.WithAccount(1)).
		Derive(context.Background(), sig)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(other.Address, "cosmos1"))
	assert.Equal(t, base.Mnemonic, other.Mnemonic)
	assert.NotEqual(t, base.PublicKey, other.PublicKey)
}

func TestDeriveRejectsBadInput(t *testing.T) {
	d := derive.NewSignatureDeriver()
	tests := []struct {
		name string
		sig  string
	}{
		{"empty", ""},
		{"not hex", "0xZZ"},
		{"too short", "0x" + strings.Repeat("ab", 64)},
		{"too long", "0x" + strings.Repeat("ab", 66)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Derive(context.Background(), tt.sig)
			assert.ErrorIs(t, err, derive.ErrInvalidSignature)
		})
	}
}

func TestDeriveBadPrefix(t *testing.T) {
	_, err := derive.NewSignatureDeriver(derive.WithPrefix("DYDX")).
		Derive(context.Background(), testSignature(t, "x"))
	assert.ErrorIs(t, err, derive.ErrInvalidPrefix)
}

func TestDeriveCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := derive.NewSignatureDeriver().Derive(ctx, testSignature(t, "x"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFuncAdapter(t *testing.T) {
	var d derive.Deriver = derive.Func(func(_ context.Context, sig string) (*derive.Derived, error) {
		return &derive.Derived{Address: "addr-" + sig}, nil
	})
	out, err := d.Derive(context.Background(), "s")
	require.NoError(t, err)
	assert.Equal(t, "addr-s", out.Address)
}

func TestPath(t *testing.T) {
	assert.Equal(t, "m/44'/118'/0'/0/0", derive.NewSignatureDeriver().Path())
	assert.Equal(t, "m/44'/118'/3'/0/0", derive.NewSignatureDeriver(derive.WithAccount(3)).Path())
}
