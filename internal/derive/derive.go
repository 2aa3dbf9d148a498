// Package derive turns an onboarding signature into a secondary-chain account.
// The state machine only depends on the Deriver interface; SignatureDeriver is
// the standard implementation (keccak(r||s) -> BIP-39 -> BIP-44 -> bech32).
package derive

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // cosmos addresses are defined over ripemd160
)

// Errors.
var (
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidPrefix    = errors.New("invalid bech32 prefix")
)

const (
	// DefaultPrefix is the bech32 prefix of the derived account.
	DefaultPrefix = "dydx"
	// CoinTypeCosmos is the BIP-44 coin type for Cosmos SDK chains.
	CoinTypeCosmos = 118

	signatureLen = 65
)

// Derived holds the materials produced from one signature.
type Derived struct {
	Address   string
	Mnemonic  string
	PublicKey []byte            // 33-byte compressed secp256k1 key
	Aux       map[string]string // extra addresses keyed by bech32 prefix
}

// Deriver maps a signature to derived account materials. Implementations
// must be deterministic and free of side effects.
type Deriver interface {
	Derive(ctx context.Context, signature string) (*Derived, error)
}

// Func adapts a function to Deriver.
type Func func(ctx context.Context, signature string) (*Derived, error)

// Derive calls f.
func (f Func) Derive(ctx context.Context, signature string) (*Derived, error) {
	return f(ctx, signature)
}

// SignatureDeriver derives a Cosmos-style account from a 65-byte ECDSA
// signature.
type SignatureDeriver struct {
	prefix      string
	auxPrefixes []string
	account     uint32
}

// Option configures a SignatureDeriver.
type Option func(*SignatureDeriver)

// WithPrefix sets the bech32 prefix of the primary derived address.
func WithPrefix(p string) Option {
	return func(d *SignatureDeriver) {
		d.prefix = p
	}
}

// WithAuxPrefixes also encodes the derived key under each prefix
// (e.g. "noble"), reported in Derived.Aux.
func WithAuxPrefixes(ps ...string) Option {
	return func(d *SignatureDeriver) {
		d.auxPrefixes = append(d.auxPrefixes, ps...)
	}
}

// WithAccount selects the BIP-44 account index.
func WithAccount(account uint32) Option {
	return func(d *SignatureDeriver) {
		d.account = account
	}
}

// NewSignatureDeriver creates a deriver.
func NewSignatureDeriver(opts ...Option) *SignatureDeriver {
	d := &SignatureDeriver{prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Path returns the BIP-44 derivation path used.
func (d *SignatureDeriver) Path() string {
	return fmt.Sprintf("m/44'/%d'/%d'/0/0", CoinTypeCosmos, d.account)
}

// Derive implements Deriver.
func (d *SignatureDeriver) Derive(ctx context.Context, signature string) (*Derived, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sig, err := hex.DecodeString(stripHexPrefix(strings.TrimSpace(signature)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if len(sig) != signatureLen {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSignature, signatureLen, len(sig))
	}

	// Only r||s feed the entropy; v differs between wallets for the same key.
	entropy := crypto.Keccak256(sig[:64])
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, fmt.Errorf("building mnemonic: %w", err)
	}

	pub, err := d.publicKey(mnemonic)
	if err != nil {
		return nil, err
	}

	addr, err := Bech32Address(d.prefix, pub)
	if err != nil {
		return nil, err
	}

	out := &Derived{Address: addr, Mnemonic: mnemonic, PublicKey: pub}
	if len(d.auxPrefixes) > 0 {
		out.Aux = make(map[string]string, len(d.auxPrefixes))
		for _, p := range d.auxPrefixes {
			a, err := Bech32Address(p, pub)
			if err != nil {
				return nil, err
			}
			out.Aux[p] = a
		}
	}
	return out, nil
}

// publicKey walks m/44'/118'/account'/0/0 from the mnemonic's seed.
func (d *SignatureDeriver) publicKey(mnemonic string) ([]byte, error) {
	seed := bip39.NewSeed(mnemonic, "")
	key, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("creating master key: %w", err)
	}

	path := []uint32{
		bip32.FirstHardenedChild + 44,
		bip32.FirstHardenedChild + CoinTypeCosmos,
		bip32.FirstHardenedChild + d.account,
		0,
		0,
	}
	for _, idx := range path {
		key, err = key.NewChildKey(idx)
		if err != nil {
			return nil, fmt.Errorf("deriving %s: %w", d.Path(), err)
		}
	}
	return key.PublicKey().Key, nil
}

// Bech32Address encodes ripemd160(sha256(pub)) under prefix.
func Bech32Address(prefix string, pub []byte) (string, error) {
	if prefix == "" || strings.ToLower(prefix) != prefix {
		return "", fmt.Errorf("%w: %q", ErrInvalidPrefix, prefix)
	}
	sha := sha256.Sum256(pub)
	h := ripemd160.New()
	h.Write(sha[:])
	conv, err := bech32.ConvertBits(h.Sum(nil), 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("converting address bits: %w", err)
	}
	return bech32.Encode(prefix, conv)
}

func stripHexPrefix(s string) string {
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		return s[2:]
	}
	return s
}
