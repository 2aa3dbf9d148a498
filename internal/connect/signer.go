package connect

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/Mohsinsiddi/w3connect/internal/typeddata"
	"github.com/Mohsinsiddi/w3connect/internal/werr"
)

// localSigner signs with a private key held in process memory. It backs the
// embedded and bypass providers.
type localSigner struct {
	key *ecdsa.PrivateKey
}

func newLocalSigner(hexKey string) (*localSigner, error) {
	key, err := crypto.HexToECDSA(stripHexPrefix(hexKey))
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	return &localSigner{key: key}, nil
}

func (s *localSigner) address() string {
	return crypto.PubkeyToAddress(s.key.PublicKey).Hex()
}

// signHash signs a 32-byte digest and returns a 0x-prefixed 65-byte
// signature with V adjusted to 27/28.
func (s *localSigner) signHash(hash []byte) (string, error) {
	sig, err := crypto.Sign(hash, s.key)
	if err != nil {
		return "", werr.Wrap(werr.UnexpectedResponse, err)
	}
	sig[64] += 27
	return hexutil.Encode(sig), nil
}

// signMessage signs text with EIP-191 (personal_sign).
func (s *localSigner) signMessage(text string) (string, error) {
	return s.signHash(eip191Hash([]byte(text)))
}

// signTypedData signs the EIP-712 digest of p.
func (s *localSigner) signTypedData(p *typeddata.Payload) (string, error) {
	hash, err := p.Hash()
	if err != nil {
		return "", err
	}
	return s.signHash(hash)
}

// signTx signs tx with the London signer and returns hash and raw bytes.
func (s *localSigner) signTx(tx TxRequest) (*TxResult, error) {
	if tx.ChainID == 0 {
		return nil, werr.New(werr.LocalValidation, "transaction chain id is required")
	}
	var to *common.Address
	if tx.To != "" {
		if !common.IsHexAddress(tx.To) {
			return nil, werr.Newf(werr.LocalValidation, "invalid recipient %q", tx.To)
		}
		addr := common.HexToAddress(tx.To)
		to = &addr
	}
	chainID := big.NewInt(tx.ChainID)
	unsigned := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     tx.Nonce,
		GasTipCap: orZero(tx.GasTipCap),
		GasFeeCap: orZero(tx.GasFeeCap),
		Gas:       tx.Gas,
		To:        to,
		Value:     orZero(tx.Value),
		Data:      tx.Data,
	})
	signed, err := types.SignTx(unsigned, types.NewLondonSigner(chainID), s.key)
	if err != nil {
		return nil, werr.Wrap(werr.UnexpectedResponse, fmt.Errorf("signing transaction: %w", err))
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return nil, werr.Wrap(werr.UnexpectedResponse, fmt.Errorf("marshaling signed tx: %w", err))
	}
	return &TxResult{Hash: signed.Hash().Hex(), Raw: hexutil.Encode(raw)}, nil
}

// RecoverTypedDataSigner returns the address that produced sig over p.
func RecoverTypedDataSigner(p *typeddata.Payload, sig string) (common.Address, error) {
	hash, err := p.Hash()
	if err != nil {
		return common.Address{}, err
	}
	return recoverSigner(hash, sig)
}

// RecoverMessageSigner returns the address that produced an EIP-191 sig over text.
func RecoverMessageSigner(text, sig string) (common.Address, error) {
	return recoverSigner(eip191Hash([]byte(text)), sig)
}

func recoverSigner(hash []byte, sig string) (common.Address, error) {
	raw, err := hexutil.Decode(sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("decoding signature: %w", err)
	}
	if len(raw) != 65 {
		return common.Address{}, fmt.Errorf("invalid signature length: expected 65 bytes, got %d", len(raw))
	}
	// Adjust V from 27/28 back to 0/1 for ecrecover.
	if raw[64] >= 27 {
		raw[64] -= 27
	}
	pub, err := crypto.SigToPub(hash, raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("recovering signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// eip191Hash returns the Keccak-256 hash of the EIP-191 prefixed message.
func eip191Hash(message []byte) []byte {
	prefix := fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(message))
	data := append([]byte(prefix), message...)
	return crypto.Keccak256(data)
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

func stripHexPrefix(s string) string {
	if len(s) >= 2 && s[:2] == "0x" {
		return s[2:]
	}
	return s
}
