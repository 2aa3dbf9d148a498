// Package chain names the networks an onboarding signature can be bound to.
package chain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Mohsinsiddi/w3connect/internal/catalog"
)

// ErrChainNotFound is returned when a chain is not in the registry.
var ErrChainNotFound = errors.New("chain not found")

// Chain is one signing network.
type Chain struct {
	Name        string              `json:"name"`
	DisplayName string              `json:"display_name"`
	ChainID     int64               `json:"chain_id"` // 0 for non-EVM
	Family      catalog.ChainFamily `json:"family"`
	Testnet     bool                `json:"testnet,omitempty"`
}

// Label renders the chain for humans, e.g. "Sepolia (11155111)".
func (c Chain) Label() string {
	if c.ChainID == 0 {
		return c.DisplayName
	}
	return fmt.Sprintf("%s (%d)", c.DisplayName, c.ChainID)
}

// Registry is the chain registry.
type Registry struct {
	chains []Chain
	byName map[string]*Chain
	byID   map[int64]*Chain
}

// NewRegistry returns the registry of known networks.
func NewRegistry() *Registry {
	chains := allChains()
	r := &Registry{
		chains: chains,
		byName: make(map[string]*Chain, len(chains)),
		byID:   make(map[int64]*Chain, len(chains)),
	}
	for i := range r.chains {
		c := &r.chains[i]
		r.byName[c.Name] = c
		if c.ChainID != 0 {
			r.byID[c.ChainID] = c
		}
	}
	return r
}

// All returns every chain in the registry.
func (r *Registry) All() []Chain {
	return r.chains
}

// GetByName finds a chain by its slug name (e.g. "base", "sepolia").
func (r *Registry) GetByName(name string) (*Chain, error) {
	c, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, ErrChainNotFound
	}
	return c, nil
}

// GetByChainID finds an EVM chain by its numeric chain ID.
func (r *Registry) GetByChainID(id int64) (*Chain, error) {
	c, ok := r.byID[id]
	if !ok {
		return nil, ErrChainNotFound
	}
	return c, nil
}

// Resolve accepts a slug or a decimal chain id. Unknown positive ids resolve
// to an unnamed EVM chain so private networks still work.
func (r *Registry) Resolve(s string) (Chain, error) {
	if id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
		if id <= 0 {
			return Chain{}, fmt.Errorf("invalid chain id %d", id)
		}
		if c, err := r.GetByChainID(id); err == nil {
			return *c, nil
		}
		return Chain{Name: s, DisplayName: "Chain " + s, ChainID: id, Family: catalog.FamilyEVM}, nil
	}
	c, err := r.GetByName(s)
	if err != nil {
		return Chain{}, fmt.Errorf("%w: %q", err, s)
	}
	return *c, nil
}

// Label names id for humans, falling back to the bare number.
func (r *Registry) Label(id int64) string {
	if c, err := r.GetByChainID(id); err == nil {
		return c.Label()
	}
	return fmt.Sprintf("Chain %d", id)
}

// --- chain data ---

func allChains() []Chain {
	evm := catalog.FamilyEVM
	return []Chain{
		{Name: "ethereum", DisplayName: "Ethereum", ChainID: 1, Family: evm},
		{Name: "sepolia", DisplayName: "Sepolia", ChainID: 11155111, Family: evm, Testnet: true},
		{Name: "base", DisplayName: "Base", ChainID: 8453, Family: evm},
		{Name: "base-sepolia", DisplayName: "Base Sepolia", ChainID: 84532, Family: evm, Testnet: true},
		{Name: "arbitrum", DisplayName: "Arbitrum One", ChainID: 42161, Family: evm},
		{Name: "arbitrum-sepolia", DisplayName: "Arbitrum Sepolia", ChainID: 421614, Family: evm, Testnet: true},
		{Name: "optimism", DisplayName: "OP Mainnet", ChainID: 10, Family: evm},
		{Name: "polygon", DisplayName: "Polygon", ChainID: 137, Family: evm},
		{Name: "bnb", DisplayName: "BNB Smart Chain", ChainID: 56, Family: evm},
		{Name: "avalanche", DisplayName: "Avalanche C-Chain", ChainID: 43114, Family: evm},
		{Name: "linea", DisplayName: "Linea", ChainID: 59144, Family: evm},
		{Name: "zksync", DisplayName: "zkSync Era", ChainID: 324, Family: evm},
		{Name: "solana", DisplayName: "Solana", Family: catalog.FamilySolana},
	}
}
