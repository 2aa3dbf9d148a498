// Package catalog holds the registry of connectable wallets. A Catalog serves
// immutable snapshots; refreshing swaps the whole snapshot at once so readers
// never observe a partially updated set.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// ErrWalletNotFound is returned when a wallet id is not in the snapshot.
var ErrWalletNotFound = errors.New("wallet not found")

// ErrInvalidDescriptor is returned when a descriptor fails validation.
var ErrInvalidDescriptor = errors.New("invalid wallet descriptor")

// Kind selects the connection provider implementation for a wallet.
type Kind string

const (
	KindLink     Kind = "link"     // external app reached through deep/universal links
	KindEmbedded Kind = "embedded" // custodial key held by this process
	KindBypass   Kind = "bypass"   // debug connector for QA
)

// ChainFamily distinguishes signing capabilities of the primary chain.
type ChainFamily string

const (
	FamilyEVM    ChainFamily = "evm"
	FamilySolana ChainFamily = "solana"
)

// SupportsTypedData reports whether wallets on this family can sign
// structured (EIP-712) data.
func (f ChainFamily) SupportsTypedData() bool {
	return f != FamilySolana
}

// Descriptor describes one connectable wallet.
type Descriptor struct {
	ID            string        `yaml:"id"                       json:"id"`
	Name          string        `yaml:"name"                     json:"name"`
	Kind          Kind          `yaml:"kind"                     json:"kind"`
	ImageURL      string        `yaml:"image_url,omitempty"      json:"image_url,omitempty"`
	Homepage      string        `yaml:"homepage,omitempty"       json:"homepage,omitempty"`
	Chains        []ChainFamily `yaml:"chains"                   json:"chains"`
	NativeScheme  string        `yaml:"native_scheme,omitempty"  json:"native_scheme,omitempty"`  // e.g. "metamask://"
	UniversalLink string        `yaml:"universal_link,omitempty" json:"universal_link,omitempty"` // e.g. "https://metamask.app.link"
	AppStoreID    string        `yaml:"app_store_id,omitempty"   json:"app_store_id,omitempty"`
	PackageName   string        `yaml:"package_name,omitempty"   json:"package_name,omitempty"`
	// PeerNames are the names the wallet announces itself with once connected.
	PeerNames []string `yaml:"peer_names,omitempty" json:"peer_names,omitempty"`
}

// Supports reports whether the wallet can connect on the given chain family.
func (d Descriptor) Supports(f ChainFamily) bool {
	if len(d.Chains) == 0 {
		return f == FamilyEVM
	}
	return slices.Contains(d.Chains, f)
}

// HasLink reports whether the wallet can be reached through a deep link.
func (d Descriptor) HasLink() bool {
	return d.NativeScheme != "" || d.UniversalLink != ""
}

func (d Descriptor) clone() Descriptor {
	d.Chains = slices.Clone(d.Chains)
	d.PeerNames = slices.Clone(d.PeerNames)
	return d
}

func (d Descriptor) validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidDescriptor)
	}
	switch d.Kind {
	case KindLink:
		if !d.HasLink() {
			return fmt.Errorf("%w: %s: link wallet needs native_scheme or universal_link", ErrInvalidDescriptor, d.ID)
		}
	case KindEmbedded, KindBypass:
	default:
		return fmt.Errorf("%w: %s: unknown kind %q", ErrInvalidDescriptor, d.ID, d.Kind)
	}
	return nil
}

// Snapshot is an immutable set of descriptors keyed by id.
type Snapshot struct {
	wallets []Descriptor
	byID    map[string]int
}

// NewSnapshot validates ds and builds a snapshot. Descriptors without a kind
// default to KindLink. Ids are matched case-insensitively.
func NewSnapshot(ds []Descriptor) (*Snapshot, error) {
	s := &Snapshot{
		wallets: make([]Descriptor, 0, len(ds)),
		byID:    make(map[string]int, len(ds)),
	}
	for _, d := range ds {
		d = d.clone()
		if d.Kind == "" {
			d.Kind = KindLink
		}
		if err := d.validate(); err != nil {
			return nil, err
		}
		key := strings.ToLower(d.ID)
		if _, dup := s.byID[key]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidDescriptor, d.ID)
		}
		s.byID[key] = len(s.wallets)
		s.wallets = append(s.wallets, d)
	}
	return s, nil
}

// Get returns a copy of the descriptor with the given id.
func (s *Snapshot) Get(id string) (Descriptor, error) {
	i, ok := s.byID[strings.ToLower(id)]
	if !ok {
		return Descriptor{}, ErrWalletNotFound
	}
	return s.wallets[i].clone(), nil
}

// All returns copies of every descriptor in catalog order.
func (s *Snapshot) All() []Descriptor {
	out := make([]Descriptor, len(s.wallets))
	for i, d := range s.wallets {
		out[i] = d.clone()
	}
	return out
}

// ByPeerName finds the wallet announcing itself as name, so a modal session
// can be attributed to a catalog entry. Names compare case-insensitively.
func (s *Snapshot) ByPeerName(name string) (Descriptor, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Descriptor{}, false
	}
	for _, d := range s.wallets {
		for _, p := range d.PeerNames {
			if strings.EqualFold(p, name) {
				return d.clone(), true
			}
		}
	}
	return Descriptor{}, false
}

// Len returns the number of descriptors.
func (s *Snapshot) Len() int {
	return len(s.wallets)
}

// Source yields the current snapshot.
type Source interface {
	Snapshot() *Snapshot
}

// Catalog holds the current snapshot and allows wholesale replacement.
type Catalog struct {
	cur atomic.Pointer[Snapshot]
}

// New returns a catalog serving s.
func New(s *Snapshot) *Catalog {
	c := &Catalog{}
	c.cur.Store(s)
	return c
}

// NewDefault returns a catalog serving the built-in descriptors.
func NewDefault() *Catalog {
	s, err := NewSnapshot(Defaults())
	if err != nil {
		panic(fmt.Sprintf("catalog: invalid built-in descriptors: %v", err))
	}
	return New(s)
}

// Snapshot returns the current snapshot.
func (c *Catalog) Snapshot() *Snapshot {
	return c.cur.Load()
}

// Replace swaps in a new snapshot.
func (c *Catalog) Replace(s *Snapshot) {
	c.cur.Store(s)
}

// Refresh validates ds and replaces the snapshot. On error the current
// snapshot is left untouched.
func (c *Catalog) Refresh(ds []Descriptor) error {
	s, err := NewSnapshot(ds)
	if err != nil {
		return err
	}
	c.Replace(s)
	return nil
}

// LoadFile reads a YAML wallet file and refreshes the catalog with it.
func (c *Catalog) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading wallet catalog: %w", err)
	}
	ds, err := Parse(data)
	if err != nil {
		return err
	}
	return c.Refresh(ds)
}

// File is the YAML shape of a wallet catalog file.
type File struct {
	Wallets []Descriptor `yaml:"wallets"`
}

// Parse decodes a YAML wallet catalog.
func Parse(data []byte) ([]Descriptor, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing wallet catalog: %w", err)
	}
	return f.Wallets, nil
}
