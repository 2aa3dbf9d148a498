package connect

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/99designs/keyring"
)

// DefaultKeychainService is the keychain service embedded wallet keys live under.
const DefaultKeychainService = "w3connect"

// KeystoreBackend stores embedded wallet private keys.
type KeystoreBackend interface {
	Store(account, hexKey string) (string, error)
	Retrieve(ref string) (string, error)
	Delete(ref string) error
}

// Keystore wraps OS keychain access.
type Keystore struct {
	service string
	ring    keyring.Keyring
}

// OpenKeystore returns a keystore backed by the OS keychain for service.
func OpenKeystore(service string) *Keystore {
	if service == "" {
		service = DefaultKeychainService
	}
	cfg := keyring.Config{
		ServiceName:              service,
		KeychainTrustApplication: true,
	}

	// On Linux without a GUI, fall back to file-based storage.
	if runtime.GOOS == "linux" {
		cfg.AllowedBackends = []keyring.BackendType{
			keyring.SecretServiceBackend,
			keyring.KWalletBackend,
			keyring.FileBackend,
		}
	}

	ring, err := keyring.Open(cfg)
	if err != nil {
		ring, _ = keyring.Open(keyring.Config{
			ServiceName:     service,
			AllowedBackends: []keyring.BackendType{keyring.FileBackend},
		})
	}

	return &Keystore{service: service, ring: ring}
}

// KeyRef returns the keychain reference for an embedded wallet account.
func KeyRef(service, account string) string {
	if service == "" {
		service = DefaultKeychainService
	}
	return service + "." + account
}

// Store saves a private key for account and returns its reference.
func (k *Keystore) Store(account, hexKey string) (string, error) {
	if k.ring == nil {
		return "", fmt.Errorf("keystore not available")
	}
	ref := KeyRef(k.service, account)
	err := k.ring.Set(keyring.Item{
		Key:   ref,
		Data:  []byte(hexKey),
		Label: "w3connect embedded wallet " + account,
	})
	if err != nil {
		return "", fmt.Errorf("keychain store: %w", err)
	}
	return ref, nil
}

// Retrieve fetches a private key by its reference.
func (k *Keystore) Retrieve(ref string) (string, error) {
	if k.ring == nil {
		return "", fmt.Errorf("keystore not available")
	}
	item, err := k.ring.Get(ref)
	if err != nil {
		return "", fmt.Errorf("keychain retrieve: %w", err)
	}
	return string(item.Data), nil
}

// Delete removes a stored key.
func (k *Keystore) Delete(ref string) error {
	if k.ring == nil {
		return nil
	}
	return k.ring.Remove(ref)
}

// InMemoryKeystore stores keys in memory (for tests).
type InMemoryKeystore struct {
	mu      sync.Mutex
	service string
	data    map[string]string
}

// NewInMemoryKeystore creates an in-memory keystore.
func NewInMemoryKeystore() *InMemoryKeystore {
	return &InMemoryKeystore{service: DefaultKeychainService, data: make(map[string]string)}
}

func (k *InMemoryKeystore) Store(account, hexKey string) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	ref := KeyRef(k.service, account)
	k.data[ref] = hexKey
	return ref, nil
}

func (k *InMemoryKeystore) Retrieve(ref string) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	v, ok := k.data[ref]
	if !ok {
		return "", fmt.Errorf("key not found: %s", ref)
	}
	return v, nil
}

func (k *InMemoryKeystore) Delete(ref string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.data, ref)
	return nil
}
