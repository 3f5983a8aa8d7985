package keys

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/99designs/keyring"
)

const (
	keychainService = "alchscan"
	// APIKeyRef is the keychain entry holding the Alchemy API key.
	APIKeyRef = keychainService + ".alchemy"
)

// ErrNotFound is returned when no key is stored under a reference.
var ErrNotFound = errors.New("key not found")

// Store is satisfied by Keystore and InMemoryKeystore.
type Store interface {
	Set(ref, value string) error
	Get(ref string) (string, error)
	Delete(ref string) error
}

// Keystore wraps OS keychain access.
type Keystore struct {
	ring keyring.Keyring
}

// DefaultKeystore returns a keystore backed by the OS keychain.
func DefaultKeystore() *Keystore {
	cfg := keyring.Config{
		ServiceName:              keychainService,
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
			ServiceName:     keychainService,
			AllowedBackends: []keyring.BackendType{keyring.FileBackend},
		})
	}

	return &Keystore{ring: ring}
}

// NewKeystore wraps an already opened keyring.
func NewKeystore(ring keyring.Keyring) *Keystore {
	return &Keystore{ring: ring}
}

func (k *Keystore) Set(ref, value string) error {
	if k.ring == nil {
		return errors.New("keystore not available")
	}
	if err := k.ring.Set(keyring.Item{Key: ref, Data: []byte(value), Label: "alchscan API key"}); err != nil {
		return fmt.Errorf("keychain store: %w", err)
	}
	return nil
}

func (k *Keystore) Get(ref string) (string, error) {
	if k.ring == nil {
		return "", ErrNotFound
	}
	item, err := k.ring.Get(ref)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("keychain retrieve: %w", err)
	}
	return string(item.Data), nil
}

func (k *Keystore) Delete(ref string) error {
	if k.ring == nil {
		return nil
	}
	// Not every backend reports a missing key on Remove.
	if _, err := k.ring.Get(ref); errors.Is(err, keyring.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err := k.ring.Remove(ref); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("keychain remove: %w", err)
	}
	return nil
}

// InMemoryKeystore keeps keys in a map (for tests).
type InMemoryKeystore struct {
	data map[string]string
}

// NewInMemoryKeystore creates an empty in-memory keystore.
func NewInMemoryKeystore() *InMemoryKeystore {
	return &InMemoryKeystore{data: make(map[string]string)}
}

func (k *InMemoryKeystore) Set(ref, value string) error {
	k.data[ref] = value
	return nil
}

func (k *InMemoryKeystore) Get(ref string) (string, error) {
	v, ok := k.data[ref]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (k *InMemoryKeystore) Delete(ref string) error {
	if _, ok := k.data[ref]; !ok {
		return ErrNotFound
	}
	delete(k.data, ref)
	return nil
}

// ResolveAPIKey returns configured when set, otherwise the key held in s.
func ResolveAPIKey(configured string, s Store) (string, error) {
	if key := strings.TrimSpace(configured); key != "" {
		return key, nil
	}
	if s == nil {
		return "", ErrNotFound
	}
	key, err := s.Get(APIKeyRef)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(key), nil
}

// Mask hides all but the first and last four characters of a secret.
func Mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return strings.Repeat("*", len(secret))
	}
	return secret[:4] + strings.Repeat("*", len(secret)-8) + secret[len(secret)-4:]
}
