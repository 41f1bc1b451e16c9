// Package secrets stores the burner wallet key and session tokens. It uses
// the OS keychain (macOS Keychain, Linux Secret Service) when available and
// falls back to an encrypted file for containers and CI.
package secrets

import "fmt"

// serviceName is the keychain service identifier for all SubMint secrets.
const serviceName = "submint"

// Well-known keys.
const (
	KeyBurnerWallet   = "wallet/burner"
	KeyBurnerMnemonic = "wallet/burner-mnemonic"
	KeySession        = "auth/session"
)

// SecretStore provides secure credential storage.
type SecretStore interface {
	// Get retrieves a secret by key. Returns ErrNotFound if not present.
	Get(key string) (string, error)
	// Set stores a secret under the given key, replacing any existing value.
	Set(key, value string) error
	// Delete removes a secret. No error if the key doesn't exist.
	Delete(key string) error
}

// ErrNotFound is returned when a secret key does not exist.
var ErrNotFound = fmt.Errorf("secret not found")

// New returns the best available SecretStore for the current environment.
// It probes the OS keychain and falls back to a file in dir, sealed with
// passphrase when one is given.
func New(dir, passphrase string) SecretStore {
	ks := newKeychainStore()
	probeKey := "__submint_probe__"
	if err := ks.Set(probeKey, "ok"); err != nil {
		return newFileStore(dir, passphrase)
	}
	_ = ks.Delete(probeKey)
	return ks
}
