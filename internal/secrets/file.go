package secrets

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

const (
	secretsFile     = "secrets.json"
	sealedFile      = "secrets.sealed"
	secretsFileMode = 0o600

	saltSize  = 16
	nonceSize = 24
)

// sealedMagic prefixes encrypted files so a wrong format is detected early.
var sealedMagic = []byte("SMS1")

// ErrWrongPassphrase is returned when a sealed file cannot be opened.
var ErrWrongPassphrase = errors.New("secrets file could not be decrypted (wrong passphrase?)")

// fileStore keeps secrets in one file with 0600 permissions. With a
// passphrase the JSON map is sealed with NaCl secretbox under an scrypt key.
type fileStore struct {
	mu         sync.Mutex
	path       string
	passphrase []byte
}

func newFileStore(dir, passphrase string) *fileStore {
	name := secretsFile
	if passphrase != "" {
		name = sealedFile
	}
	return &fileStore{path: filepath.Join(dir, name), passphrase: []byte(passphrase)}
}

func (f *fileStore) Get(key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.load()
	if err != nil {
		return "", err
	}
	val, ok := data[key]
	if !ok {
		return "", ErrNotFound
	}
	return val, nil
}

func (f *fileStore) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.load()
	if err != nil {
		return err
	}
	data[key] = value
	return f.save(data)
}

func (f *fileStore) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := data[key]; !ok {
		return nil
	}
	delete(data, key)
	return f.save(data)
}

func (f *fileStore) load() (map[string]string, error) {
	raw, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, err
	}
	if len(f.passphrase) > 0 {
		raw, err = f.open(raw)
		if err != nil {
			return nil, err
		}
	}
	var data map[string]string
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse %s: %w", f.path, err)
	}
	if data == nil {
		data = make(map[string]string)
	}
	return data, nil
}

func (f *fileStore) save(data map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	if len(f.passphrase) > 0 {
		raw, err = f.seal(raw)
		if err != nil {
			return err
		}
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, raw, secretsFileMode); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

func (f *fileStore) deriveKey(salt []byte) (*[32]byte, error) {
	k, err := scrypt.Key(f.passphrase, salt, 1<<15, 8, 1, 32)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	var key [32]byte
	copy(key[:], k)
	return &key, nil
}

// seal lays out magic | salt | nonce | box.
func (f *fileStore) seal(plain []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, err
	}
	key, err := f.deriveKey(salt)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(sealedMagic)+saltSize+nonceSize+len(plain)+secretbox.Overhead)
	out = append(out, sealedMagic...)
	out = append(out, salt...)
	out = append(out, nonce[:]...)
	return secretbox.Seal(out, plain, &nonce, key), nil
}

func (f *fileStore) open(sealed []byte) ([]byte, error) {
	header := len(sealedMagic) + saltSize + nonceSize
	if len(sealed) < header+secretbox.Overhead || !bytes.HasPrefix(sealed, sealedMagic) {
		return nil, fmt.Errorf("%s is not a sealed secrets file", f.path)
	}
	salt := sealed[len(sealedMagic) : len(sealedMagic)+saltSize]
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[len(sealedMagic)+saltSize:header])

	key, err := f.deriveKey(salt)
	if err != nil {
		return nil, err
	}
	plain, ok := secretbox.Open(nil, sealed[header:], &nonce, key)
	if !ok {
		return nil, ErrWrongPassphrase
	}
	return plain, nil
}
