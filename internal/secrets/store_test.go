package secrets

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/zalando/go-keyring"
)

func init() {
	keyring.MockInit()
}

func TestKeychainStore_CRUD(t *testing.T) {
	s := newKeychainStore()

	if _, err := s.Get(KeyBurnerWallet); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Set(KeyBurnerWallet, "base58secret"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	val, err := s.Get(KeyBurnerWallet)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if val != "base58secret" {
		t.Errorf("got %q, want %q", val, "base58secret")
	}
	if err := s.Delete(KeyBurnerWallet); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get(KeyBurnerWallet); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.Delete(KeyBurnerWallet); err != nil {
		t.Fatalf("Delete of non-existent key should not error: %v", err)
	}
}

func TestFileStore_Plain(t *testing.T) {
	dir := t.TempDir()
	s := newFileStore(dir, "")

	if _, err := s.Get(KeySession); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Set(KeySession, "token"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, secretsFile))
	if err != nil {
		t.Fatalf("stat secrets file: %v", err)
	}
	if perm := info.Mode().Perm(); perm != secretsFileMode {
		t.Errorf("file permissions: got %o, want %o", perm, secretsFileMode)
	}

	val, err := newFileStore(dir, "").Get(KeySession)
	if err != nil {
		t.Fatalf("Get on new instance failed: %v", err)
	}
	if val != "token" {
		t.Errorf("got %q, want %q", val, "token")
	}
}

func TestFileStore_Sealed(t *testing.T) {
	dir := t.TempDir()
	s := newFileStore(dir, "correct horse")

	if err := s.Set(KeyBurnerWallet, "very-secret-key"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, sealedFile))
	if err != nil {
		t.Fatalf("read sealed file: %v", err)
	}
	if bytes.Contains(raw, []byte("very-secret-key")) {
		t.Fatal("sealed file contains the plaintext secret")
	}

	val, err := newFileStore(dir, "correct horse").Get(KeyBurnerWallet)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if val != "very-secret-key" {
		t.Errorf("got %q, want %q", val, "very-secret-key")
	}

	_, err = newFileStore(dir, "battery staple").Get(KeyBurnerWallet)
	if !errors.Is(err, ErrWrongPassphrase) {
		t.Fatalf("expected ErrWrongPassphrase, got %v", err)
	}

	if err := s.Delete(KeyBurnerWallet); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get(KeyBurnerWallet); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestNew_UsesKeychainWhenAvailable(t *testing.T) {
	s := New(t.TempDir(), "")
	if _, ok := s.(*keychainStore); !ok {
		t.Fatalf("expected keychain store with mock keyring, got %T", s)
	}
}
