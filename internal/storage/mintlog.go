// Package storage keeps a local journal of subscriptions minted from this
// machine, so the CLI can list them without a Supabase round trip.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// MintEntry is one minted subscription.
type MintEntry struct {
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	MintAddress string    `json:"mint_address"`
	Signature   string    `json:"signature"`
	MetadataURI string    `json:"metadata_uri"`
	CoPayers    int       `json:"co_payers"`
	MintedAt    time.Time `json:"minted_at"`
}

// MintLog stores entries in mints.json under dir.
type MintLog struct {
	mu  sync.Mutex
	dir string
	now func() time.Time
}

// NewMintLog creates a journal at the given directory.
func NewMintLog(dir string) *MintLog {
	return &MintLog{dir: dir, now: time.Now}
}

func (l *MintLog) filePath() string {
	return filepath.Join(l.dir, "mints.json")
}

// Append records a mint. MintedAt is filled in when zero.
func (l *MintLog) Append(e MintEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.readUnsafe()
	if err != nil {
		entries = nil // start fresh if the file is corrupted
	}
	if e.MintedAt.IsZero() {
		e.MintedAt = l.now().UTC()
	}
	return l.writeUnsafe(append(entries, e))
}

// List returns entries for userID, newest first. An empty userID lists all.
func (l *MintLog) List(userID string) ([]MintEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.readUnsafe()
	if err != nil {
		return nil, err
	}
	out := make([]MintEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		if userID == "" || entries[i].UserID == userID {
			out = append(out, entries[i])
		}
	}
	return out, nil
}

func (l *MintLog) readUnsafe() ([]MintEntry, error) {
	data, err := os.ReadFile(l.filePath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read mint log: %w", err)
	}

	var entries []MintEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse mint log: %w", err)
	}
	return entries, nil
}

func (l *MintLog) writeUnsafe(entries []MintEntry) error {
	if err := os.MkdirAll(l.dir, 0o700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal mint log: %w", err)
	}
	return os.WriteFile(l.filePath(), data, 0o600)
}
