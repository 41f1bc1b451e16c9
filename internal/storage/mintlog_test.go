package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestMintLog(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "home")
	log := NewMintLog(dir)
	log.now = func() time.Time { return time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC) }

	entries, err := log.List("")
	if err != nil || len(entries) != 0 {
		t.Fatalf("empty log = %v, %v", entries, err)
	}

	for _, e := range []MintEntry{
		{UserID: "u1", Title: "Netflix", MintAddress: "m1"},
		{UserID: "u2", Title: "Spotify", MintAddress: "m2"},
		{UserID: "u1", Title: "iCloud", MintAddress: "m3", CoPayers: 2},
	} {
		if err := log.Append(e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := log.List("u1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 || got[0].Title != "iCloud" || got[1].Title != "Netflix" {
		t.Fatalf("List(u1) = %+v", got)
	}
	if !got[0].MintedAt.Equal(log.now()) {
		t.Errorf("MintedAt = %v", got[0].MintedAt)
	}
	if all, _ := log.List(""); len(all) != 3 {
		t.Errorf("List(\"\") = %d entries", len(all))
	}
}

func TestMintLogRecoversFromCorruptFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "mints.json"), []byte("{nope"), 0o600); err != nil {
		t.Fatal(err)
	}
	log := NewMintLog(dir)
	if _, err := log.List(""); err == nil {
		t.Error("expected parse error")
	}
	if err := log.Append(MintEntry{Title: "Netflix"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if got, _ := log.List(""); len(got) != 1 {
		t.Errorf("entries = %+v", got)
	}
}
