package checkpoint

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIdentityIsStableAndVoiceSensitive(t *testing.T) {
	a := Identity("/books/dune.txt", "narrator-a")
	b := Identity("/books/dune.txt", "narrator-a")
	if a != b {
		t.Errorf("identity not stable: %s vs %s", a, b)
	}
	if Identity("/books/dune.txt", "narrator-b") == a {
		t.Error("different voices must map to different sessions")
	}
	if Identity("  /books/dune.txt  ", "narrator-a") != a {
		t.Error("surrounding whitespace should not change identity")
	}
}

func TestSaveAndCheckResumable(t *testing.T) {
	store := NewStore(t.TempDir())
	identity := Identity("/books/dune.txt", "voice")

	session, err := store.CheckResumable(identity)
	if err != nil {
		t.Fatalf("check empty: %v", err)
	}
	if session != nil {
		t.Fatal("expected no session before save")
	}

	if err := store.Save(Session{
		SessionID:      "s1",
		InputIdentity:  identity,
		CompletedUnits: 120,
		TotalUnits:     500,
	}); err != nil {
		t.Fatalf("save: %v", err)
	}

	session, err = store.CheckResumable(identity)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if session == nil {
		t.Fatal("expected session after save")
	}
	if session.CompletedUnits != 120 || session.TotalUnits != 500 {
		t.Errorf("units = %d/%d", session.CompletedUnits, session.TotalUnits)
	}
	if session.UpdatedAt.IsZero() {
		t.Error("expected updated timestamp")
	}
}

func TestTornManifestReadsAsNoSession(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root)
	identity := Identity("input", "voice")

	dir := store.SessionDir(identity)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "session.json"), []byte("{\"session_id\": \"tru"), 0o644); err != nil {
		t.Fatal(err)
	}

	session, err := store.CheckResumable(identity)
	if err != nil {
		t.Fatalf("check torn manifest: %v", err)
	}
	if session != nil {
		t.Error("torn manifest should read as no session")
	}
}

func TestDiscardRemovesSessionDirectory(t *testing.T) {
	store := NewStore(t.TempDir())
	identity := Identity("input", "voice")
	if err := store.Save(Session{InputIdentity: identity, CompletedUnits: 1, TotalUnits: 2}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Discard(identity); err != nil {
		t.Fatalf("discard: %v", err)
	}
	if _, err := os.Stat(store.SessionDir(identity)); !os.IsNotExist(err) {
		t.Error("session directory should be gone")
	}
	// Discarding again is a no-op.
	if err := store.Discard(identity); err != nil {
		t.Fatalf("second discard: %v", err)
	}
}
