package agent

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLedger_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	ledger := LoadLedger(path)
	if ledger.Len() != 0 {
		t.Fatalf("fresh ledger has %d items", ledger.Len())
	}

	key := ledger.Key("/exports/shift1.xml", "abc123")
	if ledger.Seen(key) {
		t.Fatal("unseen key reported as seen")
	}
	if err := ledger.MarkUploaded(key, LedgerEntry{Sha256: "abc123", MtimeMs: 1700000000000}); err != nil {
		t.Fatalf("MarkUploaded: %v", err)
	}

	reloaded := LoadLedger(path)
	if !reloaded.Seen(key) {
		t.Fatal("key lost across reload")
	}
	if reloaded.Len() != 1 {
		t.Fatalf("reloaded ledger has %d items", reloaded.Len())
	}
}

func TestLedger_CorruptStateStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	ledger := LoadLedger(path)
	if ledger.Len() != 0 {
		t.Fatalf("corrupt state produced %d items", ledger.Len())
	}

	// And it can recover by writing fresh state.
	if err := ledger.MarkUploaded("k", LedgerEntry{Sha256: "x"}); err != nil {
		t.Fatalf("MarkUploaded after corrupt load: %v", err)
	}
	if !LoadLedger(path).Seen("k") {
		t.Fatal("state not persisted after recovery")
	}
}

func TestLedger_KeyIncludesContentHash(t *testing.T) {
	ledger := LoadLedger(filepath.Join(t.TempDir(), "state.json"))
	a := ledger.Key("/exports/shift1.xml", "aaa")
	b := ledger.Key("/exports/shift1.xml", "bbb")
	if a == b {
		t.Fatal("same path with different content must produce different keys")
	}
}
