package agent

import (
	"encoding/json"
	"os"
	"sync"
)

// LedgerEntry records one successfully uploaded file version.
type LedgerEntry struct {
	Sha256  string `json:"sha256"`
	MtimeMs int64  `json:"mtimeMs"`
}

// Ledger is the agent's durable record of what has already been uploaded,
// keyed by "path:sha256" so an edited file re-uploads while a re-seen
// identical file does not. Safe for concurrent workers.
type Ledger struct {
	path string

	mu    sync.Mutex
	items map[string]LedgerEntry
}

type ledgerSnapshot struct {
	Items map[string]LedgerEntry `json:"items"`
}

// LoadLedger reads the state file; a missing or corrupt file starts an empty
// ledger rather than blocking the agent.
func LoadLedger(path string) *Ledger {
	ledger := &Ledger{path: path, items: map[string]LedgerEntry{}}

	data, err := os.ReadFile(path)
	if err != nil {
		return ledger
	}
	var snapshot ledgerSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil || snapshot.Items == nil {
		return ledger
	}
	ledger.items = snapshot.Items
	return ledger
}

func (l *Ledger) Key(path string, sha256 string) string {
	return path + ":" + sha256
}

func (l *Ledger) Seen(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.items[key]
	return ok
}

// MarkUploaded records the upload and persists the whole ledger. The write is
// tmp+rename so a crash mid-write never truncates existing state.
func (l *Ledger) MarkUploaded(key string, entry LedgerEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items[key] = entry
	return l.persistLocked()
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

func (l *Ledger) persistLocked() error {
	data, err := json.MarshalIndent(ledgerSnapshot{Items: l.items}, "", "  ")
	if err != nil {
		return err
	}
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, l.path)
}
