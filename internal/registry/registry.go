// Package registry holds the symbol -> account-id mapping the strategy
// evaluator uses to format alert payloads. It mirrors the original's
// AutoSaveJsonMap: a reader/writer-locked in-memory map that persists the
// whole map to disk on every write.
package registry

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/l2book/engine/internal/obslog"
)

// Registry is a concurrent symbol->accounts map. Reads may proceed in
// parallel; writes are exclusive and trigger a full durable save, matching
// spec §5's "reader-writer discipline... writes are exclusive and also
// trigger a durable save."
type Registry struct {
	mu       sync.RWMutex
	path     string
	accounts map[string][]string
	log      *obslog.Logger
}

// New creates a Registry backed by path. If the file exists it is loaded
// immediately; a missing file is treated as an empty registry, not an error.
func New(path string, log *obslog.Logger) (*Registry, error) {
	if log == nil {
		log = obslog.NewNop()
	}
	r := &Registry{path: path, accounts: make(map[string][]string), log: log}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) load() error {
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	var m map[string][]string
	if err := json.Unmarshal(data, &m); err != nil {
		r.log.Warnf("registry file %s is not valid JSON, starting empty: %v", r.path, err)
		return nil
	}
	r.accounts = m
	return nil
}

// Get returns the accounts registered for a symbol, or nil if unregistered.
// Satisfies orderbook.AccountRegistry.
func (r *Registry) Get(symbol string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.accounts[symbol]
}

// Set registers accounts for a symbol and persists the full map.
func (r *Registry) Set(symbol string, accounts []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[symbol] = accounts
	return r.saveLocked()
}

func (r *Registry) saveLocked() error {
	data, err := json.MarshalIndent(r.accounts, "", "    ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(r.path, data, 0o644); err != nil {
		r.log.Errorf("failed to persist registry to %s: %v", r.path, err)
		return err
	}
	return nil
}
