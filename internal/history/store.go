package history

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	klog "github.com/Klingon-tech/klingnet-miner/internal/log"
	"github.com/Klingon-tech/klingnet-miner/internal/storage"
	"github.com/Klingon-tech/klingnet-miner/internal/telemetry"
)

// Prefix namespaces persisted transactions inside a shared database.
var Prefix = []byte("history/")

// Store holds the displayed transaction list and persists it.
type Store struct {
	mu     sync.Mutex
	db     *storage.PrefixDB
	txs    []Transaction
	saved  map[string][32]byte
	logger zerolog.Logger
}

// NewStore creates a store persisting into db under Prefix.
func NewStore(db storage.DB) *Store {
	return &Store{
		db:     storage.NewPrefixDB(db, Prefix),
		saved:  make(map[string][32]byte),
		logger: klog.History,
	}
}

// Load restores persisted transactions, replacing the in-memory list.
func (s *Store) Load() error {
	var txs []Transaction
	saved := make(map[string][32]byte)
	err := s.db.ForEach(nil, func(key, value []byte) error {
		var t Transaction
		if err := json.Unmarshal(value, &t); err != nil {
			s.logger.Warn().Err(err).Str("key", string(key)).Msg("Skipping corrupt transaction record")
			return nil
		}
		txs = append(txs, t)
		saved[string(key)] = Fingerprint(t)
		return nil
	})
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].Blockchain.Timestamp > txs[j].Blockchain.Timestamp
	})

	s.mu.Lock()
	s.txs = txs
	s.saved = saved
	s.mu.Unlock()

	s.logger.Debug().Int("count", len(txs)).Msg("History loaded")
	return nil
}

// Apply merges incoming into the list and reports whether it changed.
// Changed records are written through to the database.
func (s *Store) Apply(incoming []Transaction, upsert bool) ([]Transaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, changed := merge(s.txs, incoming, upsert)
	telemetry.ObserveMerge(changed)
	if !changed {
		return s.txs, false
	}
	s.txs = next

	if err := s.persist(next); err != nil {
		s.logger.Error().Err(err).Msg("Failed to persist history")
	}
	return next, true
}

// persist writes records whose content changed since the last write and
// removes records no longer in the list.
func (s *Store) persist(txs []Transaction) error {
	batch := s.db.NewBatch()
	keep := make(map[string]struct{}, len(txs))
	written := make(map[string][32]byte)

	for _, t := range txs {
		key := storageKey(t)
		if key == "" {
			continue
		}
		keep[key] = struct{}{}
		fp := Fingerprint(t)
		if prev, ok := s.saved[key]; ok && prev == fp {
			continue
		}
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		if err := batch.Put([]byte(key), data); err != nil {
			return err
		}
		written[key] = fp
	}

	var removed []string
	for key := range s.saved {
		if _, ok := keep[key]; !ok {
			if err := batch.Delete([]byte(key)); err != nil {
				return err
			}
			removed = append(removed, key)
		}
	}

	if err := batch.Commit(); err != nil {
		return fmt.Errorf("commit history: %w", err)
	}
	for k, fp := range written {
		s.saved[k] = fp
	}
	for _, k := range removed {
		delete(s.saved, k)
	}
	return nil
}

// storageKey is the record's id, or its first output hash when the backend
// did not assign an id yet.
func storageKey(t Transaction) string {
	if t.ID != "" {
		return t.ID
	}
	for _, h := range t.Details.SentOutputHashes {
		if h != "" {
			return "out:" + h
		}
	}
	return ""
}

// List returns the current list, newest first.
func (s *Store) List() []Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Transaction(nil), s.txs...)
}

// Page returns up to limit records starting at offset.
func (s *Store) Page(offset, limit int) []Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	if offset < 0 {
		offset = 0
	}
	if offset >= len(s.txs) || limit <= 0 {
		return nil
	}
	end := offset + limit
	if end > len(s.txs) {
		end = len(s.txs)
	}
	return append([]Transaction(nil), s.txs[offset:end]...)
}

// Pending returns the ids of transactions not yet confirmed.
func (s *Store) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for _, t := range s.txs {
		if t.ID != "" && t.IsPending() {
			ids = append(ids, t.ID)
		}
	}
	return ids
}
