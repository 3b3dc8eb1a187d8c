// Actionrank - Persona-Driven Climate Action Recommendations
// Copyright 2026 Verdant Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/verdantlabs/actionrank

// Package storage provides BadgerDB-backed persistence for user state and
// the action catalog.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/verdantlabs/actionrank/internal/metrics"
	"github.com/verdantlabs/actionrank/internal/persona"
	"github.com/verdantlabs/actionrank/internal/recommend"
)

// track records the duration and outcome of one store operation.
// Deferred with the method's named error return.
func track(op string, start time.Time, err *error) {
	metrics.RecordStoreOperation(op, time.Since(start), *err)
}

// Key prefixes for BadgerDB storage
const (
	stateKeyPrefix   = "state:"
	catalogKeyPrefix = "catalog:"
)

// defaultEventRetention bounds how long interaction events are kept.
// Events older than the retention window no longer influence scoring
// (novelty, recency, and the dismissal penalty all decay well before
// this), so keeping them only grows state records.
const defaultEventRetention = 90 * 24 * time.Hour

// ErrActionNotFound is returned when a catalog action does not exist.
var ErrActionNotFound = errors.New("action not found")

// Config controls how the store opens its BadgerDB instance.
type Config struct {
	// Path is the directory where BadgerDB stores its data.
	// Ignored when InMemory is true.
	Path string `koanf:"path" json:"path"`

	// InMemory opens an ephemeral database. Useful for tests and demos.
	InMemory bool `koanf:"in_memory" json:"in_memory"`

	// EventRetention is how long interaction events are kept before
	// cleanup prunes them. Zero means the default (90 days).
	EventRetention time.Duration `koanf:"event_retention" json:"event_retention"`

	// CleanupInterval is how often the background cleanup routine runs.
	CleanupInterval time.Duration `koanf:"cleanup_interval" json:"cleanup_interval"`
}

// DefaultConfig returns the default store configuration.
func DefaultConfig() Config {
	return Config{
		Path:            "./data/actionrank",
		EventRetention:  defaultEventRetention,
		CleanupInterval: 1 * time.Hour,
	}
}

// Store persists user state and the action catalog in BadgerDB.
// It implements recommend.StateProvider and recommend.CatalogProvider.
type Store struct {
	db        *badger.DB
	logger    zerolog.Logger
	retention time.Duration
	now       func() time.Time
}

var (
	_ recommend.StateProvider   = (*Store)(nil)
	_ recommend.CatalogProvider = (*Store)(nil)
)

// New opens a BadgerDB instance at the configured path and returns a store.
func New(cfg Config, logger zerolog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path)
	opts.Logger = nil // Suppress BadgerDB internal logs
	// State records and catalog entries are small
	opts.ValueLogFileSize = 16 << 20 // 16MB (smaller than default 1GB)
	opts.SyncWrites = true
	if cfg.InMemory {
		opts = opts.WithInMemory(true).WithDir("").WithValueDir("")
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}

	return NewFromDB(db, cfg, logger), nil
}

// NewFromDB creates a store from an existing BadgerDB connection.
// This is useful when sharing a BadgerDB instance across multiple stores.
func NewFromDB(db *badger.DB, cfg Config, logger zerolog.Logger) *Store {
	retention := cfg.EventRetention
	if retention <= 0 {
		retention = defaultEventRetention
	}
	return &Store{
		db:        db,
		logger:    logger.With().Str("component", "storage").Logger(),
		retention: retention,
		now:       time.Now,
	}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetState returns the stored state for a user. A user with no stored
// record yields a zero-valued state carrying the user ID, not an error.
func (s *Store) GetState(ctx context.Context, userID string) (_ recommend.UserState, err error) {
	defer track("get_state", time.Now(), &err)

	if userID == "" {
		return recommend.UserState{}, errors.New("user ID cannot be empty")
	}

	var state recommend.UserState
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(stateKeyPrefix + userID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			state = recommend.UserState{UserID: userID}
			return nil
		}
		if err != nil {
			return fmt.Errorf("get state: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &state)
		})
	})
	if err != nil {
		return recommend.UserState{}, err
	}

	return state, nil
}

// PutState stores the full state record for a user, replacing any
// existing record.
func (s *Store) PutState(ctx context.Context, state recommend.UserState) (err error) {
	defer track("put_state", time.Now(), &err)

	if state.UserID == "" {
		return errors.New("user ID cannot be empty")
	}

	state.UpdatedAt = s.now()
	data, err := json.Marshal(&state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(stateKeyPrefix+state.UserID), data)
	})
}

// AppendEvents appends interaction events to a user's history and returns
// the updated state. Events older than the retention window are pruned
// during the same write.
func (s *Store) AppendEvents(ctx context.Context, userID string, events []recommend.Event) (_ recommend.UserState, err error) {
	defer track("append_events", time.Now(), &err)

	if userID == "" {
		return recommend.UserState{}, errors.New("user ID cannot be empty")
	}
	now := s.now()
	for i := range events {
		if !events[i].Type.Valid() {
			return recommend.UserState{}, fmt.Errorf("invalid event type %q", events[i].Type)
		}
		if events[i].Timestamp.IsZero() {
			events[i].Timestamp = now
		}
	}

	var state recommend.UserState
	err = s.db.Update(func(txn *badger.Txn) error {
		key := []byte(stateKeyPrefix + userID)

		item, err := txn.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			state = recommend.UserState{UserID: userID}
		case err != nil:
			return fmt.Errorf("get state: %w", err)
		default:
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &state)
			}); err != nil {
				return fmt.Errorf("unmarshal state: %w", err)
			}
		}

		state.Events = append(state.Events, events...)
		state.Events = pruneEvents(state.Events, now.Add(-s.retention))
		state.UpdatedAt = now

		data, err := json.Marshal(&state)
		if err != nil {
			return fmt.Errorf("marshal state: %w", err)
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return recommend.UserState{}, err
	}

	return state, nil
}

// SetPersona stores a persona vector and interests on a user's state,
// preserving the existing event history.
func (s *Store) SetPersona(ctx context.Context, userID string, vec persona.Vector, interests []string) (_ recommend.UserState, err error) {
	defer track("set_persona", time.Now(), &err)

	if userID == "" {
		return recommend.UserState{}, errors.New("user ID cannot be empty")
	}

	var state recommend.UserState
	err = s.db.Update(func(txn *badger.Txn) error {
		key := []byte(stateKeyPrefix + userID)

		item, err := txn.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			state = recommend.UserState{UserID: userID}
		case err != nil:
			return fmt.Errorf("get state: %w", err)
		default:
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &state)
			}); err != nil {
				return fmt.Errorf("unmarshal state: %w", err)
			}
		}

		state.Persona = &vec
		if interests != nil {
			state.Interests = interests
		}
		state.UpdatedAt = s.now()

		data, err := json.Marshal(&state)
		if err != nil {
			return fmt.Errorf("marshal state: %w", err)
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return recommend.UserState{}, err
	}

	return state, nil
}

// DeleteState removes a user's stored state. Deleting a missing user
// is not an error.
func (s *Store) DeleteState(ctx context.Context, userID string) (err error) {
	defer track("delete_state", time.Now(), &err)

	if userID == "" {
		return errors.New("user ID cannot be empty")
	}

	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(stateKeyPrefix + userID))
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete state: %w", err)
		}
		return nil
	})
}

// ListActions returns all catalog actions, ordered by key.
func (s *Store) ListActions(ctx context.Context) (_ []recommend.Action, err error) {
	defer track("list_actions", time.Now(), &err)

	var actions []recommend.Action
	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(catalogKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var action recommend.Action
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &action)
			})
			if err != nil {
				return fmt.Errorf("unmarshal action: %w", err)
			}
			actions = append(actions, action)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}

	return actions, nil
}

// GetAction returns a single catalog action by ID.
func (s *Store) GetAction(ctx context.Context, id string) (_ recommend.Action, err error) {
	defer track("get_action", time.Now(), &err)

	var action recommend.Action
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(catalogKeyPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrActionNotFound
		}
		if err != nil {
			return fmt.Errorf("get action: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &action)
		})
	})
	if err != nil {
		return recommend.Action{}, err
	}

	return action, nil
}

// ReplaceCatalog atomically replaces the full action catalog.
// Actions are validated before any write happens.
func (s *Store) ReplaceCatalog(ctx context.Context, actions []recommend.Action) (err error) {
	defer track("replace_catalog", time.Now(), &err)

	encoded := make(map[string][]byte, len(actions))
	for i := range actions {
		if err := recommend.ValidateAction(actions[i]); err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
		data, err := json.Marshal(&actions[i])
		if err != nil {
			return fmt.Errorf("marshal action %q: %w", actions[i].ID, err)
		}
		encoded[actions[i].ID] = data
	}

	// Collect existing keys first; badger iterators cannot run inside
	// the same transaction that mutates the prefix.
	var stale [][]byte
	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(catalogKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			id := string(it.Item().Key()[len(catalogKeyPrefix):])
			if _, keep := encoded[id]; !keep {
				stale = append(stale, it.Item().KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan catalog: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		for _, key := range stale {
			if err := txn.Delete(key); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("delete stale action: %w", err)
			}
		}
		for id, data := range encoded {
			if err := txn.Set([]byte(catalogKeyPrefix+id), data); err != nil {
				return fmt.Errorf("set action %q: %w", id, err)
			}
		}
		return nil
	})
}

// CountUsers returns the number of stored user state records.
func (s *Store) CountUsers(ctx context.Context) (_ int, err error) {
	defer track("count_users", time.Now(), &err)

	count := 0
	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(stateKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	if err == nil {
		metrics.SetStoredUserStates(count)
	}

	return count, err
}

// CleanupExpired prunes events older than the retention window from all
// user states. It returns the number of states rewritten.
func (s *Store) CleanupExpired(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.retention)

	// Find states with stale events
	var staleUsers []string
	total := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(stateKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			total++
			var state recommend.UserState
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &state)
			})
			if err != nil {
				continue
			}
			if hasStaleEvents(state.Events, cutoff) {
				staleUsers = append(staleUsers, state.UserID)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan states: %w", err)
	}
	metrics.SetStoredUserStates(total)

	count := 0
	for _, userID := range staleUsers {
		if err := s.pruneUser(userID, cutoff); err != nil {
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("Failed to prune user state")
			continue
		}
		count++
	}

	return count, nil
}

// pruneUser rewrites one user's state with stale events removed.
func (s *Store) pruneUser(userID string, cutoff time.Time) error {
	return s.db.Update(func(txn *badger.Txn) error {
		key := []byte(stateKeyPrefix + userID)

		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil // Deleted since the scan
		}
		if err != nil {
			return fmt.Errorf("get state: %w", err)
		}

		var state recommend.UserState
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &state)
		}); err != nil {
			return fmt.Errorf("unmarshal state: %w", err)
		}

		state.Events = pruneEvents(state.Events, cutoff)

		data, err := json.Marshal(&state)
		if err != nil {
			return fmt.Errorf("marshal state: %w", err)
		}
		return txn.Set(key, data)
	})
}

// RunGC runs one round of BadgerDB value log garbage collection.
// badger.ErrNoRewrite means there was nothing to reclaim.
func (s *Store) RunGC() {
	if err := s.db.RunValueLogGC(0.5); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
		s.logger.Warn().Err(err).Msg("Value log GC failed")
	}
}

func pruneEvents(events []recommend.Event, cutoff time.Time) []recommend.Event {
	kept := events[:0]
	for _, ev := range events {
		if !ev.Timestamp.Before(cutoff) {
			kept = append(kept, ev)
		}
	}
	return kept
}

func hasStaleEvents(events []recommend.Event, cutoff time.Time) bool {
	for _, ev := range events {
		if ev.Timestamp.Before(cutoff) {
			return true
		}
	}
	return false
}
