package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// snapshotName is the snapshot file inside the cache directory.
const snapshotName = "cache.json"

// snapshot is the on-disk form of the store: the complete key to entry
// mapping, rewritten in full on every successful fetch.
type snapshot struct {
	Entries map[string]Entry `json:"entries"`
}

// Store is the durable response cache. Reads take a shared lock; writes
// mutate under an exclusive lock and then persist the full snapshot, with
// writers serialized so snapshot files never interleave.
type Store struct {
	mu      sync.RWMutex
	entries map[string]Entry

	// saveMu serializes snapshot writes without blocking readers.
	saveMu sync.Mutex
	path   string

	logger zerolog.Logger

	// now is the clock; replaced in tests.
	now func() time.Time
}

// Open creates a store backed by dir/cache.json, loading a prior snapshot
// if one exists. A missing or corrupt snapshot is never fatal: the store
// starts empty and logs what happened. Cold start always succeeds.
func Open(dir string, logger zerolog.Logger) *Store {
	path := filepath.Join(dir, snapshotName)
	s := &Store{
		entries: make(map[string]Entry),
		path:    path,
		logger:  logger,
		now:     time.Now,
	}
	s.load()
	return s
}

func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn().Err(err).Str("path", s.path).Msg("Failed to read cache snapshot, starting empty")
		}
		return
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("Corrupt cache snapshot, starting empty")
		return
	}

	if snap.Entries != nil {
		s.entries = snap.Entries
	}
	CacheEntries.Set(float64(len(s.entries)))
	if len(s.entries) > 0 {
		s.logger.Info().Int("entries", len(s.entries)).Str("path", s.path).Msg("Loaded cache snapshot")
	}
}

// Get returns a snapshot of the entry for key together with its age in
// seconds at call time. ok is false when no entry exists.
func (s *Store) Get(key Key) (entry Entry, age int64, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok = s.entries[key.String()]
	if !ok {
		return Entry{}, 0, false
	}
	return entry, entry.Age(s.now()), true
}

// IsFresh reports whether an entry exists for key and its age satisfies
// 0 <= age < ttl. Negative age (clock skew) counts as not fresh.
func (s *Store) IsFresh(key Key, ttl time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[key.String()]
	if !ok {
		return false
	}
	return entry.FreshAt(s.now(), ttl)
}

// Set replaces the entry for key, stamping the fetch time to now (UTC),
// and persists the full snapshot before returning. Persistence failures
// are logged and swallowed; the in-memory update always takes effect.
func (s *Store) Set(key Key, body, contentType string) {
	entry := Entry{
		Body:        body,
		ContentType: contentType,
		FetchedAt:   s.now().UTC(),
	}

	s.mu.Lock()
	s.entries[key.String()] = entry
	count := len(s.entries)
	s.mu.Unlock()

	CacheEntries.Set(float64(count))
	s.persist()
}

// Count returns the number of distinct cached keys.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// persist writes the complete store to disk. The snapshot is serialized
// under a shared lock and written to a temp file that is renamed into
// place, so concurrent readers of the file never observe a partial write.
func (s *Store) persist() {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.RLock()
	snap := snapshot{Entries: make(map[string]Entry, len(s.entries))}
	for k, e := range s.entries {
		snap.Entries[k] = e
	}
	s.mu.RUnlock()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		PersistErrors.Inc()
		s.logger.Error().Err(err).Msg("Failed to serialize cache snapshot")
		return
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		PersistErrors.Inc()
		s.logger.Error().Err(err).Str("path", tmp).Msg("Failed to write cache snapshot")
		return
	}
	if err := os.Rename(tmp, s.path); err != nil {
		PersistErrors.Inc()
		s.logger.Error().Err(err).Str("path", s.path).Msg("Failed to replace cache snapshot")
		return
	}

	SnapshotBytes.Set(float64(len(data)))
	s.logger.Debug().Int("entries", len(snap.Entries)).Int("bytes", len(data)).Msg("Cache snapshot written")
}
