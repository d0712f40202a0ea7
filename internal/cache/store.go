// Package cache persists compiled oracle circuits so that repeated
// searches over the same graph pair skip the diagonal compilation.
// Entries are keyed by the pair of graph fingerprints and every entry
// can be recompiled from the graphs, so the store runs on the cache
// database profile: speed over durability.
package cache

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/qubitlab/subisom/internal/database"
)

const schema = `
CREATE TABLE IF NOT EXISTS oracle_circuits (
	target_fp    TEXT    NOT NULL,
	pattern_fp   TEXT    NOT NULL,
	payload      BLOB    NOT NULL,
	created_at   INTEGER NOT NULL,
	last_used_at INTEGER NOT NULL,
	PRIMARY KEY (target_fp, pattern_fp)
);
CREATE INDEX IF NOT EXISTS idx_oracle_circuits_last_used
	ON oracle_circuits (last_used_at);
`

// Store is a SQLite-backed circuit cache. It satisfies the search
// controller's cache interface: lookups and writes never fail the
// search, they degrade to a miss and a log line.
type Store struct {
	db  *database.DB
	log zerolog.Logger
}

// NewStore opens (creating if needed) the cache database at path.
func NewStore(path string, log zerolog.Logger) (*Store, error) {
	db, err := database.New(database.Config{
		Path:    path,
		Profile: database.ProfileCache,
		Name:    "oracle-cache",
	})
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cache: failed to apply schema: %w", err)
	}

	return &Store{
		db:  db,
		log: log.With().Str("component", "cache").Logger(),
	}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying database for maintenance jobs.
func (s *Store) DB() *database.DB {
	return s.db
}

// splitKey separates a "targetFP:patternFP" cache key.
func splitKey(key string) (string, string, bool) {
	i := strings.IndexByte(key, ':')
	if i <= 0 || i == len(key)-1 {
		return "", "", false
	}
	return key[:i], key[i+1:], true
}

// Get returns the cached circuit payload for the key, touching its
// last-used timestamp on a hit.
func (s *Store) Get(key string) ([]byte, bool) {
	targetFP, patternFP, ok := splitKey(key)
	if !ok {
		s.log.Warn().Str("key", key).Msg("Malformed cache key")
		return nil, false
	}

	var payload []byte
	err := s.db.QueryRow(
		"SELECT payload FROM oracle_circuits WHERE target_fp = ? AND pattern_fp = ?",
		targetFP, patternFP,
	).Scan(&payload)
	if err != nil {
		return nil, false
	}

	if _, err := s.db.Exec(
		"UPDATE oracle_circuits SET last_used_at = ? WHERE target_fp = ? AND pattern_fp = ?",
		time.Now().Unix(), targetFP, patternFP,
	); err != nil {
		s.log.Warn().Err(err).Msg("Failed to touch cache entry")
	}

	return payload, true
}

// Put stores (or replaces) the circuit payload for the key.
func (s *Store) Put(key string, payload []byte) {
	targetFP, patternFP, ok := splitKey(key)
	if !ok {
		s.log.Warn().Str("key", key).Msg("Malformed cache key")
		return
	}

	now := time.Now().Unix()
	if _, err := s.db.Exec(
		`INSERT INTO oracle_circuits (target_fp, pattern_fp, payload, created_at, last_used_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (target_fp, pattern_fp) DO UPDATE SET
		   payload = excluded.payload,
		   last_used_at = excluded.last_used_at`,
		targetFP, patternFP, payload, now, now,
	); err != nil {
		s.log.Warn().Err(err).Msg("Failed to store cache entry")
	}
}

// Prune deletes entries not used within maxAge and returns the number
// of deleted rows.
func (s *Store) Prune(maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).Unix()
	res, err := s.db.Exec("DELETE FROM oracle_circuits WHERE last_used_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("cache: prune failed: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cache: prune row count: %w", err)
	}
	if deleted > 0 {
		s.log.Info().Int64("deleted", deleted).Msg("Pruned stale cache entries")
	}
	return deleted, nil
}

// Stats summarizes the cache contents.
type Stats struct {
	Entries      int64 `json:"entries"`
	PayloadBytes int64 `json:"payload_bytes"`
}

// Stats returns entry count and total payload size.
func (s *Store) Stats() (Stats, error) {
	var st Stats
	err := s.db.QueryRow(
		"SELECT COUNT(*), COALESCE(SUM(LENGTH(payload)), 0) FROM oracle_circuits",
	).Scan(&st.Entries, &st.PayloadBytes)
	if err != nil {
		return Stats{}, fmt.Errorf("cache: stats query failed: %w", err)
	}
	return st, nil
}
