// Package store persists chunks in SQLite, keyed by the SHA-256 of their
// canonical wire encoding.
package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/chazu/tlang/pkg/bytecode"
)

var (
	// ErrNotFound indicates the requested chunk is not in the store.
	ErrNotFound = errors.New("store: chunk not found")
	// ErrInvalidHash indicates a hash that is not 64 hex digits.
	ErrInvalidHash = errors.New("store: invalid hash")
)

// Hash identifies a stored chunk: lowercase hex SHA-256 of its encoding.
type Hash string

// HashOf returns the hash of already-encoded chunk bytes.
func HashOf(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// ParseHash validates s and returns it as a Hash.
func ParseHash(s string) (Hash, error) {
	if len(s) != 2*sha256.Size {
		return "", fmt.Errorf("%w: %q", ErrInvalidHash, s)
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return "", fmt.Errorf("%w: %q", ErrInvalidHash, s)
		}
	}
	return Hash(s), nil
}

func (h Hash) String() string { return string(h) }

// Short returns the first 12 hex digits, for logs.
func (h Hash) Short() string {
	if len(h) > 12 {
		return string(h[:12])
	}
	return string(h)
}

// Entry describes a stored chunk.
type Entry struct {
	Hash    Hash
	Size    int
	Created time.Time
}

// ChunkStore is a content-addressed chunk store.
type ChunkStore struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens (creating if needed) the store at path. ":memory:" gives a
// private in-memory store.
func Open(path string) (*ChunkStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: opening database: %w", err)
	}
	// One connection keeps ":memory:" a single database.
	db.SetMaxOpenConns(1)

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS chunks (
		hash    TEXT PRIMARY KEY,
		data    BLOB NOT NULL,
		created INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: creating table: %w", err)
	}

	return &ChunkStore{db: db, path: path}, nil
}

// Path returns the path the store was opened with.
func (s *ChunkStore) Path() string { return s.path }

// Close closes the database connection.
func (s *ChunkStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Put stores c and returns its hash. Storing the same chunk twice is a
// no-op returning the same hash.
func (s *ChunkStore) Put(c *bytecode.Chunk) (Hash, error) {
	data, err := bytecode.MarshalChunk(c)
	if err != nil {
		return "", fmt.Errorf("store: %w", err)
	}
	return s.PutEncoded(data)
}

// PutEncoded stores chunk bytes that are already in wire form. The bytes
// are decoded first so only valid chunks enter the store.
func (s *ChunkStore) PutEncoded(data []byte) (Hash, error) {
	c, err := bytecode.UnmarshalChunk(data)
	if err != nil {
		return "", fmt.Errorf("store: %w", err)
	}
	// Re-encode so the hash is always over the canonical form.
	canonical, err := bytecode.MarshalChunk(c)
	if err != nil {
		return "", fmt.Errorf("store: %w", err)
	}
	h := HashOf(canonical)

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(
		"INSERT OR IGNORE INTO chunks (hash, data, created) VALUES (?, ?, ?)",
		string(h), canonical, time.Now().Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("store: saving chunk: %w", err)
	}
	return h, nil
}

// Get loads the chunk with hash h.
func (s *ChunkStore) Get(h Hash) (*bytecode.Chunk, error) {
	data, err := s.GetEncoded(h)
	if err != nil {
		return nil, err
	}
	c, err := bytecode.UnmarshalChunk(data)
	if err != nil {
		return nil, fmt.Errorf("store: chunk %s: %w", h.Short(), err)
	}
	return c, nil
}

// GetEncoded loads the wire bytes of the chunk with hash h.
func (s *ChunkStore) GetEncoded(h Hash) ([]byte, error) {
	if _, err := ParseHash(string(h)); err != nil {
		return nil, err
	}
	var data []byte
	err := s.db.QueryRow("SELECT data FROM chunks WHERE hash = ?", string(h)).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, h)
		}
		return nil, fmt.Errorf("store: querying chunk: %w", err)
	}
	return data, nil
}

// Has reports whether a chunk with hash h is stored.
func (s *ChunkStore) Has(h Hash) (bool, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM chunks WHERE hash = ?", string(h)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("store: querying chunk: %w", err)
	}
	return n > 0, nil
}

// List returns every stored chunk in the order it was first stored.
func (s *ChunkStore) List() ([]Entry, error) {
	rows, err := s.db.Query("SELECT hash, length(data), created FROM chunks ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("store: listing chunks: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			h       string
			e       Entry
			created int64
		)
		if err := rows.Scan(&h, &e.Size, &created); err != nil {
			return nil, fmt.Errorf("store: scanning row: %w", err)
		}
		e.Hash = Hash(h)
		e.Created = time.Unix(created, 0)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: listing chunks: %w", err)
	}
	return entries, nil
}

// Delete removes the chunk with hash h. Deleting a missing chunk is not
// an error.
func (s *ChunkStore) Delete(h Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM chunks WHERE hash = ?", string(h)); err != nil {
		return fmt.Errorf("store: deleting chunk: %w", err)
	}
	return nil
}
