package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// ErrNotFound is returned when no entry has the requested sequence.
var ErrNotFound = errors.New("journal entry not found")

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	seq       INTEGER PRIMARY KEY,
	ts        TEXT NOT NULL,
	kind      TEXT NOT NULL,
	prev_hash TEXT NOT NULL,
	data      TEXT NOT NULL,
	hash      TEXT NOT NULL UNIQUE
);
CREATE INDEX IF NOT EXISTS idx_entries_kind ON entries(kind);
`

// Store is a SQLite-backed journal. Appends are serialized; reads may run
// concurrently.
type Store struct {
	db  *sql.DB
	now func() time.Time

	mu       sync.Mutex
	lastSeq  uint64
	lastHash string
}

// Open opens or creates the journal database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating journal dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	// A single connection keeps appends and the tail cache consistent.
	db.SetMaxOpenConns(1)
	s, err := NewStore(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewStore wraps an open database, creating the schema if needed.
func NewStore(ctx context.Context, db *sql.DB) (*Store, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("creating journal schema: %w", err)
	}
	s := &Store{db: db, now: time.Now}
	row := db.QueryRowContext(ctx, `SELECT seq, hash FROM entries ORDER BY seq DESC LIMIT 1`)
	switch err := row.Scan(&s.lastSeq, &s.lastHash); {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("loading journal tail: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append adds an entry linked to the current tail.
func (s *Store) Append(ctx context.Context, kind Kind, data any) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := newEntry(s.lastSeq+1, s.lastHash, kind, data, s.now())
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO entries (seq, ts, kind, prev_hash, data, hash) VALUES (?, ?, ?, ?, ?, ?)`,
		e.Sequence, e.Time.Format(time.RFC3339Nano), string(e.Kind), e.PrevHash, string(e.Data), e.Hash)
	if err != nil {
		return nil, fmt.Errorf("inserting journal entry: %w", err)
	}
	s.lastSeq, s.lastHash = e.Sequence, e.Hash
	return e, nil
}

// Get returns the entry with sequence seq.
func (s *Store) Get(ctx context.Context, seq uint64) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT seq, ts, kind, prev_hash, data, hash FROM entries WHERE seq = ?`, seq)
	e, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

// Count returns the number of entries.
func (s *Store) Count(ctx context.Context) (uint64, error) {
	var n uint64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting journal entries: %w", err)
	}
	return n, nil
}

// ListOptions filters List.
type ListOptions struct {
	Kind  Kind // empty for all kinds
	Limit int  // 0 for no limit
}

// List returns entries newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]*Entry, error) {
	query := `SELECT seq, ts, kind, prev_hash, data, hash FROM entries`
	var args []any
	if opts.Kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, string(opts.Kind))
	}
	query += ` ORDER BY seq DESC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}
	return s.query(ctx, query, args...)
}

// CheckResult reports the outcome of Check.
type CheckResult struct {
	Valid   bool   `json:"valid"`
	Entries uint64 `json:"entries"`
	// BrokenAt is the first sequence that failed, 0 when valid.
	BrokenAt uint64 `json:"broken_at,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Check walks the whole journal and verifies every hash and link.
func (s *Store) Check(ctx context.Context) (*CheckResult, error) {
	entries, err := s.query(ctx, `SELECT seq, ts, kind, prev_hash, data, hash FROM entries ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	res := &CheckResult{Valid: true, Entries: uint64(len(entries))}
	prev := ""
	want := FirstSequence
	for _, e := range entries {
		switch {
		case e.Sequence != want:
			res.fail(want, fmt.Sprintf("missing entry %d", want))
		case e.PrevHash != prev:
			res.fail(e.Sequence, fmt.Sprintf("entry %d does not link to entry %d", e.Sequence, e.Sequence-1))
		case !e.Valid():
			res.fail(e.Sequence, fmt.Sprintf("entry %d hash mismatch", e.Sequence))
		}
		if !res.Valid {
			return res, nil
		}
		prev = e.Hash
		want++
	}
	return res, nil
}

func (r *CheckResult) fail(seq uint64, msg string) {
	r.Valid = false
	r.BrokenAt = seq
	r.Error = msg
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		e, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading journal: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (*Entry, error) {
	var (
		e        Entry
		ts, kind string
		data     string
	)
	if err := row.Scan(&e.Sequence, &ts, &kind, &e.PrevHash, &data, &e.Hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning journal entry: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, fmt.Errorf("entry %d: bad timestamp %q: %w", e.Sequence, ts, err)
	}
	e.Time = t
	e.Kind = Kind(kind)
	e.Data = []byte(data)
	return &e, nil
}
